package hasher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sha256("hello world") 的十六进制摘要
const helloWorldSum = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestSumReader(t *testing.T) {
	sum, n, err := SumReader(strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("SumReader: %v", err)
	}
	if sum != helloWorldSum {
		t.Errorf("sum = %s, want %s", sum, helloWorldSum)
	}
	if n != int64(len("hello world")) {
		t.Errorf("n = %d, want %d", n, len("hello world"))
	}
}

func TestSumReaderEmpty(t *testing.T) {
	sum, n, err := SumReader(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
	// sha256 空串摘要
	if sum != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("unexpected empty sum %s", sum)
	}
}

func TestSumFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o600); err != nil {
		t.Fatal(err)
	}

	sum, n, err := SumFile(path)
	if err != nil {
		t.Fatalf("SumFile: %v", err)
	}
	if sum != helloWorldSum || n != 11 {
		t.Errorf("SumFile = (%s, %d)", sum, n)
	}

	if _, _, err := SumFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
