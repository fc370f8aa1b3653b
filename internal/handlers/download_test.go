package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docvault/go-docvault/internal/config"
	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/storage"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testObject(t *testing.T, content string) *storage.Object {
	t.Helper()
	path := filepath.Join(t.TempDir(), "content")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	return &storage.Object{
		Reader:  f,
		Size:    int64(len(content)),
		ModTime: time.Now().Add(-time.Hour),
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Storage.RangeMinBytes = 1 << 20
	cfg.Storage.PreviewTimeout = 30
	return cfg
}

func serve(t *testing.T, cfg *config.Config, file *models.File, content string, header http.Header) *httptest.ResponseRecorder {
	return serveCtx(t, context.Background(), cfg, file, content, header)
}

func serveCtx(t *testing.T, ctx context.Context, cfg *config.Config, file *models.File, content string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/download", nil)
	for k, vs := range header {
		for _, v := range vs {
			c.Request.Header.Add(k, v)
		}
	}
	serveFileContent(ctx, c, cfg, file, testObject(t, content), false)
	// gin flushes the buffered status after handlers return; CreateTestContext
	// has no engine to do that, so flush it here or the recorder stays at 200.
	c.Writer.WriteHeaderNow()
	return w
}

func TestServeContentRangeForMedia(t *testing.T) {
	cfg := testConfig()
	content := "0123456789abcdef"
	file := &models.File{
		ID:       1,
		FileName: "clip.mp4",
		MimeType: "video/mp4",
		Size:     uint64(len(content)),
		FileHash: "deadbeef",
	}

	w := serve(t, cfg, file, content, http.Header{"Range": {"bytes=4-7"}})

	if w.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", w.Code)
	}
	if got := w.Body.String(); got != "4567" {
		t.Errorf("body = %q, want %q", got, "4567")
	}
	if cr := w.Header().Get("Content-Range"); cr != "bytes 4-7/16" {
		t.Errorf("Content-Range = %q", cr)
	}
}

func TestServeContentETagNotModified(t *testing.T) {
	cfg := testConfig()
	file := &models.File{
		ID:       1,
		FileName: "doc.pdf",
		MimeType: "application/pdf",
		Size:     4,
		FileHash: "cafebabe",
	}

	w := serve(t, cfg, file, "data", http.Header{"If-None-Match": {`"cafebabe"`}})

	if w.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("304 response carried a body of %d bytes", w.Body.Len())
	}
}

func TestServeContentSmallFileIgnoresRange(t *testing.T) {
	cfg := testConfig()
	content := "tiny file body"
	file := &models.File{
		ID:       1,
		FileName: "note.txt",
		MimeType: "text/plain",
		Size:     uint64(len(content)),
		FileHash: "0011",
	}

	// 小于阈值的非流媒体文件不启用 Range，整体返回
	w := serve(t, cfg, file, content, http.Header{"Range": {"bytes=0-3"}})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != content {
		t.Errorf("body = %q, want full content", got)
	}
	if ar := w.Header().Get("Accept-Ranges"); ar != "none" {
		t.Errorf("Accept-Ranges = %q, want none", ar)
	}
	if etag := w.Header().Get("ETag"); etag != `"0011"` {
		t.Errorf("ETag = %q", etag)
	}
}

func TestServeContentStopsOnCanceledContext(t *testing.T) {
	cfg := testConfig()
	content := strings.Repeat("x", 64<<10)
	file := &models.File{
		ID:       1,
		FileName: "big.txt",
		MimeType: "text/plain",
		Size:     uint64(len(content)),
		FileHash: "feed",
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // 消费方在传输开始前就断开了

	w := serveCtx(t, ctx, cfg, file, content, nil)

	if w.Body.Len() != 0 {
		t.Errorf("canceled transfer streamed %d bytes, want 0", w.Body.Len())
	}
}

func TestServeContentMediaStopsOnCanceledContext(t *testing.T) {
	cfg := testConfig()
	content := strings.Repeat("v", 64<<10)
	file := &models.File{
		ID:       2,
		FileName: "clip.mp4",
		MimeType: "video/mp4",
		Size:     uint64(len(content)),
		FileHash: "beef",
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Range 路径同样必须响应取消信号
	w := serveCtx(t, ctx, cfg, file, content, http.Header{"Range": {"bytes=0-"}})

	if w.Body.Len() == len(content) {
		t.Error("canceled media transfer still streamed the full body")
	}
}
