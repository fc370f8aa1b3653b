package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/services/explorer"
	"github.com/gin-gonic/gin"
)

// stubFileService 只驱动 UploadFiles handler，上传结果由 uploadFn 决定
type stubFileService struct {
	uploadFn func(req *explorer.UploadRequest) (*models.File, bool, error)
}

func (s *stubFileService) Upload(ctx context.Context, userID uint64, role string, req *explorer.UploadRequest) (*models.File, bool, error) {
	return s.uploadFn(req)
}

func (s *stubFileService) Rename(ctx context.Context, userID uint64, role string, fileID uint64, newName string) (*models.File, error) {
	return nil, nil
}

func (s *stubFileService) Delete(ctx context.Context, userID uint64, role string, fileID uint64) error {
	return nil
}

func (s *stubFileService) GetInfo(ctx context.Context, userID uint64, role string, fileID uint64) (*models.File, error) {
	return nil, nil
}

func multipartUpload(t *testing.T, fileNames ...string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, name := range fileNames {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprint(part, "payload of "+name)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return body, mw.FormDataContentType()
}

func postUpload(t *testing.T, svc explorer.FileService, fileNames ...string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, fileNames...)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/folders/1/files", body)
	c.Request.Header.Set("Content-Type", contentType)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	c.Set("userID", uint64(1))
	c.Set("role", models.RoleUser)

	UploadFiles(svc)(c)
	return w
}

func decodeUploadResults(t *testing.T, w *httptest.ResponseRecorder) (int, []models.UploadResult) {
	t.Helper()
	var resp struct {
		Code    int                   `json:"code"`
		Message string                `json:"message"`
		Data    []models.UploadResult `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Code, resp.Data
}

func TestUploadFilesFailsBatchWhenNothingPersisted(t *testing.T) {
	svc := &stubFileService{
		uploadFn: func(req *explorer.UploadRequest) (*models.File, bool, error) {
			return nil, false, fmt.Errorf("disk full")
		},
	}

	w := postUpload(t, svc, "a.pdf", "b.pdf")

	// 一个文件都没入库，整批算失败
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	_, results := decodeUploadResults(t, w)
	if len(results) != 2 {
		t.Fatalf("results size = %d, want 2", len(results))
	}
	for _, r := range results {
		if r.Error == "" {
			t.Errorf("result for %q missing per-file error", r.FileName)
		}
	}
}

func TestUploadFilesPartialFailureStillSucceeds(t *testing.T) {
	svc := &stubFileService{
		uploadFn: func(req *explorer.UploadRequest) (*models.File, bool, error) {
			if req.FileName == "bad.pdf" {
				return nil, false, fmt.Errorf("corrupt upload")
			}
			return &models.File{ID: 1, FileName: req.FileName}, false, nil
		},
	}

	w := postUpload(t, svc, "good.pdf", "bad.pdf")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	_, results := decodeUploadResults(t, w)
	if len(results) != 2 {
		t.Fatalf("results size = %d, want 2", len(results))
	}
	if results[0].Error != "" || results[0].File == nil {
		t.Errorf("first result = %+v, want persisted file", results[0])
	}
	if results[1].Error == "" {
		t.Errorf("second result = %+v, want per-file error", results[1])
	}
}
