package search

import (
	"context"
	"errors"
	"testing"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/docvault/go-docvault/internal/repositories"
)

type stubFileRepo struct {
	repositories.FileRepository
	files []models.File
}

func (r *stubFileRepo) SearchByName(keyword string) ([]models.File, error) {
	return r.files, nil
}

func (r *stubFileRepo) FindByID(id uint64) (*models.File, error) {
	for i := range r.files {
		if r.files[i].ID == id {
			return &r.files[i], nil
		}
	}
	return nil, xerr.ErrFileNotFound
}

type gateFunc func(userID uint64, role string, file *models.File) bool

func (f gateFunc) FileVisible(userID uint64, role string, file *models.File) bool {
	return f(userID, role, file)
}

// restrictedFolderID 模拟一个只有管理角色可读的文件夹
const restrictedFolderID = 9

func testGate() VisibilityGate {
	return gateFunc(func(userID uint64, role string, file *models.File) bool {
		if file == nil {
			return false
		}
		if file.FolderID == restrictedFolderID && role != models.RoleAdmin && role != models.RoleSubAdmin {
			return false
		}
		return file.VisibleTo(userID, role)
	})
}

func testService() *Service {
	repo := &stubFileRepo{files: []models.File{
		{ID: 1, FolderID: 1, FileName: "plan.pdf", ApprovalStatus: models.ApprovalApproved, UploadedBy: 2},
		{ID: 2, FolderID: 1, FileName: "plan-draft.pdf", ApprovalStatus: models.ApprovalPending, UploadedBy: 2},
		{ID: 3, FolderID: restrictedFolderID, FileName: "plan-board.pdf", ApprovalStatus: models.ApprovalApproved, UploadedBy: 5},
	}}
	return NewService(nil, "files", repo, testGate())
}

func TestSearchFiltersHitsByCallerVisibility(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  uint64
		role    string
		wantIDs []uint64
	}{
		{"stranger sees only approved files in readable folders", 3, models.RoleUser, []uint64{1}},
		{"uploader sees own pending version", 2, models.RoleUser, []uint64{1, 2}},
		{"admin sees everything", 7, models.RoleAdmin, []uint64{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := svc.Search(ctx, tt.userID, tt.role, "plan")
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			got := make([]uint64, 0, len(hits))
			for _, h := range hits {
				got = append(got, h.FileID)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("hit IDs = %v, want %v", got, tt.wantIDs)
			}
			for i := range got {
				if got[i] != tt.wantIDs[i] {
					t.Fatalf("hit IDs = %v, want %v", got, tt.wantIDs)
				}
			}
		})
	}
}

func TestSearchRejectsEmptyKeyword(t *testing.T) {
	svc := testService()
	if _, err := svc.Search(context.Background(), 1, models.RoleUser, ""); !errors.Is(err, xerr.ErrInvalidParams) {
		t.Errorf("empty keyword err = %v, want ErrInvalidParams", err)
	}
}
