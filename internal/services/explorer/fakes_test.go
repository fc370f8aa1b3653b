package explorer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"gorm.io/gorm"
)

// 内存版仓储实现，行为与数据库版保持一致，供服务层测试使用

type memFolderRepo struct {
	mu      sync.Mutex
	nextID  uint64
	folders map[uint64]*models.Folder
	access  map[string]*models.FolderAccess // "folderID/userID"
}

func newMemFolderRepo() *memFolderRepo {
	return &memFolderRepo{
		nextID:  1,
		folders: make(map[uint64]*models.Folder),
		access:  make(map[string]*models.FolderAccess),
	}
}

func accessKey(folderID, userID uint64) string {
	return fmt.Sprintf("%d/%d", folderID, userID)
}

func (r *memFolderRepo) Create(tx *gorm.DB, folder *models.Folder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.folders {
		if f.Path == folder.Path {
			return fmt.Errorf("folder repo: path %q: %w", folder.Path, xerr.ErrFolderAlreadyExists)
		}
	}
	folder.ID = r.nextID
	r.nextID++
	cp := *folder
	r.folders[folder.ID] = &cp
	return nil
}

func (r *memFolderRepo) Update(tx *gorm.DB, folder *models.Folder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.folders[folder.ID]; !ok {
		return xerr.ErrFolderNotFound
	}
	cp := *folder
	r.folders[folder.ID] = &cp
	return nil
}

func (r *memFolderRepo) Delete(tx *gorm.DB, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.folders, id)
	return nil
}

func (r *memFolderRepo) FindByID(id uint64) (*models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.folders[id]
	if !ok {
		return nil, xerr.ErrFolderNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memFolderRepo) FindByPath(path string) (*models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.folders {
		if f.Path == path {
			cp := *f
			return &cp, nil
		}
	}
	return nil, xerr.ErrFolderNotFound
}

func (r *memFolderRepo) ExistsByPath(path string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.folders {
		if f.Path == path {
			return true, nil
		}
	}
	return false, nil
}

func (r *memFolderRepo) FindChildren(parentID uint64) ([]models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Folder
	for _, f := range r.folders {
		if f.ParentFolderID != nil && *f.ParentFolderID == parentID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memFolderRepo) List(parentID *uint64) ([]models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Folder
	for _, f := range r.folders {
		switch {
		case parentID == nil && f.ParentFolderID == nil:
			out = append(out, *f)
		case parentID != nil && f.ParentFolderID != nil && *f.ParentFolderID == *parentID:
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memFolderRepo) UpsertAccess(tx *gorm.DB, access *models.FolderAccess) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *access
	r.access[accessKey(access.FolderID, access.UserID)] = &cp
	return nil
}

func (r *memFolderRepo) RemoveAccess(tx *gorm.DB, folderID, userID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.access, accessKey(folderID, userID))
	return nil
}

func (r *memFolderRepo) FindAccess(folderID, userID uint64) (*models.FolderAccess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.access[accessKey(folderID, userID)]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memFolderRepo) ListAccess(folderID uint64) ([]models.FolderAccess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FolderAccess
	for _, a := range r.access {
		if a.FolderID == folderID {
			out = append(out, *a)
		}
	}
	return out, nil
}

type memFileRepo struct {
	mu     sync.Mutex
	nextID uint64
	files  map[uint64]*models.File
}

func newMemFileRepo() *memFileRepo {
	return &memFileRepo{nextID: 1, files: make(map[uint64]*models.File)}
}

func (r *memFileRepo) Create(tx *gorm.DB, file *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	file.ID = r.nextID
	r.nextID++
	cp := *file
	r.files[file.ID] = &cp
	return nil
}

func (r *memFileRepo) Update(tx *gorm.DB, file *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[file.ID]; !ok {
		return xerr.ErrFileNotFound
	}
	cp := *file
	r.files[file.ID] = &cp
	return nil
}

func (r *memFileRepo) Delete(tx *gorm.DB, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, id)
	return nil
}

func (r *memFileRepo) DeleteByFolder(tx *gorm.DB, folderID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, f := range r.files {
		if f.FolderID == folderID {
			delete(r.files, id)
		}
	}
	return nil
}

func (r *memFileRepo) FindByID(id uint64) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, xerr.ErrFileNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memFileRepo) FindByUUID(uuid string) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.files {
		if f.UUID == uuid {
			cp := *f
			return &cp, nil
		}
	}
	return nil, xerr.ErrFileNotFound
}

func (r *memFileRepo) FindByFolder(folderID uint64, onlyCurrent bool) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.File
	for _, f := range r.files {
		if f.FolderID != folderID || f.IsDeleted {
			continue
		}
		if onlyCurrent && !f.IsCurrentVersion {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OriginalFileName != out[j].OriginalFileName {
			return out[i].OriginalFileName < out[j].OriginalFileName
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

func (r *memFileRepo) FindByFolderAndHash(folderID uint64, hash string) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.files {
		if f.FolderID == folderID && f.FileHash == hash && !f.IsDeleted {
			cp := *f
			return &cp, nil
		}
	}
	return nil, xerr.ErrFileNotFound
}

func (r *memFileRepo) FindByFolderAndName(folderID uint64, fileName string) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.files {
		if f.FolderID == folderID && f.FileName == fileName && !f.IsDeleted {
			cp := *f
			return &cp, nil
		}
	}
	return nil, xerr.ErrFileNotFound
}

func (r *memFileRepo) FindLineage(originID uint64) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.File
	for _, f := range r.files {
		if f.IsDeleted {
			continue
		}
		if f.ID == originID || (f.OriginalFileID != nil && *f.OriginalFileID == originID) {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (r *memFileRepo) FindLineageByName(folderID uint64, originalName string) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.File
	for _, f := range r.files {
		if f.FolderID == folderID && f.OriginalFileName == originalName && !f.IsDeleted {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (r *memFileRepo) DemoteLineage(tx *gorm.DB, originID uint64, exceptID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.files {
		if f.ID == exceptID {
			continue
		}
		if f.ID == originID || (f.OriginalFileID != nil && *f.OriginalFileID == originID) {
			f.IsCurrentVersion = false
		}
	}
	return nil
}

func (r *memFileRepo) ListByApprovalStatus(status string) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.File
	for _, f := range r.files {
		if f.IsDeleted {
			continue
		}
		if status == "" || f.ApprovalStatus == status {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memFileRepo) IncrementDownloadCount(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.files[id]; ok {
		f.DownloadCount++
	}
	return nil
}

func (r *memFileRepo) UpdatePathPrefix(tx *gorm.DB, oldPrefix, newPrefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.files {
		if strings.HasPrefix(f.Path, oldPrefix) {
			f.Path = newPrefix + f.Path[len(oldPrefix):]
		}
	}
	return nil
}

// 内存实现没有缓存层
func (r *memFileRepo) InvalidateFiles(files ...*models.File) {}

func (r *memFileRepo) InvalidateFolders(folderIDs ...uint64) {}

func (r *memFileRepo) SearchByName(keyword string) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.File
	for _, f := range r.files {
		if strings.Contains(f.OriginalFileName, keyword) || strings.Contains(f.FileName, keyword) {
			out = append(out, *f)
		}
	}
	return out, nil
}

// noopTxManager 不开真实事务，直接执行回调
type noopTxManager struct{}

func (noopTxManager) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
