package repositories

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/cache"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
)

// memCache 内存版 cache.Cache，走 JSON 编解码保持与 Redis 实现一致的语义
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *memCache) Get(ctx context.Context, key string, target any) error {
	c.mu.Lock()
	b, ok := c.data[key]
	c.mu.Unlock()
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(b, target)
}

func (c *memCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

func (c *memCache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

func (c *memCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	return 0, nil
}

// stubFileStore 只实现缓存装饰器会触达的查询
type stubFileStore struct {
	FileRepository
	mu    sync.Mutex
	files map[uint64]*models.File
}

func newStubFileStore(files ...*models.File) *stubFileStore {
	s := &stubFileStore{files: make(map[uint64]*models.File)}
	for _, f := range files {
		cp := *f
		s.files[f.ID] = &cp
	}
	return s
}

func (s *stubFileStore) FindByID(id uint64) (*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil, xerr.ErrFileNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *stubFileStore) FindByFolder(folderID uint64, onlyCurrent bool) ([]models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.File
	for _, f := range s.files {
		if f.FolderID != folderID {
			continue
		}
		if onlyCurrent && !f.IsCurrentVersion {
			continue
		}
		out = append(out, *f)
	}
	return out, nil
}

func (s *stubFileStore) setPath(id uint64, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id].Path = path
}

func TestInvalidateFoldersDropsStalePaths(t *testing.T) {
	file := &models.File{
		ID: 1, FolderID: 5, FileName: "a(1).pdf",
		Path: "docs/a(1).pdf", IsCurrentVersion: true,
	}
	store := newStubFileStore(file)
	mc := newMemCache()
	repo := NewCachedFileRepository(store, mc)

	// 预热两类缓存键
	if _, err := repo.FindByFolder(5, true); err != nil {
		t.Fatalf("FindByFolder: %v", err)
	}
	if _, err := repo.FindByID(1); err != nil {
		t.Fatalf("FindByID: %v", err)
	}

	// 模拟文件夹移动后的批量路径改写：底层变了，缓存还是旧路径
	store.setPath(1, "archive/a(1).pdf")

	repo.InvalidateFolders(5)

	got, err := repo.FindByID(1)
	if err != nil {
		t.Fatalf("FindByID after invalidation: %v", err)
	}
	if got.Path != "archive/a(1).pdf" {
		t.Errorf("metadata path = %q, want the rewritten path", got.Path)
	}
	list, err := repo.FindByFolder(5, true)
	if err != nil {
		t.Fatalf("FindByFolder after invalidation: %v", err)
	}
	if len(list) != 1 || list[0].Path != "archive/a(1).pdf" {
		t.Errorf("folder listing = %+v, want the rewritten path", list)
	}
}

func TestInvalidateFilesDropsRepopulatedEntry(t *testing.T) {
	file := &models.File{
		ID: 2, FolderID: 5, FileName: "b.pdf",
		Path: "docs/b.pdf", IsCurrentVersion: true,
		ApprovalStatus: models.ApprovalApproved,
	}
	store := newStubFileStore(file)
	mc := newMemCache()
	repo := NewCachedFileRepository(store, mc)

	// 模拟事务提交前被并发读回填的旧状态
	stale := *file
	stale.ApprovalStatus = models.ApprovalPending
	if err := mc.Set(context.Background(), cache.GenerateFileMetadataKey(2), &stale, time.Minute); err != nil {
		t.Fatal(err)
	}

	repo.InvalidateFiles(file)

	got, err := repo.FindByID(2)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.ApprovalStatus != models.ApprovalApproved {
		t.Errorf("approval status = %q, stale cache entry survived invalidation", got.ApprovalStatus)
	}
}
