package repositories

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/cache"
	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 基础缓存时长，实际过期时间会叠加随机抖动避免雪崩
const cacheTTL = 10 * time.Minute

// cachedFileRepository 带 Redis 缓存的 FileRepository 装饰器
// 读路径 read-through，写路径先落库再失效相关键
type cachedFileRepository struct {
	next  FileRepository // 链上的下一个仓储（直连数据库的实现）
	cache cache.Cache
}

var _ FileRepository = (*cachedFileRepository)(nil)

// NewCachedFileRepository 创建带缓存的文件仓储实例
func NewCachedFileRepository(next FileRepository, c cache.Cache) FileRepository {
	return &cachedFileRepository{
		next:  next,
		cache: c,
	}
}

func jitteredTTL() time.Duration {
	return cacheTTL + time.Duration(rand.Intn(300))*time.Second
}

// invalidate 删除与某条文件记录相关的所有缓存键，失败只记日志
func (r *cachedFileRepository) invalidate(file *models.File) {
	if file == nil {
		return
	}
	ctx := context.Background()
	keys := []string{
		cache.GenerateFileMetadataKey(file.ID),
		cache.GenerateFolderFilesKey(file.FolderID),
		cache.GenerateLineageKey(file.LineageOriginID()),
		cache.GenerateHashKey(file.FolderID, file.FileHash),
	}
	if err := r.cache.Del(ctx, keys...); err != nil {
		logger.Warn("cache invalidation failed", zap.Uint64("fileID", file.ID), zap.Error(err))
	}
}

func (r *cachedFileRepository) Create(tx *gorm.DB, file *models.File) error {
	if err := r.next.Create(tx, file); err != nil {
		return err
	}
	r.invalidate(file)
	return nil
}

func (r *cachedFileRepository) Update(tx *gorm.DB, file *models.File) error {
	if err := r.next.Update(tx, file); err != nil {
		return err
	}
	r.invalidate(file)
	return nil
}

func (r *cachedFileRepository) Delete(tx *gorm.DB, id uint64) error {
	// 删除前先查出记录，拿到失效所需的关联键
	file, err := r.next.FindByID(id)
	if err != nil && !errors.Is(err, xerr.ErrFileNotFound) {
		return err
	}
	if err := r.next.Delete(tx, id); err != nil {
		return err
	}
	r.invalidate(file)
	return nil
}

func (r *cachedFileRepository) DeleteByFolder(tx *gorm.DB, folderID uint64) error {
	if err := r.next.DeleteByFolder(tx, folderID); err != nil {
		return err
	}
	if err := r.cache.Del(context.Background(), cache.GenerateFolderFilesKey(folderID)); err != nil {
		logger.Warn("cache invalidation failed", zap.Uint64("folderID", folderID), zap.Error(err))
	}
	return nil
}

func (r *cachedFileRepository) FindByID(id uint64) (*models.File, error) {
	ctx := context.Background()
	key := cache.GenerateFileMetadataKey(id)

	var cached models.File
	err := r.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn("FindByID: error reading file metadata cache", zap.Uint64("id", id), zap.Error(err))
	}

	file, err := r.next.FindByID(id)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, key, file, jitteredTTL()); err != nil {
		logger.Warn("FindByID: failed to cache file metadata", zap.Uint64("id", id), zap.Error(err))
	}
	return file, nil
}

func (r *cachedFileRepository) FindByUUID(uuid string) (*models.File, error) {
	// UUID 查询频率低，不走缓存
	return r.next.FindByUUID(uuid)
}

func (r *cachedFileRepository) FindByFolder(folderID uint64, onlyCurrent bool) ([]models.File, error) {
	// 只缓存最常用的「当前版本列表」形态
	if !onlyCurrent {
		return r.next.FindByFolder(folderID, onlyCurrent)
	}

	ctx := context.Background()
	key := cache.GenerateFolderFilesKey(folderID)

	var cached []models.File
	err := r.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn("FindByFolder: error reading folder files cache", zap.Uint64("folderID", folderID), zap.Error(err))
	}

	files, err := r.next.FindByFolder(folderID, onlyCurrent)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, key, files, jitteredTTL()); err != nil {
		logger.Warn("FindByFolder: failed to cache folder files", zap.Uint64("folderID", folderID), zap.Error(err))
	}
	return files, nil
}

func (r *cachedFileRepository) FindByFolderAndHash(folderID uint64, hash string) (*models.File, error) {
	return r.next.FindByFolderAndHash(folderID, hash)
}

func (r *cachedFileRepository) FindByFolderAndName(folderID uint64, fileName string) (*models.File, error) {
	return r.next.FindByFolderAndName(folderID, fileName)
}

func (r *cachedFileRepository) FindLineage(originID uint64) ([]models.File, error) {
	ctx := context.Background()
	key := cache.GenerateLineageKey(originID)

	var cached []models.File
	err := r.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn("FindLineage: error reading lineage cache", zap.Uint64("originID", originID), zap.Error(err))
	}

	files, err := r.next.FindLineage(originID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, key, files, jitteredTTL()); err != nil {
		logger.Warn("FindLineage: failed to cache lineage", zap.Uint64("originID", originID), zap.Error(err))
	}
	return files, nil
}

func (r *cachedFileRepository) FindLineageByName(folderID uint64, originalName string) ([]models.File, error) {
	return r.next.FindLineageByName(folderID, originalName)
}

func (r *cachedFileRepository) DemoteLineage(tx *gorm.DB, originID uint64, exceptID uint64) error {
	if err := r.next.DemoteLineage(tx, originID, exceptID); err != nil {
		return err
	}
	if err := r.cache.Del(context.Background(), cache.GenerateLineageKey(originID)); err != nil {
		logger.Warn("cache invalidation failed", zap.Uint64("originID", originID), zap.Error(err))
	}
	return nil
}

func (r *cachedFileRepository) ListByApprovalStatus(status string) ([]models.File, error) {
	return r.next.ListByApprovalStatus(status)
}

func (r *cachedFileRepository) IncrementDownloadCount(id uint64) error {
	if err := r.next.IncrementDownloadCount(id); err != nil {
		return err
	}
	// 计数变化只影响单条元数据
	if err := r.cache.Del(context.Background(), cache.GenerateFileMetadataKey(id)); err != nil {
		logger.Warn("cache invalidation failed", zap.Uint64("fileID", id), zap.Error(err))
	}
	return nil
}

func (r *cachedFileRepository) UpdatePathPrefix(tx *gorm.DB, oldPrefix, newPrefix string) error {
	// 受影响的键在这里枚举不出来，调用方在事务提交后按文件夹调 InvalidateFolders
	return r.next.UpdatePathPrefix(tx, oldPrefix, newPrefix)
}

func (r *cachedFileRepository) InvalidateFiles(files ...*models.File) {
	for _, f := range files {
		r.invalidate(f)
	}
}

func (r *cachedFileRepository) InvalidateFolders(folderIDs ...uint64) {
	ctx := context.Background()
	for _, folderID := range folderIDs {
		keys := []string{cache.GenerateFolderFilesKey(folderID)}
		// 绕过缓存枚举文件夹下全部文件（含历史版本），拿到各自的关联键
		files, err := r.next.FindByFolder(folderID, false)
		if err != nil {
			logger.Warn("InvalidateFolders: failed to enumerate folder files",
				zap.Uint64("folderID", folderID), zap.Error(err))
		}
		for i := range files {
			keys = append(keys,
				cache.GenerateFileMetadataKey(files[i].ID),
				cache.GenerateLineageKey(files[i].LineageOriginID()))
		}
		if err := r.cache.Del(ctx, keys...); err != nil {
			logger.Warn("cache invalidation failed", zap.Uint64("folderID", folderID), zap.Error(err))
		}
	}
}

func (r *cachedFileRepository) SearchByName(keyword string) ([]models.File, error) {
	return r.next.SearchByName(keyword)
}
