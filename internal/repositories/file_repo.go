package repositories

import (
	"errors"
	"fmt"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FileRepository 文件元数据访问接口
// 写操作接受可选的事务句柄 tx，tx 为 nil 时使用默认连接
type FileRepository interface {
	Create(tx *gorm.DB, file *models.File) error
	Update(tx *gorm.DB, file *models.File) error
	Delete(tx *gorm.DB, id uint64) error
	DeleteByFolder(tx *gorm.DB, folderID uint64) error

	FindByID(id uint64) (*models.File, error)
	FindByUUID(uuid string) (*models.File, error)
	// FindByFolder 返回某文件夹下的文件，onlyCurrent 为 true 时只取当前版本
	FindByFolder(folderID uint64, onlyCurrent bool) ([]models.File, error)
	FindByFolderAndHash(folderID uint64, hash string) (*models.File, error)
	FindByFolderAndName(folderID uint64, fileName string) (*models.File, error)

	// 版本链查询，originID 是版本 1 记录的 ID
	FindLineage(originID uint64) ([]models.File, error)
	// FindLineageByName 按上传原名定位同文件夹内的版本链，按版本升序返回
	FindLineageByName(folderID uint64, originalName string) ([]models.File, error)
	// DemoteLineage 把版本链上除 exceptID 以外的记录全部标记为非当前版本
	DemoteLineage(tx *gorm.DB, originID uint64, exceptID uint64) error

	ListByApprovalStatus(status string) ([]models.File, error)
	IncrementDownloadCount(id uint64) error
	// UpdatePathPrefix 文件夹重命名/移动后批量改写子文件的物理路径前缀
	UpdatePathPrefix(tx *gorm.DB, oldPrefix, newPrefix string) error
	// SearchByName 数据库 LIKE 搜索，搜索服务不可用时的回退路径
	SearchByName(keyword string) ([]models.File, error)

	// InvalidateFiles 事务提交后由服务层调用，丢弃与这些文件相关的缓存
	// 写路径上的即时失效发生在事务提交前，并发读仍可能用旧数据回填，提交后必须再失效一次
	InvalidateFiles(files ...*models.File)
	// InvalidateFolders 丢弃这些文件夹的文件列表缓存及其下所有文件的元数据和版本链缓存
	// 文件夹移动/重命名会批量改写子文件路径，影响的键只能按文件夹枚举
	InvalidateFolders(folderIDs ...uint64)
}

// dbFileRepository 直连数据库的 FileRepository 实现
type dbFileRepository struct {
	db *gorm.DB
}

var _ FileRepository = (*dbFileRepository)(nil)

// NewDBFileRepository 创建直连数据库的文件仓储实例
func NewDBFileRepository(db *gorm.DB) FileRepository {
	return &dbFileRepository{
		db: db,
	}
}

func (r *dbFileRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *dbFileRepository) Create(tx *gorm.DB, file *models.File) error {
	err := r.conn(tx).Create(file).Error
	if err != nil {
		logger.Error("Create: Failed to create file in DB",
			zap.Uint64("folderID", file.FolderID),
			zap.String("fileName", file.FileName),
			zap.Error(err))
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

func (r *dbFileRepository) Update(tx *gorm.DB, file *models.File) error {
	err := r.conn(tx).Save(file).Error
	if err != nil {
		logger.Error("Update: Failed to update file in DB",
			zap.Uint64("fileID", file.ID), zap.Error(err))
		return fmt.Errorf("failed to update file: %w", err)
	}
	return nil
}

func (r *dbFileRepository) Delete(tx *gorm.DB, id uint64) error {
	err := r.conn(tx).Delete(&models.File{}, id).Error
	if err != nil {
		logger.Error("Delete: Failed to delete file record from DB",
			zap.Uint64("fileID", id), zap.Error(err))
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	return nil
}

func (r *dbFileRepository) DeleteByFolder(tx *gorm.DB, folderID uint64) error {
	err := r.conn(tx).Where("folder_id = ?", folderID).Delete(&models.File{}).Error
	if err != nil {
		logger.Error("DeleteByFolder: Failed to delete file records from DB",
			zap.Uint64("folderID", folderID), zap.Error(err))
		return fmt.Errorf("failed to delete files of folder: %w", err)
	}
	return nil
}

func (r *dbFileRepository) FindByID(id uint64) (*models.File, error) {
	var file models.File
	err := r.db.First(&file, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to find file: %w", err)
	}
	return &file, nil
}

func (r *dbFileRepository) FindByUUID(uuid string) (*models.File, error) {
	var file models.File
	err := r.db.Where("uuid = ?", uuid).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to find file by uuid: %w", err)
	}
	return &file, nil
}

func (r *dbFileRepository) FindByFolder(folderID uint64, onlyCurrent bool) ([]models.File, error) {
	var files []models.File
	query := r.db.Where("folder_id = ? AND is_deleted = ?", folderID, false)
	if onlyCurrent {
		query = query.Where("is_current_version = ?", true)
	}
	err := query.Order("original_file_name ASC, version ASC").Find(&files).Error
	if err != nil {
		logger.Error("Error finding files from DB", zap.Uint64("folderID", folderID), zap.Error(err))
		return nil, fmt.Errorf("failed to find files: %w", err)
	}
	return files, nil
}

func (r *dbFileRepository) FindByFolderAndHash(folderID uint64, hash string) (*models.File, error) {
	var file models.File
	err := r.db.
		Where("folder_id = ? AND file_hash = ? AND is_deleted = ?", folderID, hash, false).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to find file by hash: %w", err)
	}
	return &file, nil
}

func (r *dbFileRepository) FindByFolderAndName(folderID uint64, fileName string) (*models.File, error) {
	var file models.File
	err := r.db.
		Where("folder_id = ? AND file_name = ? AND is_deleted = ?", folderID, fileName, false).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to find file by name: %w", err)
	}
	return &file, nil
}

// FindLineage 返回整条版本链（版本 1 自身加上所有后续版本），按版本升序
func (r *dbFileRepository) FindLineage(originID uint64) ([]models.File, error) {
	var files []models.File
	err := r.db.
		Where("(id = ? OR original_file_id = ?) AND is_deleted = ?", originID, originID, false).
		Order("version ASC").
		Find(&files).Error
	if err != nil {
		logger.Error("Error finding file lineage from DB", zap.Uint64("originID", originID), zap.Error(err))
		return nil, fmt.Errorf("failed to find file lineage: %w", err)
	}
	return files, nil
}

func (r *dbFileRepository) FindLineageByName(folderID uint64, originalName string) ([]models.File, error) {
	var files []models.File
	err := r.db.
		Where("folder_id = ? AND original_file_name = ? AND is_deleted = ?", folderID, originalName, false).
		Order("version ASC").
		Find(&files).Error
	if err != nil {
		logger.Error("Error finding file lineage by name from DB",
			zap.Uint64("folderID", folderID),
			zap.String("originalName", originalName),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find file lineage by name: %w", err)
	}
	return files, nil
}

func (r *dbFileRepository) DemoteLineage(tx *gorm.DB, originID uint64, exceptID uint64) error {
	err := r.conn(tx).Model(&models.File{}).
		Where("(id = ? OR original_file_id = ?) AND id != ?", originID, originID, exceptID).
		Update("is_current_version", false).Error
	if err != nil {
		logger.Error("DemoteLineage: Failed to demote lineage versions",
			zap.Uint64("originID", originID), zap.Error(err))
		return fmt.Errorf("failed to demote lineage versions: %w", err)
	}
	return nil
}

// ListByApprovalStatus 按审批状态列出文件，status 为空时不过滤状态
func (r *dbFileRepository) ListByApprovalStatus(status string) ([]models.File, error) {
	var files []models.File
	query := r.db.Where("is_deleted = ?", false)
	if status != "" {
		query = query.Where("approval_status = ?", status)
	}
	err := query.
		Order("created_at DESC").
		Find(&files).Error
	if err != nil {
		logger.Error("Error listing files by approval status", zap.String("status", status), zap.Error(err))
		return nil, fmt.Errorf("failed to list files by approval status: %w", err)
	}
	return files, nil
}

func (r *dbFileRepository) IncrementDownloadCount(id uint64) error {
	err := r.db.Model(&models.File{}).
		Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error
	if err != nil {
		logger.Error("IncrementDownloadCount: Failed to increment download count",
			zap.Uint64("fileID", id), zap.Error(err))
		return fmt.Errorf("failed to increment download count: %w", err)
	}
	return nil
}

// UpdatePathPrefix 批量替换 path 前缀，用 CONCAT 拼接新前缀和原路径的剩余部分
// 截取位置必须按字符数算（CHAR_LENGTH），utf8mb4 下路径里的多字节字符会让字节长度偏大
func (r *dbFileRepository) UpdatePathPrefix(tx *gorm.DB, oldPrefix, newPrefix string) error {
	err := r.conn(tx).Model(&models.File{}).
		Where("path LIKE ?", oldPrefix+"%").
		Update("path", gorm.Expr("CONCAT(?, SUBSTRING(path, CHAR_LENGTH(?) + 1))", newPrefix, oldPrefix)).Error
	if err != nil {
		logger.Error("UpdatePathPrefix: Failed to update file paths in batch",
			zap.String("oldPrefix", oldPrefix),
			zap.String("newPrefix", newPrefix),
			zap.Error(err))
		return fmt.Errorf("failed to update file paths in batch: %w", err)
	}
	return nil
}

// 直连数据库没有缓存可失效
func (r *dbFileRepository) InvalidateFiles(files ...*models.File) {}

func (r *dbFileRepository) InvalidateFolders(folderIDs ...uint64) {}

func (r *dbFileRepository) SearchByName(keyword string) ([]models.File, error) {
	var files []models.File
	pattern := "%" + keyword + "%"
	err := r.db.
		Where("is_deleted = ? AND is_current_version = ?", false, true).
		Where("original_file_name LIKE ? OR file_name LIKE ? OR description LIKE ?", pattern, pattern, pattern).
		Order("original_file_name ASC").
		Limit(100).
		Find(&files).Error
	if err != nil {
		logger.Error("Error searching files by name", zap.String("keyword", keyword), zap.Error(err))
		return nil, fmt.Errorf("failed to search files: %w", err)
	}
	return files, nil
}
