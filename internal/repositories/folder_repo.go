package repositories

import (
	"errors"
	"fmt"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FolderRepository 文件夹数据访问接口
// 所有方法都接受可选的事务句柄 tx，tx 为 nil 时使用默认连接
type FolderRepository interface {
	Create(tx *gorm.DB, folder *models.Folder) error
	Update(tx *gorm.DB, folder *models.Folder) error
	Delete(tx *gorm.DB, id uint64) error
	FindByID(id uint64) (*models.Folder, error)
	FindByPath(path string) (*models.Folder, error)
	ExistsByPath(path string) (bool, error)
	// FindChildren 返回直接子文件夹
	FindChildren(parentID uint64) ([]models.Folder, error)
	// List 列出某个父节点下的文件夹，parentID 为 nil 表示根层
	List(parentID *uint64) ([]models.Folder, error)

	// 访问授权
	UpsertAccess(tx *gorm.DB, access *models.FolderAccess) error
	RemoveAccess(tx *gorm.DB, folderID, userID uint64) error
	FindAccess(folderID, userID uint64) (*models.FolderAccess, error)
	ListAccess(folderID uint64) ([]models.FolderAccess, error)
}

type folderRepository struct {
	db *gorm.DB
}

var _ FolderRepository = (*folderRepository)(nil)

// NewFolderRepository 创建一个新的 FolderRepository 实例
func NewFolderRepository(db *gorm.DB) FolderRepository {
	return &folderRepository{db: db}
}

func (r *folderRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *folderRepository) Create(tx *gorm.DB, folder *models.Folder) error {
	err := r.conn(tx).Create(folder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("folder repo: path %q: %w", folder.Path, xerr.ErrFolderAlreadyExists)
		}
		logger.Error("Create: Failed to create folder in DB",
			zap.String("path", folder.Path), zap.Error(err))
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

func (r *folderRepository) Update(tx *gorm.DB, folder *models.Folder) error {
	err := r.conn(tx).Save(folder).Error
	if err != nil {
		logger.Error("Update: Failed to update folder in DB",
			zap.Uint64("folderID", folder.ID), zap.Error(err))
		return fmt.Errorf("failed to update folder: %w", err)
	}
	return nil
}

func (r *folderRepository) Delete(tx *gorm.DB, id uint64) error {
	err := r.conn(tx).Delete(&models.Folder{}, id).Error
	if err != nil {
		logger.Error("Delete: Failed to delete folder from DB",
			zap.Uint64("folderID", id), zap.Error(err))
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return nil
}

func (r *folderRepository) FindByID(id uint64) (*models.Folder, error) {
	var folder models.Folder
	err := r.db.Preload("Access").First(&folder, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrFolderNotFound
		}
		return nil, fmt.Errorf("failed to find folder: %w", err)
	}
	return &folder, nil
}

func (r *folderRepository) FindByPath(path string) (*models.Folder, error) {
	var folder models.Folder
	err := r.db.Where("path = ?", path).First(&folder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrFolderNotFound
		}
		return nil, fmt.Errorf("failed to find folder by path: %w", err)
	}
	return &folder, nil
}

func (r *folderRepository) ExistsByPath(path string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Folder{}).Where("path = ?", path).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count folders by path: %w", err)
	}
	return count > 0, nil
}

func (r *folderRepository) FindChildren(parentID uint64) ([]models.Folder, error) {
	var folders []models.Folder
	err := r.db.Where("parent_folder_id = ?", parentID).Order("name ASC").Find(&folders).Error
	if err != nil {
		logger.Error("Error finding child folders from DB", zap.Uint64("parentID", parentID), zap.Error(err))
		return nil, fmt.Errorf("failed to find child folders: %w", err)
	}
	return folders, nil
}

func (r *folderRepository) List(parentID *uint64) ([]models.Folder, error) {
	var folders []models.Folder
	query := r.db.Model(&models.Folder{})
	if parentID == nil {
		query = query.Where("parent_folder_id IS NULL") // 根层文件夹
	} else {
		query = query.Where("parent_folder_id = ?", *parentID)
	}
	err := query.Order("name ASC").Find(&folders).Error
	if err != nil {
		logger.Error("Error listing folders from DB", zap.Any("parentID", parentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

// UpsertAccess 授权是幂等的：同一 (folder, user) 再次授权只更新权限级别
func (r *folderRepository) UpsertAccess(tx *gorm.DB, access *models.FolderAccess) error {
	err := r.conn(tx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "folder_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"permission", "granted_by"}),
	}).Create(access).Error
	if err != nil {
		logger.Error("UpsertAccess: Failed to grant folder access",
			zap.Uint64("folderID", access.FolderID),
			zap.Uint64("userID", access.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to grant folder access: %w", err)
	}
	return nil
}

func (r *folderRepository) RemoveAccess(tx *gorm.DB, folderID, userID uint64) error {
	err := r.conn(tx).
		Where("folder_id = ? AND user_id = ?", folderID, userID).
		Delete(&models.FolderAccess{}).Error
	if err != nil {
		logger.Error("RemoveAccess: Failed to revoke folder access",
			zap.Uint64("folderID", folderID),
			zap.Uint64("userID", userID),
			zap.Error(err))
		return fmt.Errorf("failed to revoke folder access: %w", err)
	}
	return nil
}

func (r *folderRepository) FindAccess(folderID, userID uint64) (*models.FolderAccess, error) {
	var access models.FolderAccess
	err := r.db.Where("folder_id = ? AND user_id = ?", folderID, userID).First(&access).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 没有授权条目不是错误
		}
		return nil, fmt.Errorf("failed to find folder access: %w", err)
	}
	return &access, nil
}

func (r *folderRepository) ListAccess(folderID uint64) ([]models.FolderAccess, error) {
	var entries []models.FolderAccess
	err := r.db.Where("folder_id = ?", folderID).Order("user_id ASC").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list folder access: %w", err)
	}
	return entries, nil
}
