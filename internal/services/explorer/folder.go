package explorer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/docvault/go-docvault/internal/pkg/storage"
	"github.com/docvault/go-docvault/internal/pkg/utils"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/docvault/go-docvault/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FolderService 文件夹业务：数据库里的目录树和磁盘上的物理目录树始终保持同构
// 所有结构性操作都是先改文件系统、成功后再改数据库，数据库失败时回滚文件系统
type FolderService interface {
	CreateFolder(ctx context.Context, userID uint64, role string, req *models.CreateFolderRequest) (*models.Folder, error)
	UpdateFolder(ctx context.Context, userID uint64, role string, folderID uint64, req *models.UpdateFolderRequest) (*models.Folder, error)
	DeleteFolder(ctx context.Context, userID uint64, role string, folderID uint64) error

	GrantAccess(ctx context.Context, userID uint64, role string, folderID uint64, req *models.GrantAccessRequest) error
	RevokeAccess(ctx context.Context, userID uint64, role string, folderID uint64, targetUserID uint64) error

	ListFolders(ctx context.Context, userID uint64, role string, parentID *uint64) ([]models.Folder, error)
	GetContents(ctx context.Context, userID uint64, role string, folderID uint64) (*models.FolderContents, error)
}

type folderService struct {
	folderRepo repositories.FolderRepository
	fileRepo   repositories.FileRepository
	domain     DomainService
	vault      storage.Vault
	txManager  TransactionManager

	// 串行化重命名/移动/删除这类子树级操作，避免并发改写彼此的路径前缀
	mu sync.Mutex
}

// NewFolderService 创建文件夹服务实例
func NewFolderService(
	folderRepo repositories.FolderRepository,
	fileRepo repositories.FileRepository,
	domain DomainService,
	vault storage.Vault,
	txManager TransactionManager,
) FolderService {
	return &folderService{
		folderRepo: folderRepo,
		fileRepo:   fileRepo,
		domain:     domain,
		vault:      vault,
		txManager:  txManager,
	}
}

// CreateFolder 创建文件夹：先建物理目录，再写元数据，元数据失败时删掉刚建的目录
func (s *folderService) CreateFolder(ctx context.Context, userID uint64, role string, req *models.CreateFolderRequest) (*models.Folder, error) {
	if !utils.IsValidName(req.Name) {
		return nil, fmt.Errorf("folder service: name %q: %w", req.Name, xerr.ErrFolderNameInvalid)
	}

	var parent *models.Folder
	path := req.Name
	depth := uint(0)
	if req.ParentFolderID != nil {
		var err error
		parent, err = s.domain.CheckFolder(*req.ParentFolderID)
		if err != nil {
			return nil, err
		}
		if err := s.domain.EnsureWrite(userID, role, parent); err != nil {
			return nil, err
		}
		path = parent.Path + "/" + req.Name
		depth = parent.Depth + 1
	}

	exists, err := s.folderRepo.ExistsByPath(path)
	if err != nil {
		return nil, fmt.Errorf("folder service: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("folder service: path %q: %w", path, xerr.ErrFolderAlreadyExists)
	}

	// 文件系统先行
	if err := s.vault.CreateDirectory(path); err != nil {
		return nil, fmt.Errorf("folder service: %w", err)
	}

	folder := &models.Folder{
		UUID:           uuid.NewString(),
		Name:           req.Name,
		Path:           path,
		ParentFolderID: req.ParentFolderID,
		Depth:          depth,
		CreatedBy:      userID,
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		return s.folderRepo.Create(tx, folder)
	})
	if err != nil {
		// 元数据失败，补偿删除刚创建的物理目录
		if rmErr := s.vault.DeleteDirectory(path); rmErr != nil {
			logger.Error("CreateFolder: failed to compensate physical directory",
				zap.String("path", path), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("folder service: %w", err)
	}

	logger.Info("Folder created",
		zap.Uint64("folderID", folder.ID),
		zap.String("path", folder.Path),
		zap.Uint64("createdBy", userID))
	return folder, nil
}

// UpdateFolder 重命名和移动共用入口，两者都会改写整棵子树的路径
func (s *folderService) UpdateFolder(ctx context.Context, userID uint64, role string, folderID uint64, req *models.UpdateFolderRequest) (*models.Folder, error) {
	if req.Name == nil && req.ParentFolderID == nil && !req.MoveToRoot {
		return nil, fmt.Errorf("folder service: nothing to update: %w", xerr.ErrInvalidParams)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	folder, err := s.domain.CheckFolder(folderID)
	if err != nil {
		return nil, err
	}
	if folder.IsSystemFolder {
		return nil, fmt.Errorf("folder service: folder %d: %w", folderID, xerr.ErrSystemFolder)
	}
	if err := s.domain.EnsureWrite(userID, role, folder); err != nil {
		return nil, err
	}

	// 目标名
	newName := folder.Name
	if req.Name != nil {
		if !utils.IsValidName(*req.Name) {
			return nil, fmt.Errorf("folder service: name %q: %w", *req.Name, xerr.ErrFolderNameInvalid)
		}
		newName = *req.Name
	}

	// 目标父级
	newParentID := folder.ParentFolderID
	var newParent *models.Folder
	switch {
	case req.MoveToRoot:
		newParentID = nil
	case req.ParentFolderID != nil:
		if *req.ParentFolderID == folder.ID {
			return nil, fmt.Errorf("folder service: folder %d: %w", folderID, xerr.ErrCannotMoveIntoSubtree)
		}
		newParent, err = s.domain.CheckFolder(*req.ParentFolderID)
		if err != nil {
			return nil, err
		}
		// 环检测：目标不能在自己的子树里
		if folder.IsAncestorOf(newParent) {
			return nil, fmt.Errorf("folder service: folder %d into %d: %w",
				folderID, newParent.ID, xerr.ErrCannotMoveIntoSubtree)
		}
		if err := s.domain.EnsureWrite(userID, role, newParent); err != nil {
			return nil, err
		}
		newParentID = req.ParentFolderID
	default:
		// 仅重命名，父级不变，仍需父级对象计算路径
		if folder.ParentFolderID != nil {
			newParent, err = s.domain.CheckFolder(*folder.ParentFolderID)
			if err != nil {
				return nil, err
			}
		}
	}

	// 目标路径和深度
	newPath := newName
	newDepth := uint(0)
	if newParentID != nil {
		if newParent == nil {
			newParent, err = s.domain.CheckFolder(*newParentID)
			if err != nil {
				return nil, err
			}
		}
		newPath = newParent.Path + "/" + newName
		newDepth = newParent.Depth + 1
	}

	oldPath := folder.Path
	oldDepth := folder.Depth
	if newPath == oldPath {
		return folder, nil // 无变化
	}

	exists, err := s.folderRepo.ExistsByPath(newPath)
	if err != nil {
		return nil, fmt.Errorf("folder service: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("folder service: path %q: %w", newPath, xerr.ErrFolderAlreadyExists)
	}

	// 文件系统先行
	if err := s.vault.MoveDirectory(oldPath, newPath); err != nil {
		return nil, fmt.Errorf("folder service: %w", err)
	}

	folder.Name = newName
	folder.Path = newPath
	folder.ParentFolderID = newParentID
	folder.Depth = newDepth

	var descendants []models.Folder
	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.folderRepo.Update(tx, folder); err != nil {
			return err
		}

		// 整棵子树改写路径前缀和深度，每个节点只访问一次
		descendants, err = s.domain.CollectSubtree(folder.ID)
		if err != nil {
			return err
		}
		oldPrefix := oldPath + "/"
		newPrefix := newPath + "/"
		depthDelta := int(newDepth) - int(oldDepth)
		for i := range descendants {
			d := &descendants[i]
			if !strings.HasPrefix(d.Path, oldPrefix) {
				logger.Warn("UpdateFolder: descendant path outside moved prefix, skipping",
					zap.Uint64("folderID", d.ID), zap.String("path", d.Path))
				continue
			}
			d.Path = newPrefix + d.Path[len(oldPrefix):]
			d.Depth = uint(int(d.Depth) + depthDelta)
			if err := s.folderRepo.Update(tx, d); err != nil {
				return err
			}
		}

		// 子树内所有文件的物理路径列跟随改写
		return s.fileRepo.UpdatePathPrefix(tx, oldPrefix, newPrefix)
	})
	if err != nil {
		// 元数据失败，把物理目录移回去
		if mvErr := s.vault.MoveDirectory(newPath, oldPath); mvErr != nil {
			logger.Error("UpdateFolder: failed to roll back physical move",
				zap.String("from", newPath), zap.String("to", oldPath), zap.Error(mvErr))
		}
		return nil, fmt.Errorf("folder service: %w", err)
	}

	// 子树内全部文件的缓存路径已失真，提交后按文件夹逐个失效
	staleFolders := make([]uint64, 0, len(descendants)+1)
	staleFolders = append(staleFolders, folder.ID)
	for i := range descendants {
		staleFolders = append(staleFolders, descendants[i].ID)
	}
	s.fileRepo.InvalidateFolders(staleFolders...)

	logger.Info("Folder updated",
		zap.Uint64("folderID", folder.ID),
		zap.String("oldPath", oldPath),
		zap.String("newPath", newPath))
	return folder, nil
}

// DeleteFolder 删除文件夹：物理目录整棵递归删除，元数据只删自身和自身的文件，
// 直接子文件夹被置为无父的孤儿记录
func (s *folderService) DeleteFolder(ctx context.Context, userID uint64, role string, folderID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder, err := s.domain.CheckFolder(folderID)
	if err != nil {
		return err
	}
	if folder.IsSystemFolder {
		return fmt.Errorf("folder service: folder %d: %w", folderID, xerr.ErrSystemFolder)
	}
	if err := s.domain.EnsureWrite(userID, role, folder); err != nil {
		return err
	}

	// 删除后枚举不到了，先把待失效的文件记录拿出来
	doomed, err := s.fileRepo.FindByFolder(folder.ID, false)
	if err != nil {
		return fmt.Errorf("folder service: %w", err)
	}

	// 文件系统先行，递归删除
	if err := s.vault.DeleteDirectory(folder.Path); err != nil {
		return fmt.Errorf("folder service: %w", err)
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.fileRepo.DeleteByFolder(tx, folder.ID); err != nil {
			return err
		}

		// 直接子文件夹成为孤儿，保留原有的 path/depth 记录
		children, err := s.folderRepo.FindChildren(folder.ID)
		if err != nil {
			return err
		}
		for i := range children {
			children[i].ParentFolderID = nil
			if err := s.folderRepo.Update(tx, &children[i]); err != nil {
				return err
			}
		}

		return s.folderRepo.Delete(tx, folder.ID)
	})
	if err != nil {
		logger.Error("DeleteFolder: metadata deletion failed after physical removal",
			zap.Uint64("folderID", folder.ID),
			zap.String("path", folder.Path),
			zap.Error(err))
		return fmt.Errorf("folder service: %w", err)
	}

	stale := make([]*models.File, 0, len(doomed))
	for i := range doomed {
		stale = append(stale, &doomed[i])
	}
	s.fileRepo.InvalidateFiles(stale...)
	s.fileRepo.InvalidateFolders(folder.ID)

	logger.Info("Folder deleted",
		zap.Uint64("folderID", folder.ID),
		zap.String("path", folder.Path),
		zap.Uint64("deletedBy", userID))
	return nil
}

// canManageAccess 授权管理：管理员角色、创建者、或持有 admin 级授权
func (s *folderService) canManageAccess(userID uint64, role string, folder *models.Folder) bool {
	if role == models.RoleAdmin || role == models.RoleSubAdmin {
		return true
	}
	if folder.CreatedBy == userID {
		return true
	}
	access, err := s.folderRepo.FindAccess(folder.ID, userID)
	if err != nil || access == nil {
		return false
	}
	return access.Permission == models.PermissionAdmin
}

func (s *folderService) GrantAccess(ctx context.Context, userID uint64, role string, folderID uint64, req *models.GrantAccessRequest) error {
	folder, err := s.domain.CheckFolder(folderID)
	if err != nil {
		return err
	}
	if !s.canManageAccess(userID, role, folder) {
		return fmt.Errorf("folder service: folder %d: %w", folderID, xerr.ErrAccessDenied)
	}

	access := &models.FolderAccess{
		FolderID:   folderID,
		UserID:     req.UserID,
		Permission: req.Permission,
		GrantedBy:  userID,
	}
	if err := s.folderRepo.UpsertAccess(nil, access); err != nil {
		return fmt.Errorf("folder service: %w", err)
	}

	logger.Info("Folder access granted",
		zap.Uint64("folderID", folderID),
		zap.Uint64("targetUserID", req.UserID),
		zap.String("permission", req.Permission),
		zap.Uint64("grantedBy", userID))
	return nil
}

func (s *folderService) RevokeAccess(ctx context.Context, userID uint64, role string, folderID uint64, targetUserID uint64) error {
	folder, err := s.domain.CheckFolder(folderID)
	if err != nil {
		return err
	}
	if !s.canManageAccess(userID, role, folder) {
		return fmt.Errorf("folder service: folder %d: %w", folderID, xerr.ErrAccessDenied)
	}

	if err := s.folderRepo.RemoveAccess(nil, folderID, targetUserID); err != nil {
		return fmt.Errorf("folder service: %w", err)
	}

	logger.Info("Folder access revoked",
		zap.Uint64("folderID", folderID),
		zap.Uint64("targetUserID", targetUserID),
		zap.Uint64("revokedBy", userID))
	return nil
}

// ListFolders 列出某一层的文件夹，过滤掉无读权限的条目
func (s *folderService) ListFolders(ctx context.Context, userID uint64, role string, parentID *uint64) ([]models.Folder, error) {
	if parentID != nil {
		parent, err := s.domain.CheckFolder(*parentID)
		if err != nil {
			return nil, err
		}
		if err := s.domain.EnsureRead(userID, role, parent); err != nil {
			return nil, err
		}
	}

	folders, err := s.folderRepo.List(parentID)
	if err != nil {
		return nil, fmt.Errorf("folder service: %w", err)
	}

	visible := make([]models.Folder, 0, len(folders))
	for i := range folders {
		if s.domain.CanRead(userID, role, &folders[i]) {
			visible = append(visible, folders[i])
		}
	}
	return visible, nil
}

// GetContents 文件夹详情：子文件夹按读权限过滤，文件按审批可见性过滤
func (s *folderService) GetContents(ctx context.Context, userID uint64, role string, folderID uint64) (*models.FolderContents, error) {
	folder, err := s.domain.CheckFolder(folderID)
	if err != nil {
		return nil, err
	}
	if err := s.domain.EnsureRead(userID, role, folder); err != nil {
		return nil, err
	}

	children, err := s.folderRepo.FindChildren(folderID)
	if err != nil {
		return nil, fmt.Errorf("folder service: %w", err)
	}
	subfolders := make([]models.Folder, 0, len(children))
	for i := range children {
		if s.domain.CanRead(userID, role, &children[i]) {
			subfolders = append(subfolders, children[i])
		}
	}

	files, err := s.fileRepo.FindByFolder(folderID, true)
	if err != nil {
		return nil, fmt.Errorf("folder service: %w", err)
	}
	visibleFiles := make([]models.File, 0, len(files))
	for i := range files {
		if files[i].VisibleTo(userID, role) {
			visibleFiles = append(visibleFiles, files[i])
		}
	}

	return &models.FolderContents{
		Folder:     folder,
		Subfolders: subfolders,
		Files:      visibleFiles,
	}, nil
}
