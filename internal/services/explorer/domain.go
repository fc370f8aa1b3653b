package explorer

import (
	"fmt"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/docvault/go-docvault/internal/pkg/utils"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/docvault/go-docvault/internal/repositories"
	"go.uber.org/zap"
)

// DomainService 目录与文件的领域规则：权限判定、命名冲突解决、子树收集
type DomainService interface {
	// 权限判定
	CanRead(userID uint64, role string, folder *models.Folder) bool
	CanWrite(userID uint64, role string, folder *models.Folder) bool
	EnsureRead(userID uint64, role string, folder *models.Folder) error
	EnsureWrite(userID uint64, role string, folder *models.Folder) error

	// 校验并返回文件夹/文件
	CheckFolder(folderID uint64) (*models.Folder, error)
	CheckFile(fileID uint64) (*models.File, error)

	// FileVisible 判断一个文件对调用者是否可见：审批可见性加所在文件夹的读权限
	FileVisible(userID uint64, role string, file *models.File) bool

	// 命名冲突解决
	ResolveFileNameConflict(folderID uint64, fileName string, excludeFileID uint64) (string, error)
	// ResolveVersionedName 为版本链上的新记录分配落盘名和最终版本号
	ResolveVersionedName(folderID uint64, originalName string, fromVersion uint) (string, uint, error)

	// 子树收集，BFS 自上而下，结果中不含根自身
	CollectSubtree(folderID uint64) ([]models.Folder, error)
}

type domainService struct {
	folderRepo repositories.FolderRepository
	fileRepo   repositories.FileRepository
}

// NewDomainService 创建领域服务实例
func NewDomainService(folderRepo repositories.FolderRepository, fileRepo repositories.FileRepository) DomainService {
	return &domainService{
		folderRepo: folderRepo,
		fileRepo:   fileRepo,
	}
}

// CanRead 读权限：管理员角色、创建者、系统文件夹（对所有登录用户开放读取）、或任意级别的授权条目
func (s *domainService) CanRead(userID uint64, role string, folder *models.Folder) bool {
	if folder == nil {
		return false
	}
	if role == models.RoleAdmin || role == models.RoleSubAdmin {
		return true
	}
	if folder.CreatedBy == userID {
		return true
	}
	if folder.IsSystemFolder {
		return true
	}
	access, err := s.folderRepo.FindAccess(folder.ID, userID)
	if err != nil {
		logger.Error("CanRead: failed to query folder access",
			zap.Uint64("folderID", folder.ID), zap.Uint64("userID", userID), zap.Error(err))
		return false
	}
	return access != nil
}

// CanWrite 写权限：管理员角色、创建者、或 write/admin 级别的授权条目
// 系统文件夹不因 IsSystemFolder 自动开放写入
func (s *domainService) CanWrite(userID uint64, role string, folder *models.Folder) bool {
	if folder == nil {
		return false
	}
	if role == models.RoleAdmin || role == models.RoleSubAdmin {
		return true
	}
	if folder.CreatedBy == userID {
		return true
	}
	access, err := s.folderRepo.FindAccess(folder.ID, userID)
	if err != nil {
		logger.Error("CanWrite: failed to query folder access",
			zap.Uint64("folderID", folder.ID), zap.Uint64("userID", userID), zap.Error(err))
		return false
	}
	return access != nil && access.CanWrite()
}

func (s *domainService) EnsureRead(userID uint64, role string, folder *models.Folder) error {
	if !s.CanRead(userID, role, folder) {
		logger.Warn("Folder read access denied",
			zap.Uint64("folderID", folder.ID),
			zap.Uint64("userID", userID))
		return fmt.Errorf("domain service: folder %d: %w", folder.ID, xerr.ErrAccessDenied)
	}
	return nil
}

func (s *domainService) EnsureWrite(userID uint64, role string, folder *models.Folder) error {
	if !s.CanWrite(userID, role, folder) {
		logger.Warn("Folder write access denied",
			zap.Uint64("folderID", folder.ID),
			zap.Uint64("userID", userID))
		return fmt.Errorf("domain service: folder %d: %w", folder.ID, xerr.ErrWriteDenied)
	}
	return nil
}

// CheckFolder 校验文件夹存在并返回
func (s *domainService) CheckFolder(folderID uint64) (*models.Folder, error) {
	folder, err := s.folderRepo.FindByID(folderID)
	if err != nil {
		return nil, fmt.Errorf("domain service: folder %d: %w", folderID, err)
	}
	return folder, nil
}

// CheckFile 校验文件存在且未被删除
func (s *domainService) CheckFile(fileID uint64) (*models.File, error) {
	file, err := s.fileRepo.FindByID(fileID)
	if err != nil {
		return nil, fmt.Errorf("domain service: file %d: %w", fileID, err)
	}
	if file.IsDeleted {
		return nil, fmt.Errorf("domain service: file %d: %w", fileID, xerr.ErrFileNotFound)
	}
	return file, nil
}

// FileVisible 检索等跨文件夹入口的可见性判定
// 未过审的文件只有上传者和管理角色能看到，且所在文件夹必须对调用者可读
func (s *domainService) FileVisible(userID uint64, role string, file *models.File) bool {
	if file == nil || file.IsDeleted {
		return false
	}
	if !file.VisibleTo(userID, role) {
		return false
	}
	folder, err := s.folderRepo.FindByID(file.FolderID)
	if err != nil {
		logger.Warn("FileVisible: failed to load folder",
			zap.Uint64("folderID", file.FolderID), zap.Error(err))
		return false
	}
	return s.CanRead(userID, role, folder)
}

// ResolveFileNameConflict 解决同文件夹内的落盘名冲突
// 冲突时在主干后追加 " (N)" 后缀逐个尝试，超过上限视为无法解决
func (s *domainService) ResolveFileNameConflict(folderID uint64, fileName string, excludeFileID uint64) (string, error) {
	if fileName == "" {
		return "", fmt.Errorf("domain service: empty file name: %w", xerr.ErrInvalidParams)
	}

	siblings, err := s.fileRepo.FindByFolder(folderID, false)
	if err != nil {
		logger.Error("Failed to get sibling files for conflict resolution",
			zap.Uint64("folderID", folderID), zap.Error(err))
		return "", fmt.Errorf("failed to get sibling files: %w", err)
	}

	taken := func(candidate string) bool {
		for _, sibling := range siblings {
			if sibling.ID != excludeFileID && sibling.FileName == candidate {
				return true
			}
		}
		return false
	}

	if !taken(fileName) {
		return fileName, nil
	}

	for counter := 1; counter <= 1000; counter++ {
		candidate := utils.ConflictSuffixName(fileName, counter)
		if !taken(candidate) {
			logger.Info("File name conflict resolved",
				zap.String("originalName", fileName),
				zap.String("resolvedName", candidate))
			return candidate, nil
		}
	}
	return "", fmt.Errorf("domain service: %q: %w", fileName, xerr.ErrNameConflict)
}

// ResolveVersionedName 从 fromVersion 起分配版本号和对应的落盘名
// 候选名被同目录的无关文件占用时不追加后缀，而是继续推进版本号
// 落盘名因此始终保持「主干(版本-1)扩展名」的形态，版本号和名字不会脱节
func (s *domainService) ResolveVersionedName(folderID uint64, originalName string, fromVersion uint) (string, uint, error) {
	if originalName == "" {
		return "", 0, fmt.Errorf("domain service: empty file name: %w", xerr.ErrInvalidParams)
	}
	if fromVersion == 0 {
		fromVersion = 1
	}

	siblings, err := s.fileRepo.FindByFolder(folderID, false)
	if err != nil {
		logger.Error("Failed to get sibling files for versioned name resolution",
			zap.Uint64("folderID", folderID), zap.Error(err))
		return "", 0, fmt.Errorf("failed to get sibling files: %w", err)
	}
	taken := func(candidate string) bool {
		for _, sibling := range siblings {
			if sibling.FileName == candidate {
				return true
			}
		}
		return false
	}

	for version := fromVersion; version <= fromVersion+1000; version++ {
		candidate := utils.VersionedDisplayName(originalName, version)
		if !taken(candidate) {
			if version != fromVersion {
				logger.Info("Versioned name conflict resolved by advancing version",
					zap.String("originalName", originalName),
					zap.Uint("fromVersion", fromVersion),
					zap.Uint("resolvedVersion", version))
			}
			return candidate, version, nil
		}
	}
	return "", 0, fmt.Errorf("domain service: %q: %w", originalName, xerr.ErrNameConflict)
}

// CollectSubtree 用队列做 BFS，避免深层递归；每个节点只访问一次
func (s *domainService) CollectSubtree(folderID uint64) ([]models.Folder, error) {
	var all []models.Folder
	queue := []uint64{folderID}
	processed := make(map[uint64]bool)
	processed[folderID] = true

	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]

		children, err := s.folderRepo.FindChildren(currentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get children of folder %d: %w", currentID, err)
		}

		for _, child := range children {
			if !processed[child.ID] {
				all = append(all, child)
				processed[child.ID] = true
				queue = append(queue, child.ID)
			}
		}
	}

	return all, nil
}
