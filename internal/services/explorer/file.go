package explorer

import (
	"context"
	"fmt"
	"sync"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/hasher"
	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/docvault/go-docvault/internal/pkg/storage"
	"github.com/docvault/go-docvault/internal/pkg/utils"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/docvault/go-docvault/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SearchIndexer 文件检索索引的最小接口，由搜索服务实现
// 索引失败不阻塞主流程，实现方自行记录日志
type SearchIndexer interface {
	IndexFile(ctx context.Context, file *models.File) error
	RemoveFile(ctx context.Context, fileID uint64) error
}

// UploadRequest 单个文件的上传参数，物理内容已由 handler 暂存到 StagingPath
type UploadRequest struct {
	FolderID    uint64
	FileName    string // 用户上传的原始文件名
	StagingPath string
	Description string
	Tags        []string
}

// FileService 文件业务：版本化上传、重命名、删除、元数据查询
type FileService interface {
	Upload(ctx context.Context, userID uint64, role string, req *UploadRequest) (*models.File, bool, error)
	Rename(ctx context.Context, userID uint64, role string, fileID uint64, newName string) (*models.File, error)
	Delete(ctx context.Context, userID uint64, role string, fileID uint64) error
	GetInfo(ctx context.Context, userID uint64, role string, fileID uint64) (*models.File, error)
}

// LineageLocker 对 (folderID, 原始文件名) 粒度加锁
// 版本号分配必须串行，否则并发写同一条版本链会拿到相同的版本号
// 上传和版本还原都会分配版本号，两条路径必须共用同一个实例
type LineageLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLineageLocker() *LineageLocker {
	return &LineageLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LineageLocker) lock(folderID uint64, originalName string) func() {
	key := fmt.Sprintf("%d/%s", folderID, originalName)
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// renamePlan 一条版本记录的改名计划
type renamePlan struct {
	record  models.File
	oldPath string
	newName string
	newPath string
}

type fileService struct {
	fileRepo   repositories.FileRepository
	folderRepo repositories.FolderRepository
	domain     DomainService
	vault      storage.Vault
	txManager  TransactionManager
	indexer    SearchIndexer

	lineages *LineageLocker
}

// NewFileService 创建文件服务实例，indexer 可为 nil（禁用检索索引）
// lineages 与版本服务共享，保证两边的版本号分配互相串行
func NewFileService(
	fileRepo repositories.FileRepository,
	folderRepo repositories.FolderRepository,
	domain DomainService,
	vault storage.Vault,
	txManager TransactionManager,
	indexer SearchIndexer,
	lineages *LineageLocker,
) FileService {
	return &fileService{
		fileRepo:   fileRepo,
		folderRepo: folderRepo,
		domain:     domain,
		vault:      vault,
		txManager:  txManager,
		indexer:    indexer,
		lineages:   lineages,
	}
}

// Upload 上传一个文件版本
// 返回值第二项为 true 表示内容与文件夹内已有文件重复，返回的是已存在的记录
//
// 流程：校验 -> 哈希去重 -> 版本号分配（持版本链锁）-> 物理写入 -> 元数据落库
// 元数据失败时删除刚写入的物理对象
func (s *fileService) Upload(ctx context.Context, userID uint64, role string, req *UploadRequest) (*models.File, bool, error) {
	if !utils.IsValidName(req.FileName) {
		return nil, false, fmt.Errorf("file service: name %q: %w", req.FileName, xerr.ErrFileNameInvalid)
	}
	mimeType, ok := utils.MimeTypeFor(req.FileName)
	if !ok {
		return nil, false, fmt.Errorf("file service: name %q: %w", req.FileName, xerr.ErrMimeTypeNotAllowed)
	}

	folder, err := s.domain.CheckFolder(req.FolderID)
	if err != nil {
		return nil, false, err
	}
	if err := s.domain.EnsureWrite(userID, role, folder); err != nil {
		return nil, false, err
	}

	hash, size, err := hasher.SumFile(req.StagingPath)
	if err != nil {
		return nil, false, fmt.Errorf("file service: %w: %v", xerr.ErrStorageError, err)
	}

	// 内容去重：同一文件夹内已有相同内容时不再落盘，直接返回已有记录
	existing, err := s.fileRepo.FindByFolderAndHash(req.FolderID, hash)
	if err == nil && existing != nil {
		logger.Info("Upload: duplicate content, returning existing file",
			zap.Uint64("folderID", req.FolderID),
			zap.String("fileName", req.FileName),
			zap.Uint64("existingID", existing.ID))
		return existing, true, nil
	}
	if err != nil && !xerr.Is(err, xerr.ErrFileNotFound) {
		return nil, false, fmt.Errorf("file service: %w", err)
	}

	// 版本号分配在版本链锁内完成
	unlock := s.lineages.lock(req.FolderID, req.FileName)
	defer unlock()

	lineage, err := s.fileRepo.FindLineageByName(req.FolderID, req.FileName)
	if err != nil {
		return nil, false, fmt.Errorf("file service: %w", err)
	}

	version := uint(1)
	var originID *uint64
	var previous []uint64
	if len(lineage) > 0 {
		version = lineage[len(lineage)-1].Version + 1
		id := lineage[0].LineageOriginID()
		originID = &id
		for _, v := range lineage {
			previous = append(previous, v.ID)
		}
	}

	// 落盘名被无关文件占用时推进版本号而不是加后缀，名字和版本号保持同构
	fileName, version, err := s.domain.ResolveVersionedName(req.FolderID, req.FileName, version)
	if err != nil {
		return nil, false, err
	}

	physicalPath := folder.Path + "/" + fileName
	occupied, err := s.vault.Exists(physicalPath)
	if err != nil {
		return nil, false, fmt.Errorf("file service: %w", err)
	}
	if occupied {
		// 磁盘上已有同名对象但元数据没有记录，属于漂移状态，拒绝覆盖
		return nil, false, fmt.Errorf("file service: path %q: %w", physicalPath, xerr.ErrFileAlreadyExists)
	}

	if _, err := s.vault.CopyIn(req.StagingPath, physicalPath); err != nil {
		return nil, false, fmt.Errorf("file service: %w", err)
	}

	_, ext := utils.SplitExtension(req.FileName)
	file := &models.File{
		UUID:             uuid.NewString(),
		FolderID:         req.FolderID,
		FileName:         fileName,
		OriginalFileName: req.FileName,
		Path:             physicalPath,
		Size:             uint64(size),
		MimeType:         mimeType,
		Extension:        ext,
		Description:      req.Description,
		Tags:             req.Tags,
		OwnerID:          folder.CreatedBy,
		UploadedBy:       userID,
		Version:          version,
		IsCurrentVersion: true,
		PreviousVersions: previous,
		OriginalFileID:   originID,
		FileHash:         hash,
		ApprovalStatus:   models.ApprovalPending,
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.fileRepo.Create(tx, file); err != nil {
			return err
		}
		if originID != nil {
			return s.fileRepo.DemoteLineage(tx, *originID, file.ID)
		}
		return nil
	})
	if err != nil {
		// 元数据失败，删除刚写入的物理对象
		if rmErr := s.vault.Unlink(physicalPath); rmErr != nil {
			logger.Error("Upload: failed to compensate physical object",
				zap.String("path", physicalPath), zap.Error(rmErr))
		}
		return nil, false, fmt.Errorf("file service: %w", err)
	}

	// 提交后统一失效：事务期间的并发读可能用旧数据回填缓存
	stale := []*models.File{file}
	for i := range lineage {
		stale = append(stale, &lineage[i])
	}
	s.fileRepo.InvalidateFiles(stale...)

	s.indexFile(ctx, file)

	logger.Info("File uploaded",
		zap.Uint64("fileID", file.ID),
		zap.String("fileName", file.FileName),
		zap.Uint("version", file.Version),
		zap.Uint64("uploadedBy", userID))
	return file, false, nil
}

// Rename 重命名文件，不产生新版本
// 整条版本链一起改名，保证版本链仍能按原始名定位；每个版本的落盘对象同步改名
func (s *fileService) Rename(ctx context.Context, userID uint64, role string, fileID uint64, newName string) (*models.File, error) {
	if !utils.IsValidName(newName) {
		return nil, fmt.Errorf("file service: name %q: %w", newName, xerr.ErrFileNameInvalid)
	}
	if _, ok := utils.MimeTypeFor(newName); !ok {
		return nil, fmt.Errorf("file service: name %q: %w", newName, xerr.ErrMimeTypeNotAllowed)
	}

	file, err := s.domain.CheckFile(fileID)
	if err != nil {
		return nil, err
	}
	folder, err := s.domain.CheckFolder(file.FolderID)
	if err != nil {
		return nil, err
	}
	if err := s.domain.EnsureWrite(userID, role, folder); err != nil {
		return nil, err
	}

	unlock := s.lineages.lock(file.FolderID, file.OriginalFileName)
	defer unlock()

	lineage, err := s.fileRepo.FindLineage(file.LineageOriginID())
	if err != nil {
		return nil, fmt.Errorf("file service: %w", err)
	}
	if len(lineage) == 0 {
		lineage = []models.File{*file}
	}

	// 先算出每个版本的新落盘名，确认目标都可用
	plans := make([]renamePlan, 0, len(lineage))
	for _, record := range lineage {
		candidate := utils.VersionedDisplayName(newName, record.Version)
		resolved, err := s.domain.ResolveFileNameConflict(record.FolderID, candidate, record.ID)
		if err != nil {
			return nil, err
		}
		plans = append(plans, renamePlan{
			record:  record,
			oldPath: record.Path,
			newName: resolved,
			newPath: folder.Path + "/" + resolved,
		})
	}

	// 物理对象先行改名，失败时回滚已完成的部分
	var moved []renamePlan
	for _, p := range plans {
		if p.oldPath == p.newPath {
			continue
		}
		if err := s.vault.CopyFile(p.oldPath, p.newPath); err != nil {
			s.rollbackRenames(moved)
			return nil, fmt.Errorf("file service: %w", err)
		}
		if err := s.vault.Unlink(p.oldPath); err != nil {
			logger.Warn("Rename: failed to remove old physical object",
				zap.String("path", p.oldPath), zap.Error(err))
		}
		moved = append(moved, p)
	}

	var renamed *models.File
	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		for _, p := range plans {
			record := p.record
			record.FileName = p.newName
			record.OriginalFileName = newName
			record.Path = p.newPath
			if err := s.fileRepo.Update(tx, &record); err != nil {
				return err
			}
			if record.ID == fileID {
				renamed = &record
			}
		}
		return nil
	})
	if err != nil {
		s.rollbackRenames(moved)
		return nil, fmt.Errorf("file service: %w", err)
	}

	stale := make([]*models.File, 0, len(plans))
	for _, p := range plans {
		updated := p.record
		updated.FileName = p.newName
		updated.OriginalFileName = newName
		updated.Path = p.newPath
		stale = append(stale, &updated)
		s.indexFile(ctx, &updated)
	}
	s.fileRepo.InvalidateFiles(stale...)

	logger.Info("File renamed",
		zap.Uint64("fileID", fileID),
		zap.String("newName", newName),
		zap.Int("versionsRenamed", len(plans)))
	return renamed, nil
}

// rollbackRenames 把已完成的物理改名按逆序恢复
func (s *fileService) rollbackRenames(moved []renamePlan) {
	for i := len(moved) - 1; i >= 0; i-- {
		p := moved[i]
		if err := s.vault.CopyFile(p.newPath, p.oldPath); err != nil {
			logger.Error("Rename rollback: failed to restore physical object",
				zap.String("from", p.newPath), zap.String("to", p.oldPath), zap.Error(err))
			continue
		}
		if err := s.vault.Unlink(p.newPath); err != nil {
			logger.Warn("Rename rollback: failed to remove renamed object",
				zap.String("path", p.newPath), zap.Error(err))
		}
	}
}

// Delete 删除文件及其整条版本链
// 物理对象逐个删除，文件系统可能已经漂移，对象缺失不视为错误
func (s *fileService) Delete(ctx context.Context, userID uint64, role string, fileID uint64) error {
	file, err := s.domain.CheckFile(fileID)
	if err != nil {
		return err
	}
	folder, err := s.domain.CheckFolder(file.FolderID)
	if err != nil {
		return err
	}
	if err := s.domain.EnsureWrite(userID, role, folder); err != nil {
		return err
	}

	unlock := s.lineages.lock(file.FolderID, file.OriginalFileName)
	defer unlock()

	lineage, err := s.fileRepo.FindLineage(file.LineageOriginID())
	if err != nil {
		return fmt.Errorf("file service: %w", err)
	}
	if len(lineage) == 0 {
		lineage = []models.File{*file}
	}

	for _, record := range lineage {
		if err := s.vault.Unlink(record.Path); err != nil {
			logger.Warn("Delete: failed to unlink physical object, continuing",
				zap.Uint64("fileID", record.ID),
				zap.String("path", record.Path),
				zap.Error(err))
		}
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		for _, record := range lineage {
			if err := s.fileRepo.Delete(tx, record.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("file service: %w", err)
	}

	stale := make([]*models.File, 0, len(lineage))
	for i := range lineage {
		stale = append(stale, &lineage[i])
	}
	s.fileRepo.InvalidateFiles(stale...)

	if s.indexer != nil {
		for _, record := range lineage {
			if rmErr := s.indexer.RemoveFile(ctx, record.ID); rmErr != nil {
				logger.Warn("Delete: failed to remove file from search index",
					zap.Uint64("fileID", record.ID), zap.Error(rmErr))
			}
		}
	}

	logger.Info("File deleted",
		zap.Uint64("fileID", fileID),
		zap.Int("versionsDeleted", len(lineage)),
		zap.Uint64("deletedBy", userID))
	return nil
}

// GetInfo 返回文件元数据，受审批可见性约束
func (s *fileService) GetInfo(ctx context.Context, userID uint64, role string, fileID uint64) (*models.File, error) {
	file, err := s.domain.CheckFile(fileID)
	if err != nil {
		return nil, err
	}
	folder, err := s.domain.CheckFolder(file.FolderID)
	if err != nil {
		return nil, err
	}
	if err := s.domain.EnsureRead(userID, role, folder); err != nil {
		return nil, err
	}
	if !file.VisibleTo(userID, role) {
		return nil, fmt.Errorf("file service: file %d: %w", fileID, xerr.ErrNotVisible)
	}
	return file, nil
}

// indexFile 尝试写入搜索索引，失败只记日志不影响主流程
func (s *fileService) indexFile(ctx context.Context, file *models.File) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexFile(ctx, file); err != nil {
		logger.Warn("failed to index file for search",
			zap.Uint64("fileID", file.ID), zap.Error(err))
	}
}
