package explorer

import (
	"context"
	"fmt"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/docvault/go-docvault/internal/pkg/storage"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/docvault/go-docvault/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VersionService 版本链查询与历史版本还原
type VersionService interface {
	// FindVersions 返回某文件所在版本链的全部版本，按版本号升序（最旧在前）
	FindVersions(ctx context.Context, userID uint64, role string, fileID uint64) ([]models.File, error)
	// Restore 把指定历史版本还原为新的当前版本（复制内容生成新版本，不改写历史）
	Restore(ctx context.Context, userID uint64, role string, versionID uint64) (*models.File, error)
}

type versionService struct {
	fileRepo  repositories.FileRepository
	domain    DomainService
	vault     storage.Vault
	txManager TransactionManager
	indexer   SearchIndexer
	lineages  *LineageLocker
}

// NewVersionService 创建版本服务实例
// lineages 必须与文件服务共用，还原和上传对同一版本链的写入才能串行
func NewVersionService(
	fileRepo repositories.FileRepository,
	domain DomainService,
	vault storage.Vault,
	txManager TransactionManager,
	indexer SearchIndexer,
	lineages *LineageLocker,
) VersionService {
	return &versionService{
		fileRepo:  fileRepo,
		domain:    domain,
		vault:     vault,
		txManager: txManager,
		indexer:   indexer,
		lineages:  lineages,
	}
}

func (s *versionService) FindVersions(ctx context.Context, userID uint64, role string, fileID uint64) ([]models.File, error) {
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

	lineage, err := s.fileRepo.FindLineage(file.LineageOriginID())
	if err != nil {
		return nil, fmt.Errorf("version service: %w", err)
	}

	// 审批可见性逐条过滤
	visible := make([]models.File, 0, len(lineage))
	for i := range lineage {
		if lineage[i].VisibleTo(userID, role) {
			visible = append(visible, lineage[i])
		}
	}
	return visible, nil
}

// Restore 还原历史版本：复制历史版本的物理内容生成版本链上的新一版
// 新版本回到 pending 审批状态，重新走审批流程
func (s *versionService) Restore(ctx context.Context, userID uint64, role string, versionID uint64) (*models.File, error) {
	source, err := s.domain.CheckFile(versionID)
	if err != nil {
		return nil, fmt.Errorf("version service: version %d: %w", versionID, xerr.ErrVersionNotFound)
	}
	folder, err := s.domain.CheckFolder(source.FolderID)
	if err != nil {
		return nil, err
	}
	if err := s.domain.EnsureWrite(userID, role, folder); err != nil {
		return nil, err
	}

	unlock := s.lineages.lock(source.FolderID, source.OriginalFileName)
	defer unlock()

	originID := source.LineageOriginID()
	lineage, err := s.fileRepo.FindLineage(originID)
	if err != nil {
		return nil, fmt.Errorf("version service: %w", err)
	}
	if len(lineage) == 0 {
		return nil, fmt.Errorf("version service: lineage %d: %w", originID, xerr.ErrVersionNotFound)
	}

	if lineage[len(lineage)-1].ID == source.ID {
		// 还原的就是当前最新版本，没有意义
		return nil, fmt.Errorf("version service: version %d is already current: %w", versionID, xerr.ErrInvalidParams)
	}

	newVersion := lineage[len(lineage)-1].Version + 1
	var previous []uint64
	for _, v := range lineage {
		previous = append(previous, v.ID)
	}

	// 与上传同策略：落盘名被占用时推进版本号
	fileName, newVersion, err := s.domain.ResolveVersionedName(source.FolderID, source.OriginalFileName, newVersion)
	if err != nil {
		return nil, err
	}
	newPath := folder.Path + "/" + fileName

	// 物理内容复制先行
	if err := s.vault.CopyFile(source.Path, newPath); err != nil {
		return nil, fmt.Errorf("version service: %w", err)
	}

	restored := &models.File{
		UUID:             uuid.NewString(),
		FolderID:         source.FolderID,
		FileName:         fileName,
		OriginalFileName: source.OriginalFileName,
		Path:             newPath,
		Size:             source.Size,
		MimeType:         source.MimeType,
		Extension:        source.Extension,
		Description:      source.Description,
		Tags:             source.Tags,
		OwnerID:          source.OwnerID,
		UploadedBy:       userID,
		Version:          newVersion,
		IsCurrentVersion: true,
		PreviousVersions: previous,
		OriginalFileID:   &originID, // 始终指向版本 1 记录
		FileHash:         source.FileHash,
		ApprovalStatus:   models.ApprovalPending,
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.fileRepo.Create(tx, restored); err != nil {
			return err
		}
		return s.fileRepo.DemoteLineage(tx, originID, restored.ID)
	})
	if err != nil {
		if rmErr := s.vault.Unlink(newPath); rmErr != nil {
			logger.Error("Restore: failed to compensate physical copy",
				zap.String("path", newPath), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("version service: %w", err)
	}

	stale := []*models.File{restored}
	for i := range lineage {
		stale = append(stale, &lineage[i])
	}
	s.fileRepo.InvalidateFiles(stale...)

	if s.indexer != nil {
		if idxErr := s.indexer.IndexFile(ctx, restored); idxErr != nil {
			logger.Warn("Restore: failed to index restored version",
				zap.Uint64("fileID", restored.ID), zap.Error(idxErr))
		}
	}

	logger.Info("File version restored",
		zap.Uint64("sourceVersionID", versionID),
		zap.Uint64("newVersionID", restored.ID),
		zap.Uint("newVersion", newVersion),
		zap.Uint64("restoredBy", userID))
	return restored, nil
}
