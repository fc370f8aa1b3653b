package explorer

import (
	"context"
	"fmt"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/docvault/go-docvault/internal/repositories"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApprovalService 文件审批流：每个上传的版本都要经过审批才对普通用户可见
type ApprovalService interface {
	SetApproval(ctx context.Context, reviewerID uint64, role string, fileID uint64, req *models.SetApprovalRequest) (*models.File, error)
	// ListByStatus 按审批状态列出文件，供审批工作台使用
	ListByStatus(ctx context.Context, reviewerID uint64, role string, status string) ([]models.File, error)
}

type approvalService struct {
	fileRepo  repositories.FileRepository
	txManager TransactionManager
	indexer   SearchIndexer
}

// NewApprovalService 创建审批服务实例
func NewApprovalService(fileRepo repositories.FileRepository, txManager TransactionManager, indexer SearchIndexer) ApprovalService {
	return &approvalService{
		fileRepo:  fileRepo,
		txManager: txManager,
		indexer:   indexer,
	}
}

func isReviewer(role string) bool {
	return role == models.RoleAdmin || role == models.RoleSubAdmin
}

// SetApproval 设置审批结果
// 通过会清空驳回分支的全部字段，驳回必须带原因并清空通过分支，两个分支互斥
func (s *approvalService) SetApproval(ctx context.Context, reviewerID uint64, role string, fileID uint64, req *models.SetApprovalRequest) (*models.File, error) {
	if !isReviewer(role) {
		return nil, fmt.Errorf("approval service: role %q: %w", role, xerr.ErrReviewRequired)
	}

	file, err := s.fileRepo.FindByID(fileID)
	if err != nil {
		return nil, fmt.Errorf("approval service: %w", err)
	}
	if file.IsDeleted {
		return nil, fmt.Errorf("approval service: file %d: %w", fileID, xerr.ErrFileNotFound)
	}

	switch req.Status {
	case models.ApprovalApproved:
		file.Approve(reviewerID)
	case models.ApprovalDisapproved:
		if req.Reason == "" {
			return nil, fmt.Errorf("approval service: file %d: %w", fileID, xerr.ErrReasonRequired)
		}
		file.Disapprove(reviewerID, req.Reason)
	default:
		return nil, fmt.Errorf("approval service: status %q: %w", req.Status, xerr.ErrInvalidParams)
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		return s.fileRepo.Update(tx, file)
	})
	if err != nil {
		return nil, fmt.Errorf("approval service: %w", err)
	}

	// 提交后再失效一次，防止事务期间的并发读用旧状态回填缓存
	s.fileRepo.InvalidateFiles(file)

	// 审批状态影响检索可见性，重建索引
	if s.indexer != nil {
		if idxErr := s.indexer.IndexFile(ctx, file); idxErr != nil {
			logger.Warn("SetApproval: failed to re-index file",
				zap.Uint64("fileID", fileID), zap.Error(idxErr))
		}
	}

	logger.Info("File approval updated",
		zap.Uint64("fileID", fileID),
		zap.String("status", file.ApprovalStatus),
		zap.Uint64("reviewerID", reviewerID))
	return file, nil
}

func (s *approvalService) ListByStatus(ctx context.Context, reviewerID uint64, role string, status string) ([]models.File, error) {
	if !isReviewer(role) {
		return nil, fmt.Errorf("approval service: role %q: %w", role, xerr.ErrReviewRequired)
	}
	switch status {
	case models.ApprovalPending, models.ApprovalApproved, models.ApprovalDisapproved:
	case models.ApprovalFilterAll:
		status = "" // 仓储层空状态表示不过滤
	default:
		return nil, fmt.Errorf("approval service: status %q: %w", status, xerr.ErrInvalidParams)
	}

	files, err := s.fileRepo.ListByApprovalStatus(status)
	if err != nil {
		return nil, fmt.Errorf("approval service: %w", err)
	}
	return files, nil
}
