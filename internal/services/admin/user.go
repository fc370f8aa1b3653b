package admin

import (
	"fmt"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/docvault/go-docvault/internal/repositories"
	"go.uber.org/zap"
)

type UserService interface {
	GetUserProfile(userID uint64) (*models.User, error)
	// SetUserRole 管理员调整用户角色（提升/降级审批权限）
	SetUserRole(operatorRole string, userID uint64, role string) (*models.User, error)
}

type userService struct {
	userRepo repositories.UserRepository
}

var _ UserService = (*userService)(nil)

func NewUserService(userRepo repositories.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetUserProfile(userID uint64) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		logger.Error("GetUserProfile: Error retrieving user from DB",
			zap.Uint64("userID", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve user profile: %w", err)
	}
	if user == nil {
		logger.Warn("GetUserProfile: User not found", zap.Uint64("userID", userID))
		return nil, fmt.Errorf("user service: %w", xerr.ErrUserNotFound)
	}

	return user, nil
}

func (s *userService) SetUserRole(operatorRole string, userID uint64, role string) (*models.User, error) {
	if operatorRole != models.RoleAdmin {
		return nil, fmt.Errorf("user service: %w", xerr.ErrForbidden)
	}
	switch role {
	case models.RoleAdmin, models.RoleSubAdmin, models.RoleUser:
	default:
		return nil, fmt.Errorf("user service: role %q: %w", role, xerr.ErrInvalidParams)
	}

	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user service: %w", xerr.ErrUserNotFound)
	}

	user.Role = role
	if err := s.userRepo.UpdateUser(user); err != nil {
		return nil, fmt.Errorf("failed to update user role: %w", err)
	}

	logger.Info("User role updated",
		zap.Uint64("userID", userID),
		zap.String("role", role))
	return user, nil
}
