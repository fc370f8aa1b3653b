package admin

import (
	"errors"
	"fmt"
	"time"

	"github.com/docvault/go-docvault/internal/config"
	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/docvault/go-docvault/internal/pkg/utils"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/docvault/go-docvault/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService interface {
	RegisterUser(username, password, email string) (*models.User, error)
	LoginUser(identifier, password string) (string, error)
	RefreshToken(tokenString string) (string, error)
}

type authService struct {
	userRepo repositories.UserRepository
	cfg      *config.Config
}

// 确保authService实现了AuthService的方法
var _ AuthService = (*authService)(nil)

func NewAuthService(userRepo repositories.UserRepository, cfg *config.Config) AuthService {
	return &authService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

func (s *authService) RegisterUser(username, password, email string) (*models.User, error) {
	//检查用户名是否存在
	existingUser, err := s.userRepo.GetUserByUsername(username)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username existence: %w", err)
	}
	if existingUser != nil {
		return nil, fmt.Errorf("auth service: %w", xerr.ErrUserAlreadyExists)
	}

	//检查邮箱是否存在
	existingUser, err = s.userRepo.GetUserByEmail(email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if existingUser != nil {
		return nil, fmt.Errorf("auth service: %w", xerr.ErrEmailAlreadyExists)
	}

	//哈希密码
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		UUID:         uuid.NewString(),
		Username:     username,
		PasswordHash: hashedPassword,
		Email:        email,
		Role:         models.RoleUser, // 新注册用户默认普通角色，审批权限由管理员另行提升
		Status:       1,
	}

	err = s.userRepo.CreateUser(user)
	if err != nil {
		return nil, fmt.Errorf("failed to create user in database: %w", err)
	}

	logger.Info("User registered successfully", zap.String("username", user.Username))
	return user, nil
}

func (s *authService) LoginUser(identifier, password string) (string, error) {
	var user *models.User
	var err error

	// 先按用户名查找，找不到再按邮箱查找
	user, err = s.userRepo.GetUserByUsername(identifier)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("failed to get user by username: %w", err)
		}
		user, err = s.userRepo.GetUserByEmail(identifier)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", fmt.Errorf("auth service: %w", xerr.ErrInvalidCredentials)
			}
			return "", fmt.Errorf("failed to get user by email: %w", err)
		}
	}

	//验证密码
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", fmt.Errorf("auth service: %w", xerr.ErrInvalidCredentials)
		}
		return "", fmt.Errorf("failed to compare password: %w", err)
	}

	//生成JWT Token，角色写进 claims，后续请求据此判定审批和目录管理权限
	tokenString, err := utils.GenerateToken(
		user.ID,
		user.Username,
		user.Role,
		s.cfg.JWT.SecretKey,
		s.cfg.JWT.Issuer,
		s.cfg.JWT.ExpiresIn,
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// RefreshToken 用仍然有效的旧 Token 换发新 Token
// 签发时间超过刷新窗口的 Token 不再续期，必须重新登录
func (s *authService) RefreshToken(tokenString string) (string, error) {
	claims, err := utils.ParseToken(tokenString, s.cfg.JWT.SecretKey)
	if err != nil {
		return "", fmt.Errorf("auth service: %w", xerr.ErrTokenInvalid)
	}

	if claims.IssuedAt != nil && time.Since(claims.IssuedAt.Time) > s.cfg.JWT.RefreshExpireHours {
		return "", fmt.Errorf("auth service: %w", xerr.ErrTokenInvalid)
	}

	newToken, err := utils.GenerateToken(
		claims.UserID,
		claims.Username,
		claims.Role,
		s.cfg.JWT.SecretKey,
		s.cfg.JWT.Issuer,
		s.cfg.JWT.ExpiresIn,
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate refreshed token: %w", err)
	}
	return newToken, nil
}
