package handlers

import (
	"net/http"
	"strings"

	"github.com/docvault/go-docvault/internal/pkg/utils"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/docvault/go-docvault/internal/services/admin"
	"github.com/gin-gonic/gin"
)

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=6,max=255"`
	Email    string `json:"email" binding:"required,email"`
}

// LoginRequest 登录请求结构体
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"` // 可以是用户名或邮箱
	Password   string `json:"password" binding:"required"`
}

// SetRoleRequest 调整用户角色请求
type SetRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin subadmin user"`
}

// @Summary 用户注册
// @Description 用户注册接口
// @Tags 用户认证
// @Accept json
// @Produce json
// @Param data body RegisterRequest true "注册信息"
// @Success 200 {object} xerr.Response "注册成功"
// @Failure 400 {object} xerr.Response "参数错误"
// @Failure 409 {object} xerr.Response "用户名或邮箱已存在"
// @Router /api/v1/auth/register [post]
func Register(authService admin.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}

		user, err := authService.RegisterUser(req.Username, req.Password, req.Email)
		if err != nil {
			xerr.FromError(c, err)
			return
		}

		xerr.Success(c, http.StatusOK, "User registered successfully", gin.H{
			"user_id":  user.ID,
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		})
	}
}

// @Summary 用户登录
// @Description 用户登录接口，成功返回 JWT Token
// @Tags 用户认证
// @Accept json
// @Produce json
// @Param data body LoginRequest true "登录信息"
// @Success 200 {object} xerr.Response "登录成功，返回token"
// @Failure 400 {object} xerr.Response "参数错误"
// @Failure 401 {object} xerr.Response "用户名或密码错误"
// @Router /api/v1/auth/login [post]
func Login(authService admin.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}

		tokenString, err := authService.LoginUser(req.Identifier, req.Password)
		if err != nil {
			xerr.FromError(c, err)
			return
		}

		xerr.Success(c, http.StatusOK, "Login successful", gin.H{"token": tokenString})
	}
}

// @Summary 刷新Token
// @Description 用仍在刷新窗口内的旧 Token 换发新 Token
// @Tags 用户认证
// @Produce json
// @Success 200 {object} xerr.Response "刷新成功，返回新token"
// @Failure 401 {object} xerr.Response "Token 无效或超出刷新窗口"
// @Router /api/v1/auth/refresh [post]
func RefreshToken(authService admin.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			xerr.Error(c, http.StatusUnauthorized, xerr.UnauthorizedCode, "Invalid Authorization header format")
			return
		}

		newToken, err := authService.RefreshToken(parts[1])
		if err != nil {
			xerr.FromError(c, err)
			return
		}

		xerr.Success(c, http.StatusOK, "Token refreshed successfully", gin.H{"token": newToken})
	}
}

// @Summary 当前用户信息
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Success 200 {object} xerr.Response
// @Router /api/v1/users/me [get]
func GetProfile(userService admin.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}

		user, err := userService.GetUserProfile(userID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Profile retrieved successfully", user)
	}
}

// @Summary 调整用户角色
// @Description 仅 admin 可用，提升或降级用户的审批权限
// @Tags 用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Param data body SetRoleRequest true "目标角色"
// @Success 200 {object} xerr.Response
// @Router /api/v1/users/{id}/role [put]
func SetUserRole(userService admin.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}
		targetID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		var req SetRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}

		user, svcErr := userService.SetUserRole(role, targetID, req.Role)
		if svcErr != nil {
			xerr.FromError(c, svcErr)
			return
		}
		xerr.Success(c, http.StatusOK, "User role updated", user)
	}
}
