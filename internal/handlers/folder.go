package handlers

import (
	"net/http"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/utils"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/docvault/go-docvault/internal/services/explorer"
	"github.com/gin-gonic/gin"
)

// @Summary 创建文件夹
// @Description 创建文件夹，同时在存储根下建立对应的物理目录
// @Tags 文件夹
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param data body models.CreateFolderRequest true "文件夹信息"
// @Success 201 {object} xerr.Response
// @Failure 409 {object} xerr.Response "目标路径已存在同名文件夹"
// @Router /api/v1/folders [post]
func CreateFolder(svc explorer.FolderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}

		var req models.CreateFolderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}

		folder, err := svc.CreateFolder(c.Request.Context(), userID, role, &req)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusCreated, "Folder created successfully", folder)
	}
}

// @Summary 重命名/移动文件夹
// @Description 重命名与移动共用接口，整棵子树的路径会被同步改写
// @Tags 文件夹
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "文件夹ID"
// @Param data body models.UpdateFolderRequest true "更新内容"
// @Success 200 {object} xerr.Response
// @Failure 409 {object} xerr.Response "路径冲突或移动到子树"
// @Router /api/v1/folders/{id} [put]
func UpdateFolder(svc explorer.FolderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}
		folderID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		var req models.UpdateFolderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}

		folder, svcErr := svc.UpdateFolder(c.Request.Context(), userID, role, folderID, &req)
		if svcErr != nil {
			xerr.FromError(c, svcErr)
			return
		}
		xerr.Success(c, http.StatusOK, "Folder updated successfully", folder)
	}
}

// @Summary 删除文件夹
// @Description 物理目录整棵递归删除，直接子文件夹在元数据中成为孤儿
// @Tags 文件夹
// @Produce json
// @Security BearerAuth
// @Param id path int true "文件夹ID"
// @Success 200 {object} xerr.Response
// @Failure 403 {object} xerr.Response "系统文件夹或无权限"
// @Router /api/v1/folders/{id} [delete]
func DeleteFolder(svc explorer.FolderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}
		folderID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		if svcErr := svc.DeleteFolder(c.Request.Context(), userID, role, folderID); svcErr != nil {
			xerr.FromError(c, svcErr)
			return
		}
		xerr.Success(c, http.StatusOK, "Folder deleted successfully", nil)
	}
}

// @Summary 文件夹列表
// @Description 列出某一层级的文件夹，parent_id 缺省为根层
// @Tags 文件夹
// @Produce json
// @Security BearerAuth
// @Param parent_id query int false "父文件夹ID"
// @Success 200 {object} xerr.Response
// @Router /api/v1/folders [get]
func ListFolders(svc explorer.FolderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}
		parentID, ok := parseOptionalIDQuery(c, "parent_id")
		if !ok {
			return
		}

		folders, err := svc.ListFolders(c.Request.Context(), userID, role, parentID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Folders listed successfully", folders)
	}
}

// @Summary 文件夹内容
// @Description 返回文件夹详情、子文件夹和对调用者可见的文件
// @Tags 文件夹
// @Produce json
// @Security BearerAuth
// @Param id path int true "文件夹ID"
// @Success 200 {object} xerr.Response
// @Router /api/v1/folders/{id} [get]
func GetFolderContents(svc explorer.FolderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}
		folderID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		contents, svcErr := svc.GetContents(c.Request.Context(), userID, role, folderID)
		if svcErr != nil {
			xerr.FromError(c, svcErr)
			return
		}
		xerr.Success(c, http.StatusOK, "Folder contents retrieved successfully", contents)
	}
}

// @Summary 授权文件夹访问
// @Tags 文件夹
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "文件夹ID"
// @Param data body models.GrantAccessRequest true "授权信息"
// @Success 200 {object} xerr.Response
// @Router /api/v1/folders/{id}/access [post]
func GrantFolderAccess(svc explorer.FolderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}
		folderID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		var req models.GrantAccessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}

		if svcErr := svc.GrantAccess(c.Request.Context(), userID, role, folderID, &req); svcErr != nil {
			xerr.FromError(c, svcErr)
			return
		}
		xerr.Success(c, http.StatusOK, "Folder access granted", nil)
	}
}

// @Summary 撤销文件夹访问
// @Tags 文件夹
// @Produce json
// @Security BearerAuth
// @Param id path int true "文件夹ID"
// @Param user_id path int true "被撤销的用户ID"
// @Success 200 {object} xerr.Response
// @Router /api/v1/folders/{id}/access/{user_id} [delete]
func RevokeFolderAccess(svc explorer.FolderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}
		folderID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}
		targetUserID, err := parseIDParam(c, "user_id")
		if err != nil {
			return
		}

		if svcErr := svc.RevokeAccess(c.Request.Context(), userID, role, folderID, targetUserID); svcErr != nil {
			xerr.FromError(c, svcErr)
			return
		}
		xerr.Success(c, http.StatusOK, "Folder access revoked", nil)
	}
}
