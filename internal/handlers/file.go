package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/utils"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/docvault/go-docvault/internal/services/explorer"
	"github.com/docvault/go-docvault/internal/services/search"
	"github.com/gin-gonic/gin"
)

// stageUpload 把上传流落到临时文件，返回暂存路径和清理函数
// 服务层需要对内容做哈希和二次读取，不能直接消费请求流
func stageUpload(fileHeader *multipart.FileHeader) (string, func(), error) {
	tempFile, err := os.CreateTemp("", "upload-*.tmp")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	cleanup := func() {
		tempFile.Close()
		os.Remove(tempFile.Name())
	}

	stream, err := fileHeader.Open()
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to open uploaded file stream: %w", err)
	}
	defer stream.Close()

	if _, err := io.Copy(tempFile, stream); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempFile.Name())
		return "", nil, fmt.Errorf("failed to flush temporary file: %w", err)
	}
	return tempFile.Name(), func() { os.Remove(tempFile.Name()) }, nil
}

// @Summary 上传文件
// @Description 上传一个或多个文件到文件夹，同名文件自动生成新版本；每个文件独立成败
// @Tags 文件
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "目标文件夹ID"
// @Param files formData file true "文件内容，可多个"
// @Param description formData string false "文件描述"
// @Param tags formData string false "标签，逗号分隔"
// @Success 200 {object} xerr.Response "每个文件的上传结果"
// @Router /api/v1/folders/{id}/files [post]
func UploadFiles(svc explorer.FileService) gin.HandlerFunc {
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

		form, err := c.MultipartForm()
		if err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, fmt.Sprintf("Failed to parse multipart form: %v", err))
			return
		}
		fileHeaders := form.File["files"]
		if len(fileHeaders) == 0 {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "No files in request")
			return
		}

		description := c.PostForm("description")
		var tags []string
		if raw := c.PostForm("tags"); raw != "" {
			for _, t := range strings.Split(raw, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tags = append(tags, t)
				}
			}
		}

		// 逐个处理，单个文件失败不影响其余文件
		results := make([]models.UploadResult, 0, len(fileHeaders))
		persisted := 0
		for _, fh := range fileHeaders {
			result := models.UploadResult{FileName: fh.Filename}

			stagingPath, cleanup, stageErr := stageUpload(fh)
			if stageErr != nil {
				result.Error = stageErr.Error()
				results = append(results, result)
				continue
			}

			file, duplicate, upErr := svc.Upload(c.Request.Context(), userID, role, &explorer.UploadRequest{
				FolderID:    folderID,
				FileName:    fh.Filename,
				StagingPath: stagingPath,
				Description: description,
				Tags:        tags,
			})
			cleanup()

			if upErr != nil {
				result.Error = upErr.Error()
			} else {
				result.File = file
				result.Duplicate = duplicate
				persisted++
			}
			results = append(results, result)
		}

		// 整批只有在一个文件都没有入库时才算失败，逐项结果仍然返回
		if persisted == 0 {
			xerr.JSONResponse(c, http.StatusBadRequest, xerr.InvalidParamsCode, "No files were uploaded", results)
			return
		}
		xerr.Success(c, http.StatusOK, "Upload finished", results)
	}
}

// @Summary 重命名文件
// @Description 重命名不产生新版本，整条版本链同步改名
// @Tags 文件
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "文件ID"
// @Param data body models.RenameFileRequest true "新文件名"
// @Success 200 {object} xerr.Response
// @Router /api/v1/files/{id}/rename [put]
func RenameFile(svc explorer.FileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}
		fileID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		var req models.RenameFileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}

		file, svcErr := svc.Rename(c.Request.Context(), userID, role, fileID, req.NewName)
		if svcErr != nil {
			xerr.FromError(c, svcErr)
			return
		}
		xerr.Success(c, http.StatusOK, "File renamed successfully", file)
	}
}

// @Summary 删除文件
// @Description 删除文件及其全部历史版本，物理对象缺失时仍清理元数据
// @Tags 文件
// @Produce json
// @Security BearerAuth
// @Param id path int true "文件ID"
// @Success 200 {object} xerr.Response
// @Router /api/v1/files/{id} [delete]
func DeleteFile(svc explorer.FileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}
		fileID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		if svcErr := svc.Delete(c.Request.Context(), userID, role, fileID); svcErr != nil {
			xerr.FromError(c, svcErr)
			return
		}
		xerr.Success(c, http.StatusOK, "File deleted successfully", nil)
	}
}

// @Summary 文件详情
// @Tags 文件
// @Produce json
// @Security BearerAuth
// @Param id path int true "文件ID"
// @Success 200 {object} xerr.Response
// @Router /api/v1/files/{id} [get]
func GetFileInfo(svc explorer.FileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}
		fileID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		file, svcErr := svc.GetInfo(c.Request.Context(), userID, role, fileID)
		if svcErr != nil {
			xerr.FromError(c, svcErr)
			return
		}
		xerr.Success(c, http.StatusOK, "File info retrieved successfully", file)
	}
}

// @Summary 文件版本列表
// @Description 返回文件所在版本链的全部版本，最旧的在前
// @Tags 文件版本
// @Produce json
// @Security BearerAuth
// @Param id path int true "文件ID"
// @Success 200 {object} xerr.Response
// @Router /api/v1/files/{id}/versions [get]
func ListFileVersions(svc explorer.VersionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}
		fileID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		versions, svcErr := svc.FindVersions(c.Request.Context(), userID, role, fileID)
		if svcErr != nil {
			xerr.FromError(c, svcErr)
			return
		}
		xerr.Success(c, http.StatusOK, "File versions retrieved successfully", versions)
	}
}

// @Summary 还原历史版本
// @Description 把指定历史版本的内容还原为版本链上的新一版，重新进入审批流程
// @Tags 文件版本
// @Produce json
// @Security BearerAuth
// @Param id path int true "要还原的历史版本ID"
// @Success 200 {object} xerr.Response
// @Router /api/v1/files/versions/{id}/restore [post]
func RestoreFileVersion(svc explorer.VersionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}
		versionID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		restored, svcErr := svc.Restore(c.Request.Context(), userID, role, versionID)
		if svcErr != nil {
			xerr.FromError(c, svcErr)
			return
		}
		xerr.Success(c, http.StatusOK, "File version restored successfully", restored)
	}
}

// @Summary 设置审批结果
// @Description 通过或驳回一个文件版本，驳回必须提供原因
// @Tags 审批
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "文件ID"
// @Param data body models.SetApprovalRequest true "审批结果"
// @Success 200 {object} xerr.Response
// @Failure 403 {object} xerr.Response "需要审批权限"
// @Router /api/v1/files/{id}/approval [put]
func SetFileApproval(svc explorer.ApprovalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}
		fileID, err := parseIDParam(c, "id")
		if err != nil {
			return
		}

		var req models.SetApprovalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}

		file, svcErr := svc.SetApproval(c.Request.Context(), userID, role, fileID, &req)
		if svcErr != nil {
			xerr.FromError(c, svcErr)
			return
		}
		xerr.Success(c, http.StatusOK, "File approval updated", file)
	}
}

// @Summary 按审批状态列出文件
// @Description 审批工作台接口，status 取 pending/approved/disapproved/all
// @Tags 审批
// @Produce json
// @Security BearerAuth
// @Param status query string true "审批状态，all 表示不过滤"
// @Success 200 {object} xerr.Response
// @Router /api/v1/approvals [get]
func ListFilesByApprovalStatus(svc explorer.ApprovalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}

		status := c.DefaultQuery("status", models.ApprovalPending)
		files, err := svc.ListByStatus(c.Request.Context(), userID, role, status)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Files listed successfully", files)
	}
}

// @Summary 搜索文件
// @Description 按关键词检索文件名/描述/标签，结果只包含调用者可见的文件；Elasticsearch 不可用时退化为数据库查询
// @Tags 文件
// @Produce json
// @Security BearerAuth
// @Param q query string true "关键词"
// @Success 200 {object} xerr.Response
// @Router /api/v1/files/search [get]
func SearchFiles(svc *search.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}
		role, ok := utils.GetRoleFromContext(c)
		if !ok {
			return
		}

		keyword := c.Query("q")
		hits, err := svc.Search(c.Request.Context(), userID, role, keyword)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Search finished", hits)
	}
}
