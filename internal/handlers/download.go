package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/docvault/go-docvault/internal/config"
	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/docvault/go-docvault/internal/pkg/storage"
	"github.com/docvault/go-docvault/internal/pkg/utils"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/docvault/go-docvault/internal/services/explorer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// rangeEligible 判断是否开启 Range 支持
// 流媒体始终支持拖进度条，其余类型只有超过阈值才值得断点续传
func rangeEligible(file *models.File, threshold int64) bool {
	if strings.HasPrefix(file.MimeType, "video/") || strings.HasPrefix(file.MimeType, "audio/") {
		return true
	}
	return int64(file.Size) >= threshold
}

// ctxReadSeeker 在每次读取前检查上下文
// 消费方断开或预览超时后，下一个分块读取立即失败，传输随之停止并释放文件句柄
type ctxReadSeeker struct {
	ctx context.Context
	rs  io.ReadSeeker
}

func (r *ctxReadSeeker) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.rs.Read(p)
}

func (r *ctxReadSeeker) Seek(offset int64, whence int) (int64, error) {
	return r.rs.Seek(offset, whence)
}

// ctxReader 不可 Seek 流的同款包装，用于打包下载
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// serveFileContent 下载和预览共用的传输逻辑
// ctx 是传输的取消信号：下载用请求上下文，预览用带超时的派生上下文
func serveFileContent(ctx context.Context, c *gin.Context, cfg *config.Config, file *models.File, obj *storage.Object, inline bool) {
	defer obj.Close()

	// 基于内容哈希的 ETag，命中时直接 304
	etag := `"` + file.FileHash + `"`
	c.Header("ETag", etag)
	c.Header("Cache-Control", "private, max-age=3600")
	if match := c.GetHeader("If-None-Match"); match == etag {
		c.Status(http.StatusNotModified)
		return
	}

	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	c.Header("Content-Disposition",
		fmt.Sprintf(`%s; filename*=UTF-8''%s`, disposition, url.PathEscape(file.FileName)))
	c.Header("Content-Type", file.MimeType)

	reader := &ctxReadSeeker{ctx: ctx, rs: obj.Reader}

	if rangeEligible(file, cfg.Storage.RangeMinBytes) {
		// ServeContent 处理 Range/If-Range 等细节，需要可 Seek 的读取端
		http.ServeContent(c.Writer, c.Request, file.FileName, obj.ModTime, reader)
		return
	}

	c.Header("Accept-Ranges", "none")
	c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		// 响应已经开始，只能记录日志
		logger.Warn("serveFileContent: transfer interrupted",
			zap.Uint64("fileID", file.ID), zap.Error(err))
	}
}

// @Summary 下载文件
// @Description 按附件方式下载文件内容，支持 ETag 缓存和大文件断点续传
// @Tags 下载
// @Produce octet-stream
// @Security BearerAuth
// @Param id path int true "文件ID"
// @Success 200 {file} binary
// @Success 206 {file} binary "Range 响应"
// @Failure 403 {object} xerr.Response "文件未过审或无权限"
// @Router /api/v1/files/{id}/download [get]
func DownloadFile(svc explorer.DownloadService, cfg *config.Config) gin.HandlerFunc {
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

		file, obj, svcErr := svc.GetContent(c.Request.Context(), userID, role, fileID)
		if svcErr != nil {
			xerr.FromError(c, svcErr)
			return
		}
		serveFileContent(c.Request.Context(), c, cfg, file, obj, false)
	}
}

// @Summary 预览文件
// @Description 按内联方式返回文件内容，整体传输受超时约束
// @Tags 下载
// @Produce octet-stream
// @Security BearerAuth
// @Param id path int true "文件ID"
// @Success 200 {file} binary
// @Router /api/v1/files/{id}/preview [get]
func PreviewFile(svc explorer.DownloadService, cfg *config.Config) gin.HandlerFunc {
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

		// 预览卡死会占住连接，整体限时
		ctx, cancel := context.WithTimeout(c.Request.Context(),
			time.Duration(cfg.Storage.PreviewTimeout)*time.Second)
		defer cancel()

		file, obj, svcErr := svc.GetContent(ctx, userID, role, fileID)
		if svcErr != nil {
			xerr.FromError(c, svcErr)
			return
		}
		// 超时上下文同样约束传输本身，不只约束打开文件
		serveFileContent(ctx, c, cfg, file, obj, true)
	}
}

// @Summary 打包下载文件夹
// @Description 把文件夹及可见内容流式打包成 ZIP 下载
// @Tags 下载
// @Produce octet-stream
// @Security BearerAuth
// @Param id path int true "文件夹ID"
// @Success 200 {file} binary
// @Router /api/v1/folders/{id}/download [get]
func DownloadFolderZip(svc explorer.DownloadService) gin.HandlerFunc {
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

		zipName, reader, svcErr := svc.DownloadFolder(c.Request.Context(), userID, role, folderID)
		if svcErr != nil {
			xerr.FromError(c, svcErr)
			return
		}
		defer reader.Close()

		c.Header("Content-Type", "application/zip")
		c.Header("Content-Disposition",
			fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(zipName)))
		c.Status(http.StatusOK)

		zipStream := &ctxReader{ctx: c.Request.Context(), r: reader}
		if _, err := io.Copy(c.Writer, zipStream); err != nil {
			logger.Warn("DownloadFolderZip: transfer interrupted",
				zap.Uint64("folderID", folderID), zap.Error(err))
		}
	}
}
