package handlers

import (
	"net/http"
	"strconv"

	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
)

// parseIDParam 解析路径中的数字 ID，非法时直接响应 400
func parseIDParam(c *gin.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "Invalid "+name+" parameter")
		return 0, err
	}
	return id, nil
}

// parseOptionalIDQuery 解析可选的数字查询参数，缺省返回 nil
func parseOptionalIDQuery(c *gin.Context, name string) (*uint64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "Invalid "+name+" parameter")
		return nil, false
	}
	return &id, true
}
