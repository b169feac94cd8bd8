package v1

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/exporter"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/parser"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportPreview GET /api/files/:fileId/export
// 重新解析暂存文件，以汇总预览工作簿下载
func (h *Handler) ExportPreview(c *gin.Context) {
	path, err := h.findStaged(c.Param("fileId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	reports, err := parser.ParseFile(path, parser.WithLayout(h.deps.Layout), parser.WithLogger(h.logger))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("打开文件失败: %v", err)})
		return
	}
	f, err := exporter.Export(reports, exporter.ExportOptions{})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	name := c.DefaultQuery("filename", "日报")
	name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)) + "_预览.xlsx"
	c.Header("Content-Disposition", contentDisposition(name))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("write export failed", zap.Error(err))
	}
}

// contentDisposition 同时给出 ASCII 回退名与 RFC 5987 编码的原始文件名
func contentDisposition(name string) string {
	return fmt.Sprintf(`attachment; filename="export.xlsx"; filename*=UTF-8''%s`, url.PathEscape(name))
}
