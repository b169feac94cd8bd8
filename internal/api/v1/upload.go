package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/importer"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/model"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/parser"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/store"
)

// SheetStatus 单个工作表的解析状态
type SheetStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ParseResponse 解析结果
type ParseResponse struct {
	FileID   string          `json:"fileId"`
	Filename string          `json:"filename"`
	Sheets   []SheetStatus   `json:"sheets"`
	Reports  []*model.Report `json:"reports"`
}

// Parse POST /api/parse
// 暂存上传文件并返回解析结果，后续 /api/upload 可用 fileId 引用
func (h *Handler) Parse(c *gin.Context) {
	fileID, filename, path, ok := h.stageFile(c)
	if !ok {
		return
	}

	wb, err := parser.OpenWorkbook(path)
	if err != nil {
		_ = os.Remove(path)
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("打开文件失败: %v", err)})
		return
	}
	defer wb.Close()

	p := parser.New(wb, parser.WithLayout(h.deps.Layout), parser.WithLogger(h.logger))
	resp := ParseResponse{
		FileID:   fileID,
		Filename: filename,
		Sheets:   []SheetStatus{},
		Reports:  []*model.Report{},
	}
	for _, res := range p.ParseSheets() {
		st := SheetStatus{Name: res.SheetName, OK: res.Err == nil}
		if res.Err != nil {
			st.Error = res.Err.Error()
		} else {
			resp.Reports = append(resp.Reports, res.Report)
		}
		resp.Sheets = append(resp.Sheets, st)
	}
	c.JSON(http.StatusOK, resp)
}

// stageFile 保存 multipart 文件到 uploads/<uuid><ext>
func (h *Handler) stageFile(c *gin.Context) (fileID, filename, path string, ok bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未找到上传文件"})
		return "", "", "", false
	}
	if !parser.IsSupportedFile(fh.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "仅支持 .xlsx / .xls 文件"})
		return "", "", "", false
	}

	fileID = uuid.NewString()
	path = filepath.Join(h.deps.UploadsDir, fileID+strings.ToLower(filepath.Ext(fh.Filename)))
	if err := c.SaveUploadedFile(fh, path); err != nil {
		h.logger.Error("save uploaded file failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存文件失败"})
		return "", "", "", false
	}
	return fileID, filepath.Base(fh.Filename), path, true
}

// findStaged 根据 fileId 查找暂存文件
func (h *Handler) findStaged(fileID string) (string, error) {
	if _, err := uuid.Parse(fileID); err != nil {
		return "", errors.New("无效的 fileId")
	}
	for _, ext := range parser.SupportedExtensions {
		path := filepath.Join(h.deps.UploadsDir, fileID+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.New("文件不存在或已过期，请重新选择")
}

// Upload POST /api/upload (SSE 流式响应)
func (h *Handler) Upload(c *gin.Context) {
	var (
		path     string
		staged   bool
		filename = c.PostForm("filename")
	)
	if fileID := c.PostForm("fileId"); fileID != "" {
		p, err := h.findStaged(fileID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		path = p
	} else {
		_, name, p, ok := h.stageFile(c)
		if !ok {
			return
		}
		path, staged = p, true
		if filename == "" {
			filename = name
		}
	}
	// 本次请求暂存的文件在上传开始前出错时删除
	discard := func() {
		if staged {
			_ = os.Remove(path)
		}
	}

	opts := importer.UploadOptions{
		FilePath:          path,
		Filename:          filename,
		OverwriteExisting: c.DefaultPostForm("overwriteExisting", "false") == "true",
		Sheets:            splitList(c.PostForm("sheets")),
	}
	var err error
	if opts.ProjectID, opts.ReporterID, err = h.resolveIDs(c); err != nil {
		discard()
		h.apiError(c, err)
		return
	}
	if opts.ProjectID <= 0 || opts.ReporterID <= 0 {
		discard()
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的项目ID或填报人ID"})
		return
	}

	progressChan, err := h.deps.Coordinator.Upload(c.Request.Context(), opts)
	if errors.Is(err, importer.ErrBusy) {
		discard()
		c.JSON(http.StatusConflict, gin.H{"error": "已有上传任务正在进行"})
		return
	}
	if err != nil {
		discard()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	for event := range progressChan {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// resolveIDs 表单未给出时，项目取当前用户的项目，填报人取当前用户
func (h *Handler) resolveIDs(c *gin.Context) (projectID, reporterID int64, err error) {
	projectID, _ = strconv.ParseInt(c.PostForm("projectId"), 10, 64)
	reporterID, _ = strconv.ParseInt(c.PostForm("reporterId"), 10, 64)

	if _, err := h.deps.Session.Client(); err != nil {
		return 0, 0, err
	}
	if projectID <= 0 {
		project, err := h.deps.Session.Project(c.Request.Context())
		if err != nil {
			last, lerr := h.lastProjectID()
			if lerr != nil {
				return 0, 0, err
			}
			h.logger.Info("project lookup failed, using last project", zap.Int64("project_id", last), zap.Error(err))
			project = &model.ProjectInfo{ID: last}
		}
		projectID = project.ID
	}
	if reporterID <= 0 {
		if u := h.deps.Session.User(); u != nil {
			reporterID = u.ID
		}
	}
	return projectID, reporterID, nil
}

// lastProjectID 最近一次成功导入使用的项目
func (h *Handler) lastProjectID() (int64, error) {
	if h.deps.Store == nil {
		return 0, store.ErrNotFound
	}
	id, err := h.deps.Store.GetSettingInt64(store.SettingLastProjectID)
	if err == nil && id <= 0 {
		err = store.ErrNotFound
	}
	return id, err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
