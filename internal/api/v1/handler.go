package v1

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/client"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/importer"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/parser"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/store"
)

// Deps 处理器依赖
type Deps struct {
	Version        string
	DefaultBaseURL string
	UploadsDir     string
	Layout         parser.Layout
	Store          *store.Store
	Session        *Session
	Coordinator    *importer.Coordinator
	Logger         *zap.Logger
}

// Handler 本地 API 处理器
type Handler struct {
	deps   Deps
	logger *zap.Logger
}

// NewHandler 创建处理器
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{deps: deps, logger: logger}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)

	router.POST("/session/login", h.Login)
	router.POST("/session/logout", h.Logout)
	router.GET("/project", h.GetProject)

	router.POST("/parse", h.Parse)
	router.POST("/upload", h.Upload)
	router.GET("/files/:fileId/export", h.ExportPreview)

	router.GET("/uploads", h.ListUploads)
	router.GET("/uploads/:id", h.GetUpload)
}

// StatusResponse 状态
type StatusResponse struct {
	Version       string `json:"version"`
	LoggedIn      bool   `json:"loggedIn"`
	Username      string `json:"username,omitempty"`
	ServerURL     string `json:"serverUrl"`
	LastProjectID int64  `json:"lastProjectId,omitempty"`
	UploadsDir    string `json:"uploadsDir"`
}

// GetStatus GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	settings := h.settings()
	resp := StatusResponse{
		Version:    h.deps.Version,
		ServerURL:  h.deps.DefaultBaseURL,
		Username:   settings[store.SettingUsername],
		UploadsDir: h.deps.UploadsDir,
	}
	if v := settings[store.SettingServerURL]; v != "" {
		resp.ServerURL = v
	}
	resp.LastProjectID, _ = strconv.ParseInt(settings[store.SettingLastProjectID], 10, 64)

	if _, err := h.deps.Session.Client(); err == nil {
		resp.LoggedIn = true
		if u := h.deps.Session.User(); u != nil {
			resp.Username = u.Username
		}
	}
	c.JSON(http.StatusOK, resp)
}

// settings 读取记住的设置，失败时返回空表
func (h *Handler) settings() map[string]string {
	if h.deps.Store == nil {
		return map[string]string{}
	}
	all, err := h.deps.Store.GetAllSettings()
	if err != nil {
		h.logger.Warn("load settings failed", zap.Error(err))
		return map[string]string{}
	}
	return all
}

// serverURL 上次登录使用的地址，没有则取配置
func (h *Handler) serverURL() string {
	if h.deps.Store != nil {
		if v, err := h.deps.Store.GetSetting(store.SettingServerURL); err == nil && v != "" {
			return v
		}
	}
	return h.deps.DefaultBaseURL
}

// LoginRequest 登录请求
type LoginRequest struct {
	APIURL   string `json:"apiUrl"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login POST /api/session/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "用户名和密码不能为空"})
		return
	}
	baseURL := strings.TrimSpace(req.APIURL)
	if baseURL == "" {
		baseURL = h.serverURL()
	}

	res, err := h.deps.Session.Login(c.Request.Context(), baseURL, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		h.logger.Warn("login failed", zap.String("server", baseURL), zap.Error(err))
		h.apiError(c, err)
		return
	}

	if h.deps.Store != nil {
		h.remember(baseURL, strings.TrimSpace(req.Username))
	}

	resp := gin.H{"user": res.User}
	if project, err := h.deps.Session.Project(c.Request.Context()); err == nil {
		resp["project"] = project
	} else {
		h.logger.Info("project lookup after login failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, resp)
}

// remember 记住服务器地址与用户名；换了用户时清除上次使用的项目
func (h *Handler) remember(baseURL, username string) {
	if prev, err := h.deps.Store.GetSetting(store.SettingUsername); err == nil && prev != username {
		if err := h.deps.Store.DeleteSetting(store.SettingLastProjectID); err != nil {
			h.logger.Warn("forget last project failed", zap.Error(err))
		}
	}
	if err := h.deps.Store.SetSetting(store.SettingServerURL, baseURL); err != nil {
		h.logger.Warn("remember server url failed", zap.Error(err))
	}
	if err := h.deps.Store.SetSetting(store.SettingUsername, username); err != nil {
		h.logger.Warn("remember username failed", zap.Error(err))
	}
}

// Logout POST /api/session/logout
func (h *Handler) Logout(c *gin.Context) {
	h.deps.Session.Logout()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetProject GET /api/project
func (h *Handler) GetProject(c *gin.Context) {
	project, err := h.deps.Session.Project(c.Request.Context())
	if err != nil {
		h.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// apiError 远程错误映射为本地响应
func (h *Handler) apiError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrNotLoggedIn):
		status = http.StatusUnauthorized
	case errors.As(err, &apiErr) && apiErr.Kind == client.KindInvalid:
		status = http.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
		status = http.StatusUnauthorized
	case errors.As(err, &apiErr) && apiErr.Kind == client.KindBusiness:
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": client.UserMessage(err)})
}
