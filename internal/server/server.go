package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/yyz05279/rongyao-manager-file-upload-tool/internal/api/v1"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/client"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/config"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/importer"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/metrics"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/parser"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/store"
)

// Server HTTP服务器
type Server struct {
	router  *gin.Engine
	store   *store.Store
	metrics *metrics.Metrics
	session *v1.Session
	logger  *zap.Logger
}

// LayoutFromConfig 配置中的模板行区间
func LayoutFromConfig(cfg *config.AppConfig) parser.Layout {
	return parser.Layout{
		TaskStartRow:    cfg.Layout.TaskStartRow,
		TaskEndRow:      cfg.Layout.TaskEndRow,
		SectionStartRow: cfg.Layout.SectionStartRow,
		SectionEndRow:   cfg.Layout.SectionEndRow,
	}
}

// ClientConfig 配置中的远程接口参数
func ClientConfig(cfg *config.AppConfig, baseURL string) client.Config {
	if baseURL == "" {
		baseURL = cfg.API.BaseURL
	}
	return client.Config{
		BaseURL:        baseURL,
		LoginTimeout:   cfg.API.LoginTimeout(),
		UploadTimeout:  cfg.API.UploadTimeout(),
		RequestTimeout: cfg.API.RequestTimeout(),
		SuccessCodes:   cfg.API.SuccessCodes,
	}
}

// NewServer 创建服务器；数据目录与数据库在此初始化
func NewServer(cfg *config.AppConfig, version string, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare data dir: %w", err)
	}
	sqliteStore, err := store.New(config.DBPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.New()
	session := v1.NewSession(func(baseURL string) *client.Client {
		return client.New(ClientConfig(cfg, baseURL), client.WithLogger(logger.Named("client")))
	})
	layout := LayoutFromConfig(cfg)
	coordinator := importer.NewCoordinator(session,
		importer.WithStore(sqliteStore),
		importer.WithMetrics(m),
		importer.WithLayout(layout),
		importer.WithLogger(logger.Named("importer")),
	)

	handler := v1.NewHandler(v1.Deps{
		Version:        version,
		DefaultBaseURL: cfg.API.BaseURL,
		UploadsDir:     config.UploadsDir(dataDir),
		Layout:         layout,
		Store:          sqliteStore,
		Session:        session,
		Coordinator:    coordinator,
		Logger:         logger.Named("api"),
	})

	s := &Server{
		router:  gin.New(),
		store:   sqliteStore,
		metrics: m,
		session: session,
		logger:  logger,
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes(handler)

	logger.Info("server initialized", zap.String("data_dir", dataDir))
	return s, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(handler *v1.Handler) {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	api := s.router.Group("/api")
	{
		handler.RegisterRoutes(api)
	}

	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// requestLogger 请求日志
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		)
	}
}

// Handler 底层 http.Handler（测试用）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动服务器
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Close 退出登录并关闭数据库
func (s *Server) Close() error {
	s.session.Logout()
	return s.store.Close()
}

// GetStore 获取存储（用于测试）
func (s *Server) GetStore() *store.Store {
	return s.store
}
