package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/metrics"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/server"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/util"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/watcher"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port    int
		devMode bool
		dataDir string
		open    bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动本地服务 (解析、上传、历史记录 API)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			// config.toml 中显式配置的端口优先
			if port > 0 && !a.info.PortSpecified {
				cfg.Server.Port = port
			}
			if devMode {
				cfg.Server.DevMode = true
			}
			if dataDir != "" {
				cfg.Data.DataDir = dataDir
			}

			srv, err := server.NewServer(cfg, version, a.logger)
			if err != nil {
				return err
			}
			defer srv.Close()

			addr := fmt.Sprintf(":%d", cfg.Server.Port)
			url := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
			errCh := make(chan error, 1)
			go func() {
				fmt.Fprintf(cmd.OutOrStdout(), "服务启动中，监听端口 %d ...\n", cfg.Server.Port)
				errCh <- srv.Run(addr)
			}()

			if open {
				if err := util.OpenBrowserWithFallback(url + "/api/status"); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "无法自动打开浏览器，请手动访问: %s\n", url)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "按 Ctrl+C 停止服务...")

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			select {
			case err := <-errCh:
				return fmt.Errorf("服务启动失败: %w", err)
			case <-ctx.Done():
				fmt.Fprintln(cmd.OutOrStdout(), "正在关闭服务...")
				return nil
			}
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "服务端口 (config.toml 优先；仅当未显式配置 port 时生效)")
	cmd.Flags().BoolVar(&devMode, "dev", false, "开发模式")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "数据目录 (覆盖配置文件)")
	cmd.Flags().BoolVar(&open, "open", false, "启动后在浏览器中打开")
	return cmd
}

// signalContext 收到 SIGINT/SIGTERM 时取消
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// serveMetrics 单独监听指标端口，返回关闭函数
func serveMetrics(addr string, m *metrics.Metrics, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hs.Shutdown(ctx)
	}
}

func newInboxWatcher(a *app, dir string, archive bool, handler watcher.Handler) *watcher.Watcher {
	return watcher.New(dir, handler,
		watcher.WithExtensions(a.cfg.Watch.Extensions),
		watcher.WithDebounce(a.cfg.Watch.Debounce()),
		watcher.WithArchive(archive),
		watcher.WithLogger(a.logger.Named("watcher")),
	)
}
