package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/client"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/config"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/importer"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/metrics"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/server"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/store"
)

// remoteFlags upload 与 watch 共用的登录与身份参数
type remoteFlags struct {
	apiURL     string
	username   string
	password   string
	projectID  int64
	reporterID int64
	overwrite  bool
}

func (f *remoteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.apiURL, "api-url", "", "服务器地址 (默认: 配置文件 api.base_url)")
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "用户名或手机号")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "密码 (也可通过环境变量 "+config.EnvPrefix+"_PASSWORD 提供)")
	cmd.Flags().Int64Var(&f.projectID, "project-id", 0, "项目ID (默认: 当前用户负责的项目)")
	cmd.Flags().Int64Var(&f.reporterID, "reporter-id", 0, "填报人ID (默认: 当前用户)")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "覆盖已存在的日报")
	_ = cmd.MarkFlagRequired("username")
}

// connect 登录并补齐项目ID与填报人ID
func (f *remoteFlags) connect(ctx context.Context, a *app, out io.Writer) (*client.Client, error) {
	password := f.password
	if password == "" {
		password = os.Getenv(config.EnvPrefix + "_PASSWORD")
	}
	if password == "" {
		return nil, errors.New("请提供密码")
	}

	c := client.New(server.ClientConfig(a.cfg, f.apiURL), client.WithLogger(a.logger.Named("client")))
	res, err := c.Login(ctx, f.username, password)
	if err != nil {
		return nil, errors.New("登录失败：" + client.UserMessage(err))
	}
	fmt.Fprintf(out, "已登录 %s (用户ID %d)\n", c.BaseURL(), res.User.ID)

	if f.projectID <= 0 {
		project, err := c.GetMyProject(ctx)
		if err != nil {
			return nil, errors.New("获取项目信息失败：" + client.UserMessage(err))
		}
		f.projectID = project.ID
		fmt.Fprintf(out, "项目: %s (ID %d)\n", project.Name, project.ID)
	}
	if f.reporterID <= 0 {
		f.reporterID = res.User.ID
	}
	if f.projectID <= 0 || f.reporterID <= 0 {
		return nil, errors.New("无效的项目ID或填报人ID")
	}
	return c, nil
}

func (f *remoteFlags) options(path string, sheets []string) importer.UploadOptions {
	return importer.UploadOptions{
		FilePath:          path,
		Filename:          filepath.Base(path),
		ProjectID:         f.projectID,
		ReporterID:        f.reporterID,
		OverwriteExisting: f.overwrite,
		Sheets:            sheets,
	}
}

// openHistory 打开上传历史库，与 serve 共用同一数据目录
func openHistory(a *app) (*store.Store, error) {
	dataDir, err := config.EnsureDataDir(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	return store.New(config.DBPath(dataDir))
}

func newCoordinator(a *app, c importer.Uploader, s *store.Store, m *metrics.Metrics) *importer.Coordinator {
	return importer.NewCoordinator(c,
		importer.WithStore(s),
		importer.WithMetrics(m),
		importer.WithLayout(server.LayoutFromConfig(a.cfg)),
		importer.WithLogger(a.logger.Named("importer")),
	)
}

func progressPrinter(out io.Writer) func(importer.ProgressEvent) {
	return func(ev importer.ProgressEvent) {
		fmt.Fprintf(out, "[%3d%%] %s\n", ev.Percent, ev.Message)
	}
}

func printUploadSummary(out io.Writer, sum *importer.UploadSummary) {
	fmt.Fprintf(out, "批次 %s: %s，工作表 %d/%d，耗时 %s\n",
		sum.BatchID, sum.Status, sum.ParsedSheets, sum.TotalSheets, sum.Duration.Round(time.Millisecond))
	res := sum.Result
	if res == nil {
		return
	}
	fmt.Fprintf(out, "共 %d 条：成功 %d，失败 %d，跳过 %d\n",
		res.TotalCount, res.SuccessCount, res.FailedCount, res.SkippedCount)
	for _, d := range res.FailedReports {
		reason := d.Reason
		if reason == "" {
			reason = d.Message
		}
		fmt.Fprintf(out, "  ✗ %s: %s\n", d.ReportDate, reason)
	}
}

func newUploadCmd(a *app) *cobra.Command {
	var (
		remote remoteFlags
		sheets []string
	)
	cmd := &cobra.Command{
		Use:   "upload <input.xlsx>",
		Short: "解析工作簿并批量导入到服务器",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("文件不存在: %s", path)
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			c, err := remote.connect(ctx, a, out)
			if err != nil {
				return err
			}
			defer c.Logout()

			history, err := openHistory(a)
			if err != nil {
				return err
			}
			defer history.Close()

			coord := newCoordinator(a, c, history, nil)
			sum, err := coord.UploadSync(ctx, remote.options(path, sheets), progressPrinter(out))
			if err != nil {
				return err
			}
			printUploadSummary(out, sum)
			if sum.Status == store.StatusFailed {
				return errors.New("全部日报导入失败")
			}
			return nil
		},
	}
	remote.register(cmd)
	cmd.Flags().StringSliceVar(&sheets, "sheets", nil, "只上传这些工作表 (逗号分隔)")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		remote      remoteFlags
		noArchive   bool
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "监听目录，新放入的工作簿自动上传",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Watch.Directory
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return errors.New("请指定监听目录")
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			out := cmd.OutOrStdout()

			c, err := remote.connect(ctx, a, out)
			if err != nil {
				return err
			}
			defer c.Logout()

			history, err := openHistory(a)
			if err != nil {
				return err
			}
			defer history.Close()

			m := metrics.New()
			if metricsAddr != "" {
				shutdown := serveMetrics(metricsAddr, m, a.logger)
				defer shutdown()
			}
			coord := newCoordinator(a, c, history, m)

			w := newInboxWatcher(a, dir, !noArchive, func(ctx context.Context, path string) error {
				m.WatchedFiles.Inc()
				fmt.Fprintf(out, "发现新文件: %s\n", filepath.Base(path))
				sum, err := coord.UploadSync(ctx, remote.options(path, nil), progressPrinter(out))
				if err != nil {
					return err
				}
				printUploadSummary(out, sum)
				if sum.Status == store.StatusFailed {
					return errors.New("全部日报导入失败")
				}
				return nil
			})
			if err := w.Start(ctx); err != nil {
				return err
			}
			if err := w.SyncExisting(); err != nil {
				a.logger.Warn("scan existing files failed", zap.Error(err))
			}

			fmt.Fprintf(out, "正在监听 %s，按 Ctrl+C 停止...\n", w.Dir())
			<-ctx.Done()
			w.Stop()
			return nil
		},
	}
	remote.register(cmd)
	cmd.Flags().BoolVar(&noArchive, "no-archive", false, "处理后不移动文件")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Prometheus 指标监听地址，如 :9100")
	return cmd
}
