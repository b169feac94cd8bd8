package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/config"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/util"
)

var version = "dev"

// app 所有子命令共享的状态，在 PersistentPreRunE 中初始化
type app struct {
	configPath string
	debug      bool

	cfg    *config.AppConfig
	info   config.LoadConfigInfo
	logger *zap.Logger
}

func main() {
	if err := newRootCmd(&app{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "sitereport",
		Short:         "施工现场日报 Excel 解析与批量上传工具",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "配置文件路径 (默认: 可执行文件目录下的 config.toml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "输出调试日志")

	root.AddCommand(
		newParseCmd(a),
		newConvertCmd(a),
		newUploadCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newInitConfigCmd(a),
	)
	return root
}

// init 加载配置并创建日志
func (a *app) init() error {
	var err error
	if a.configPath != "" {
		a.cfg, a.info, err = config.LoadFrom(a.configPath)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
	} else {
		a.cfg, a.info, err = config.LoadConfigWithInfo()
		if err != nil {
			fmt.Fprintf(os.Stderr, "加载配置失败，使用默认配置: %v\n", err)
			a.cfg = config.DefaultConfig()
			a.info = config.LoadConfigInfo{}
		}
	}

	a.logger, err = util.NewLogger(a.debug || a.cfg.Server.Debug)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	return nil
}
