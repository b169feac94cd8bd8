package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/config"
)

// newInitConfigCmd 将当前生效的配置（默认值 + 配置文件 + 环境变量）写成 config.toml
func newInitConfigCmd(a *app) *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "生成 config.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := output
			if path == "" {
				path = a.info.Path
			}
			if path == "" {
				path = config.DefaultPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("配置文件已存在: %s (使用 --force 覆盖)", path)
			}
			if err := config.SaveConfig(a.cfg, path); err != nil {
				return fmt.Errorf("写入配置失败: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "配置已写入 %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出路径 (默认: --config 指定的路径或可执行文件目录)")
	cmd.Flags().BoolVar(&force, "force", false, "覆盖已存在的文件")
	return cmd
}
