package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/converter"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/exporter"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/model"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/parser"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/server"
)

func newParseCmd(a *app) *cobra.Command {
	var (
		output string
		sheet  string
		xlsx   string
	)
	cmd := &cobra.Command{
		Use:   "parse <input.xlsx>",
		Short: "解析日报工作簿，输出 JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, results, err := parseWorkbook(a, args[0], sheet)
			if err != nil {
				return err
			}
			summary := summaryWriter(cmd, output)
			for _, res := range results {
				printSheetSummary(summary, res)
			}
			if len(reports) == 0 {
				return errors.New("没有解析出任何日报")
			}
			if xlsx != "" {
				if err := exportPreview(reports, xlsx); err != nil {
					return err
				}
				fmt.Fprintf(summary, "预览工作簿已写入 %s\n", xlsx)
			}
			return emitJSON(cmd, output, reports)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件路径 (默认: 标准输出)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "只解析指定工作表")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "同时导出汇总预览工作簿")
	return cmd
}

// parseWorkbook 解析全部工作表，或只解析 sheet 指定的一个
func parseWorkbook(a *app, path, sheet string) ([]*model.Report, []parser.SheetResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("文件不存在: %s", path)
	}
	wb, err := parser.OpenWorkbook(path)
	if err != nil {
		return nil, nil, fmt.Errorf("打开工作簿失败: %w", err)
	}
	defer wb.Close()

	p := parser.New(wb,
		parser.WithLayout(server.LayoutFromConfig(a.cfg)),
		parser.WithLogger(a.logger.Named("parser")),
	)

	var selected []string
	if sheet != "" {
		selected = []string{sheet}
	}
	results := p.ParseSheets(selected...)
	if sheet != "" && len(results) == 0 {
		return nil, nil, fmt.Errorf("工作表不存在: %s", sheet)
	}

	reports := make([]*model.Report, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			a.logger.Warn("parse sheet failed", zap.String("sheet", res.SheetName), zap.Error(res.Err))
			continue
		}
		reports = append(reports, res.Report)
	}
	return reports, results, nil
}

func exportPreview(reports []*model.Report, path string) error {
	f, err := exporter.Export(reports, exporter.ExportOptions{})
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("写入预览工作簿失败: %w", err)
	}
	return nil
}

func printSheetSummary(w io.Writer, res parser.SheetResult) {
	if res.Err != nil {
		fmt.Fprintf(w, "✗ %s: %v\n", res.SheetName, res.Err)
		return
	}
	r := res.Report
	fmt.Fprintf(w, "✓ %s: 进度 %s, 任务 %d, 计划 %d, 人员 %d(在场 %d), 机械 %d, 问题 %d, 需求 %d\n",
		res.SheetName, r.OverallProgress,
		len(r.TaskProgressList), len(r.TomorrowPlans),
		len(r.WorkerReports), r.OnSitePersonnelCount,
		len(r.MachineryRentals), len(r.ProblemFeedbacks), len(r.Requirements),
	)
}

func newConvertCmd(a *app) *cobra.Command {
	var (
		output     string
		projectID  int64
		reporterID int64
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:   "convert <parsed.json>",
		Short: "将解析结果转换为批量导入请求体",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := converter.LoadReports(args[0])
			if os.IsNotExist(err) {
				return fmt.Errorf("文件不存在: %s", args[0])
			}
			if err != nil {
				return err
			}

			req, err := converter.ToAPIFormat(reports, projectID, reporterID)
			if err != nil {
				return err
			}
			req.OverwriteExisting = overwrite

			summary := summaryWriter(cmd, output)
			if first, last, ok := converter.DateRange(req.Reports); ok {
				fmt.Fprintf(summary, "共 %d 条日报，日期范围 %s ~ %s\n", len(req.Reports), first, last)
			} else {
				fmt.Fprintln(summary, "没有日报")
			}
			return emitJSON(cmd, output, req)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件路径 (默认: 标准输出)")
	cmd.Flags().Int64Var(&projectID, "project-id", 0, "项目ID")
	cmd.Flags().Int64Var(&reporterID, "reporter-id", 0, "填报人ID")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "覆盖已存在的日报")
	_ = cmd.MarkFlagRequired("project-id")
	_ = cmd.MarkFlagRequired("reporter-id")
	return cmd
}

// summaryWriter JSON 写到标准输出时，摘要改写到标准错误
func summaryWriter(cmd *cobra.Command, output string) io.Writer {
	if output == "" {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

func emitJSON(cmd *cobra.Command, output string, v any) error {
	if output != "" {
		if err := converter.WriteJSON(output, v); err != nil {
			return fmt.Errorf("写入输出失败: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "已写入 %s\n", output)
		return nil
	}
	data, err := converter.MarshalIndent(v)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
