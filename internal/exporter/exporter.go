package exporter

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/model"
)

// SummarySheet 汇总工作表名称，每份日报一行
const SummarySheet = "汇总"

// ExportOptions 导出选项
type ExportOptions struct {
	Progress func(ProgressEvent)
}

// listSheet 明细工作表：表头 + 每份日报展开的行，首列固定为日期
type listSheet struct {
	name    string
	headers []string
	rows    func(r *model.Report) [][]any
}

var summaryHeaders = []string{
	"日期", "项目", "整体进度", "进度描述", "逐项进度", "明日计划", "工作人员", "在场人数", "机械租赁", "问题反馈", "需求",
}

var listSheets = []listSheet{
	{
		name:    "逐项进度",
		headers: []string{"日期", "序号", "任务", "计划进度", "实际进度", "偏差原因", "影响及措施"},
		rows: func(r *model.Report) [][]any {
			out := make([][]any, 0, len(r.TaskProgressList))
			for _, t := range r.TaskProgressList {
				out = append(out, []any{r.ReportDate, t.TaskNo, t.TaskName, t.PlannedProgress, t.ActualProgress, t.DeviationReason, t.ImpactMeasures})
			}
			return out
		},
	},
	{
		name:    "明日计划",
		headers: []string{"日期", "序号", "任务", "目标", "负责人", "所需资源", "备注"},
		rows: func(r *model.Report) [][]any {
			out := make([][]any, 0, len(r.TomorrowPlans))
			for _, p := range r.TomorrowPlans {
				out = append(out, []any{r.ReportDate, p.PlanNo, p.TaskName, p.Goal, p.ResponsiblePerson, p.RequiredResources, p.Remarks})
			}
			return out
		},
	},
	{
		name:    "工作人员",
		headers: []string{"日期", "序号", "姓名", "工种", "类别", "工作内容", "工时"},
		rows: func(r *model.Report) [][]any {
			out := make([][]any, 0, len(r.WorkerReports))
			for _, w := range r.WorkerReports {
				out = append(out, []any{r.ReportDate, w.SeqNo, w.Name, w.JobType, w.WorkerType, w.WorkContent, w.WorkHours})
			}
			return out
		},
	},
	{
		name:    "机械租赁",
		headers: []string{"日期", "序号", "机械名称", "数量", "吨位", "用途", "台班", "备注"},
		rows: func(r *model.Report) [][]any {
			out := make([][]any, 0, len(r.MachineryRentals))
			for _, m := range r.MachineryRentals {
				out = append(out, []any{r.ReportDate, m.SeqNo, m.MachineName, m.Quantity, m.Tonnage, m.Usage, m.Shift, m.Remarks})
			}
			return out
		},
	},
	{
		name:    "问题反馈",
		headers: []string{"日期", "序号", "问题描述", "原因", "影响", "处理进展"},
		rows: func(r *model.Report) [][]any {
			out := make([][]any, 0, len(r.ProblemFeedbacks))
			for _, p := range r.ProblemFeedbacks {
				out = append(out, []any{r.ReportDate, p.ProblemNo, p.Description, p.Reason, p.Impact, p.Progress})
			}
			return out
		},
	},
	{
		name:    "需求",
		headers: []string{"日期", "序号", "需求描述", "紧急程度", "期望时间"},
		rows: func(r *model.Report) [][]any {
			out := make([][]any, 0, len(r.Requirements))
			for _, q := range r.Requirements {
				out = append(out, []any{r.ReportDate, q.RequirementNo, q.Description, q.UrgencyLevel, q.ExpectedTime})
			}
			return out
		},
	},
}

// Export 将解析结果导出为预览工作簿：汇总表加六张明细表
func Export(reports []*model.Report, opts ExportOptions) (*excelize.File, error) {
	if len(reports) == 0 {
		return nil, errors.New("没有可导出的日报")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	reportProgress(opts.Progress, 5, "写入汇总")
	if err := writeSummary(f, reports, headerStyle); err != nil {
		_ = f.Close()
		return nil, err
	}

	for i, ls := range listSheets {
		reportProgress(opts.Progress, 10+(i+1)*85/len(listSheets), "写入"+ls.name)
		if err := writeList(f, ls, reports, headerStyle); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("写入%s失败: %w", ls.name, err)
		}
	}

	f.SetActiveSheet(0)
	reportProgress(opts.Progress, 100, "导出完成")
	return f, nil
}

func writeSummary(f *excelize.File, reports []*model.Report, headerStyle int) error {
	if err := writeHeader(f, SummarySheet, summaryHeaders, headerStyle); err != nil {
		return err
	}
	row := 2
	for _, r := range reports {
		if r == nil {
			continue
		}
		values := []any{
			r.ReportDate, r.ReporterName, progressLabel(r.OverallProgress), r.ProgressDescription,
			len(r.TaskProgressList), len(r.TomorrowPlans), len(r.WorkerReports), r.OnSitePersonnelCount,
			len(r.MachineryRentals), len(r.ProblemFeedbacks), len(r.Requirements),
		}
		if err := setRow(f, SummarySheet, row, values); err != nil {
			return err
		}
		row++
	}
	return f.SetColWidth(SummarySheet, "D", "D", 40)
}

func writeList(f *excelize.File, ls listSheet, reports []*model.Report, headerStyle int) error {
	if _, err := f.NewSheet(ls.name); err != nil {
		return err
	}
	if err := writeHeader(f, ls.name, ls.headers, headerStyle); err != nil {
		return err
	}
	row := 2
	for _, r := range reports {
		if r == nil {
			continue
		}
		for _, values := range ls.rows(r) {
			if err := setRow(f, ls.name, row, values); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	values := make([]any, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := setRow(f, sheet, 1, values); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, Split: false, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func progressLabel(p model.OverallProgress) string {
	switch p {
	case model.ProgressDelayed:
		return "滞后"
	case model.ProgressAhead:
		return "超前"
	default:
		return "正常"
	}
}
