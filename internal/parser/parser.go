package parser

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/model"
)

// Parser 日报工作簿解析器
type Parser struct {
	workbook Workbook
	layout   Layout
	logger   *zap.Logger
}

// Option 解析器选项
type Option func(*Parser)

// WithLayout 指定模板行区间
func WithLayout(layout Layout) Option {
	return func(p *Parser) { p.layout = layout.withDefaults() }
}

// WithLogger 指定日志
func WithLogger(l *zap.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// New 创建解析器，工作簿由调用方负责关闭
func New(wb Workbook, opts ...Option) *Parser {
	p := &Parser{
		workbook: wb,
		layout:   DefaultLayout(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseSheet 解析单个工作表；sheetName 为空时使用活动工作表。
// 读取或提取过程中的 panic 转为 *SheetError，不影响其他工作表
func (p *Parser) ParseSheet(sheetName string) (report *model.Report, err error) {
	if sheetName == "" {
		sheetName = p.workbook.ActiveSheet()
	}
	if sheetName == "" {
		return nil, errors.New("workbook has no sheets")
	}

	defer func() {
		if r := recover(); r != nil {
			report, err = nil, &SheetError{Sheet: sheetName, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	grid, err := p.workbook.Sheet(sheetName)
	if err != nil {
		return nil, &SheetError{Sheet: sheetName, Err: err}
	}
	return ExtractReport(sheetName, grid, p.layout), nil
}

// ParseSheets 按工作簿顺序解析工作表，返回每个工作表的结果（含失败）。
// 指定 selected 时只解析其中出现的工作表，不存在的名称忽略
func (p *Parser) ParseSheets(selected ...string) []SheetResult {
	names := SelectSheets(p.workbook.SheetNames(), selected)
	results := make([]SheetResult, 0, len(names))
	for _, name := range names {
		start := time.Now()
		report, err := p.ParseSheet(name)
		results = append(results, SheetResult{
			SheetName: name,
			Report:    report,
			Err:       err,
			Duration:  time.Since(start),
		})
	}
	return results
}

// SelectSheets 按工作簿顺序保留选中的工作表；selected 为空表示全部
func SelectSheets(all, selected []string) []string {
	if len(selected) == 0 {
		return all
	}
	want := make(map[string]bool, len(selected))
	for _, s := range selected {
		want[s] = true
	}
	out := make([]string, 0, len(selected))
	for _, name := range all {
		if want[name] {
			out = append(out, name)
		}
	}
	return out
}

// ParseAllSheets 解析所有工作表，失败的工作表记录日志后跳过
func (p *Parser) ParseAllSheets() []*model.Report {
	reports := make([]*model.Report, 0)
	for _, res := range p.ParseSheets() {
		if res.Err != nil {
			p.logger.Warn("parse sheet failed", zap.String("sheet", res.SheetName), zap.Error(res.Err))
			continue
		}
		p.logger.Debug("parse sheet done",
			zap.String("sheet", res.SheetName),
			zap.Int("tasks", len(res.Report.TaskProgressList)),
			zap.Int("workers", len(res.Report.WorkerReports)),
			zap.Duration("duration", res.Duration),
		)
		reports = append(reports, res.Report)
	}
	return reports
}

// ExtractReport 从单个网格提取日报，只读访问
func ExtractReport(sheetName string, g Grid, layout Layout) *model.Report {
	layout = layout.withDefaults()
	report := model.NewReport(sheetName)

	extractScalars(g, report)

	report.TaskProgressList = scanNumbered(g, layout.TaskStartRow, layout.TaskEndRow, "2.", buildTaskProgress)
	report.TomorrowPlans = scanNumbered(g, layout.TaskStartRow, layout.TaskEndRow, "3.", buildTomorrowPlan)

	from, to := layout.SectionStartRow, layout.SectionEndRow
	report.WorkerReports = scanSection(g, from, to, workerSection)
	report.OnSitePersonnelCount = model.CountOnSitePersonnel(report.WorkerReports)
	report.MachineryRentals = scanSection(g, from, to, machinerySection)
	report.ProblemFeedbacks = scanSection(g, from, to, problemSection)
	report.Requirements = scanSection(g, from, to, requirementSection)

	return report
}

// ParseFile 打开文件并解析全部工作表
func ParseFile(path string, opts ...Option) ([]*model.Report, error) {
	wb, err := OpenWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	return New(wb, opts...).ParseAllSheets(), nil
}
