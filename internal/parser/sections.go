package parser

import (
	"strings"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/model"
)

// 表头标题中需要去掉的固定后缀
const reportTitleMarker = "项目工作日报"

// 按顺序匹配，先命中者生效；都未命中视为正常
var progressKeywords = []struct {
	progress model.OverallProgress
	keywords []string
}{
	{model.ProgressNormal, []string{"正常"}},
	{model.ProgressDelayed, []string{"滞后"}},
	{model.ProgressAhead, []string{"超前"}},
}

// ClassifyProgress 根据进度描述判断整体进度
func ClassifyProgress(description string) model.OverallProgress {
	for _, pk := range progressKeywords {
		if ContainsAny(description, pk.keywords) {
			return pk.progress
		}
	}
	return model.ProgressNormal
}

// extractScalars 读取固定单元格：A1 项目名称、E3 进度描述
func extractScalars(g Grid, report *model.Report) {
	report.ReporterName = strings.TrimSpace(strings.ReplaceAll(g.Cell(1, 1), reportTitleMarker, ""))
	report.ProgressDescription = g.Cell(3, 5)
	report.OverallProgress = ClassifyProgress(report.ProgressDescription)
}

// scanNumbered 固定行区间内按序号前缀筛选，且第 2 列必须有内容
func scanNumbered[T any](g Grid, from, to int, prefix string, build func(g Grid, row int) T) []T {
	out := make([]T, 0)
	for row := from; row <= to; row++ {
		if !strings.HasPrefix(g.Cell(row, 1), prefix) || g.Cell(row, 2) == "" {
			continue
		}
		out = append(out, build(g, row))
	}
	return out
}

func buildTaskProgress(g Grid, row int) model.TaskProgress {
	return model.TaskProgress{
		TaskNo:          g.Cell(row, 1),
		TaskName:        g.Cell(row, 2),
		PlannedProgress: g.Cell(row, 3),
		ActualProgress:  g.Cell(row, 5),
		DeviationReason: g.Cell(row, 6),
		ImpactMeasures:  g.Cell(row, 7),
	}
}

func buildTomorrowPlan(g Grid, row int) model.TomorrowPlan {
	return model.TomorrowPlan{
		PlanNo:            g.Cell(row, 1),
		TaskName:          g.Cell(row, 2),
		Goal:              g.Cell(row, 3),
		ResponsiblePerson: g.Cell(row, 5),
		RequiredResources: g.Cell(row, 6),
		Remarks:           g.Cell(row, 7),
	}
}

// scanState 分节扫描状态
type scanState int

const (
	stateBeforeSection scanState = iota
	stateInSection
	stateDone
)

// rowAction 分节内子状态对当前行的处理
type rowAction int

const (
	rowDefault rowAction = iota // 按常规规则处理
	rowSkip                     // 丢弃当前行
	rowOpen                     // 子标题行，开始采集
	rowStop                     // 结束本节
)

// sectionRule 单个分节的扫描配置
type sectionRule[T any] struct {
	marker      string   // 本节标记（第 1 列）
	stopMarkers []string // 后续分节标记，遇到即结束
	headers     []string // 表头文字，第 1 列或正文列完全相等则跳过
	bodyCol     int      // 正文列，为空则不产出记录
	gated       bool     // 需先遇到子标题才开始采集
	inspect     func(key, body string) rowAction
	keep        func(key string) bool
	build       func(g Grid, row int) T
}

// scanSection 在 [from, to] 内定位分节并提取记录
func scanSection[T any](g Grid, from, to int, rule sectionRule[T]) []T {
	out := make([]T, 0)
	state := stateBeforeSection
	collecting := !rule.gated

	for row := from; row <= to && state != stateDone; row++ {
		key := g.Cell(row, 1)

		if state == stateBeforeSection {
			if key == rule.marker {
				state = stateInSection
			}
			continue
		}

		if equalsAny(key, rule.stopMarkers) {
			state = stateDone
			continue
		}

		body := g.Cell(row, rule.bodyCol)
		if rule.inspect != nil {
			switch rule.inspect(key, body) {
			case rowSkip:
				continue
			case rowOpen:
				collecting = true
				continue
			case rowStop:
				state = stateDone
				continue
			}
		}

		if !collecting || equalsAny(key, rule.headers) || equalsAny(body, rule.headers) || body == "" {
			continue
		}
		if rule.keep != nil && !rule.keep(key) {
			continue
		}
		out = append(out, rule.build(g, row))
	}
	return out
}

var requirementHeadings = []string{"需求描述", "需求"}

// isRequirementHeading “四”节中需求部分的子标题行：序号 2 + 需求描述
func isRequirementHeading(key, body string) bool {
	return key == "2" && equalsAny(body, requirementHeadings)
}

var workerSection = sectionRule[model.WorkerReport]{
	marker:      "二",
	stopMarkers: []string{"三", "四", "五"},
	headers:     []string{"姓名", "序号"},
	bodyCol:     2,
	build: func(g Grid, row int) model.WorkerReport {
		return model.WorkerReport{
			SeqNo:       g.Cell(row, 1),
			Name:        g.Cell(row, 2),
			JobType:     g.Cell(row, 3),
			WorkerType:  g.Cell(row, 4),
			WorkContent: g.Cell(row, 5),
			WorkHours:   g.Cell(row, 7),
		}
	},
}

var machinerySection = sectionRule[model.MachineryRental]{
	marker:      "三",
	stopMarkers: []string{"四", "五", "六"},
	headers:     []string{"机械名称", "序号"},
	bodyCol:     2,
	build: func(g Grid, row int) model.MachineryRental {
		return model.MachineryRental{
			SeqNo:       g.Cell(row, 1),
			MachineName: g.Cell(row, 2),
			Quantity:    g.Cell(row, 3),
			Tonnage:     g.Cell(row, 4),
			Usage:       g.Cell(row, 5),
			Shift:       g.Cell(row, 6),
			Remarks:     g.Cell(row, 7),
		}
	},
}

// 问题反馈：序号为纯数字且不为 "1"（"1" 行是问题部分的子标题），遇到需求子标题结束
var problemSection = sectionRule[model.ProblemFeedback]{
	marker:      "四",
	stopMarkers: []string{"五", "六", "七"},
	headers:     []string{"问题描述", "序号"},
	bodyCol:     2,
	inspect: func(key, body string) rowAction {
		if isRequirementHeading(key, body) {
			return rowStop
		}
		return rowDefault
	},
	keep: func(key string) bool {
		return isDigits(key) && key != "1"
	},
	build: func(g Grid, row int) model.ProblemFeedback {
		return model.ProblemFeedback{
			ProblemNo:   g.Cell(row, 1),
			Description: g.Cell(row, 2),
			Reason:      g.Cell(row, 4),
			Impact:      g.Cell(row, 5),
			Progress:    g.Cell(row, 6),
		}
	},
}

// 需求：见到需求子标题之后，不再校验序号
var requirementSection = sectionRule[model.Requirement]{
	marker:      "四",
	stopMarkers: []string{"五", "六", "七"},
	headers:     []string{"需求描述", "序号"},
	bodyCol:     2,
	gated:       true,
	inspect: func(key, body string) rowAction {
		if isRequirementHeading(key, body) {
			return rowOpen
		}
		return rowDefault
	},
	build: func(g Grid, row int) model.Requirement {
		return model.Requirement{
			RequirementNo: g.Cell(row, 1),
			Description:   g.Cell(row, 2),
			UrgencyLevel:  g.Cell(row, 4),
			ExpectedTime:  g.Cell(row, 6),
		}
	},
}
