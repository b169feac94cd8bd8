package parser

import (
	"fmt"
	"time"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/model"
)

// Grid 工作表单元格网格，行列均从 1 开始，缺失单元格返回空字符串
type Grid interface {
	Cell(row, col int) string
}

// Workbook 只读工作簿
type Workbook interface {
	SheetNames() []string
	ActiveSheet() string
	Sheet(name string) (Grid, error)
	Close() error
}

// Layout 日报模板的行区间（与模板版本绑定）
type Layout struct {
	TaskStartRow    int `json:"taskStartRow"`    // 逐项进度/明日计划起始行
	TaskEndRow      int `json:"taskEndRow"`      // 逐项进度/明日计划结束行（含）
	SectionStartRow int `json:"sectionStartRow"` // 分节扫描起始行
	SectionEndRow   int `json:"sectionEndRow"`   // 分节扫描结束行（含）
}

// DefaultLayout 当前日报模板的默认行区间
func DefaultLayout() Layout {
	return Layout{
		TaskStartRow:    6,
		TaskEndRow:      20,
		SectionStartRow: 20,
		SectionEndRow:   80,
	}
}

// withDefaults 未配置或非法的区间回落到默认值
func (l Layout) withDefaults() Layout {
	def := DefaultLayout()
	if l.TaskStartRow <= 0 || l.TaskEndRow < l.TaskStartRow {
		l.TaskStartRow, l.TaskEndRow = def.TaskStartRow, def.TaskEndRow
	}
	if l.SectionStartRow <= 0 || l.SectionEndRow < l.SectionStartRow {
		l.SectionStartRow, l.SectionEndRow = def.SectionStartRow, def.SectionEndRow
	}
	return l
}

// SheetResult 单个工作表的解析结果
type SheetResult struct {
	SheetName string        `json:"sheetName"`
	Report    *model.Report `json:"report,omitempty"`
	Err       error         `json:"-"`
	Duration  time.Duration `json:"duration"`
}

// SheetError 工作表解析失败
type SheetError struct {
	Sheet string
	Err   error
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("parse sheet %q: %v", e.Sheet, e.Err)
}

func (e *SheetError) Unwrap() error {
	return e.Err
}
