package parser

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/model"
)

type sheetFixture struct {
	name string
	rows map[int][]string
}

func buildWorkbook(t *testing.T, sheets ...sheetFixture) *excelize.File {
	t.Helper()

	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			t.Fatalf("new sheet %s: %v", s.name, err)
		}
		for row, values := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			vals := values
			if err := f.SetSheetRow(s.name, cell, &vals); err != nil {
				t.Fatalf("SetSheetRow %s!%s: %v", s.name, cell, err)
			}
		}
	}
	return f
}

// dailyTemplateRows 按现行日报模板排布的一张完整工作表
func dailyTemplateRows() map[int][]string {
	return map[int][]string{
		1:  {"XX项目项目工作日报"},
		3:  {"一", "项目整体进度", "", "", "进度正常，按计划推进"},
		5:  {"序号", "任务名称", "计划进度", "", "实际进度", "偏差原因", "影响及措施"},
		6:  {"2.1", "基础浇筑", "100%", "", "90%", "下雨", "夜间加班"},
		7:  {"2.2", "", "50%", "", "", "", ""},
		8:  {"3.1", "钢筋绑扎", "完成50%", "", "李四", "钢筋10吨", "无"},
		9:  {"2.3", "模板安装", "50%", "", "50%", "", ""},
		10: {"3.2", " ", "", "", "", "", ""},
		21: {"二", "各工种工作汇报"},
		22: {"序号", "姓名", "工种", "类别", "工作内容", "", "工时"},
		23: {"1", "张三", "电工", "技工", "布线", "", "8"},
		24: {"2", " 李四 ", "焊工", "普工", "焊接", "", "10"},
		25: {"3", "", "木工", "", "", "", ""},
		26: {"三", "机械租赁情况"},
		27: {"序号", "机械名称", "数量", "吨位", "用途", "台班", "备注"},
		28: {"1", "汽车吊", "1", "25", "吊装", "1", "自带司机"},
		29: {"四", "问题反馈及需求"},
		30: {"1", "问题描述", "", "原因", "影响", "进展"},
		31: {"2", "漏浆", "", "模板拼缝不严", "返工", "已处理"},
		32: {"3", "材料进场延迟", "", "供应商", "停工半天", "协调中"},
		33: {"2", "需求描述", "", "紧急程度", "", "期望时间"},
		34: {"1", "增加一台吊车", "", "高", "", "10-20"},
		35: {"", "补充水泥", "", "中", "", "10-21"},
		36: {"五", "其他"},
		37: {"1", "不应出现", "", "", "", ""},
	}
}

func TestExtractReport_DailyTemplate(t *testing.T) {
	t.Parallel()

	f := buildWorkbook(t, sheetFixture{name: "2025-10-19", rows: dailyTemplateRows()})
	p := New(NewXLSXWorkbook(f))

	r, err := p.ParseSheet("2025-10-19")
	if err != nil {
		t.Fatalf("ParseSheet: %v", err)
	}

	if r.ReportDate != "2025-10-19" || r.ReporterName != "XX项目" {
		t.Fatalf("unexpected header: date=%q name=%q", r.ReportDate, r.ReporterName)
	}
	if r.OverallProgress != model.ProgressNormal || r.ProgressDescription != "进度正常，按计划推进" {
		t.Fatalf("unexpected progress: %s %q", r.OverallProgress, r.ProgressDescription)
	}

	if len(r.TaskProgressList) != 2 || r.TaskProgressList[0].TaskNo != "2.1" || r.TaskProgressList[1].TaskNo != "2.3" {
		t.Fatalf("unexpected tasks: %+v", r.TaskProgressList)
	}
	want := model.TaskProgress{
		TaskNo: "2.1", TaskName: "基础浇筑", PlannedProgress: "100%",
		ActualProgress: "90%", DeviationReason: "下雨", ImpactMeasures: "夜间加班",
	}
	if r.TaskProgressList[0] != want {
		t.Fatalf("task[0] = %+v, want %+v", r.TaskProgressList[0], want)
	}
	if len(r.TomorrowPlans) != 1 || r.TomorrowPlans[0].ResponsiblePerson != "李四" || r.TomorrowPlans[0].RequiredResources != "钢筋10吨" {
		t.Fatalf("unexpected plans: %+v", r.TomorrowPlans)
	}

	if len(r.WorkerReports) != 2 {
		t.Fatalf("expected 2 workers, got %+v", r.WorkerReports)
	}
	if r.WorkerReports[1].Name != "李四" || r.WorkerReports[1].WorkHours != "10" {
		t.Fatalf("cells should be trimmed: %+v", r.WorkerReports[1])
	}
	if r.OnSitePersonnelCount != 2 {
		t.Fatalf("onSitePersonnelCount = %d", r.OnSitePersonnelCount)
	}

	if len(r.MachineryRentals) != 1 || r.MachineryRentals[0].MachineName != "汽车吊" || r.MachineryRentals[0].Remarks != "自带司机" {
		t.Fatalf("unexpected machinery: %+v", r.MachineryRentals)
	}

	if len(r.ProblemFeedbacks) != 2 {
		t.Fatalf("expected 2 problems, got %+v", r.ProblemFeedbacks)
	}
	if p0 := r.ProblemFeedbacks[0]; p0.ProblemNo != "2" || p0.Description != "漏浆" || p0.Reason != "模板拼缝不严" || p0.Progress != "已处理" {
		t.Fatalf("unexpected problem[0]: %+v", p0)
	}

	if len(r.Requirements) != 2 {
		t.Fatalf("expected 2 requirements, got %+v", r.Requirements)
	}
	if r.Requirements[0].RequirementNo != "1" || r.Requirements[0].UrgencyLevel != "高" || r.Requirements[0].ExpectedTime != "10-20" {
		t.Fatalf("unexpected requirement[0]: %+v", r.Requirements[0])
	}
	if r.Requirements[1].RequirementNo != "" || r.Requirements[1].Description != "补充水泥" {
		t.Fatalf("unnumbered requirement should be kept: %+v", r.Requirements[1])
	}

	if r.Weather != nil || r.Temperature != nil || r.Remarks != nil {
		t.Fatalf("weather/temperature/remarks must stay empty")
	}
}

func TestExtractReport_NumberingInvariants(t *testing.T) {
	t.Parallel()

	r := ExtractReport("s", GridFromRows(rowsFromMap(dailyTemplateRows())), DefaultLayout())
	for _, task := range r.TaskProgressList {
		if !strings.HasPrefix(task.TaskNo, "2.") {
			t.Fatalf("task %q violates prefix", task.TaskNo)
		}
	}
	for _, plan := range r.TomorrowPlans {
		if !strings.HasPrefix(plan.PlanNo, "3.") {
			t.Fatalf("plan %q violates prefix", plan.PlanNo)
		}
	}
	if r.OnSitePersonnelCount != model.CountOnSitePersonnel(r.WorkerReports) {
		t.Fatalf("personnel count mismatch")
	}
}

func TestClassifyProgress(t *testing.T) {
	t.Parallel()

	cases := map[string]model.OverallProgress{
		"进度正常，按计划推进":   model.ProgressNormal,
		"因降雨进度滞后两天":    model.ProgressDelayed,
		"进度超前":         model.ProgressAhead,
		"":             model.ProgressNormal,
		"今日完成浇筑":       model.ProgressNormal,
		"前期滞后，目前已恢复正常": model.ProgressNormal,
	}
	for desc, want := range cases {
		if got := ClassifyProgress(desc); got != want {
			t.Fatalf("ClassifyProgress(%q) = %s, want %s", desc, got, want)
		}
	}
}

func TestExtractReport_ScalarScenario(t *testing.T) {
	t.Parallel()

	g := GridFromRows([][]string{
		{"XX项目项目工作日报"},
		{},
		{"", "", "", "", "进度正常，按计划推进"},
	})
	r := ExtractReport("2025-10-19", g, DefaultLayout())
	if r.ReportDate != "2025-10-19" || r.ReporterName != "XX项目" || r.OverallProgress != model.ProgressNormal {
		t.Fatalf("unexpected report: %+v", r)
	}
}

func TestScanSection_WorkerEndsAtNextMarker(t *testing.T) {
	t.Parallel()

	g := GridFromRows(rowsFromMap(map[int][]string{
		20: {"二"},
		21: {"", "张三", "电工", "", "", "", "8"},
		22: {"三", "王五"},
		23: {"", "赵六", "木工"},
	}))
	workers := scanSection(g, 20, 80, workerSection)
	if len(workers) != 1 {
		t.Fatalf("expected 1 worker, got %+v", workers)
	}
	want := model.WorkerReport{Name: "张三", JobType: "电工", WorkHours: "8"}
	if workers[0] != want {
		t.Fatalf("worker = %+v, want %+v", workers[0], want)
	}
}

func TestScanSection_EmptyWorkerSection(t *testing.T) {
	t.Parallel()

	g := GridFromRows(rowsFromMap(map[int][]string{
		20: {"二", "各工种工作汇报"},
		21: {"序号", "姓名"},
		22: {"1", ""},
		23: {"三", "机械"},
	}))
	workers := scanSection(g, 20, 80, workerSection)
	if workers == nil || len(workers) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", workers)
	}
}

func TestScanSection_MarkerNeverSeen(t *testing.T) {
	t.Parallel()

	g := GridFromRows(rowsFromMap(map[int][]string{
		25: {"1", "张三"},
	}))
	if got := scanSection(g, 20, 80, workerSection); len(got) != 0 {
		t.Fatalf("rows before the marker must be ignored: %+v", got)
	}
}

func TestScanSection_ProblemScenario(t *testing.T) {
	t.Parallel()

	g := GridFromRows(rowsFromMap(map[int][]string{
		40: {"四"},
		41: {"1", "问题描述"},
		42: {"2", "漏浆"},
	}))
	problems := scanSection(g, 20, 80, problemSection)
	if len(problems) != 1 || problems[0] != (model.ProblemFeedback{ProblemNo: "2", Description: "漏浆"}) {
		t.Fatalf("unexpected problems: %+v", problems)
	}
	if reqs := scanSection(g, 20, 80, requirementSection); len(reqs) != 0 {
		t.Fatalf("requirements must wait for the sub-heading: %+v", reqs)
	}
}

func TestScanSection_ProblemRequiresDigitNumbering(t *testing.T) {
	t.Parallel()

	g := GridFromRows(rowsFromMap(map[int][]string{
		40: {"四"},
		41: {"1", "第一个问题"},
		42: {"2.1", "带小数序号"},
		43: {"", "无序号"},
		44: {"12", "十二号问题"},
	}))
	problems := scanSection(g, 20, 80, problemSection)
	if len(problems) != 1 || problems[0].ProblemNo != "12" {
		t.Fatalf("unexpected problems: %+v", problems)
	}
}

func TestScanSection_RequirementShortHeading(t *testing.T) {
	t.Parallel()

	g := GridFromRows(rowsFromMap(map[int][]string{
		40: {"四"},
		41: {"2", "需求"},
		42: {"序号", "需求描述"},
		43: {"a", "塔吊检修", "", "低", "", "本周"},
		44: {"六"},
		45: {"1", "不应出现"},
	}))
	reqs := scanSection(g, 20, 80, requirementSection)
	if len(reqs) != 1 || reqs[0].RequirementNo != "a" || reqs[0].ExpectedTime != "本周" {
		t.Fatalf("unexpected requirements: %+v", reqs)
	}
}

func TestScanNumbered_IgnoresRowsOutsideWindow(t *testing.T) {
	t.Parallel()

	g := GridFromRows(rowsFromMap(map[int][]string{
		5:  {"2.0", "窗口外"},
		6:  {"2.1", "窗口内"},
		20: {"2.2", "窗口末行"},
		21: {"2.3", "窗口外"},
	}))
	tasks := scanNumbered(g, 6, 20, "2.", buildTaskProgress)
	if len(tasks) != 2 || tasks[0].TaskNo != "2.1" || tasks[1].TaskNo != "2.2" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestExtractReport_EmptySheet(t *testing.T) {
	t.Parallel()

	r := ExtractReport("空表", GridFromRows(nil), Layout{})
	if r.ReporterName != "" || r.OverallProgress != model.ProgressNormal {
		t.Fatalf("unexpected scalars: %+v", r)
	}
	if r.TaskProgressList == nil || r.WorkerReports == nil || r.Requirements == nil {
		t.Fatalf("lists must be empty, not nil")
	}
	if r.OnSitePersonnelCount != 0 {
		t.Fatalf("expected 0 personnel")
	}
}

type fakeWorkbook struct {
	names  []string
	grids  map[string]Grid
	broken map[string]bool
}

func (w *fakeWorkbook) SheetNames() []string { return w.names }
func (w *fakeWorkbook) ActiveSheet() string  { return w.names[0] }
func (w *fakeWorkbook) Close() error         { return nil }

func (w *fakeWorkbook) Sheet(name string) (Grid, error) {
	if w.broken[name] {
		return nil, errors.New("corrupt sheet xml")
	}
	return w.grids[name], nil
}

func TestParser_ParseAllSheets_SkipsFailedSheet(t *testing.T) {
	t.Parallel()

	g := GridFromRows(rowsFromMap(dailyTemplateRows()))
	wb := &fakeWorkbook{
		names:  []string{"10-17", "10-18", "10-19", "10-20"},
		grids:  map[string]Grid{"10-17": g, "10-18": g, "10-19": g, "10-20": g},
		broken: map[string]bool{"10-18": true},
	}

	reports := New(wb).ParseAllSheets()
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	got := []string{reports[0].ReportDate, reports[1].ReportDate, reports[2].ReportDate}
	if strings.Join(got, ",") != "10-17,10-19,10-20" {
		t.Fatalf("unexpected order: %v", got)
	}

	results := New(wb).ParseSheets()
	var sheetErr *SheetError
	if !errors.As(results[1].Err, &sheetErr) || sheetErr.Sheet != "10-18" {
		t.Fatalf("expected SheetError for 10-18, got %v", results[1].Err)
	}
}

func TestParser_ParseAllSheets_AllFailed(t *testing.T) {
	t.Parallel()

	wb := &fakeWorkbook{names: []string{"a"}, broken: map[string]bool{"a": true}}
	reports := New(wb).ParseAllSheets()
	if reports == nil || len(reports) != 0 {
		t.Fatalf("expected empty result, got %#v", reports)
	}
}

// panicGrid 模拟读取时越界的工作表
type panicGrid struct{}

func (panicGrid) Cell(row, col int) string {
	var cells []string
	return cells[row+col]
}

func TestParser_ParseSheets_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	g := GridFromRows(rowsFromMap(dailyTemplateRows()))
	wb := &fakeWorkbook{
		names: []string{"a", "bad", "c"},
		grids: map[string]Grid{"a": g, "bad": panicGrid{}, "c": g},
	}

	reports := New(wb).ParseAllSheets()
	if len(reports) != 2 || reports[0].ReportDate != "a" || reports[1].ReportDate != "c" {
		t.Fatalf("expected reports for a and c, got %d", len(reports))
	}

	results := New(wb).ParseSheets()
	var sheetErr *SheetError
	if !errors.As(results[1].Err, &sheetErr) || sheetErr.Sheet != "bad" {
		t.Fatalf("expected SheetError for bad, got %v", results[1].Err)
	}
	if !strings.Contains(sheetErr.Error(), "panic") || results[1].Report != nil {
		t.Fatalf("unexpected result: %+v", results[1])
	}
}

func TestParser_ParseSheets_Selected(t *testing.T) {
	t.Parallel()

	g := GridFromRows(rowsFromMap(dailyTemplateRows()))
	wb := &fakeWorkbook{
		names: []string{"10-17", "10-18", "10-19"},
		grids: map[string]Grid{"10-17": g, "10-18": g, "10-19": g},
	}

	results := New(wb).ParseSheets("10-19", "10-17", "missing")
	if len(results) != 2 || results[0].SheetName != "10-17" || results[1].SheetName != "10-19" {
		t.Fatalf("unexpected selection: %+v", results)
	}
}

func TestSelectSheets(t *testing.T) {
	t.Parallel()

	all := []string{"a", "b", "c"}
	if got := SelectSheets(all, nil); strings.Join(got, ",") != "a,b,c" {
		t.Fatalf("SelectSheets(nil) = %v", got)
	}
	if got := SelectSheets(all, []string{"c", "a", "x"}); strings.Join(got, ",") != "a,c" {
		t.Fatalf("SelectSheets = %v", got)
	}
}

func TestParser_ParseSheet_DefaultsToActiveSheet(t *testing.T) {
	t.Parallel()

	f := buildWorkbook(t,
		sheetFixture{name: "10-18", rows: map[int][]string{1: {"甲项目工作日报"}}},
		sheetFixture{name: "10-19", rows: map[int][]string{1: {"乙项目工作日报"}}},
	)
	f.SetActiveSheet(1)

	r, err := New(NewXLSXWorkbook(f)).ParseSheet("")
	if err != nil {
		t.Fatalf("ParseSheet: %v", err)
	}
	if r.ReportDate != "10-19" || r.ReporterName != "乙" {
		t.Fatalf("unexpected active sheet report: %+v", r)
	}
}

func TestParseFile_FromDisk(t *testing.T) {
	t.Parallel()

	f := buildWorkbook(t,
		sheetFixture{name: "2025-10-19", rows: dailyTemplateRows()},
		sheetFixture{name: "2025-10-20", rows: map[int][]string{1: {"XX项目项目工作日报"}}},
	)
	path := filepath.Join(t.TempDir(), "日报.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	reports, err := ParseFile(path, WithLayout(DefaultLayout()))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if len(reports[0].WorkerReports) != 2 || len(reports[1].WorkerReports) != 0 {
		t.Fatalf("unexpected workers: %d / %d", len(reports[0].WorkerReports), len(reports[1].WorkerReports))
	}
}

func TestIsSupportedFile(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]bool{
		"a.xlsx": true, "b.XLS": true, "c.xlsm": true, "d.csv": false, "e": false,
	} {
		if got := IsSupportedFile(path); got != want {
			t.Fatalf("IsSupportedFile(%q) = %v", path, got)
		}
	}
}

// rowsFromMap 行号(1 起始) -> 行内容 转为连续行切片
func rowsFromMap(m map[int][]string) [][]string {
	maxRow := 0
	for r := range m {
		if r > maxRow {
			maxRow = r
		}
	}
	rows := make([][]string, maxRow)
	for r, v := range m {
		rows[r-1] = v
	}
	return rows
}
