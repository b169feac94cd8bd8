package model

// OverallProgress 项目整体进度
type OverallProgress string

const (
	ProgressNormal  OverallProgress = "normal"  // 正常
	ProgressDelayed OverallProgress = "delayed" // 滞后
	ProgressAhead   OverallProgress = "ahead"   // 超前
)

// Report 单个工作表解析出的日报
type Report struct {
	ReportDate           string            `json:"reportDate"`           // 工作表名称
	ReporterName         string            `json:"projectName"`          // A1 去掉“项目工作日报”后的名称
	OverallProgress      OverallProgress   `json:"overallProgress"`      // 整体进度
	ProgressDescription  string            `json:"progressDescription"`  // E3 进度描述
	TaskProgressList     []TaskProgress    `json:"taskProgressList"`     // 逐项进度汇报（2.x）
	TomorrowPlans        []TomorrowPlan    `json:"tomorrowPlans"`        // 明日工作计划（3.x）
	WorkerReports        []WorkerReport    `json:"workerReports"`        // 各工种工作汇报（二）
	MachineryRentals     []MachineryRental `json:"machineryRentals"`     // 机械租赁（三）
	ProblemFeedbacks     []ProblemFeedback `json:"problemFeedbacks"`     // 问题反馈（四）
	Requirements         []Requirement     `json:"requirements"`         // 需求描述（四）
	Weather              *string           `json:"weather"`
	Temperature          *string           `json:"temperature"`
	OnSitePersonnelCount int               `json:"onSitePersonnelCount"` // 有姓名的工作人员数
	Remarks              *string           `json:"remarks"`
}

// TaskProgress 逐项进度
type TaskProgress struct {
	TaskNo          string `json:"taskNo"`
	TaskName        string `json:"taskName"`
	PlannedProgress string `json:"plannedProgress"`
	ActualProgress  string `json:"actualProgress"`
	DeviationReason string `json:"deviationReason"`
	ImpactMeasures  string `json:"impactMeasures"`
}

// TomorrowPlan 明日计划
type TomorrowPlan struct {
	PlanNo            string `json:"planNo"`
	TaskName          string `json:"taskName"`
	Goal              string `json:"goal"`
	ResponsiblePerson string `json:"responsiblePerson"`
	RequiredResources string `json:"requiredResources"`
	Remarks           string `json:"remarks"`
}

// WorkerReport 工种汇报
type WorkerReport struct {
	SeqNo       string `json:"seqNo"`
	Name        string `json:"name"`
	JobType     string `json:"jobType"`
	WorkerType  string `json:"workerType"`
	WorkContent string `json:"workContent"`
	WorkHours   string `json:"workHours"`
}

// MachineryRental 机械租赁
type MachineryRental struct {
	SeqNo       string `json:"seqNo"`
	MachineName string `json:"machineName"`
	Quantity    string `json:"quantity"`
	Tonnage     string `json:"tonnage"`
	Usage       string `json:"usage"`
	Shift       string `json:"shift"`
	Remarks     string `json:"remarks"`
}

// ProblemFeedback 问题反馈
type ProblemFeedback struct {
	ProblemNo   string `json:"problemNo"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
	Impact      string `json:"impact"`
	Progress    string `json:"progress"`
}

// Requirement 需求
type Requirement struct {
	RequirementNo string `json:"requirementNo"`
	Description   string `json:"description"`
	UrgencyLevel  string `json:"urgencyLevel"`
	ExpectedTime  string `json:"expectedTime"`
}

// NewReport 创建空日报，所有列表均为非 nil 空切片
func NewReport(sheetName string) *Report {
	return &Report{
		ReportDate:       sheetName,
		OverallProgress:  ProgressNormal,
		TaskProgressList: []TaskProgress{},
		TomorrowPlans:    []TomorrowPlan{},
		WorkerReports:    []WorkerReport{},
		MachineryRentals: []MachineryRental{},
		ProblemFeedbacks: []ProblemFeedback{},
		Requirements:     []Requirement{},
	}
}

// CountOnSitePersonnel 统计有姓名的工作人员
func CountOnSitePersonnel(workers []WorkerReport) int {
	n := 0
	for _, w := range workers {
		if w.Name != "" {
			n++
		}
	}
	return n
}
