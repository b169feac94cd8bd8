package model

// ReportWire 批量导入接口中的单条日报，六个列表字段为 JSON 文本
type ReportWire struct {
	ReportDate           string          `json:"reportDate" validate:"required"`
	ReporterName         string          `json:"projectName"`
	OverallProgress      OverallProgress `json:"overallProgress" validate:"omitempty,oneof=normal delayed ahead"`
	ProgressDescription  string          `json:"progressDescription"`
	TaskProgressList     string          `json:"taskProgressList"`
	TomorrowPlans        string          `json:"tomorrowPlans"`
	WorkerReports        string          `json:"workerReports"`
	MachineryRentals     string          `json:"machineryRentals"`
	ProblemFeedbacks     string          `json:"problemFeedbacks"`
	Requirements         string          `json:"requirements"`
	Weather              *string         `json:"weather"`
	Temperature          *string         `json:"temperature"`
	OnSitePersonnelCount int             `json:"onSitePersonnelCount" validate:"gte=0"`
	Remarks              *string         `json:"remarks"`
}

// BatchImportRequest 批量导入请求体
type BatchImportRequest struct {
	ProjectID         int64        `json:"projectId" validate:"gt=0"`
	ReporterID        int64        `json:"reporterId" validate:"gt=0"`
	OverwriteExisting bool         `json:"overwriteExisting"`
	Reports           []ReportWire `json:"reports" validate:"required,min=1,dive"`
}

// BatchImportResult 批量导入结果
type BatchImportResult struct {
	TotalCount     int                  `json:"totalCount"`
	SuccessCount   int                  `json:"successCount"`
	FailedCount    int                  `json:"failedCount"`
	SkippedCount   int                  `json:"skippedCount"`
	SuccessReports []ReportImportDetail `json:"successReports"`
	FailedReports  []ReportImportDetail `json:"failedReports"`
}

// ReportImportDetail 单条日报的导入明细
type ReportImportDetail struct {
	ReportDate string `json:"reportDate"`
	ReportID   int64  `json:"reportId,omitempty"`
	Message    string `json:"message,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// UserInfo 登录用户
type UserInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// LoginResult 登录结果
type LoginResult struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	User         UserInfo `json:"user"`
}

// ProjectInfo 当前用户负责的项目
type ProjectInfo struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	TypeDisplayName     string `json:"typeDisplayName"`
	StatusDisplayName   string `json:"statusDisplayName"`
	Manager             string `json:"manager"`
	CompletionProgress  *int   `json:"completionProgress,omitempty"`
	EstimatedSaltAmount *int   `json:"estimatedSaltAmount,omitempty"`
	ActualSaltAmount    *int   `json:"actualSaltAmount,omitempty"`
}
