package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/client"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/converter"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/metrics"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/model"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/parser"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/store"
)

var (
	// ErrBusy 已有上传在进行
	ErrBusy = errors.New("another upload is in progress")
	// ErrNoReports 工作簿中没有解析出日报
	ErrNoReports = errors.New("Excel文件中没有找到有效数据")
)

// 进度百分比
const (
	percentStart     = 0
	percentParsing   = 10
	percentParsed    = 30
	percentConverted = 40
	percentSubmit    = 50
	percentSubmitted = 80
	percentDone      = 100
)

// Uploader 批量导入接口
type Uploader interface {
	BatchImport(ctx context.Context, req *model.BatchImportRequest) (*model.BatchImportResult, error)
}

// Coordinator 上传协调器：解析、转换、提交，同一时间只允许一个上传
type Coordinator struct {
	uploader Uploader
	store    *store.Store
	metrics  *metrics.Metrics
	logger   *zap.Logger
	layout   parser.Layout
	sem      *semaphore.Weighted
}

// Option 协调器选项
type Option func(*Coordinator)

// WithStore 记录上传历史
func WithStore(s *store.Store) Option { return func(c *Coordinator) { c.store = s } }

// WithMetrics 记录指标
func WithMetrics(m *metrics.Metrics) Option { return func(c *Coordinator) { c.metrics = m } }

// WithLayout 模板行区间
func WithLayout(l parser.Layout) Option { return func(c *Coordinator) { c.layout = l } }

// WithLogger 指定日志
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator 创建上传协调器
func NewCoordinator(uploader Uploader, opts ...Option) *Coordinator {
	c := &Coordinator{
		uploader: uploader,
		logger:   zap.NewNop(),
		layout:   parser.DefaultLayout(),
		sem:      semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadOptions 上传选项
type UploadOptions struct {
	FilePath          string
	Filename          string // 显示名称，为空时取 FilePath 的文件名
	ProjectID         int64
	ReporterID        int64
	OverwriteExisting bool
	Sheets            []string // 只上传这些工作表，为空表示全部
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string    `json:"type"` // start/progress/sheet_done/sheet_error/error/done
	Message   string    `json:"message"`
	Percent   int       `json:"percent"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UploadSummary 上传结果汇总
type UploadSummary struct {
	BatchID      string                   `json:"batchId"`
	LogID        int64                    `json:"logId,omitempty"`
	Filename     string                   `json:"filename"`
	TotalSheets  int                      `json:"totalSheets"`
	ParsedSheets int                      `json:"parsedSheets"`
	Status       string                   `json:"status"`
	Result       *model.BatchImportResult `json:"result,omitempty"`
	Duration     time.Duration            `json:"duration"`
}

// Upload 异步上传，返回进度通道；已有上传进行中时返回 ErrBusy
func (c *Coordinator) Upload(ctx context.Context, opts UploadOptions) (<-chan ProgressEvent, error) {
	if !c.sem.TryAcquire(1) {
		return nil, ErrBusy
	}

	progressChan := make(chan ProgressEvent, 100)
	go func() {
		defer close(progressChan)
		defer c.sem.Release(1)
		_, _ = c.run(ctx, opts, func(e ProgressEvent) {
			if isTerminal(e.Type) {
				select {
				case progressChan <- e:
				case <-ctx.Done():
				}
				return
			}
			sendProgress(progressChan, e)
		})
	}()
	return progressChan, nil
}

// UploadSync 排队等待后同步上传，onEvent 可为 nil
func (c *Coordinator) UploadSync(ctx context.Context, opts UploadOptions, onEvent func(ProgressEvent)) (*UploadSummary, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	if onEvent == nil {
		onEvent = func(ProgressEvent) {}
	}
	return c.run(ctx, opts, onEvent)
}

// uploadRun 单次上传的状态
type uploadRun struct {
	opts    UploadOptions
	emit    func(ProgressEvent)
	summary *UploadSummary
	start   time.Time
}

func (r *uploadRun) event(typ string, percent int, msg string, data any) {
	r.emit(ProgressEvent{Type: typ, Message: msg, Percent: percent, Data: data, Timestamp: time.Now()})
}

func (c *Coordinator) run(ctx context.Context, opts UploadOptions, emit func(ProgressEvent)) (*UploadSummary, error) {
	if opts.Filename == "" {
		opts.Filename = filepath.Base(opts.FilePath)
	}
	r := &uploadRun{
		opts:  opts,
		emit:  emit,
		start: time.Now(),
		summary: &UploadSummary{
			BatchID:  uuid.NewString(),
			Filename: opts.Filename,
			Status:   store.StatusProcessing,
		},
	}
	logger := c.logger.With(zap.String("batch_id", r.summary.BatchID), zap.String("file", opts.Filename))

	r.event("start", percentStart, "开始上传日报", map[string]any{
		"batchId":  r.summary.BatchID,
		"filename": opts.Filename,
	})

	if c.store != nil {
		id, err := c.store.CreateUploadLog(r.summary.BatchID, opts.Filename, opts.FilePath, opts.ProjectID, opts.ReporterID)
		if err != nil {
			logger.Warn("create upload log failed", zap.Error(err))
		}
		r.summary.LogID = id
	}

	r.event("progress", percentParsing, "正在解析Excel文件", nil)
	reports, err := c.parse(r, logger)
	if err != nil {
		return r.summary, c.fail(r, logger, err)
	}
	r.event("progress", percentParsed, fmt.Sprintf("解析完成，共 %d 条日报", len(reports)), nil)

	req, err := converter.ToAPIFormat(reports, opts.ProjectID, opts.ReporterID)
	if err != nil {
		return r.summary, c.fail(r, logger, err)
	}
	req.OverwriteExisting = opts.OverwriteExisting
	r.event("progress", percentConverted, "数据转换完成", nil)

	r.event("progress", percentSubmit, "正在上传到服务器", nil)
	result, err := c.uploader.BatchImport(ctx, req)
	if err != nil {
		return r.summary, c.fail(r, logger, err)
	}
	r.event("progress", percentSubmitted, "服务器已返回结果", nil)

	r.summary.Result = result
	r.summary.Status = statusOf(result)
	r.summary.Duration = time.Since(r.start)
	c.record(r, logger, "")
	if r.summary.Status != store.StatusFailed {
		c.rememberProject(opts.ProjectID, logger)
	}

	if c.metrics != nil {
		c.metrics.ReportsShipped.WithLabelValues("success").Add(float64(result.SuccessCount))
		c.metrics.ReportsShipped.WithLabelValues("failed").Add(float64(result.FailedCount))
		c.metrics.ReportsShipped.WithLabelValues("skipped").Add(float64(result.SkippedCount))
	}
	logger.Info("upload finished",
		zap.String("status", r.summary.Status),
		zap.Int("success", result.SuccessCount),
		zap.Int("failed", result.FailedCount),
		zap.Duration("duration", r.summary.Duration),
	)

	r.event("done", percentDone, fmt.Sprintf("上传完成：成功 %d 条，失败 %d 条，跳过 %d 条",
		result.SuccessCount, result.FailedCount, result.SkippedCount), r.summary)
	return r.summary, nil
}

// parse 解析工作簿，单个工作表失败不影响其他工作表
func (c *Coordinator) parse(r *uploadRun, logger *zap.Logger) ([]*model.Report, error) {
	wb, err := parser.OpenWorkbook(r.opts.FilePath)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	p := parser.New(wb, parser.WithLayout(c.layout), parser.WithLogger(logger))
	results := p.ParseSheets(r.opts.Sheets...)
	r.summary.TotalSheets = len(results)

	reports := make([]*model.Report, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			logger.Warn("parse sheet failed", zap.String("sheet", res.SheetName), zap.Error(res.Err))
			c.countSheet("error")
			r.event("sheet_error", percentParsing, fmt.Sprintf("解析工作表 %s 失败: %v", res.SheetName, res.Err), map[string]any{"sheet": res.SheetName})
			continue
		}
		c.countSheet("ok")
		reports = append(reports, res.Report)
		r.event("sheet_done", percentParsing, fmt.Sprintf("成功解析工作表: %s", res.SheetName), map[string]any{
			"sheet":   res.SheetName,
			"tasks":   len(res.Report.TaskProgressList),
			"workers": len(res.Report.WorkerReports),
		})
	}
	r.summary.ParsedSheets = len(reports)

	if len(reports) == 0 {
		return nil, ErrNoReports
	}
	return reports, nil
}

func (c *Coordinator) countSheet(result string) {
	if c.metrics != nil {
		c.metrics.SheetsParsed.WithLabelValues(result).Inc()
	}
}

func statusOf(res *model.BatchImportResult) string {
	switch {
	case res.FailedCount == 0:
		return store.StatusCompleted
	case res.SuccessCount == 0 && res.SkippedCount == 0:
		return store.StatusFailed
	default:
		return store.StatusPartial
	}
}

func (c *Coordinator) fail(r *uploadRun, logger *zap.Logger, err error) error {
	r.summary.Status = store.StatusFailed
	r.summary.Duration = time.Since(r.start)
	msg := client.UserMessage(err)
	c.record(r, logger, msg)

	var apiErr *client.APIError
	if c.metrics != nil && errors.As(err, &apiErr) {
		c.metrics.APIErrors.WithLabelValues(string(apiErr.Kind)).Inc()
	}
	logger.Error("upload failed", zap.Error(err))

	r.event("error", percentDone, "上传失败："+msg, r.summary)
	return fmt.Errorf("upload %s: %w", r.opts.Filename, err)
}

// record 回写上传历史与批次指标
func (c *Coordinator) record(r *uploadRun, logger *zap.Logger, errMsg string) {
	if c.metrics != nil {
		c.metrics.Uploads.WithLabelValues(r.summary.Status).Inc()
		c.metrics.UploadDuration.Observe(r.summary.Duration.Seconds())
	}
	if c.store == nil || r.summary.LogID == 0 {
		return
	}

	sum := store.UploadSummary{
		TotalSheets:  r.summary.TotalSheets,
		ParsedSheets: r.summary.ParsedSheets,
		Status:       r.summary.Status,
		ErrorMessage: errMsg,
	}
	if res := r.summary.Result; res != nil {
		sum.TotalCount = res.TotalCount
		sum.SuccessCount = res.SuccessCount
		sum.FailedCount = res.FailedCount
		sum.SkippedCount = res.SkippedCount

		results := make([]store.ReportResult, 0, len(res.SuccessReports)+len(res.FailedReports))
		for _, d := range res.SuccessReports {
			results = append(results, store.ReportResult{ReportDate: d.ReportDate, Success: true, Message: d.Message})
		}
		for _, d := range res.FailedReports {
			msg := d.Reason
			if msg == "" {
				msg = d.Message
			}
			results = append(results, store.ReportResult{ReportDate: d.ReportDate, Success: false, Message: msg})
		}
		if err := c.store.SaveReportResults(r.summary.LogID, results); err != nil {
			logger.Warn("save report results failed", zap.Error(err))
		}
	}
	if err := c.store.CompleteUploadLog(r.summary.LogID, sum); err != nil {
		logger.Warn("complete upload log failed", zap.Error(err))
	}
}

// rememberProject 记录最近一次成功导入的项目，供下次上传缺省使用
func (c *Coordinator) rememberProject(projectID int64, logger *zap.Logger) {
	if c.store == nil || projectID <= 0 {
		return
	}
	if err := c.store.SetSetting(store.SettingLastProjectID, strconv.FormatInt(projectID, 10)); err != nil {
		logger.Warn("remember project failed", zap.Error(err))
	}
}

// isTerminal done/error 事件必须送达
func isTerminal(typ string) bool {
	return typ == "done" || typ == "error"
}

// sendProgress 发送进度事件，通道已满时丢弃
func sendProgress(ch chan ProgressEvent, event ProgressEvent) {
	select {
	case ch <- event:
	default:
	}
}
