package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// 上传批次状态
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusPartial    = "partial" // 部分日报导入失败
	StatusFailed     = "failed"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// UploadLog 一次上传批次
type UploadLog struct {
	ID           int64          `json:"id"`
	BatchID      string         `json:"batchId"`
	Filename     string         `json:"filename"`
	FilePath     string         `json:"filePath"`
	ProjectID    int64          `json:"projectId"`
	ReporterID   int64          `json:"reporterId"`
	TotalSheets  int            `json:"totalSheets"`
	ParsedSheets int            `json:"parsedSheets"`
	TotalCount   int            `json:"totalCount"`
	SuccessCount int            `json:"successCount"`
	FailedCount  int            `json:"failedCount"`
	SkippedCount int            `json:"skippedCount"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
	Results      []ReportResult `json:"results,omitempty"`
}

// ReportResult 单条日报的导入结果
type ReportResult struct {
	ReportDate string `json:"reportDate"`
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
}

// UploadSummary 批次完成时回写的统计
type UploadSummary struct {
	TotalSheets  int
	ParsedSheets int
	TotalCount   int
	SuccessCount int
	FailedCount  int
	SkippedCount int
	Status       string
	ErrorMessage string
}

// CreateUploadLog 创建上传批次记录，返回 id
func (s *Store) CreateUploadLog(batchID, filename, filePath string, projectID, reporterID int64) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO upload_logs (batch_id, filename, file_path, project_id, reporter_id, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, batchID, filename, filePath, projectID, reporterID, StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to create upload log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get upload log id: %w", err)
	}
	return id, nil
}

// CompleteUploadLog 回写批次统计与最终状态
func (s *Store) CompleteUploadLog(id int64, sum UploadSummary) error {
	res, err := s.db.Exec(`
		UPDATE upload_logs SET
			total_sheets = ?,
			parsed_sheets = ?,
			total_count = ?,
			success_count = ?,
			failed_count = ?,
			skipped_count = ?,
			status = ?,
			error_message = ?,
			completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, sum.TotalSheets, sum.ParsedSheets, sum.TotalCount, sum.SuccessCount, sum.FailedCount, sum.SkippedCount,
		sum.Status, sum.ErrorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update upload log: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveReportResults 批量写入单条日报结果
func (s *Store) SaveReportResults(logID int64, results []ReportResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO upload_report_results (upload_log_id, report_date, success, message)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.Exec(logID, r.ReportDate, r.Success, r.Message); err != nil {
			return fmt.Errorf("failed to insert report result %s: %w", r.ReportDate, err)
		}
	}
	return tx.Commit()
}

const uploadLogColumns = `id, batch_id, filename, file_path, project_id, reporter_id,
	total_sheets, parsed_sheets, total_count, success_count, failed_count, skipped_count,
	status, error_message, created_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUploadLog(row rowScanner) (*UploadLog, error) {
	var (
		l         UploadLog
		completed sql.NullTime
	)
	err := row.Scan(&l.ID, &l.BatchID, &l.Filename, &l.FilePath, &l.ProjectID, &l.ReporterID,
		&l.TotalSheets, &l.ParsedSheets, &l.TotalCount, &l.SuccessCount, &l.FailedCount, &l.SkippedCount,
		&l.Status, &l.ErrorMessage, &l.CreatedAt, &completed)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		l.CompletedAt = &t
	}
	return &l, nil
}

// ListUploadLogs 最近的上传批次，新的在前
func (s *Store) ListUploadLogs(limit int) ([]UploadLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT `+uploadLogColumns+` FROM upload_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query upload logs: %w", err)
	}
	defer rows.Close()

	logs := make([]UploadLog, 0)
	for rows.Next() {
		l, err := scanUploadLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

// GetUploadLog 查询单个批次及其日报结果
func (s *Store) GetUploadLog(id int64) (*UploadLog, error) {
	l, err := scanUploadLog(s.db.QueryRow(`SELECT `+uploadLogColumns+` FROM upload_logs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload log: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT report_date, success, message FROM upload_report_results
		WHERE upload_log_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query report results: %w", err)
	}
	defer rows.Close()

	l.Results = make([]ReportResult, 0)
	for rows.Next() {
		var r ReportResult
		if err := rows.Scan(&r.ReportDate, &r.Success, &r.Message); err != nil {
			return nil, err
		}
		l.Results = append(l.Results, r)
	}
	return l, rows.Err()
}
