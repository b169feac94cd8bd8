// Package converter 在解析结果与批量导入接口格式之间转换
package converter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/model"
)

// ErrMalformedInput 输入 JSON 无法解析
var ErrMalformedInput = errors.New("malformed input")

// ToAPIFormat 将日报列表转换为批量导入请求，列表字段编码为紧凑 JSON 文本
func ToAPIFormat(reports []*model.Report, projectID, reporterID int64) (*model.BatchImportRequest, error) {
	req := &model.BatchImportRequest{
		ProjectID:  projectID,
		ReporterID: reporterID,
		Reports:    make([]model.ReportWire, 0, len(reports)),
	}
	for _, r := range reports {
		if r == nil {
			continue
		}
		wire, err := toWire(r)
		if err != nil {
			return nil, fmt.Errorf("convert report %s: %w", r.ReportDate, err)
		}
		req.Reports = append(req.Reports, wire)
	}
	return req, nil
}

func toWire(r *model.Report) (model.ReportWire, error) {
	w := model.ReportWire{
		ReportDate:           r.ReportDate,
		ReporterName:         r.ReporterName,
		OverallProgress:      r.OverallProgress,
		ProgressDescription:  r.ProgressDescription,
		Weather:              r.Weather,
		Temperature:          r.Temperature,
		OnSitePersonnelCount: r.OnSitePersonnelCount,
		Remarks:              r.Remarks,
	}
	if w.OverallProgress == "" {
		w.OverallProgress = model.ProgressNormal
	}

	fields := []struct {
		dst *string
		src any
	}{
		{&w.TaskProgressList, r.TaskProgressList},
		{&w.TomorrowPlans, r.TomorrowPlans},
		{&w.WorkerReports, r.WorkerReports},
		{&w.MachineryRentals, r.MachineryRentals},
		{&w.ProblemFeedbacks, r.ProblemFeedbacks},
		{&w.Requirements, r.Requirements},
	}
	for _, f := range fields {
		text, err := compactJSON(f.src)
		if err != nil {
			return w, err
		}
		*f.dst = text
	}
	return w, nil
}

// compactJSON 紧凑编码，保留中文原文；nil 切片编码为 []
func compactJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	if string(out) == "null" {
		return "[]", nil
	}
	return string(out), nil
}

// DecodeLists 还原接口格式中的列表字段
func DecodeLists(w model.ReportWire) (*model.Report, error) {
	r := model.NewReport(w.ReportDate)
	r.ReporterName = w.ReporterName
	r.OverallProgress = w.OverallProgress
	r.ProgressDescription = w.ProgressDescription
	r.Weather = w.Weather
	r.Temperature = w.Temperature
	r.OnSitePersonnelCount = w.OnSitePersonnelCount
	r.Remarks = w.Remarks

	fields := []struct {
		name string
		text string
		dst  any
	}{
		{"taskProgressList", w.TaskProgressList, &r.TaskProgressList},
		{"tomorrowPlans", w.TomorrowPlans, &r.TomorrowPlans},
		{"workerReports", w.WorkerReports, &r.WorkerReports},
		{"machineryRentals", w.MachineryRentals, &r.MachineryRentals},
		{"problemFeedbacks", w.ProblemFeedbacks, &r.ProblemFeedbacks},
		{"requirements", w.Requirements, &r.Requirements},
	}
	for _, f := range fields {
		if f.text == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.text), f.dst); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, f.name, err)
		}
	}
	return r, nil
}

// LoadReports 读取 parse 命令输出的 JSON 数组
func LoadReports(path string) ([]*model.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var reports []*model.Report
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	for _, r := range reports {
		if r != nil && r.OverallProgress == "" {
			r.OverallProgress = model.ProgressNormal
		}
	}
	return reports, nil
}

// WriteJSON 以缩进格式写出，保留中文原文
func WriteJSON(path string, v any) error {
	data, err := MarshalIndent(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// MarshalIndent 两空格缩进、不转义 HTML 的 JSON
func MarshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DateRange 返回最早与最晚的日报日期（按字符串排序）
func DateRange(reports []model.ReportWire) (first, last string, ok bool) {
	if len(reports) == 0 {
		return "", "", false
	}
	dates := make([]string, len(reports))
	for i, r := range reports {
		dates[i] = r.ReportDate
	}
	sort.Strings(dates)
	return dates[0], dates[len(dates)-1], true
}
