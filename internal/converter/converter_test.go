package converter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/model"
)

func sampleReport() *model.Report {
	r := model.NewReport("2025-10-19")
	r.ReporterName = "XX项目"
	r.ProgressDescription = "进度正常，按计划推进"
	r.TaskProgressList = []model.TaskProgress{{TaskNo: "2.1", TaskName: "基础<浇筑>", PlannedProgress: "100%"}}
	r.WorkerReports = []model.WorkerReport{{SeqNo: "1", Name: "张三", JobType: "电工", WorkHours: "8"}}
	r.OnSitePersonnelCount = 1
	r.Requirements = []model.Requirement{{RequirementNo: "1", Description: "增加吊车", UrgencyLevel: "高"}}
	return r
}

func TestToAPIFormat(t *testing.T) {
	req, err := ToAPIFormat([]*model.Report{sampleReport()}, 7, 42)
	require.NoError(t, err)

	assert.Equal(t, int64(7), req.ProjectID)
	assert.Equal(t, int64(42), req.ReporterID)
	assert.False(t, req.OverwriteExisting)
	require.Len(t, req.Reports, 1)

	w := req.Reports[0]
	assert.Equal(t, "2025-10-19", w.ReportDate)
	assert.Equal(t, "XX项目", w.ReporterName)
	assert.Equal(t, model.ProgressNormal, w.OverallProgress)
	assert.Equal(t, 1, w.OnSitePersonnelCount)
	assert.Equal(t, `[{"taskNo":"2.1","taskName":"基础<浇筑>","plannedProgress":"100%","actualProgress":"","deviationReason":"","impactMeasures":""}]`, w.TaskProgressList)
	assert.Equal(t, "[]", w.TomorrowPlans)
	assert.Equal(t, "[]", w.MachineryRentals)
	assert.Equal(t, "[]", w.ProblemFeedbacks)
	assert.Nil(t, w.Weather)
}

func TestToAPIFormat_NilListsBecomeEmptyArrays(t *testing.T) {
	r := &model.Report{ReportDate: "10-20"}
	req, err := ToAPIFormat([]*model.Report{r, nil}, 1, 1)
	require.NoError(t, err)
	require.Len(t, req.Reports, 1)

	w := req.Reports[0]
	for _, text := range []string{w.TaskProgressList, w.TomorrowPlans, w.WorkerReports, w.MachineryRentals, w.ProblemFeedbacks, w.Requirements} {
		assert.Equal(t, "[]", text)
	}
	assert.Equal(t, model.ProgressNormal, w.OverallProgress)
}

func TestToAPIFormat_EmptyInput(t *testing.T) {
	req, err := ToAPIFormat(nil, 1, 2)
	require.NoError(t, err)
	assert.NotNil(t, req.Reports)
	assert.Empty(t, req.Reports)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"projectId":1,"reporterId":2,"overwriteExisting":false,"reports":[]}`, string(data))
}

func TestDecodeLists_RoundTrip(t *testing.T) {
	original := sampleReport()
	req, err := ToAPIFormat([]*model.Report{original}, 1, 1)
	require.NoError(t, err)

	decoded, err := DecodeLists(req.Reports[0])
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodeLists_Malformed(t *testing.T) {
	_, err := DecodeLists(model.ReportWire{ReportDate: "x", WorkerReports: "[{"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestLoadReports(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "parsed.json")
	require.NoError(t, WriteJSON(good, []*model.Report{sampleReport()}))

	reports, err := LoadReports(good)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "张三", reports[0].WorkerReports[0].Name)

	raw, err := os.ReadFile(good)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "基础<浇筑>")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"reportDate":`), 0o644))
	_, err = LoadReports(bad)
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = LoadReports(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadReports_DefaultsProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"reportDate":"10-19"}]`), 0o644))

	reports, err := LoadReports(path)
	require.NoError(t, err)
	assert.Equal(t, model.ProgressNormal, reports[0].OverallProgress)
}

func TestDateRange(t *testing.T) {
	_, _, ok := DateRange(nil)
	assert.False(t, ok)

	first, last, ok := DateRange([]model.ReportWire{{ReportDate: "2025-10-20"}, {ReportDate: "2025-10-18"}, {ReportDate: "2025-10-19"}})
	require.True(t, ok)
	assert.Equal(t, "2025-10-18", first)
	assert.Equal(t, "2025-10-20", last)
}
