package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/config"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/converter"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/exporter"
	"github.com/yyz05279/rongyao-manager-file-upload-tool/internal/model"
)

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&app{})
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.toml")}, args...))
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func writeDailyWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "2025-10-18"))
	require.NoError(t, f.SetCellValue("2025-10-18", "A1", "盐湖项目项目工作日报"))
	require.NoError(t, f.SetCellValue("2025-10-18", "E3", "进度滞后两天"))
	_, err := f.NewSheet("2025-10-19")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("2025-10-19", "A1", "盐湖项目项目工作日报"))

	path := filepath.Join(t.TempDir(), "日报.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestParseCommand_WritesReports(t *testing.T) {
	input := writeDailyWorkbook(t)
	output := filepath.Join(t.TempDir(), "parsed.json")
	preview := filepath.Join(t.TempDir(), "preview.xlsx")

	stdout, _, err := run(t, "parse", input, "-o", output, "--xlsx", preview)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ 2025-10-18: 进度 delayed")
	assert.Contains(t, stdout, "已写入")

	pf, err := excelize.OpenFile(preview)
	require.NoError(t, err)
	defer pf.Close()
	rows, err := pf.GetRows(exporter.SummarySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	reports, err := converter.LoadReports(output)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "2025-10-18", reports[0].ReportDate)
	assert.Equal(t, "盐湖项目", reports[0].ReporterName)
	assert.Equal(t, model.ProgressNormal, reports[1].OverallProgress)
}

func TestParseCommand_SingleSheetToStdout(t *testing.T) {
	input := writeDailyWorkbook(t)

	stdout, stderr, err := run(t, "parse", input, "--sheet", "2025-10-19")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"reportDate": "2025-10-19"`)
	assert.NotContains(t, stdout, "2025-10-18")
	assert.Contains(t, stderr, "✓ 2025-10-19")
}

func TestParseCommand_UnknownSheet(t *testing.T) {
	input := writeDailyWorkbook(t)

	_, _, err := run(t, "parse", input, "--sheet", "2025-10-30")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "工作表不存在")
}

func TestParseCommand_MissingFile(t *testing.T) {
	_, _, err := run(t, "parse", filepath.Join(t.TempDir(), "nope.xlsx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "文件不存在")
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	parsed := filepath.Join(dir, "parsed.json")
	r1 := model.NewReport("2025-10-19")
	r2 := model.NewReport("2025-10-17")
	require.NoError(t, converter.WriteJSON(parsed, []*model.Report{r1, r2}))

	stdout, stderr, err := run(t, "convert", parsed, "--project-id", "3", "--reporter-id", "9", "--overwrite")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"projectId": 3`)
	assert.Contains(t, stdout, `"overwriteExisting": true`)
	assert.Contains(t, stdout, `"taskProgressList": "[]"`)
	assert.Contains(t, stderr, "共 2 条日报，日期范围 2025-10-17 ~ 2025-10-19")
}

func TestConvertCommand_Errors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := run(t, "convert", filepath.Join(dir, "missing.json"), "--project-id", "1", "--reporter-id", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "文件不存在")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, converter.WriteJSON(bad, map[string]string{"not": "an array"}))
	_, _, err = run(t, "convert", bad, "--project-id", "1", "--reporter-id", "1")
	assert.ErrorIs(t, err, converter.ErrMalformedInput)

	_, _, err = run(t, "convert", bad)
	assert.Error(t, err)
}

func TestUploadCommand_RequiresPassword(t *testing.T) {
	t.Setenv("SITEREPORT_PASSWORD", "")
	input := writeDailyWorkbook(t)

	_, _, err := run(t, "upload", input, "-u", "zhangsan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "请提供密码")
}

func TestInitConfigCommand(t *testing.T) {
	t.Setenv("SITEREPORT_WATCH_DIRECTORY", "/srv/inbox")
	path := filepath.Join(t.TempDir(), "config.toml")

	stdout, _, err := run(t, "init-config", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "配置已写入")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "/srv/inbox")
	_, info, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.True(t, info.FromFile)
	assert.True(t, info.PortSpecified)

	_, _, err = run(t, "init-config", "-o", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "已存在")

	_, _, err = run(t, "init-config", "-o", path, "--force")
	assert.NoError(t, err)
}
