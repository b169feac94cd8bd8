package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// SupportedExtensions 支持的工作簿扩展名
var SupportedExtensions = []string{".xlsx", ".xlsm", ".xls"}

// IsSupportedFile 判断文件扩展名是否支持
func IsSupportedFile(path string) bool {
	return equalsAny(strings.ToLower(filepath.Ext(path)), SupportedExtensions)
}

// OpenWorkbook 按扩展名打开工作簿：.xls 使用 BIFF 读取，其余走 excelize
func OpenWorkbook(path string) (Workbook, error) {
	if strings.ToLower(filepath.Ext(path)) == ".xls" {
		return openXLS(path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel: %w", err)
	}
	return NewXLSXWorkbook(f), nil
}

// NewXLSXWorkbook 包装已打开的 excelize 文件
func NewXLSXWorkbook(f *excelize.File) Workbook {
	return &xlsxWorkbook{file: f}
}

type xlsxWorkbook struct {
	file *excelize.File
}

func (w *xlsxWorkbook) SheetNames() []string {
	return w.file.GetSheetList()
}

func (w *xlsxWorkbook) ActiveSheet() string {
	return w.file.GetSheetName(w.file.GetActiveSheetIndex())
}

func (w *xlsxWorkbook) Sheet(name string) (Grid, error) {
	rows, err := w.file.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	return rowsGrid(rows), nil
}

func (w *xlsxWorkbook) Close() error {
	return w.file.Close()
}

// openXLS 工作表按需从文件读取，文件句柄随工作簿关闭
func openXLS(path string) (Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xls: %w", err)
	}
	wb, err := xls.OpenReader(f, "utf-8")
	if err == nil && wb == nil {
		err = errors.New("no workbook stream")
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to open xls: %w", err)
	}
	return &xlsWorkbook{wb: wb, closer: f}, nil
}

type xlsWorkbook struct {
	wb     *xls.WorkBook
	closer io.Closer
}

func (w *xlsWorkbook) SheetNames() []string {
	names := make([]string, 0, w.wb.NumSheets())
	for i := 0; i < w.wb.NumSheets(); i++ {
		if sheet := w.wb.GetSheet(i); sheet != nil {
			names = append(names, sheet.Name)
		}
	}
	return names
}

// ActiveSheet .xls 不记录活动工作表，取第一个
func (w *xlsWorkbook) ActiveSheet() string {
	names := w.SheetNames()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func (w *xlsWorkbook) Sheet(name string) (Grid, error) {
	for i := 0; i < w.wb.NumSheets(); i++ {
		sheet := w.wb.GetSheet(i)
		if sheet == nil || sheet.Name != name {
			continue
		}

		rows := make([][]string, 0, int(sheet.MaxRow)+1)
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := xlsRow(sheet, r)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cols := make([]string, row.LastCol())
			for c := range cols {
				cols[c] = row.Col(c)
			}
			rows = append(rows, cols)
		}
		return rowsGrid(rows), nil
	}
	return nil, fmt.Errorf("sheet %s does not exist", name)
}

// xlsRow 空行返回 nil；WorkSheet.Row 对不存在的行会空指针 panic
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

func (w *xlsWorkbook) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
