package parser

import (
	"strings"
)

// NormalizeCell 规范化单元格文本：去除首尾空白
func NormalizeCell(value string) string {
	return strings.TrimSpace(value)
}

// ContainsAny 检查字符串是否包含任意一个关键词
func ContainsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// equalsAny 检查字符串是否与任意一个候选完全相等
func equalsAny(text string, candidates []string) bool {
	for _, c := range candidates {
		if text == c {
			return true
		}
	}
	return false
}

// isDigits 纯数字序号（如 "2"、"12"）
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// rowsGrid 基于 [][]string 的网格实现
type rowsGrid [][]string

// Cell 读取单元格（1 起始），越界返回空字符串
func (g rowsGrid) Cell(row, col int) string {
	if row < 1 || row > len(g) {
		return ""
	}
	r := g[row-1]
	if col < 1 || col > len(r) {
		return ""
	}
	return NormalizeCell(r[col-1])
}

// GridFromRows 由行数据构造网格（行列均按 0 起始存放）
func GridFromRows(rows [][]string) Grid {
	return rowsGrid(rows)
}
