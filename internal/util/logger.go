package util

import "go.uber.org/zap"

// NewLogger debug 为 true 时使用开发配置（可读格式、debug 级别），否则使用生产配置（JSON、info 级别）
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
