package exporter

// ProgressEvent 导出进度
type ProgressEvent struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage"`
}

// reportProgress 百分比限制在 0..100；fn 为 nil 时忽略
func reportProgress(fn func(ProgressEvent), percent int, stage string) {
	if fn == nil {
		return
	}
	fn(ProgressEvent{Percent: min(max(percent, 0), 100), Stage: stage})
}
