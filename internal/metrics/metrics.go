// Package metrics 上传流程的 Prometheus 指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitereport"

// Metrics 指标集合，使用独立的 Registry
type Metrics struct {
	registry *prometheus.Registry

	SheetsParsed   *prometheus.CounterVec // result=ok|error
	ReportsShipped *prometheus.CounterVec // result=success|failed|skipped
	Uploads        *prometheus.CounterVec // status=completed|partial|failed
	UploadDuration prometheus.Histogram
	APIErrors      *prometheus.CounterVec // kind
	WatchedFiles   prometheus.Counter
}

// New 创建并注册全部指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SheetsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_parsed_total",
			Help:      "Worksheets processed by the extractor.",
		}, []string{"result"}),
		ReportsShipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_uploaded_total",
			Help:      "Daily reports submitted to the batch import endpoint, by outcome.",
		}, []string{"result"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload batches by final status.",
		}, []string{"status"}),
		UploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "End-to-end duration of an upload batch.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		APIErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_errors_total",
			Help:      "Remote API failures by kind.",
		}, []string{"kind"}),
		WatchedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watched_files_total",
			Help:      "Workbooks picked up from the inbox directory.",
		}),
	}

	m.registry.MustRegister(
		m.SheetsParsed,
		m.ReportsShipped,
		m.Uploads,
		m.UploadDuration,
		m.APIErrors,
		m.WatchedFiles,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 底层 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
