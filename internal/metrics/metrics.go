// Package metrics 以Prometheus文本格式导出爬取计数,供 node_exporter textfile 采集
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TextfileName 指标文件名
const TextfileName = "lawcrawl.prom"

// Recorder 一次运行的指标集合,每个实例使用独立的Registry
type Recorder struct {
	registry *prometheus.Registry

	documents       *prometheus.CounterVec
	enumerations    *prometheus.CounterVec
	browserRestarts *prometheus.CounterVec
	categories      *prometheus.CounterVec
	duration        *prometheus.GaugeVec
}

// NewRecorder 创建指标记录器
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		documents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lawcrawl_documents_total",
				Help: "Documents processed, labeled by site, category and status.",
			},
			[]string{"site", "category", "status"},
		),
		enumerations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lawcrawl_enumerations_total",
				Help: "Listing link enumerations, labeled by site.",
			},
			[]string{"site"},
		),
		browserRestarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lawcrawl_browser_restarts_total",
				Help: "Browser relaunches after a lost session, labeled by site.",
			},
			[]string{"site"},
		),
		categories: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lawcrawl_categories_total",
				Help: "Categories crawled, labeled by site and result.",
			},
			[]string{"site", "result"},
		),
		duration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lawcrawl_run_duration_seconds",
				Help: "Duration of the last run, labeled by site.",
			},
			[]string{"site"},
		),
	}
}

// ObserveDocument 记录一个文档的处理结果
func (r *Recorder) ObserveDocument(site, category, status string) {
	r.documents.WithLabelValues(site, category, status).Inc()
}

// ObserveEnumerations 累加链接枚举次数
func (r *Recorder) ObserveEnumerations(site string, n int) {
	if n > 0 {
		r.enumerations.WithLabelValues(site).Add(float64(n))
	}
}

// ObserveRestart 记录一次浏览器重启
func (r *Recorder) ObserveRestart(site string) {
	r.browserRestarts.WithLabelValues(site).Inc()
}

// ObserveCategory 记录分类结果 (ok, failed)
func (r *Recorder) ObserveCategory(site, result string) {
	r.categories.WithLabelValues(site, result).Inc()
}

// ObserveDuration 记录运行耗时
func (r *Recorder) ObserveDuration(site string, seconds float64) {
	r.duration.WithLabelValues(site).Set(seconds)
}

// Gatherer 返回底层Registry
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile 写出指标文件
func (r *Recorder) WriteTextfile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建指标目录失败: %w", err)
	}
	path := filepath.Join(dir, TextfileName)
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return "", fmt.Errorf("写入指标文件失败: %w", err)
	}
	return path, nil
}
