// Package metrics provides Prometheus metrics for the mirror engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plugin_repo_cache_lookups_total",
			Help: "Cache lookups by namespace and outcome",
		},
		[]string{"namespace", "outcome"},
	)

	upstreamFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plugin_repo_upstream_fetches_total",
			Help: "Upstream fetch attempts by outcome",
		},
		[]string{"outcome"},
	)

	crawlNodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plugin_repo_crawl_nodes",
			Help:    "Number of tree nodes produced per crawl",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
		},
	)

	renderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plugin_repo_render_duration_seconds",
			Help:    "Time to produce a listing or highlighted file",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

// Cache lookup outcomes.
const (
	OutcomeHit    = "hit"
	OutcomeMiss   = "miss"
	OutcomeStale  = "stale"
	OutcomePurged = "purged"
	OutcomeError  = "error"
)

// RecordCacheLookup 记录一次缓存查询结果。
func RecordCacheLookup(namespace, outcome string) {
	cacheLookupsTotal.WithLabelValues(namespace, outcome).Inc()
}

// RecordUpstreamFetch 记录一次上游抓取结果（ok 或失败类别）。
func RecordUpstreamFetch(outcome string) {
	upstreamFetchesTotal.WithLabelValues(outcome).Inc()
}

// RecordCrawlNodes 记录一次爬取产出的节点数。
func RecordCrawlNodes(count int) {
	crawlNodes.Observe(float64(count))
}

// RecordRenderDuration 记录一次 listing/file 渲染耗时。
func RecordRenderDuration(kind string, elapsed time.Duration) {
	renderDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Handler 返回 /-/metrics 使用的标准 prometheus 导出端点。
func Handler() http.Handler {
	return promhttp.Handler()
}
