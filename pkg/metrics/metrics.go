package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// 阶段推进计数
	PhaseAdvanceCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_phase_advance_count",
			Help: "Total number of phase advance attempts",
		},
		[]string{"result"}, // result: success, blocked, invalid_transition, permission_denied, version_conflict
	)

	// 任务进度更新计数
	TaskProgressUpdateCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_task_progress_update_count",
			Help: "Total number of task progress updates",
		},
		[]string{"result"},
	)

	// 权限拒绝计数
	PermissionDeniedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_permission_denied_count",
			Help: "Total number of permission denials",
		},
		[]string{"role", "capability"},
	)

	// 进度缓存命中/未命中
	ProgressCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_progress_cache_hits",
			Help: "Progress cache lookups by outcome",
		},
		[]string{"outcome"}, // outcome: hit, miss
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of slow database queries",
		},
	)
)

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementPhaseAdvance 增加阶段推进计数
func IncrementPhaseAdvance(result string) {
	PhaseAdvanceCount.WithLabelValues(result).Inc()
}

// IncrementTaskProgressUpdate 增加任务进度更新计数
func IncrementTaskProgressUpdate(result string) {
	TaskProgressUpdateCount.WithLabelValues(result).Inc()
}

// IncrementPermissionDenied 增加权限拒绝计数
func IncrementPermissionDenied(role, capability string) {
	PermissionDeniedCount.WithLabelValues(role, capability).Inc()
}

// IncrementProgressCache 记录进度缓存查询结果
func IncrementProgressCache(outcome string) {
	ProgressCacheHits.WithLabelValues(outcome).Inc()
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}
