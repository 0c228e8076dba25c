package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms 到 ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// MQ 消费结果计数
	MQConsumedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mq_consumed_total",
			Help: "Total number of consumed MQ messages by outcome",
		},
		[]string{"queue", "outcome"}, // outcome 取值: ack, requeue, dlq
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms 到 ~4s
		},
		[]string{"operation", "status"},
	)

	// 慢查询计数
	DBSlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"operation"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms 到 ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 看板重排计数
	BoardReorderCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_reorder_total",
			Help: "Total number of board reorder requests by kind and result",
		},
		[]string{"kind", "result"}, // kind 取值: move, apply；result 取值: ok, noop, rejected, error
	)

	// 每次重排写入的 issue 数
	BoardItemsChanged = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "board_items_changed",
			Help:    "Number of issues whose bucket or order changed per reorder",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1 到 128
		},
	)

	// Outbox 发布计数
	OutboxPublishedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Total number of outbox events handled by the dispatcher",
		},
		[]string{"status"}, // status 取值: sent, retry, failed
	)

	// MQ 连接状态（1 = 已连接）
	MQConnectionUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mq_connection_up",
			Help: "Whether an MQ connection is open (1) or closed (0)",
		},
		[]string{"connection"},
	)

	// 逾期 sprint 计数
	SprintOverdueCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sprint_overdue_events_total",
			Help: "Total number of sprint.overdue events enqueued by the scanner",
		},
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementMQConsumed 记录 MQ 消费结果
func IncrementMQConsumed(queue, outcome string) {
	MQConsumedCount.WithLabelValues(queue, outcome).Inc()
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, status string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// IncrementSlowQuery 记录慢查询
func IncrementSlowQuery(operation string, _ time.Duration) {
	DBSlowQueryCount.WithLabelValues(operation).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordBoardReorder 记录一次看板重排
func RecordBoardReorder(kind, result string, changed int) {
	BoardReorderCount.WithLabelValues(kind, result).Inc()
	if changed > 0 {
		BoardItemsChanged.Observe(float64(changed))
	}
}

// IncrementOutboxPublished 记录 Outbox 发布结果
func IncrementOutboxPublished(status string) {
	OutboxPublishedCount.WithLabelValues(status).Inc()
}

// IncrementSprintOverdue 记录逾期事件
func IncrementSprintOverdue() {
	SprintOverdueCount.Inc()
}

// SetMQConnectionUp 记录 MQ 连接状态
func SetMQConnectionUp(name string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	MQConnectionUp.WithLabelValues(name).Set(v)
}
