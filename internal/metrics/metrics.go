// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordReport(contentType string, hidden bool)
	RecordToggle(relation string, present bool)
	RecordNotificationsCreated(count int)
	RecordNotificationsRead(count int)
	RecordMessageSent()
	RecordPartialFailure(operation string)
	RecordHTTPStatus(statusCode int)
	RecordReconcileRepairs(kind string, count int64)
	RecordReconcileLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	reports          *prometheus.CounterVec
	toggles          *prometheus.CounterVec
	notifCreated     prometheus.Counter
	notifRead        prometheus.Counter
	messagesSent     prometheus.Counter
	partialFailures  *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	reconcileRepairs *prometheus.CounterVec
	reconcileLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sundays_reports_total",
			Help: "コンテンツ種別・非表示有無別の通報数",
		}, []string{"content_type", "hidden"}),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sundays_toggles_total",
			Help: "お気に入り・保存・フォローのトグル数",
		}, []string{"relation", "state"}),
		notifCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sundays_notifications_created_total",
			Help: "作成された通知の合計数",
		}),
		notifRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sundays_notifications_read_total",
			Help: "既読にされた通知の合計数",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sundays_messages_sent_total",
			Help: "送信されたメッセージの合計数",
		}),
		partialFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sundays_partial_failures_total",
			Help: "複数書き込みの一部が失敗した操作の数",
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sundays_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		reconcileRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sundays_reconcile_repairs_total",
			Help: "整合性修復ジョブが修復したレコード数",
		}, []string{"kind"}),
		reconcileLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sundays_reconcile_latency_seconds",
			Help:    "整合性修復ジョブの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.reports,
		c.toggles,
		c.notifCreated,
		c.notifRead,
		c.messagesSent,
		c.partialFailures,
		c.httpStatus,
		c.reconcileRepairs,
		c.reconcileLatency,
	)

	return c
}

// RecordReport は通報を記録する。
func (c *Collector) RecordReport(contentType string, hidden bool) {
	c.reports.WithLabelValues(contentType, strconv.FormatBool(hidden)).Inc()
}

// RecordToggle はトグル後の状態を記録する。
func (c *Collector) RecordToggle(relation string, present bool) {
	state := "absent"
	if present {
		state = "present"
	}
	c.toggles.WithLabelValues(relation, state).Inc()
}

// RecordNotificationsCreated は作成された通知数を記録する。
func (c *Collector) RecordNotificationsCreated(count int) {
	c.notifCreated.Add(float64(count))
}

// RecordNotificationsRead は既読にした通知数を記録する。
func (c *Collector) RecordNotificationsRead(count int) {
	c.notifRead.Add(float64(count))
}

// RecordMessageSent はメッセージ送信を記録する。
func (c *Collector) RecordMessageSent() {
	c.messagesSent.Inc()
}

// RecordPartialFailure は部分失敗を記録する。
func (c *Collector) RecordPartialFailure(operation string) {
	c.partialFailures.WithLabelValues(operation).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordReconcileRepairs は修復件数を記録する。
func (c *Collector) RecordReconcileRepairs(kind string, count int64) {
	c.reconcileRepairs.WithLabelValues(kind).Add(float64(count))
}

// RecordReconcileLatency は修復ジョブの所要時間を記録する。
func (c *Collector) RecordReconcileLatency(duration time.Duration) {
	c.reconcileLatency.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。メトリクス不要なテストやワーカーで使う。
type Nop struct{}

func (Nop) RecordReport(string, bool) {}
func (Nop) RecordToggle(string, bool) {}
func (Nop) RecordNotificationsCreated(int) {}
func (Nop) RecordNotificationsRead(int) {}
func (Nop) RecordMessageSent() {}
func (Nop) RecordPartialFailure(string) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordReconcileRepairs(string, int64) {}
func (Nop) RecordReconcileLatency(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
