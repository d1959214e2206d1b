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
// ハンドラーとコーディネータから利用する。
type MetricsCollector interface {
	RecordTopicCreated()
	RecordTopicDeleted()
	NotesCommitIssued()
	NotesCommitSuppressed()
	NotesCommitFailed()
	RecordCritiqueSuccess()
	RecordCritiqueFailure()
	RecordCritiqueLatency(duration time.Duration)
	RecordResourcesImported(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	topicCreated      prometheus.Counter
	topicDeleted      prometheus.Counter
	notesIssued       prometheus.Counter
	notesSuppressed   prometheus.Counter
	notesFailed       prometheus.Counter
	critiqueSuccess   prometheus.Counter
	critiqueFail      prometheus.Counter
	critiqueLatency   prometheus.Histogram
	resourcesImported prometheus.Counter
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		topicCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnlog_topic_created_total",
			Help: "作成されたトピックの合計数",
		}),
		topicDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnlog_topic_deleted_total",
			Help: "削除されたトピックの合計数",
		}),
		notesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnlog_notes_commit_issued_total",
			Help: "ストアへ発行されたノートコミットの合計数",
		}),
		notesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnlog_notes_commit_suppressed_total",
			Help: "変更なしとして抑制されたノートコミットの合計数",
		}),
		notesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnlog_notes_commit_failed_total",
			Help: "失敗したノートコミットの合計数",
		}),
		critiqueSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnlog_critique_success_total",
			Help: "AI講評成功の合計数",
		}),
		critiqueFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnlog_critique_fail_total",
			Help: "AI講評失敗の合計数",
		}),
		critiqueLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "learnlog_critique_latency_seconds",
			Help:    "AI講評のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		resourcesImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnlog_resources_imported_total",
			Help: "フィードから取り込まれたリソースの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnlog_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.topicCreated,
		c.topicDeleted,
		c.notesIssued,
		c.notesSuppressed,
		c.notesFailed,
		c.critiqueSuccess,
		c.critiqueFail,
		c.critiqueLatency,
		c.resourcesImported,
		c.httpStatus,
	)

	return c
}

// RecordTopicCreated はトピック作成を記録する。
func (c *Collector) RecordTopicCreated() {
	c.topicCreated.Inc()
}

// RecordTopicDeleted はトピック削除を記録する。
func (c *Collector) RecordTopicDeleted() {
	c.topicDeleted.Inc()
}

// NotesCommitIssued はノートコミットの発行を記録する。
func (c *Collector) NotesCommitIssued() {
	c.notesIssued.Inc()
}

// NotesCommitSuppressed は変更なしとして抑制されたノートコミットを記録する。
func (c *Collector) NotesCommitSuppressed() {
	c.notesSuppressed.Inc()
}

// NotesCommitFailed はノートコミットの失敗を記録する。
func (c *Collector) NotesCommitFailed() {
	c.notesFailed.Inc()
}

// RecordCritiqueSuccess はAI講評の成功を記録する。
func (c *Collector) RecordCritiqueSuccess() {
	c.critiqueSuccess.Inc()
}

// RecordCritiqueFailure はAI講評の失敗を記録する。
func (c *Collector) RecordCritiqueFailure() {
	c.critiqueFail.Inc()
}

// RecordCritiqueLatency はAI講評のレイテンシを記録する。
func (c *Collector) RecordCritiqueLatency(duration time.Duration) {
	c.critiqueLatency.Observe(duration.Seconds())
}

// RecordResourcesImported は取り込まれたリソース数を記録する。
func (c *Collector) RecordResourcesImported(count int) {
	c.resourcesImported.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
