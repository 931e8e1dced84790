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
// サービス層やリアルタイム配信ハブから利用する。
type MetricsCollector interface {
	RecordMessageSent()
	RecordRealtimePublished()
	RecordRealtimeDropped()
	RecordHTTPStatus(statusCode int)
	RecordTranscription(success bool)
	RecordFeedback(success bool)
	RecordPracticeLatency(operation string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	messagesSent      prometheus.Counter
	realtimePublished prometheus.Counter
	realtimeDropped   prometheus.Counter
	httpStatus        *prometheus.CounterVec
	transcriptions    *prometheus.CounterVec
	feedbacks         *prometheus.CounterVec
	practiceLatency   *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "talktome_messages_sent_total",
			Help: "送信されたメッセージの合計数",
		}),
		realtimePublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "talktome_realtime_published_total",
			Help: "リアルタイム配信されたイベントの合計数",
		}),
		realtimeDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "talktome_realtime_dropped_total",
			Help: "購読者のバッファ満杯により破棄されたイベントの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talktome_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		transcriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talktome_transcriptions_total",
			Help: "文字起こし処理の結果別合計数",
		}, []string{"result"}),
		feedbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talktome_feedbacks_total",
			Help: "フィードバック生成の結果別合計数",
		}, []string{"result"}),
		practiceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "talktome_practice_latency_seconds",
			Help:    "練習系操作（transcribe/feedback）のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.messagesSent,
		c.realtimePublished,
		c.realtimeDropped,
		c.httpStatus,
		c.transcriptions,
		c.feedbacks,
		c.practiceLatency,
	)

	return c
}

// RecordMessageSent はメッセージ送信を記録する。
func (c *Collector) RecordMessageSent() {
	c.messagesSent.Inc()
}

// RecordRealtimePublished はリアルタイムイベントの配信を記録する。
func (c *Collector) RecordRealtimePublished() {
	c.realtimePublished.Inc()
}

// RecordRealtimeDropped はバッファ満杯によるイベント破棄を記録する。
func (c *Collector) RecordRealtimeDropped() {
	c.realtimeDropped.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordTranscription は文字起こし処理の結果を記録する。
func (c *Collector) RecordTranscription(success bool) {
	c.transcriptions.WithLabelValues(resultLabel(success)).Inc()
}

// RecordFeedback はフィードバック生成の結果を記録する。
func (c *Collector) RecordFeedback(success bool) {
	c.feedbacks.WithLabelValues(resultLabel(success)).Inc()
}

// RecordPracticeLatency は練習系操作のレイテンシを記録する。
func (c *Collector) RecordPracticeLatency(operation string, duration time.Duration) {
	c.practiceLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
