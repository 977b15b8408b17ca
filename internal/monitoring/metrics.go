package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 预订指标
	ReservationsCreated   prometheus.Counter
	ReservationsCancelled prometheus.Counter
	ReservationsRejected  *prometheus.CounterVec
	ReservationsPurged    prometheus.Counter

	// 取消流程指标
	CancellationCodesSent prometheus.Counter
	CancellationFailures  *prometheus.CounterVec

	// 邮件指标
	EmailsSent   prometheus.Counter
	EmailsFailed prometheus.Counter

	// 缓存指标
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resboss_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "resboss_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		ReservationsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "resboss_reservations_created_total",
				Help: "Total number of reservations created",
			},
		),

		ReservationsCancelled: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "resboss_reservations_cancelled_total",
				Help: "Total number of reservations cancelled",
			},
		),

		ReservationsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resboss_reservations_rejected_total",
				Help: "Total number of reservation attempts rejected",
			},
			[]string{"reason"},
		),

		ReservationsPurged: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "resboss_reservations_purged_total",
				Help: "Total number of old reservations purged",
			},
		),

		CancellationCodesSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "resboss_cancellation_codes_sent_total",
				Help: "Total number of cancellation codes issued",
			},
		),

		CancellationFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resboss_cancellation_failures_total",
				Help: "Total number of failed cancellation attempts",
			},
			[]string{"reason"},
		),

		EmailsSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "resboss_emails_sent_total",
				Help: "Total number of emails sent",
			},
		),

		EmailsFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "resboss_emails_failed_total",
				Help: "Total number of email send failures",
			},
		),

		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resboss_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"view"},
		),

		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resboss_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"view"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resboss_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "resboss_panics_total",
				Help: "Total number of panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordReservationCreated 记录预订创建
func (m *Metrics) RecordReservationCreated() {
	m.ReservationsCreated.Inc()
}

// RecordReservationCancelled 记录预订取消
func (m *Metrics) RecordReservationCancelled() {
	m.ReservationsCancelled.Inc()
}

// RecordReservationRejected 记录被拒绝的预订尝试
func (m *Metrics) RecordReservationRejected(reason string) {
	m.ReservationsRejected.WithLabelValues(reason).Inc()
}

// RecordReservationsPurged 记录清理的历史预订数量
func (m *Metrics) RecordReservationsPurged(count int) {
	m.ReservationsPurged.Add(float64(count))
}

// RecordCancellationCodeSent 记录验证码发送
func (m *Metrics) RecordCancellationCodeSent() {
	m.CancellationCodesSent.Inc()
}

// RecordCancellationFailure 记录失败的取消尝试
func (m *Metrics) RecordCancellationFailure(reason string) {
	m.CancellationFailures.WithLabelValues(reason).Inc()
}

// RecordEmailSent 记录邮件发送成功
func (m *Metrics) RecordEmailSent() {
	m.EmailsSent.Inc()
}

// RecordEmailFailed 记录邮件发送失败
func (m *Metrics) RecordEmailFailed() {
	m.EmailsFailed.Inc()
}

// RecordCacheHit 记录缓存命中
func (m *Metrics) RecordCacheHit(view string) {
	m.CacheHits.WithLabelValues(view).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (m *Metrics) RecordCacheMiss(view string) {
	m.CacheMisses.WithLabelValues(view).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
