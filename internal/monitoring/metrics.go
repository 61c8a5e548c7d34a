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
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 别名指标
	AliasesCreated prometheus.Counter
	AliasesDeleted prometheus.Counter
	AliasesToggled prometheus.Counter

	// 入站与转发指标
	InboundMessages *prometheus.CounterVec
	Resolutions     *prometheus.CounterVec
	ForwardsTotal   *prometheus.CounterVec
	ForwardDuration *prometheus.HistogramVec
	AttachmentSize  prometheus.Histogram

	// 账户与在线指标
	AccountsRegistered prometheus.Counter
	WebsocketClients   prometheus.Gauge

	// 系统指标
	SystemUptime prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标，所有指标注册到独立的 registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datavault_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "datavault_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "datavault_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "datavault_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		AliasesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "datavault_aliases_created_total",
			Help: "Total number of aliases created",
		}),

		AliasesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "datavault_aliases_deleted_total",
			Help: "Total number of aliases deleted",
		}),

		AliasesToggled: factory.NewCounter(prometheus.CounterOpts{
			Name: "datavault_aliases_toggled_total",
			Help: "Total number of alias activation toggles",
		}),

		InboundMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datavault_inbound_messages_total",
				Help: "Inbound messages by source",
			},
			[]string{"source"},
		),

		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datavault_resolutions_total",
				Help: "Inbound resolutions by terminal state",
			},
			[]string{"outcome"},
		),

		ForwardsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datavault_forwards_total",
				Help: "Forwarding attempts by status",
			},
			[]string{"status"},
		),

		ForwardDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "datavault_forward_duration_seconds",
				Help:    "Outbound send duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"transport"},
		),

		AttachmentSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "datavault_attachment_size_bytes",
			Help:    "Forwarded attachment size in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),

		AccountsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "datavault_accounts_registered_total",
			Help: "Total number of accounts registered",
		}),

		WebsocketClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "datavault_websocket_clients",
			Help: "Connected live feed clients",
		}),

		SystemUptime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "datavault_uptime_seconds",
			Help: "Process uptime in seconds",
		}),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datavault_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "datavault_panics_total",
			Help: "Total number of recovered panics",
		}),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datavault_rate_limit_blocks_total",
				Help: "Requests rejected by rate limiting",
			},
			[]string{"scope"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordAliasCreated 记录别名创建
func (m *Metrics) RecordAliasCreated() {
	if m == nil {
		return
	}
	m.AliasesCreated.Inc()
}

// RecordAliasDeleted 记录别名删除
func (m *Metrics) RecordAliasDeleted() {
	if m == nil {
		return
	}
	m.AliasesDeleted.Inc()
}

// RecordAliasToggled 记录别名启用状态切换
func (m *Metrics) RecordAliasToggled() {
	if m == nil {
		return
	}
	m.AliasesToggled.Inc()
}

// RecordInbound 记录入站邮件，source 为 webhook 或 smtp
func (m *Metrics) RecordInbound(source string) {
	if m == nil {
		return
	}
	m.InboundMessages.WithLabelValues(source).Inc()
}

// RecordResolution 记录解析终态
func (m *Metrics) RecordResolution(outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

// RecordForward 记录一次转发尝试
func (m *Metrics) RecordForward(transport, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ForwardsTotal.WithLabelValues(status).Inc()
	m.ForwardDuration.WithLabelValues(transport).Observe(duration.Seconds())
}

// RecordAttachmentSize 记录附件大小
func (m *Metrics) RecordAttachmentSize(size int) {
	if m == nil {
		return
	}
	m.AttachmentSize.Observe(float64(size))
}

// RecordAccountRegistered 记录账户注册
func (m *Metrics) RecordAccountRegistered() {
	if m == nil {
		return
	}
	m.AccountsRegistered.Inc()
}

// SetWebsocketClients 更新在线客户端数
func (m *Metrics) SetWebsocketClients(count int) {
	if m == nil {
		return
	}
	m.WebsocketClients.Set(float64(count))
}

// UpdateSystemUptime 更新系统运行时间
func (m *Metrics) UpdateSystemUptime(uptime time.Duration) {
	m.SystemUptime.Set(uptime.Seconds())
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(scope string) {
	if m == nil {
		return
	}
	m.RateLimitBlocks.WithLabelValues(scope).Inc()
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
