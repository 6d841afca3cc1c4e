package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	providerRequestsTotal *prometheus.CounterVec
	providerDuration      *prometheus.HistogramVec
	localFallbackMode     prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voxchat_http_requests_total",
				Help: "Total number of HTTP requests handled.",
			},
			[]string{"route", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "voxchat_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		providerRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voxchat_provider_requests_total",
				Help: "Total transcription and chat provider requests.",
			},
			[]string{"provider", "operation", "status"},
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "voxchat_provider_request_duration_seconds",
				Help:    "Provider request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "operation", "status"},
		),
		localFallbackMode: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "voxchat_local_fallback_mode",
				Help: "Set to 1 when no OpenAI API key is configured and the local speech engine serves transcriptions.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.providerRequestsTotal,
		m.providerDuration,
		m.localFallbackMode,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "UNKNOWN"
	}
	statusLabel := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(route, method, statusLabel).Inc()
	m.httpRequestDuration.WithLabelValues(route, method, statusLabel).Observe(duration.Seconds())
}

func (m *Metrics) ObserveProvider(provider, operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	statusLabel := strconv.Itoa(status)
	m.providerRequestsTotal.WithLabelValues(provider, operation, statusLabel).Inc()
	m.providerDuration.WithLabelValues(provider, operation, statusLabel).Observe(duration.Seconds())
}

func (m *Metrics) SetFallbackMode(enabled bool) {
	if m == nil {
		return
	}
	if enabled {
		m.localFallbackMode.Set(1)
		return
	}
	m.localFallbackMode.Set(0)
}
