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
	upstreamRequestsTotal *prometheus.CounterVec
	upstreamDuration      *prometheus.HistogramVec
	summaryWindows        prometheus.Histogram
	audioDownloadsTotal   *prometheus.CounterVec
	audioDownloadBytes    prometheus.Histogram
	audioDownloadDuration prometheus.Histogram
	tempCleanupFailures   prometheus.Counter
}

// NewMetrics builds a private registry. service is used as a constant label
// so both binaries can share one scrape config.
func NewMetrics(service string) *Metrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "notesml_http_requests_total",
				Help:        "Total number of HTTP requests handled.",
				ConstLabels: constLabels,
			},
			[]string{"route", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "notesml_http_request_duration_seconds",
				Help:        "HTTP request duration in seconds.",
				Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
				ConstLabels: constLabels,
			},
			[]string{"route", "method", "status"},
		),
		upstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "notesml_upstream_requests_total",
				Help:        "Total inference backend requests.",
				ConstLabels: constLabels,
			},
			[]string{"endpoint", "status"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "notesml_upstream_request_duration_seconds",
				Help:        "Inference backend request duration in seconds.",
				Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
				ConstLabels: constLabels,
			},
			[]string{"endpoint", "status"},
		),
		summaryWindows: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "notesml_summary_windows",
				Help:        "Number of text windows per summarization request.",
				Buckets:     prometheus.ExponentialBuckets(1, 2, 10),
				ConstLabels: constLabels,
			},
		),
		audioDownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "notesml_audio_downloads_total",
				Help:        "Total audio downloads by HTTP status (0 for transport errors).",
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),
		audioDownloadBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "notesml_audio_download_bytes",
				Help:        "Size of downloaded audio files in bytes.",
				Buckets:     prometheus.ExponentialBuckets(64<<10, 4, 8),
				ConstLabels: constLabels,
			},
		),
		audioDownloadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "notesml_audio_download_duration_seconds",
				Help:        "Audio download duration in seconds.",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
		),
		tempCleanupFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "notesml_temp_cleanup_failures_total",
				Help:        "Number of temporary audio files that could not be removed.",
				ConstLabels: constLabels,
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.upstreamRequestsTotal,
		m.upstreamDuration,
		m.summaryWindows,
		m.audioDownloadsTotal,
		m.audioDownloadBytes,
		m.audioDownloadDuration,
		m.tempCleanupFailures,
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

func (m *Metrics) ObserveUpstream(endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	statusLabel := strconv.Itoa(status)
	m.upstreamRequestsTotal.WithLabelValues(endpoint, statusLabel).Inc()
	m.upstreamDuration.WithLabelValues(endpoint, statusLabel).Observe(duration.Seconds())
}

func (m *Metrics) ObserveSummaryWindows(n int) {
	if m == nil {
		return
	}
	m.summaryWindows.Observe(float64(n))
}

func (m *Metrics) ObserveDownload(status int, bytes int64, duration time.Duration) {
	if m == nil {
		return
	}
	m.audioDownloadsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	if bytes > 0 {
		m.audioDownloadBytes.Observe(float64(bytes))
	}
	m.audioDownloadDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncTempCleanupFailure() {
	if m == nil {
		return
	}
	m.tempCleanupFailures.Inc()
}
