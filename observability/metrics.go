package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "whisper"

// Metrics holds the Prometheus collectors of the server. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	CacheEvictions    prometheus.Counter
	CacheLoads        *prometheus.CounterVec
	CacheLoadDuration prometheus.Histogram
	CacheEntries      prometheus.Gauge
	CacheInflight     prometheus.Gauge
	SlotRejections    *prometheus.CounterVec

	Transcriptions         *prometheus.CounterVec
	InferenceDuration      *prometheus.HistogramVec
	NormalizationFallbacks prometheus.Counter
	AudioBytes             prometheus.Histogram
}

// NewMetrics creates the collectors on a private registry together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route"}),

		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine_cache",
			Name:      "hits_total",
			Help:      "Acquisitions served by a cached engine",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine_cache",
			Name:      "misses_total",
			Help:      "Acquisitions that waited on a construction",
		}),
		CacheEvictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine_cache",
			Name:      "evictions_total",
			Help:      "Engines evicted to make room",
		}),
		CacheLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine_cache",
			Name:      "loads_total",
			Help:      "Engine constructions by result",
		}, []string{"result"}),
		CacheLoadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine_cache",
			Name:      "load_duration_seconds",
			Help:      "Engine construction time",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		CacheEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine_cache",
			Name:      "entries",
			Help:      "Engines currently cached",
		}),
		CacheInflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine_cache",
			Name:      "inflight_loads",
			Help:      "Engine constructions in progress",
		}),
		SlotRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine_cache",
			Name:      "slot_rejections_total",
			Help:      "Transcriptions turned away because every engine slot stayed busy",
		}, []string{"model", "reason"}),

		Transcriptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Transcription requests by outcome",
		}, []string{"outcome"}),
		InferenceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Time spent inside the engine per transcription",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"model"}),
		NormalizationFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalization_fallbacks_total",
			Help:      "Transcriptions that used the original audio after normalization failed",
		}),
		AudioBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audio_payload_bytes",
			Help:      "Decoded audio payload size",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished HTTP request.
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) CacheEviction() {
	if m != nil {
		m.CacheEvictions.Inc()
	}
}

// CacheLoad records a finished construction; result is "ok" or "error".
func (m *Metrics) CacheLoad(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.CacheLoads.WithLabelValues(result).Inc()
	m.CacheLoadDuration.Observe(d.Seconds())
}

// CacheState publishes the current entry and in-flight counts.
func (m *Metrics) CacheState(entries, inflight int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(entries))
	m.CacheInflight.Set(float64(inflight))
}

// SlotRejected counts a transcription the engine's bulkhead turned away.
// reason is "full" or "timeout".
func (m *Metrics) SlotRejected(model, reason string) {
	if m != nil {
		m.SlotRejections.WithLabelValues(model, reason).Inc()
	}
}

// Transcription counts a finished request; outcome is "ok" or an error code.
func (m *Metrics) Transcription(outcome string) {
	if m != nil {
		m.Transcriptions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Inference(model string, d time.Duration) {
	if m != nil {
		m.InferenceDuration.WithLabelValues(model).Observe(d.Seconds())
	}
}

func (m *Metrics) NormalizationFallback() {
	if m != nil {
		m.NormalizationFallbacks.Inc()
	}
}

func (m *Metrics) AudioPayload(size int) {
	if m != nil {
		m.AudioBytes.Observe(float64(size))
	}
}
