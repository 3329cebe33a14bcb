package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// QueryMetrics aggregates the engine's Prometheus collectors: HTTP server
// metrics plus the query-pipeline instrumentation consumed as a stage
// observer by the engine.
type QueryMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	stageDuration       *prometheus.HistogramVec
	partialFailureTotal *prometheus.CounterVec
	degradedTotal       prometheus.Counter
	sourcesUsedTotal    *prometheus.CounterVec

	indexEventsTotal   prometheus.Counter
	indexLastTimestamp prometheus.Gauge
}

func NewQueryMetrics(service string) *QueryMetrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docverse",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docverse",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "docverse",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: serviceLabel,
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docverse",
			Subsystem: "query",
			Name:      "stage_duration_seconds",
			Help:      "Query pipeline stage duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	partialFailureTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docverse",
			Subsystem: "query",
			Name:      "partial_failures_total",
			Help:      "Total retrieval paths that failed while the request succeeded.",
		},
		[]string{"service", "source"},
	)
	degradedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "docverse",
			Subsystem:   "query",
			Name:        "degraded_answers_total",
			Help:        "Total answers degraded to raw snippets after synthesis failure.",
			ConstLabels: serviceLabel,
		},
	)
	sourcesUsedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docverse",
			Subsystem: "query",
			Name:      "sources_used_total",
			Help:      "Total answered queries by contributing retrieval source.",
		},
		[]string{"service", "source"},
	)
	indexEventsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "docverse",
			Subsystem:   "index",
			Name:        "events_total",
			Help:        "Total document-indexed events received from the ingestion pipeline.",
			ConstLabels: serviceLabel,
		},
	)
	indexLastTimestamp := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "docverse",
			Subsystem:   "index",
			Name:        "last_event_timestamp_seconds",
			Help:        "Unix timestamp of the newest document-indexed event.",
			ConstLabels: serviceLabel,
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		stageDuration,
		partialFailureTotal,
		degradedTotal,
		sourcesUsedTotal,
		indexEventsTotal,
		indexLastTimestamp,
	)

	return &QueryMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		stageDuration:       stageDuration,
		partialFailureTotal: partialFailureTotal,
		degradedTotal:       degradedTotal,
		sourcesUsedTotal:    sourcesUsedTotal,
		indexEventsTotal:    indexEventsTotal,
		indexLastTimestamp:  indexLastTimestamp,
	}
}

func (m *QueryMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *QueryMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps the path label bounded to the known routes.
func normalizePath(path string) string {
	switch path {
	case "/v1/query", "/v1/search", "/healthz", "/metrics", "/openapi.yaml":
		return path
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
