package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/datareveal/docverse/internal/core/domain"
	"github.com/datareveal/docverse/internal/core/ports"
	"github.com/datareveal/docverse/internal/observability/metrics"
)

// FreshnessReporter exposes the newest document-indexed event for /healthz.
type FreshnessReporter interface {
	Status() (documentID string, indexedAt time.Time, ok bool)
}

type RouterConfig struct {
	Service          string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
}

func (c RouterConfig) normalize() RouterConfig {
	if c.Service == "" {
		c.Service = "docverse-api"
	}
	if c.BackpressureWait <= 0 {
		c.BackpressureWait = 200 * time.Millisecond
	}
	return c
}

type Router struct {
	engine    ports.QueryEngine
	searcher  ports.FieldSearcher
	freshness FreshnessReporter
	metrics   *metrics.QueryMetrics
	cfg       RouterConfig
}

func NewRouter(
	engine ports.QueryEngine,
	searcher ports.FieldSearcher,
	freshness FreshnessReporter,
	m *metrics.QueryMetrics,
	cfg RouterConfig,
) *Router {
	return &Router{
		engine:    engine,
		searcher:  searcher,
		freshness: freshness,
		metrics:   m,
		cfg:       cfg.normalize(),
	}
}

func (rt *Router) Handler() http.Handler {
	// Query endpoints sit behind the traffic-control gates; health, metrics
	// and the contract stay reachable under load.
	api := http.NewServeMux()
	api.HandleFunc("/v1/query", rt.askQuery)
	api.HandleFunc("/v1/search", rt.searchByField)

	var apiHandler http.Handler = api
	apiHandler = backpressureMiddleware(apiHandler, rt.cfg.MaxInFlight, rt.cfg.BackpressureWait)
	apiHandler = rateLimitMiddleware(apiHandler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("/", rt.root)
	mux.Handle("/v1/", apiHandler)
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/openapi.yaml", serveOpenAPISpec)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": rt.cfg.Service,
		"status":  "running",
	})
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{"status": "ok"}
	if rt.freshness != nil {
		if docID, indexedAt, ok := rt.freshness.Status(); ok {
			payload["index"] = map[string]any{
				"last_document_id": docID,
				"last_indexed_at":  indexedAt.UTC().Format(time.RFC3339),
			}
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (rt *Router) askQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	result, err := rt.engine.Ask(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordSourcesUsed(rt.cfg.Service, result.SourcesUsed)
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) searchByField(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	query := r.URL.Query()
	field := strings.TrimSpace(query.Get("field"))
	value := strings.TrimSpace(query.Get("value"))
	if field == "" || value == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field and value are required"})
		return
	}
	exact := false
	if raw := query.Get("exact"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exact must be a boolean"})
			return
		}
		exact = parsed
	}

	records, err := rt.searcher.SearchByField(r.Context(), field, value, exact)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": records,
		"count":   len(records),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
