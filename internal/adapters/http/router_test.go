package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/datareveal/docverse/internal/core/domain"
)

type fakeEngine struct {
	result *domain.AnswerResult
	err    error
	calls  int
	gotReq domain.QueryRequest
}

func (f *fakeEngine) Ask(_ context.Context, req domain.QueryRequest) (*domain.AnswerResult, error) {
	f.calls++
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeSearcher struct {
	records  []domain.MetadataRecord
	err      error
	gotField string
	gotValue string
	gotExact bool
}

func (f *fakeSearcher) SearchByField(_ context.Context, field, value string, exact bool) ([]domain.MetadataRecord, error) {
	f.gotField = field
	f.gotValue = value
	f.gotExact = exact
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type fakeFreshness struct {
	docID string
	at    time.Time
	ok    bool
}

func (f *fakeFreshness) Status() (string, time.Time, bool) {
	return f.docID, f.at, f.ok
}

func newTestRouter(engine *fakeEngine, searcher *fakeSearcher, freshness FreshnessReporter) http.Handler {
	return NewRouter(engine, searcher, freshness, nil, RouterConfig{}).Handler()
}

func TestAskQueryReturnsAnswer(t *testing.T) {
	engine := &fakeEngine{result: &domain.AnswerResult{
		Answer: "42 subjects enrolled [1].",
		Citations: []domain.Citation{{
			DocumentID: "doc-1",
			SnippetID:  "doc-1#c-1",
			Page:       3,
		}},
		SourcesUsed: domain.SourcesUsed{Metadata: true, Semantic: true},
	}}
	handler := newTestRouter(engine, &fakeSearcher{}, nil)

	body := `{"query":"how many subjects enrolled?","top_k":3}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var result domain.AnswerResult
	if err := json.Unmarshal(res.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Answer != "42 subjects enrolled [1]." {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if len(result.Citations) != 1 || result.Citations[0].DocumentID != "doc-1" {
		t.Fatalf("unexpected citations %v", result.Citations)
	}
	if engine.gotReq.TopK != 3 {
		t.Fatalf("expected top_k passed through, got %d", engine.gotReq.TopK)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header on response")
	}
}

func TestAskQueryRejectsInvalidJSON(t *testing.T) {
	engine := &fakeEngine{}
	handler := newTestRouter(engine, &fakeSearcher{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader("{not json"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if engine.calls != 0 {
		t.Fatalf("engine must not be called for invalid json")
	}
}

func TestAskQueryRejectsEmptyQuery(t *testing.T) {
	engine := &fakeEngine{}
	handler := newTestRouter(engine, &fakeSearcher{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query":"   "}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAskQueryMethodNotAllowed(t *testing.T) {
	handler := newTestRouter(&fakeEngine{}, &fakeSearcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/query", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestAskQueryMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid query", domain.WrapError(domain.ErrInvalidQuery, "parse intent", errors.New("empty")), http.StatusBadRequest},
		{"retrieval unavailable", domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve", errors.New("both down")), http.StatusServiceUnavailable},
		{"rate limited", domain.WrapError(domain.ErrRateLimited, "generate", errors.New("throttled")), http.StatusTooManyRequests},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestRouter(&fakeEngine{err: tc.err}, &fakeSearcher{}, nil)

			req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query":"anything"}`))
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, res.Code)
			}
		})
	}
}

func TestSearchByFieldReturnsRecords(t *testing.T) {
	searcher := &fakeSearcher{records: []domain.MetadataRecord{{
		DocumentID: "doc-1",
		Filename:   "report.pdf",
		Entity:     "MONITORING VISIT REPORT",
	}}}
	handler := newTestRouter(&fakeEngine{}, searcher, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/search?field=Sponsor&value=Pfizer&exact=true", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var payload struct {
		Results []domain.MetadataRecord `json:"results"`
		Count   int                     `json:"count"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Count != 1 || payload.Results[0].DocumentID != "doc-1" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if searcher.gotField != "Sponsor" || searcher.gotValue != "Pfizer" || !searcher.gotExact {
		t.Fatalf("unexpected searcher call: %s %s exact=%v", searcher.gotField, searcher.gotValue, searcher.gotExact)
	}
}

func TestSearchByFieldRequiresParams(t *testing.T) {
	handler := newTestRouter(&fakeEngine{}, &fakeSearcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/search?field=Sponsor", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchByFieldRejectsBadExactFlag(t *testing.T) {
	handler := newTestRouter(&fakeEngine{}, &fakeSearcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/search?field=Sponsor&value=Pfizer&exact=sometimes", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestHealthzReportsIndexFreshness(t *testing.T) {
	freshness := &fakeFreshness{
		docID: "doc-9",
		at:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		ok:    true,
	}
	handler := newTestRouter(&fakeEngine{}, &fakeSearcher{}, freshness)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var payload struct {
		Status string `json:"status"`
		Index  *struct {
			LastDocumentID string `json:"last_document_id"`
			LastIndexedAt  string `json:"last_indexed_at"`
		} `json:"index"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("unexpected status %q", payload.Status)
	}
	if payload.Index == nil || payload.Index.LastDocumentID != "doc-9" {
		t.Fatalf("expected index freshness in health payload, got %+v", payload.Index)
	}
}

func TestRootReportsServiceInfo(t *testing.T) {
	handler := newTestRouter(&fakeEngine{}, &fakeSearcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["service"] == "" {
		t.Fatalf("expected service name in root payload, got %v", payload)
	}
}

func TestUnknownPathReturns404(t *testing.T) {
	handler := newTestRouter(&fakeEngine{}, &fakeSearcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestHealthzWithoutFreshness(t *testing.T) {
	handler := newTestRouter(&fakeEngine{}, &fakeSearcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}
