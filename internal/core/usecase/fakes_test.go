package usecase

import (
	"context"
	"time"

	"github.com/datareveal/docverse/internal/core/domain"
)

type fakeIntentExtractor struct {
	intent domain.ParsedIntent
	err    error
	calls  int
}

func (f *fakeIntentExtractor) ExtractIntent(_ context.Context, _ string, _ []string) (domain.ParsedIntent, error) {
	f.calls++
	if f.err != nil {
		return domain.ParsedIntent{}, f.err
	}
	return f.intent, nil
}

type fakeMetadataStore struct {
	records   []domain.MetadataRecord
	byField   []domain.MetadataRecord
	err       error
	gotTokens []string
	gotField  string
	gotValue  string
	gotExact  bool
	gotLimit  int
}

func (f *fakeMetadataStore) FetchCandidates(_ context.Context, tokens []string, limit int) ([]domain.MetadataRecord, error) {
	f.gotTokens = tokens
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeMetadataStore) SearchByField(_ context.Context, field, value string, exact bool, limit int) ([]domain.MetadataRecord, error) {
	f.gotField = field
	f.gotValue = value
	f.gotExact = exact
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.byField, nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeVectorStore struct {
	matches  []domain.SemanticMatch
	err      error
	gotLimit int
}

func (f *fakeVectorStore) Search(_ context.Context, _ []float32, limit int) ([]domain.SemanticMatch, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

// fakeGenerator fails its first `failures` calls with failErr, then returns
// response.
type fakeGenerator struct {
	response string
	failErr  error
	failures int
	calls    int
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.failErr
	}
	return f.response, nil
}

type recordingObserver struct {
	stages   []string
	partials []string
	degraded int
}

func (o *recordingObserver) ObserveStage(stage string, _ time.Duration) {
	o.stages = append(o.stages, stage)
}

func (o *recordingObserver) PartialFailure(source string) {
	o.partials = append(o.partials, source)
}

func (o *recordingObserver) DegradedAnswer() {
	o.degraded++
}
