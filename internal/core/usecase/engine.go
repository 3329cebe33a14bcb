package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/datareveal/docverse/internal/core/domain"
)

// Request states, in pipeline order.
const (
	stateParsingIntent = "parsing_intent"
	stateRetrieving    = "retrieving"
	stateFusing        = "fusing"
	stateAssembling    = "assembling_context"
	stateSynthesizing  = "synthesizing"
)

const noEvidenceAnswer = "I could not find any relevant documents matching your criteria."

// StageObserver receives pipeline telemetry. Implemented by the metrics
// package; a nil observer is valid.
type StageObserver interface {
	ObserveStage(stage string, duration time.Duration)
	PartialFailure(source string)
	DegradedAnswer()
}

type EngineConfig struct {
	// RequestTimeout is the one overall deadline per request; retrieval,
	// fusion, assembly and synthesis all share it.
	RequestTimeout time.Duration
	// TopK is the per-retriever default when the request does not set one.
	TopK int
	// ContextBudget is the default context size in characters.
	ContextBudget int
	Fusion        FusionConfig
}

func (c EngineConfig) normalize() EngineConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.ContextBudget <= 0 {
		c.ContextBudget = defaultContextBudget
	}
	return c
}

// Engine owns the query pipeline: intent parsing, concurrent retrieval,
// fusion, context assembly and synthesis. A single retrieval path's failure
// never aborts the request; only the joint failure of both does.
type Engine struct {
	parser   *IntentParser
	metadata *MetadataRetriever
	semantic *SemanticRetriever
	synth    *Synthesizer
	observer StageObserver
	cfg      EngineConfig
}

func NewEngine(
	parser *IntentParser,
	metadata *MetadataRetriever,
	semantic *SemanticRetriever,
	synth *Synthesizer,
	observer StageObserver,
	cfg EngineConfig,
) *Engine {
	return &Engine{
		parser:   parser,
		metadata: metadata,
		semantic: semantic,
		synth:    synth,
		observer: observer,
		cfg:      cfg.normalize(),
	}
}

func (e *Engine) Ask(ctx context.Context, req domain.QueryRequest) (*domain.AnswerResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	stageStart := time.Now()
	intent, err := e.parser.Parse(ctx, req.Query, req.History)
	if err != nil {
		return nil, err
	}
	e.observeStage(stateParsingIntent, stageStart)

	topK := req.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	stageStart = time.Now()
	meta, sem := e.retrieveParallel(ctx, intent, req.Query, topK)
	e.observeStage(stateRetrieving, stageStart)

	if meta.err != nil && sem.err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve", errors.Join(meta.err, sem.err))
	}
	if meta.err != nil {
		slog.Warn("metadata_retrieval_partial_failure", "error", meta.err)
		e.partialFailure("metadata")
	}
	if sem.err != nil {
		slog.Warn("semantic_retrieval_partial_failure", "error", sem.err)
		e.partialFailure("semantic")
	}
	sources := domain.SourcesUsed{
		Metadata: meta.err == nil,
		Semantic: sem.err == nil,
	}

	stageStart = time.Now()
	fused := fuseResults(meta.matches, sem.matches, meta.err != nil, sem.err != nil, e.cfg.Fusion)
	e.observeStage(stateFusing, stageStart)

	budget := req.MaxContextChars
	if budget <= 0 {
		budget = e.cfg.ContextBudget
	}
	stageStart = time.Now()
	bundle := assembleContext(fused, budget)
	e.observeStage(stateAssembling, stageStart)

	if len(bundle.Snippets) == 0 {
		return &domain.AnswerResult{
			Answer:      noEvidenceAnswer,
			Citations:   []domain.Citation{},
			SourcesUsed: sources,
		}, nil
	}

	stageStart = time.Now()
	answer, degraded := e.synth.Synthesize(ctx, req.Query, bundle)
	e.observeStage(stateSynthesizing, stageStart)
	if degraded {
		e.degraded()
	}

	return &domain.AnswerResult{
		Answer:      answer,
		Citations:   bundle.Citations,
		Degraded:    degraded,
		SourcesUsed: sources,
	}, nil
}

type metadataOutcome struct {
	matches []domain.MetadataMatch
	err     error
}

type semanticOutcome struct {
	matches []domain.SemanticDocMatch
	err     error
}

// retrieveParallel runs both retrievers as independent tasks and joins them
// under the request deadline. On deadline it proceeds with whichever
// retriever completed; the cancel signal stops the one still running.
func (e *Engine) retrieveParallel(
	ctx context.Context,
	intent domain.ParsedIntent,
	rawQuery string,
	topK int,
) (metadataOutcome, semanticOutcome) {
	retrieveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	metaCh := make(chan metadataOutcome, 1)
	semCh := make(chan semanticOutcome, 1)

	go func() {
		matches, err := e.metadata.Retrieve(retrieveCtx, intent, rawQuery, topK)
		metaCh <- metadataOutcome{matches: matches, err: err}
	}()
	go func() {
		matches, err := e.semantic.Retrieve(retrieveCtx, intent.CorrectedQuery, topK)
		semCh <- semanticOutcome{matches: matches, err: err}
	}()

	var meta metadataOutcome
	var sem semanticOutcome
	metaPending, semPending := true, true
	for metaPending || semPending {
		select {
		case meta = <-metaCh:
			metaPending = false
		case sem = <-semCh:
			semPending = false
		case <-ctx.Done():
			if metaPending {
				meta = metadataOutcome{err: domain.WrapError(domain.ErrTemporary, "metadata retrieval", ctx.Err())}
			}
			if semPending {
				sem = semanticOutcome{err: domain.WrapError(domain.ErrTemporary, "semantic retrieval", ctx.Err())}
			}
			return meta, sem
		}
	}
	return meta, sem
}

func (e *Engine) observeStage(stage string, start time.Time) {
	if e.observer != nil {
		e.observer.ObserveStage(stage, time.Since(start))
	}
}

func (e *Engine) partialFailure(source string) {
	if e.observer != nil {
		e.observer.PartialFailure(source)
	}
}

func (e *Engine) degraded() {
	if e.observer != nil {
		e.observer.DegradedAnswer()
	}
}
