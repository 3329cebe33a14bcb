// Package bootstrap wires configuration, infrastructure clients and the
// query pipeline into a runnable application.
package bootstrap

import (
	"fmt"
	"time"

	"github.com/datareveal/docverse/internal/config"
	"github.com/datareveal/docverse/internal/core/ports"
	"github.com/datareveal/docverse/internal/core/usecase"
	"github.com/datareveal/docverse/internal/infrastructure/llm/ollama"
	"github.com/datareveal/docverse/internal/infrastructure/llm/openai"
	"github.com/datareveal/docverse/internal/infrastructure/queue/nats"
	"github.com/datareveal/docverse/internal/infrastructure/repository/postgres"
	"github.com/datareveal/docverse/internal/infrastructure/resilience"
	"github.com/datareveal/docverse/internal/infrastructure/vector/qdrant"
	"github.com/datareveal/docverse/internal/observability/metrics"
)

const serviceName = "docverse-api"

type App struct {
	Config config.Config

	Engine   ports.QueryEngine
	Searcher ports.FieldSearcher
	Metrics  *metrics.QueryMetrics

	// Freshness is nil when NATS_URL is not configured.
	Freshness *nats.Freshness

	closeFn func()
}

func New(cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN, postgres.PoolConfig{
		MaxOpenConns:    cfg.PostgresMaxConns,
		MaxIdleConns:    cfg.PostgresMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.PostgresConnMaxLifetime),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	metadataStore := postgres.NewMetadataRepository(db)

	vectorStore := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	extractor, embedder, generator, err := buildLLM(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	m := metrics.NewQueryMetrics(serviceName)

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.RetryInitialBackoff),
		BreakerEnabled:      cfg.BreakerEnabled,
	})

	parser := usecase.NewIntentParser(extractor, usecase.IntentParserConfig{
		Timeout:             time.Duration(cfg.IntentTimeout),
		ConfidenceThreshold: cfg.IntentConfidenceThreshold,
	})
	metadataRetriever := usecase.NewMetadataRetriever(metadataStore, usecase.MetadataRetrieverConfig{
		FieldMatchThreshold: cfg.FieldMatchThreshold,
		CandidateLimit:      cfg.CandidateLimit,
	})
	semanticRetriever := usecase.NewSemanticRetriever(embedder, vectorStore, usecase.SemanticRetrieverConfig{})
	synthesizer := usecase.NewSynthesizer(generator, executor)

	engine := usecase.NewEngine(
		parser,
		metadataRetriever,
		semanticRetriever,
		synthesizer,
		m.PipelineObserver(serviceName),
		usecase.EngineConfig{
			RequestTimeout: time.Duration(cfg.RequestTimeout),
			TopK:           cfg.TopK,
			ContextBudget:  cfg.ContextBudgetChars,
			Fusion: usecase.FusionConfig{
				MetadataWeight: cfg.FusionMetadataWeight,
				SemanticWeight: cfg.FusionSemanticWeight,
				SinglePenalty:  cfg.FusionSinglePenalty,
				TopN:           cfg.FusionTopN,
			},
		},
	)

	searcher := usecase.NewFieldSearch(metadataStore, usecase.FieldSearchConfig{
		FuzzyThreshold: cfg.FieldMatchThreshold,
		CandidateLimit: cfg.CandidateLimit,
	})

	var freshness *nats.Freshness
	if cfg.NATSURL != "" {
		freshness, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			OnEvent: m.RecordIndexEvent,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init index freshness subscriber: %w", err)
		}
	}

	return &App{
		Config:    cfg,
		Engine:    engine,
		Searcher:  searcher,
		Metrics:   m,
		Freshness: freshness,

		closeFn: func() {
			if freshness != nil {
				freshness.Close()
			}
			_ = db.Close()
		},
	}, nil
}

func buildLLM(cfg config.Config) (ports.IntentExtractor, ports.Embedder, ports.Generator, error) {
	switch cfg.LLMProvider {
	case "openai":
		client := openai.New(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			GenModel:   cfg.OpenAIGenModel,
			EmbedModel: cfg.OpenAIEmbedModel,
		})
		return client, client, client, nil
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
		return client, client, client, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
