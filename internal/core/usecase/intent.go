package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/datareveal/docverse/internal/core/domain"
	"github.com/datareveal/docverse/internal/core/ports"
)

type IntentParserConfig struct {
	// Timeout bounds the language-capability call; on expiry the parser
	// falls back to rule-based extraction.
	Timeout time.Duration
	// ConfidenceThreshold below which extracted slots are discarded and
	// metadata filtering is skipped. The corrected text still feeds
	// semantic retrieval.
	ConfidenceThreshold float64
}

func (c IntentParserConfig) normalize() IntentParserConfig {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		c.ConfidenceThreshold = 0.5
	}
	return c
}

// IntentParser normalizes and decomposes raw queries for both retrievers.
type IntentParser struct {
	extractor ports.IntentExtractor
	cfg       IntentParserConfig
}

func NewIntentParser(extractor ports.IntentExtractor, cfg IntentParserConfig) *IntentParser {
	return &IntentParser{
		extractor: extractor,
		cfg:       cfg.normalize(),
	}
}

func (p *IntentParser) Parse(ctx context.Context, query string, history []string) (domain.ParsedIntent, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return domain.ParsedIntent{}, domain.WrapError(domain.ErrInvalidQuery, "parse intent", fmt.Errorf("query is empty"))
	}

	extractCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	intent, err := p.extractor.ExtractIntent(extractCtx, trimmed, history)
	if err != nil {
		slog.Warn("intent_extraction_fallback", "error", err)
		intent = ruleBasedIntent(trimmed)
	}

	if strings.TrimSpace(intent.CorrectedQuery) == "" {
		intent.CorrectedQuery = trimmed
	}
	if intent.Slots == nil {
		intent.Slots = map[string]string{}
	}
	if intent.Confidence < p.cfg.ConfidenceThreshold {
		intent.Slots = map[string]string{}
	}
	return intent, nil
}
