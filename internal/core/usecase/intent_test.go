package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/datareveal/docverse/internal/core/domain"
)

func TestParseRejectsEmptyQuery(t *testing.T) {
	extractor := &fakeIntentExtractor{}
	parser := NewIntentParser(extractor, IntentParserConfig{})

	_, err := parser.Parse(context.Background(), "   ", nil)
	if !domain.IsKind(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected invalid query error, got %v", err)
	}
	if extractor.calls != 0 {
		t.Fatalf("extractor must not be called for empty query, got %d calls", extractor.calls)
	}
}

func TestParseKeepsConfidentSlots(t *testing.T) {
	extractor := &fakeIntentExtractor{
		intent: domain.ParsedIntent{
			CorrectedQuery: "monitoring visit reports for protocol PR-567",
			Slots:          map[string]string{domain.SlotProtocolNumber: "PR-567"},
			Confidence:     0.9,
		},
	}
	parser := NewIntentParser(extractor, IntentParserConfig{ConfidenceThreshold: 0.5})

	intent, err := parser.Parse(context.Background(), "monitoring visit reporst for protocol PR-567", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Slots[domain.SlotProtocolNumber] != "PR-567" {
		t.Fatalf("expected protocol slot to survive, got %v", intent.Slots)
	}
	if intent.CorrectedQuery != "monitoring visit reports for protocol PR-567" {
		t.Fatalf("expected corrected query, got %q", intent.CorrectedQuery)
	}
}

func TestParseDiscardsLowConfidenceSlots(t *testing.T) {
	extractor := &fakeIntentExtractor{
		intent: domain.ParsedIntent{
			CorrectedQuery: "reports about enrollment",
			Slots:          map[string]string{domain.SlotSponsor: "maybe"},
			Confidence:     0.2,
		},
	}
	parser := NewIntentParser(extractor, IntentParserConfig{ConfidenceThreshold: 0.5})

	intent, err := parser.Parse(context.Background(), "reports about enrollment", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intent.Slots) != 0 {
		t.Fatalf("expected slots discarded below threshold, got %v", intent.Slots)
	}
	if intent.CorrectedQuery != "reports about enrollment" {
		t.Fatalf("corrected query must survive, got %q", intent.CorrectedQuery)
	}
}

func TestParseFallsBackToRulesOnExtractorFailure(t *testing.T) {
	extractor := &fakeIntentExtractor{err: errors.New("model unavailable")}
	parser := NewIntentParser(extractor, IntentParserConfig{ConfidenceThreshold: 0.5})

	intent, err := parser.Parse(context.Background(), "monitoring visit report for protocol PR-567", nil)
	if err != nil {
		t.Fatalf("extractor failure must not fail parsing, got %v", err)
	}
	if intent.Slots[domain.SlotProtocolNumber] != "PR-567" {
		t.Fatalf("expected rule-based protocol slot, got %v", intent.Slots)
	}
	if intent.Slots[domain.SlotEntity] != "MONITORING VISIT REPORT" {
		t.Fatalf("expected rule-based entity slot, got %v", intent.Slots)
	}
	if intent.CorrectedQuery != "monitoring visit report for protocol PR-567" {
		t.Fatalf("fallback must pass the raw query through, got %q", intent.CorrectedQuery)
	}
}

func TestParseFillsEmptyCorrectedQuery(t *testing.T) {
	extractor := &fakeIntentExtractor{
		intent: domain.ParsedIntent{Confidence: 0.9},
	}
	parser := NewIntentParser(extractor, IntentParserConfig{})

	intent, err := parser.Parse(context.Background(), "site 1002 closeout", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.CorrectedQuery != "site 1002 closeout" {
		t.Fatalf("expected raw query as corrected query, got %q", intent.CorrectedQuery)
	}
	if intent.Slots == nil {
		t.Fatalf("slots must never be nil")
	}
}
