package usecase

import (
	"testing"

	"github.com/datareveal/docverse/internal/core/domain"
)

func TestRuleBasedIntentExtractsKnownFormats(t *testing.T) {
	intent := ruleBasedIntent("close out visit confirmation for site 1002 from sponsor Novartis")

	if got := intent.Slots[domain.SlotSiteNumber]; got != "1002" {
		t.Fatalf("expected site number 1002, got %q", got)
	}
	if got := intent.Slots[domain.SlotSponsor]; got != "Novartis" {
		t.Fatalf("expected sponsor Novartis, got %q", got)
	}
	if got := intent.Slots[domain.SlotEntity]; got != "CLOSE OUT VISIT CONFIRMATION LETTER" {
		t.Fatalf("expected close out confirmation entity, got %q", got)
	}
	if intent.Confidence != ruleConfidenceWithSlots {
		t.Fatalf("expected confidence %f with slots, got %f", ruleConfidenceWithSlots, intent.Confidence)
	}
}

func TestRuleBasedIntentProtocolNumber(t *testing.T) {
	intent := ruleBasedIntent("anything about stml-ela-0222")
	if got := intent.Slots[domain.SlotProtocolNumber]; got != "STML-ELA-0222" {
		t.Fatalf("expected uppercased protocol number, got %q", got)
	}
}

func TestRuleBasedIntentNoSlots(t *testing.T) {
	intent := ruleBasedIntent("what were the main findings")
	if len(intent.Slots) != 0 {
		t.Fatalf("expected no slots, got %v", intent.Slots)
	}
	if intent.Confidence != ruleConfidenceNoSlots {
		t.Fatalf("expected confidence %f without slots, got %f", ruleConfidenceNoSlots, intent.Confidence)
	}
	if intent.CorrectedQuery != "what were the main findings" {
		t.Fatalf("expected raw query passthrough, got %q", intent.CorrectedQuery)
	}
}

func TestMatchEntityRequiresDocumentKind(t *testing.T) {
	if got := matchEntity("when was the monitoring visit"); got != "" {
		t.Fatalf("visit type alone must not form an entity, got %q", got)
	}
	if got := matchEntity("site initiation visit follow up letter"); got != "SITE INITIATION VISIT FOLLOW-UP LETTER" {
		t.Fatalf("expected follow-up letter entity, got %q", got)
	}
}
