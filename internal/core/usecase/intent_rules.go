package usecase

import (
	"regexp"
	"strings"

	"github.com/datareveal/docverse/internal/core/domain"
)

// Deterministic fallback extraction over known field formats, used when the
// language capability times out or fails. Partial intent degrades quality,
// never halts the pipeline.

var (
	// Protocol numbers look like PR-567 or (ELEVATE) STML-ELA-0222: letter
	// groups joined by dashes ending in a numeric block.
	protocolPattern = regexp.MustCompile(`(?i)\b([A-Z]{2,}(?:-[A-Z0-9]+)*-\d{2,}[A-Z0-9]*)\b`)
	sitePattern     = regexp.MustCompile(`(?i)\bsite\s*(?:number|no\.?|#)?\s*(\d{3,6})\b`)
	craPattern      = regexp.MustCompile(`(?i)\bcra\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
	sponsorPattern  = regexp.MustCompile(`(?i)\bsponsor\s+([A-Z][A-Za-z0-9&.-]+(?:\s+[A-Z][A-Za-z0-9&.-]+)?)`)
)

var visitTypeKeywords = []struct {
	keywords []string
	visit    string
}{
	{[]string{"pre-study", "pre study", "pssv"}, "PRE-STUDY SITE VISIT"},
	{[]string{"site initiation", "initiation", "siv"}, "SITE INITIATION VISIT"},
	{[]string{"close out", "closeout", "close-out", "cov"}, "CLOSE OUT VISIT"},
	{[]string{"monitoring", "imv"}, "MONITORING VISIT"},
}

const (
	ruleConfidenceWithSlots = 0.6
	ruleConfidenceNoSlots   = 0.3
)

// ruleBasedIntent extracts entity slots with pattern matching only. The raw
// text is passed through uncorrected.
func ruleBasedIntent(query string) domain.ParsedIntent {
	slots := make(map[string]string)

	if m := protocolPattern.FindStringSubmatch(query); m != nil {
		slots[domain.SlotProtocolNumber] = strings.ToUpper(m[1])
	}
	if m := sitePattern.FindStringSubmatch(query); m != nil {
		slots[domain.SlotSiteNumber] = m[1]
	}
	if m := craPattern.FindStringSubmatch(query); m != nil {
		slots[domain.SlotCRAName] = m[1]
	}
	if m := sponsorPattern.FindStringSubmatch(query); m != nil {
		slots[domain.SlotSponsor] = m[1]
	}
	if entity := matchEntity(query); entity != "" {
		slots[domain.SlotEntity] = entity
	}

	confidence := ruleConfidenceNoSlots
	if len(slots) > 0 {
		confidence = ruleConfidenceWithSlots
	}

	return domain.ParsedIntent{
		CorrectedQuery: strings.TrimSpace(query),
		Slots:          slots,
		Confidence:     confidence,
	}
}

// matchEntity reconstructs a classification entity from visit-type and
// document-kind keywords, e.g. "monitoring visit report" -> "MONITORING
// VISIT REPORT". Both parts must be present for a full entity.
func matchEntity(query string) string {
	lower := strings.ToLower(query)

	visit := ""
	for _, candidate := range visitTypeKeywords {
		for _, keyword := range candidate.keywords {
			if strings.Contains(lower, keyword) {
				visit = candidate.visit
				break
			}
		}
		if visit != "" {
			break
		}
	}
	if visit == "" {
		return ""
	}

	switch {
	case strings.Contains(lower, "report"):
		return visit + " REPORT"
	case strings.Contains(lower, "confirmation"):
		return visit + " CONFIRMATION LETTER"
	case strings.Contains(lower, "follow"):
		return visit + " FOLLOW-UP LETTER"
	default:
		return ""
	}
}
