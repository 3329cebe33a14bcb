// Package llm holds the prompt and response plumbing shared by the
// generation backends.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/datareveal/docverse/internal/core/domain"
)

// BuildIntentPrompt asks the model for a strict-JSON decomposition of the
// query: a corrected query plus known entity slots.
func BuildIntentPrompt(query string, history []string) string {
	var b strings.Builder
	b.WriteString(`You normalize questions about clinical trial monitoring documents.
Return a strict JSON object with keys:
corrected_query (string, the question with typos fixed),
slots (object, only the keys you are sure about: sponsor, protocol_number, cra_name, site_number, entity, filename),
confidence (number from 0 to 1).
No markdown, no extra keys.
`)
	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, turn := range history {
			b.WriteString(turn)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nQuestion:\n")
	b.WriteString(query)
	return b.String()
}

// ParseIntentJSON decodes the model's intent response. Models wrap JSON in
// prose often enough that the first balanced object is salvaged before
// decoding. Placeholder slot values are dropped.
func ParseIntentJSON(raw string) (domain.ParsedIntent, error) {
	var decoded struct {
		CorrectedQuery string            `json:"corrected_query"`
		Slots          map[string]string `json:"slots"`
		Confidence     float64           `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &decoded); err != nil {
		return domain.ParsedIntent{}, fmt.Errorf("parse intent json: %w", err)
	}

	slots := make(map[string]string, len(decoded.Slots))
	for name, value := range decoded.Slots {
		value = strings.TrimSpace(value)
		if value == "" || strings.EqualFold(value, "n/a") || strings.EqualFold(value, "unknown") {
			continue
		}
		slots[name] = value
	}

	confidence := decoded.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return domain.ParsedIntent{
		CorrectedQuery: strings.TrimSpace(decoded.CorrectedQuery),
		Slots:          slots,
		Confidence:     confidence,
	}, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
