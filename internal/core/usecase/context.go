package usecase

import (
	"unicode/utf8"

	"github.com/datareveal/docverse/internal/core/domain"
)

const defaultContextBudget = 6000

// assembleContext greedily accepts snippets in ranked order until the
// character budget would be exceeded. If the very first snippet alone
// exceeds the budget it is truncated to fit and flagged, so any non-empty
// ranking always yields at least one snippet. The bundle size never exceeds
// the budget.
func assembleContext(results []domain.FusedResult, budget int) domain.ContextBundle {
	if budget <= 0 {
		budget = defaultContextBudget
	}

	bundle := domain.ContextBundle{
		Snippets:  []domain.ContextSnippet{},
		Citations: []domain.Citation{},
	}

	for _, result := range results {
		for _, snippet := range result.Snippets {
			if snippet.Text == "" {
				continue
			}

			remaining := budget - bundle.Size
			if len(snippet.Text) > remaining {
				if len(bundle.Snippets) == 0 {
					truncated := snippet
					truncated.Text = truncateText(snippet.Text, budget)
					appendSnippet(&bundle, truncated, true)
				}
				return bundle
			}
			appendSnippet(&bundle, snippet, false)
		}
	}
	return bundle
}

func appendSnippet(bundle *domain.ContextBundle, snippet domain.Snippet, truncated bool) {
	bundle.Snippets = append(bundle.Snippets, domain.ContextSnippet{
		Snippet:   snippet,
		Truncated: truncated,
	})
	bundle.Citations = append(bundle.Citations, domain.Citation{
		DocumentID: snippet.DocumentID,
		SnippetID:  snippet.ID,
		Page:       snippet.Page,
		Truncated:  truncated,
	})
	bundle.Size += len(snippet.Text)
}

// truncateText cuts s to at most max bytes without splitting a UTF-8 rune,
// preserving content from the start of the snippet.
func truncateText(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
