package usecase

import (
	"sort"

	"github.com/datareveal/docverse/internal/core/domain"
)

type FusionConfig struct {
	// MetadataWeight and SemanticWeight combine the two scores for a
	// document present in both match lists.
	MetadataWeight float64
	SemanticWeight float64
	// SinglePenalty discounts a document seen by only one retriever, unless
	// the other retriever failed outright (unknown is not disagreement).
	SinglePenalty float64
	// TopN truncates the fused ranking.
	TopN int
	// MetadataSnippetChars bounds the fallback snippet taken from a
	// record's stored content when no semantic chunk contributed.
	MetadataSnippetChars int
}

func (c FusionConfig) normalize() FusionConfig {
	if c.MetadataWeight <= 0 {
		c.MetadataWeight = 0.5
	}
	if c.SemanticWeight <= 0 {
		c.SemanticWeight = 0.5
	}
	if c.SinglePenalty <= 0 || c.SinglePenalty >= 1 {
		c.SinglePenalty = 0.85
	}
	if c.TopN <= 0 {
		c.TopN = 5
	}
	if c.MetadataSnippetChars <= 0 {
		c.MetadataSnippetChars = 1500
	}
	return c
}

type fusedCandidate struct {
	meta *domain.MetadataMatch
	sem  *domain.SemanticDocMatch
}

// fuseResults merges the two retrievers' outputs into one ranking,
// deduplicated by document id. It is a pure function of its inputs:
// identical match lists, weights and failure flags always yield identical
// ordering (ties broken by document id ascending).
func fuseResults(
	meta []domain.MetadataMatch,
	sem []domain.SemanticDocMatch,
	metaFailed, semFailed bool,
	cfg FusionConfig,
) []domain.FusedResult {
	cfg = cfg.normalize()

	acc := make(map[string]*fusedCandidate, len(meta)+len(sem))
	for i := range meta {
		id := meta[i].Record.DocumentID
		if id == "" {
			continue
		}
		candidate := acc[id]
		if candidate == nil {
			candidate = &fusedCandidate{}
			acc[id] = candidate
		}
		if candidate.meta == nil || meta[i].Score > candidate.meta.Score {
			candidate.meta = &meta[i]
		}
	}
	for i := range sem {
		id := sem[i].DocumentID
		if id == "" {
			continue
		}
		candidate := acc[id]
		if candidate == nil {
			candidate = &fusedCandidate{}
			acc[id] = candidate
		}
		candidate.sem = &sem[i]
	}

	out := make([]domain.FusedResult, 0, len(acc))
	for id, candidate := range acc {
		result := domain.FusedResult{DocumentID: id}

		switch {
		case candidate.meta != nil && candidate.sem != nil:
			m, s := candidate.meta.Score, candidate.sem.Score
			result.MetadataScore = &m
			result.SemanticScore = &s
			result.Score = cfg.MetadataWeight*m + cfg.SemanticWeight*s
		case candidate.meta != nil:
			m := candidate.meta.Score
			result.MetadataScore = &m
			result.Score = m
			if !semFailed {
				result.Score *= cfg.SinglePenalty
			}
		default:
			s := candidate.sem.Score
			result.SemanticScore = &s
			result.Score = s
			if !metaFailed {
				result.Score *= cfg.SinglePenalty
			}
		}

		if candidate.sem != nil {
			result.Snippets = candidate.sem.Snippets
		}
		if len(result.Snippets) == 0 && candidate.meta != nil {
			if snippet, ok := metadataSnippet(candidate.meta.Record, candidate.meta.Score, cfg.MetadataSnippetChars); ok {
				result.Snippets = []domain.Snippet{snippet}
			}
		}

		out = append(out, result)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocumentID < out[j].DocumentID
	})

	if len(out) > cfg.TopN {
		out = out[:cfg.TopN]
	}
	return out
}

// metadataSnippet builds a citable snippet from the head of a record's
// stored content, for documents the semantic retriever did not surface.
func metadataSnippet(record domain.MetadataRecord, score float64, maxChars int) (domain.Snippet, bool) {
	if record.Content == "" {
		return domain.Snippet{}, false
	}
	return domain.Snippet{
		ID:         record.DocumentID + "#content",
		DocumentID: record.DocumentID,
		Text:       truncateText(record.Content, maxChars),
		Score:      score,
	}, true
}
