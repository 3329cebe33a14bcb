package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/datareveal/docverse/internal/core/domain"
	"github.com/datareveal/docverse/internal/core/ports"
)

type SemanticRetrieverConfig struct {
	// CandidateMultiplier widens the chunk search so that per-document
	// deduplication still fills topK documents.
	CandidateMultiplier int
}

func (c SemanticRetrieverConfig) normalize() SemanticRetrieverConfig {
	if c.CandidateMultiplier <= 0 {
		c.CandidateMultiplier = 4
	}
	return c
}

// SemanticRetriever embeds the corrected query text and performs
// nearest-neighbor search over the vector store. No hard filtering by
// metadata hits is applied; metadata results only bias ranking downstream.
type SemanticRetriever struct {
	embedder ports.Embedder
	store    ports.VectorStore
	cfg      SemanticRetrieverConfig
}

func NewSemanticRetriever(embedder ports.Embedder, store ports.VectorStore, cfg SemanticRetrieverConfig) *SemanticRetriever {
	return &SemanticRetriever{
		embedder: embedder,
		store:    store,
		cfg:      cfg.normalize(),
	}
}

func (r *SemanticRetriever) Retrieve(ctx context.Context, text string, topK int) ([]domain.SemanticDocMatch, error) {
	if topK <= 0 {
		topK = 5
	}

	vector, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) == 0 {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed query", fmt.Errorf("empty embedding result"))
	}

	matches, err := r.store.Search(ctx, vector, topK*r.cfg.CandidateMultiplier)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	return groupByDocument(matches, topK), nil
}

// groupByDocument deduplicates chunks of the same document to the
// best-scoring chunk for ranking, retaining every chunk as a snippet for
// context assembly. Chunks without a document id cannot be joined against
// the metadata store and are excluded.
func groupByDocument(matches []domain.SemanticMatch, topK int) []domain.SemanticDocMatch {
	byDoc := make(map[string]*domain.SemanticDocMatch)
	for _, match := range matches {
		if match.Chunk.DocumentID == "" {
			continue
		}
		score := normalizeCosine(match.Score)
		snippet := domain.Snippet{
			ID:         match.Chunk.ID,
			DocumentID: match.Chunk.DocumentID,
			Text:       match.Chunk.Text,
			Page:       match.Chunk.Page,
			Section:    match.Chunk.Section,
			Score:      score,
		}

		doc, ok := byDoc[match.Chunk.DocumentID]
		if !ok {
			byDoc[match.Chunk.DocumentID] = &domain.SemanticDocMatch{
				DocumentID: match.Chunk.DocumentID,
				Score:      score,
				Snippets:   []domain.Snippet{snippet},
			}
			continue
		}
		doc.Snippets = append(doc.Snippets, snippet)
		if score > doc.Score {
			doc.Score = score
		}
	}

	out := make([]domain.SemanticDocMatch, 0, len(byDoc))
	for _, doc := range byDoc {
		sort.SliceStable(doc.Snippets, func(i, j int) bool {
			if doc.Snippets[i].Score != doc.Snippets[j].Score {
				return doc.Snippets[i].Score > doc.Snippets[j].Score
			}
			return doc.Snippets[i].ID < doc.Snippets[j].ID
		})
		out = append(out, *doc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocumentID < out[j].DocumentID
	})

	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// normalizeCosine maps cosine similarity from [-1,1] to [0,1], clamping
// stray values from the store.
func normalizeCosine(s float64) float64 {
	n := (s + 1) / 2
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}
