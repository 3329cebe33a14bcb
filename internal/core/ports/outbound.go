package ports

import (
	"context"

	"github.com/datareveal/docverse/internal/core/domain"
)

// MetadataStore is read-only, field-approximate access to the structured
// metadata store. It is populated by the external ingestion pipeline.
type MetadataStore interface {
	// FetchCandidates returns records whose searchable text matches any of
	// the given tokens, most recently uploaded first. The caller scores and
	// ranks them; the store only prefilters.
	FetchCandidates(ctx context.Context, tokens []string, limit int) ([]domain.MetadataRecord, error)
	// SearchByField returns records whose named metadata field equals the
	// value (case-insensitive) when exact, or contains it otherwise.
	SearchByField(ctx context.Context, field, value string, exact bool, limit int) ([]domain.MetadataRecord, error)
}

// VectorStore is read-only nearest-neighbor search over chunk embeddings.
type VectorStore interface {
	// Search returns the closest chunks by cosine similarity, scores in [-1,1].
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.SemanticMatch, error)
}

// IntentExtractor invokes the external language capability to normalize a
// query and extract entity slots. No retries are hidden inside.
type IntentExtractor interface {
	ExtractIntent(ctx context.Context, query string, history []string) (domain.ParsedIntent, error)
}

// Embedder builds a vector for query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator is the external generation capability: prompt in, text out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
