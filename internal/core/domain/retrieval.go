package domain

// MetadataMatch is one fuzzy hit from the metadata store, with a combined
// per-field score normalized to [0,1].
type MetadataMatch struct {
	Record        MetadataRecord `json:"record"`
	Score         float64        `json:"score"`
	MatchedFields []string       `json:"matched_fields"`
}

// Snippet is a citable span of text contributed by retrieval.
type Snippet struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Page       int     `json:"page,omitempty"`
	Section    string  `json:"section,omitempty"`
	Score      float64 `json:"score"`
}

// SemanticMatch is one nearest-neighbor chunk hit with the store's raw
// cosine similarity in [-1,1].
type SemanticMatch struct {
	Chunk EmbeddingChunk `json:"chunk"`
	Score float64        `json:"score"`
}

// SemanticDocMatch groups the chunk hits of a single document: the best
// chunk score ranks the document, all chunks are retained for assembly.
type SemanticDocMatch struct {
	DocumentID string    `json:"document_id"`
	Score      float64   `json:"score"`
	Snippets   []Snippet `json:"snippets"`
}

// FusedResult is one document after score fusion. At most one FusedResult
// exists per document id per query.
type FusedResult struct {
	DocumentID    string    `json:"document_id"`
	Score         float64   `json:"score"`
	MetadataScore *float64  `json:"metadata_score,omitempty"`
	SemanticScore *float64  `json:"semantic_score,omitempty"`
	Snippets      []Snippet `json:"snippets"`
}

// ContextSnippet is a snippet accepted into the prompt context.
type ContextSnippet struct {
	Snippet   Snippet
	Truncated bool
}

// ContextBundle is the budgeted prompt context. Size never exceeds the
// configured budget.
type ContextBundle struct {
	Snippets  []ContextSnippet
	Citations []Citation
	Size      int
}
