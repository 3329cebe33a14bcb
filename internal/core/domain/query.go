package domain

// QueryRequest is one user question with per-request limits. Requests are
// ephemeral; nothing in them is persisted.
type QueryRequest struct {
	Query           string   `json:"query"`
	History         []string `json:"conversation_history,omitempty"`
	TopK            int      `json:"top_k,omitempty"`
	MaxContextChars int      `json:"max_context_chars,omitempty"`
}

// ParsedIntent is the normalized form of a raw query: a corrected query for
// semantic retrieval plus extracted entity slots for metadata filtering.
type ParsedIntent struct {
	CorrectedQuery string            `json:"corrected_query"`
	Slots          map[string]string `json:"slots"`
	Confidence     float64           `json:"confidence"`
}

// Slot names produced by intent extraction and scored by the metadata retriever.
const (
	SlotSponsor        = "sponsor"
	SlotProtocolNumber = "protocol_number"
	SlotCRAName        = "cra_name"
	SlotSiteNumber     = "site_number"
	SlotEntity         = "entity"
	SlotFilename       = "filename"
)

// SourcesUsed reports which retrieval paths contributed to a response.
type SourcesUsed struct {
	Metadata bool `json:"metadata"`
	Semantic bool `json:"semantic"`
}

// Citation points an answer back at a supporting snippet.
type Citation struct {
	DocumentID string `json:"document_id"`
	SnippetID  string `json:"snippet_id"`
	Page       int    `json:"page,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// AnswerResult is the final response of the engine. Degraded answers carry
// raw snippets instead of synthesized text; they are never empty when any
// retrieval evidence exists.
type AnswerResult struct {
	Answer      string      `json:"answer"`
	Citations   []Citation  `json:"citations"`
	Degraded    bool        `json:"degraded"`
	SourcesUsed SourcesUsed `json:"sources_used"`
}
