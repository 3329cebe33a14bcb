package domain

import "time"

// MetadataRecord is one document row in the external metadata store.
// Records are produced by the ingestion/classification pipeline; this
// engine only reads them.
type MetadataRecord struct {
	DocumentID string            `json:"document_id"`
	Filename   string            `json:"filename"`
	Entity     string            `json:"entity"`
	FolderName string            `json:"folder_name"`
	Fields     map[string]string `json:"metadata"`
	Content    string            `json:"formatted_content,omitempty"`
	UploadedAt time.Time         `json:"uploaded_at"`
}

// Field returns the value of a named metadata field, or "" when the field
// is absent or was stored as the ingestion placeholder "N/A".
func (r MetadataRecord) Field(name string) string {
	v := r.Fields[name]
	if v == "N/A" {
		return ""
	}
	return v
}

// EmbeddingChunk is one embedded span of a document in the external vector
// store, keyed back to the metadata store by DocumentID.
type EmbeddingChunk struct {
	ID         string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
	Page       int    `json:"page,omitempty"`
	Section    string `json:"section,omitempty"`
}
