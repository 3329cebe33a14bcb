package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/datareveal/docverse/internal/core/domain"
)

// Client reads chunk embeddings from a Qdrant collection maintained by the
// external indexing pipeline. The engine only searches; it never upserts.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Search returns the closest chunks by cosine similarity. Scores come back
// raw from Qdrant in [-1,1]; normalization is the caller's concern.
func (c *Client) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.SemanticMatch, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "qdrant search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return nil, fmt.Errorf("qdrant search status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("qdrant search status: %s", resp.Status)
	}

	var searchResp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.SemanticMatch, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		chunkID := getStringPayload(r.Payload, "chunk_id")
		if chunkID == "" {
			chunkID = fmt.Sprintf("%v", r.ID)
		}
		out = append(out, domain.SemanticMatch{
			Chunk: domain.EmbeddingChunk{
				ID:         chunkID,
				DocumentID: getStringPayload(r.Payload, "doc_id"),
				Text:       getStringPayload(r.Payload, "text"),
				Page:       getIntPayload(r.Payload, "page"),
				Section:    getStringPayload(r.Payload, "section"),
			},
			Score: r.Score,
		})
	}
	return out, nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
