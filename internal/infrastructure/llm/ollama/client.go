package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/datareveal/docverse/internal/core/domain"
	"github.com/datareveal/docverse/internal/infrastructure/llm"
)

// Client talks to a local Ollama instance. It implements the generator,
// embedder and intent-extractor ports. Calls are single-shot: retry policy
// lives with the callers, not here.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := c.generate(ctx, map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	})
	if err != nil {
		return "", mapError("generate", err)
	}
	return text, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": c.embedModel,
		"input": []string{text},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, mapError("embed", err)
	}
	if len(response.Embeddings) == 0 {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed", fmt.Errorf("empty embedding result"))
	}
	return response.Embeddings[0], nil
}

func (c *Client) ExtractIntent(ctx context.Context, query string, history []string) (domain.ParsedIntent, error) {
	raw, err := c.generateJSON(ctx, llm.BuildIntentPrompt(query, history))
	if err != nil {
		return domain.ParsedIntent{}, mapError("extract intent", err)
	}
	return llm.ParseIntentJSON(raw)
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	})
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
