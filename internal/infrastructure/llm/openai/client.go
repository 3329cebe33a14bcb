package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/datareveal/docverse/internal/core/domain"
	"github.com/datareveal/docverse/internal/infrastructure/llm"
)

// Client backs the generator, embedder and intent-extractor ports with an
// OpenAI-compatible API. Like the local backend it performs single calls
// only; retry policy stays with the callers.
type Client struct {
	api        *openai.Client
	genModel   string
	embedModel string
}

type Config struct {
	APIKey     string
	BaseURL    string
	GenModel   string
	EmbedModel string
}

func (c Config) normalize() Config {
	if c.GenModel == "" {
		c.GenModel = openai.GPT4oMini
	}
	if c.EmbedModel == "" {
		c.EmbedModel = string(openai.SmallEmbedding3)
	}
	return c
}

func New(cfg Config) *Client {
	cfg = cfg.normalize()
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{
		api:        openai.NewClientWithConfig(apiCfg),
		genModel:   cfg.GenModel,
		embedModel: cfg.EmbedModel,
	}
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.genModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", mapError("generate", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.WrapError(domain.ErrGeneration, "generate", fmt.Errorf("no choices in response"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, mapError("embed", err)
	}
	if len(resp.Data) == 0 {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed", fmt.Errorf("empty embedding result"))
	}
	return resp.Data[0].Embedding, nil
}

func (c *Client) ExtractIntent(ctx context.Context, query string, history []string) (domain.ParsedIntent, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.genModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: llm.BuildIntentPrompt(query, history)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return domain.ParsedIntent{}, mapError("extract intent", err)
	}
	if len(resp.Choices) == 0 {
		return domain.ParsedIntent{}, fmt.Errorf("extract intent: no choices in response")
	}
	return llm.ParseIntentJSON(resp.Choices[0].Message.Content)
}

func mapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return domain.WrapError(domain.ErrRateLimited, operation, err)
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return domain.WrapError(domain.ErrTemporary, operation, err)
		default:
			return err
		}
	}
	// Transport-level failures (connection refused, DNS) are worth retrying.
	return domain.WrapError(domain.ErrTemporary, operation, err)
}
