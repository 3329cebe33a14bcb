package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/datareveal/docverse/internal/core/domain"
	"github.com/datareveal/docverse/internal/core/ports"
	"github.com/datareveal/docverse/internal/infrastructure/resilience"
)

// Synthesizer adapts the external generation capability: it sends the
// assembled context through a fixed instruction template, retries transient
// failures with backoff, and degrades to raw snippets once retries are
// exhausted. A degraded answer is never empty when retrieval evidence
// exists.
type Synthesizer struct {
	generator ports.Generator
	executor  *resilience.Executor
}

func NewSynthesizer(generator ports.Generator, executor *resilience.Executor) *Synthesizer {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Synthesizer{
		generator: generator,
		executor:  executor,
	}
}

// Synthesize returns the answer text and whether it is degraded.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, bundle domain.ContextBundle) (string, bool) {
	prompt := buildAnswerPrompt(question, bundle)

	var answer string
	err := s.executor.Execute(ctx, "llm.generate", func(ctx context.Context) error {
		text, err := s.generator.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return domain.WrapError(domain.ErrGeneration, "llm.generate", fmt.Errorf("empty completion"))
		}
		answer = strings.TrimSpace(text)
		return nil
	}, classifyGenerationError)
	if err != nil {
		slog.Warn("synthesis_degraded", "error", err)
		return degradedAnswer(bundle), true
	}
	return answer, false
}

func classifyGenerationError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if domain.IsKind(err, context.Canceled) || domain.IsKind(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrRateLimited) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if domain.IsKind(err, domain.ErrGeneration) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func buildAnswerPrompt(question string, bundle domain.ContextBundle) string {
	var contextBuilder strings.Builder
	for idx, cs := range bundle.Snippets {
		fmt.Fprintf(&contextBuilder, "[%d] document=%s", idx+1, cs.Snippet.DocumentID)
		if cs.Snippet.Page > 0 {
			fmt.Fprintf(&contextBuilder, " page=%d", cs.Snippet.Page)
		}
		if cs.Truncated {
			contextBuilder.WriteString(" (truncated)")
		}
		contextBuilder.WriteString("\n")
		contextBuilder.WriteString(cs.Snippet.Text)
		contextBuilder.WriteString("\n\n")
	}

	return fmt.Sprintf(`You answer questions about clinical trial monitoring documents.
Use only the numbered context snippets below. Cite snippet numbers like [1]
next to the facts they support. If the context is insufficient, say so
directly.

Question:
%s

Context:
%s`, question, contextBuilder.String())
}

// degradedAnswer lists the raw snippets with their provenance when
// synthesis is unavailable.
func degradedAnswer(bundle domain.ContextBundle) string {
	var b strings.Builder
	b.WriteString("The answer could not be synthesized. Most relevant passages:\n\n")
	for idx, cs := range bundle.Snippets {
		fmt.Fprintf(&b, "[%d] document=%s", idx+1, cs.Snippet.DocumentID)
		if cs.Snippet.Page > 0 {
			fmt.Fprintf(&b, " page=%d", cs.Snippet.Page)
		}
		b.WriteString("\n")
		b.WriteString(cs.Snippet.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}
