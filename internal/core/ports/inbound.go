package ports

import (
	"context"

	"github.com/datareveal/docverse/internal/core/domain"
)

// QueryEngine is the inbound contract for answering questions over the
// document corpus.
type QueryEngine interface {
	Ask(ctx context.Context, req domain.QueryRequest) (*domain.AnswerResult, error)
}

// FieldSearcher is the inbound contract for direct metadata field search.
type FieldSearcher interface {
	SearchByField(ctx context.Context, field, value string, exact bool) ([]domain.MetadataRecord, error)
}
