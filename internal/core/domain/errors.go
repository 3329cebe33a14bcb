package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery rejects malformed input before any retrieval runs.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrRetrievalUnavailable means both retrieval paths failed for one request.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrGeneration marks a failure of the external generation capability.
	ErrGeneration = errors.New("generation failure")
	// ErrEmbedding marks a failure of the external embedding capability.
	ErrEmbedding = errors.New("embedding failure")
	// ErrRateLimited is surfaced when an external capability throttles us.
	ErrRateLimited = errors.New("rate limited")
	// ErrTemporary tags transient infrastructure failures that callers may retry.
	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
