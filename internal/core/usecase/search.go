package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/datareveal/docverse/internal/core/domain"
	"github.com/datareveal/docverse/internal/core/ports"
)

// searchableFields whitelists the metadata fields exposed by direct field
// search; anything else is rejected before hitting the store.
var searchableFields = map[string]struct{}{
	"Sponsor":           {},
	"Protocol Number":   {},
	"CRA Name":          {},
	"Site Number":       {},
	"Visit Type":        {},
	"Investigator Name": {},
	"Date of Letter":    {},
	"Entity":            {},
	"Filename":          {},
}

type FieldSearchConfig struct {
	// Limit caps the number of records returned per search.
	Limit int
	// FuzzyThreshold is the minimum similarity for non-exact matches.
	FuzzyThreshold float64
	// CandidateLimit caps prefiltered records scored during fuzzy search.
	CandidateLimit int
}

func (c FieldSearchConfig) normalize() FieldSearchConfig {
	if c.Limit <= 0 {
		c.Limit = 20
	}
	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		c.FuzzyThreshold = 0.8
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = 200
	}
	return c
}

// FieldSearch answers direct metadata lookups ("all reports by CRA X")
// without the full query pipeline. Exact mode delegates equality matching
// to the store; fuzzy mode scores prefiltered candidates in memory with the
// same similarity used by the retrieval pipeline.
type FieldSearch struct {
	store ports.MetadataStore
	cfg   FieldSearchConfig
}

func NewFieldSearch(store ports.MetadataStore, cfg FieldSearchConfig) *FieldSearch {
	return &FieldSearch{
		store: store,
		cfg:   cfg.normalize(),
	}
}

func (s *FieldSearch) SearchByField(ctx context.Context, field, value string, exact bool) ([]domain.MetadataRecord, error) {
	if _, ok := searchableFields[field]; !ok {
		return nil, domain.WrapError(domain.ErrInvalidQuery, "field search", fmt.Errorf("unsupported field %q", field))
	}
	if value == "" {
		return nil, domain.WrapError(domain.ErrInvalidQuery, "field search", fmt.Errorf("empty value"))
	}

	if exact {
		records, err := s.store.SearchByField(ctx, field, value, true, s.cfg.Limit)
		if err != nil {
			return nil, fmt.Errorf("search by field: %w", err)
		}
		return records, nil
	}
	return s.fuzzySearch(ctx, field, value)
}

func (s *FieldSearch) fuzzySearch(ctx context.Context, field, value string) ([]domain.MetadataRecord, error) {
	candidates, err := s.store.FetchCandidates(ctx, queryTokens(value), s.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch field candidates: %w", err)
	}

	type scored struct {
		record domain.MetadataRecord
		score  float64
	}
	hits := make([]scored, 0, len(candidates))
	for _, record := range candidates {
		stored := fieldValue(record, field)
		if stored == "" {
			continue
		}
		if sim := fieldSimilarity(value, stored); sim >= s.cfg.FuzzyThreshold {
			hits = append(hits, scored{record: record, score: sim})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].record.DocumentID < hits[j].record.DocumentID
	})
	if len(hits) > s.cfg.Limit {
		hits = hits[:s.cfg.Limit]
	}

	out := make([]domain.MetadataRecord, 0, len(hits))
	for _, hit := range hits {
		out = append(out, hit.record)
	}
	return out, nil
}

func fieldValue(record domain.MetadataRecord, field string) string {
	switch field {
	case "Filename":
		return record.Filename
	case "Entity":
		return record.Entity
	default:
		return record.Field(field)
	}
}
