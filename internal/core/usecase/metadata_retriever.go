package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/datareveal/docverse/internal/core/domain"
	"github.com/datareveal/docverse/internal/core/ports"
)

type MetadataRetrieverConfig struct {
	// FieldWeights maps intent slot names to their share of the combined
	// score. Missing slots skip that field's contribution.
	FieldWeights map[string]float64
	// FieldMatchThreshold is the per-field similarity above which a field
	// counts as matched (spec acceptance threshold).
	FieldMatchThreshold float64
	// MinScore drops low-overlap candidates when no slots were extracted.
	MinScore float64
	// CandidateLimit caps how many prefiltered records are scored.
	CandidateLimit int
}

func defaultFieldWeights() map[string]float64 {
	return map[string]float64{
		domain.SlotProtocolNumber: 0.30,
		domain.SlotSponsor:        0.25,
		domain.SlotCRAName:        0.20,
		domain.SlotEntity:         0.15,
		domain.SlotFilename:       0.10,
	}
}

func (c MetadataRetrieverConfig) normalize() MetadataRetrieverConfig {
	if len(c.FieldWeights) == 0 {
		c.FieldWeights = defaultFieldWeights()
	}
	if c.FieldMatchThreshold <= 0 || c.FieldMatchThreshold > 1 {
		c.FieldMatchThreshold = 0.8
	}
	if c.MinScore <= 0 || c.MinScore > 1 {
		c.MinScore = 0.35
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = 200
	}
	return c
}

// MetadataRetriever performs fuzzy lookup over the structured metadata
// store: per-field weighted approximate matching, one normalized score per
// record in [0,1].
type MetadataRetriever struct {
	store ports.MetadataStore
	cfg   MetadataRetrieverConfig
}

func NewMetadataRetriever(store ports.MetadataStore, cfg MetadataRetrieverConfig) *MetadataRetriever {
	return &MetadataRetriever{
		store: store,
		cfg:   cfg.normalize(),
	}
}

func (r *MetadataRetriever) Retrieve(
	ctx context.Context,
	intent domain.ParsedIntent,
	rawQuery string,
	topK int,
) ([]domain.MetadataMatch, error) {
	if topK <= 0 {
		topK = 5
	}

	tokens := candidateTokens(intent.Slots, rawQuery)
	records, err := r.store.FetchCandidates(ctx, tokens, r.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata candidates: %w", err)
	}

	rawTokenSet := toTokenSet(rawQuery)
	slotDriven := len(intent.Slots) > 0
	matches := make([]domain.MetadataMatch, 0, len(records))
	for _, record := range records {
		match := r.scoreRecord(intent.Slots, rawTokenSet, record)
		// With extracted slots a record must cross the per-field threshold
		// on at least one of them; low Jaro scores on short unrelated values
		// are noise, not evidence. Without slots the token-overlap score
		// carries the decision.
		if slotDriven && len(match.MatchedFields) == 0 {
			continue
		}
		if !slotDriven && match.Score < r.cfg.MinScore {
			continue
		}
		matches = append(matches, match)
	}

	// Deterministic ordering: score, then breadth of field agreement, then
	// most recent upload, then document id.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if len(matches[i].MatchedFields) != len(matches[j].MatchedFields) {
			return len(matches[i].MatchedFields) > len(matches[j].MatchedFields)
		}
		if !matches[i].Record.UploadedAt.Equal(matches[j].Record.UploadedAt) {
			return matches[i].Record.UploadedAt.After(matches[j].Record.UploadedAt)
		}
		return matches[i].Record.DocumentID < matches[j].Record.DocumentID
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (r *MetadataRetriever) scoreRecord(
	slots map[string]string,
	rawTokens map[string]struct{},
	record domain.MetadataRecord,
) domain.MetadataMatch {
	var weightSum, scoreSum float64
	matched := make([]string, 0, len(r.cfg.FieldWeights))

	for _, field := range orderedFields(r.cfg.FieldWeights) {
		weight := r.cfg.FieldWeights[field]
		stored := storedFieldValue(record, field)
		if stored == "" {
			continue
		}

		var sim float64
		if slotValue, ok := slots[field]; ok && slotValue != "" {
			sim = fieldSimilarity(slotValue, stored)
		} else if len(slots) == 0 {
			// No slots at all: fall back to raw query token overlap so the
			// retriever still contributes without entity extraction.
			sim = tokenSetSimilarity(rawTokens, toTokenSet(stored))
		} else {
			continue
		}

		weightSum += weight
		scoreSum += weight * sim
		if sim >= r.cfg.FieldMatchThreshold {
			matched = append(matched, field)
		}
	}

	score := 0.0
	if weightSum > 0 {
		score = scoreSum / weightSum
	}
	return domain.MetadataMatch{
		Record:        record,
		Score:         score,
		MatchedFields: matched,
	}
}

// orderedFields returns weight map keys in a stable order so scoring and
// matched-field lists are reproducible.
func orderedFields(weights map[string]float64) []string {
	fields := make([]string, 0, len(weights))
	for field := range weights {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func storedFieldValue(record domain.MetadataRecord, slot string) string {
	switch slot {
	case domain.SlotFilename:
		return record.Filename
	case domain.SlotEntity:
		return record.Entity
	case domain.SlotSponsor:
		return record.Field("Sponsor")
	case domain.SlotProtocolNumber:
		return record.Field("Protocol Number")
	case domain.SlotCRAName:
		return record.Field("CRA Name")
	case domain.SlotSiteNumber:
		return record.Field("Site Number")
	default:
		return record.Field(slot)
	}
}

// candidateTokens combines slot values and raw query tokens for the store's
// prefilter, deduplicated and in first-seen order.
func candidateTokens(slots map[string]string, rawQuery string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 16)
	add := func(tokens []string) {
		for _, token := range tokens {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			out = append(out, token)
		}
	}
	for _, field := range orderedSlotNames(slots) {
		add(queryTokens(slots[field]))
	}
	add(queryTokens(rawQuery))
	return out
}

func orderedSlotNames(slots map[string]string) []string {
	names := make([]string, 0, len(slots))
	for name := range slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
