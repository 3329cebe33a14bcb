package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/datareveal/docverse/internal/core/domain"
)

func metadataRecord(id, protocol, sponsor string) domain.MetadataRecord {
	return domain.MetadataRecord{
		DocumentID: id,
		Filename:   id + ".pdf",
		Entity:     "MONITORING VISIT REPORT",
		FolderName: "MVR_IMV_REPORT",
		Fields: map[string]string{
			"Protocol Number": protocol,
			"Sponsor":         sponsor,
			"CRA Name":        "N/A",
		},
		UploadedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMetadataRetrieveRanksExactProtocolFirst(t *testing.T) {
	store := &fakeMetadataStore{records: []domain.MetadataRecord{
		metadataRecord("doc-2", "PR-576", "ACME Pharma"),
		metadataRecord("doc-1", "PR-567", "ACME Pharma"),
	}}
	retriever := NewMetadataRetriever(store, MetadataRetrieverConfig{})

	intent := domain.ParsedIntent{
		Slots: map[string]string{domain.SlotProtocolNumber: "PR-567"},
	}
	matches, err := retriever.Retrieve(context.Background(), intent, "reports for PR-567", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("expected matches, got none")
	}
	if matches[0].Record.DocumentID != "doc-1" {
		t.Fatalf("expected exact protocol match first, got %s", matches[0].Record.DocumentID)
	}
	if matches[0].Score != 1 {
		t.Fatalf("expected exact match score 1, got %f", matches[0].Score)
	}
	if len(matches[0].MatchedFields) != 1 || matches[0].MatchedFields[0] != domain.SlotProtocolNumber {
		t.Fatalf("expected protocol_number matched, got %v", matches[0].MatchedFields)
	}
}

func TestMetadataRetrieveMatchesTypoedSponsor(t *testing.T) {
	store := &fakeMetadataStore{records: []domain.MetadataRecord{
		metadataRecord("doc-1", "PR-567", "Pfizer"),
	}}
	retriever := NewMetadataRetriever(store, MetadataRetrieverConfig{})

	intent := domain.ParsedIntent{
		Slots: map[string]string{domain.SlotSponsor: "Pfzer"},
	}
	matches, err := retriever.Retrieve(context.Background(), intent, "Pfzer reports", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Score < 0.8 {
		t.Fatalf("expected typo match score >= 0.8, got %f", matches[0].Score)
	}
	if len(matches[0].MatchedFields) != 1 || matches[0].MatchedFields[0] != domain.SlotSponsor {
		t.Fatalf("expected sponsor matched, got %v", matches[0].MatchedFields)
	}
}

func TestMetadataRetrieveFallsBackToTokenOverlap(t *testing.T) {
	store := &fakeMetadataStore{records: []domain.MetadataRecord{
		metadataRecord("doc-1", "", "ACME Pharma"),
		metadataRecord("doc-2", "", "Unrelated Biotech"),
	}}
	retriever := NewMetadataRetriever(store, MetadataRetrieverConfig{})

	intent := domain.ParsedIntent{Slots: map[string]string{}}
	matches, err := retriever.Retrieve(context.Background(), intent, "acme pharma monitoring visit report", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("expected token-overlap matches without slots")
	}
	if matches[0].Record.DocumentID != "doc-1" {
		t.Fatalf("expected overlapping record first, got %s", matches[0].Record.DocumentID)
	}
}

func TestMetadataRetrieveDropsUnrelatedRecords(t *testing.T) {
	store := &fakeMetadataStore{records: []domain.MetadataRecord{
		metadataRecord("doc-1", "XYZ-999", "Other Sponsor"),
	}}
	retriever := NewMetadataRetriever(store, MetadataRetrieverConfig{})

	intent := domain.ParsedIntent{
		Slots: map[string]string{domain.SlotProtocolNumber: "PR-567"},
	}
	matches, err := retriever.Retrieve(context.Background(), intent, "PR-567", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected unrelated record dropped, got %v", matches)
	}
}

func TestMetadataRetrieveTruncatesToTopK(t *testing.T) {
	records := make([]domain.MetadataRecord, 0, 4)
	for _, id := range []string{"doc-1", "doc-2", "doc-3", "doc-4"} {
		records = append(records, metadataRecord(id, "PR-567", "ACME Pharma"))
	}
	store := &fakeMetadataStore{records: records}
	retriever := NewMetadataRetriever(store, MetadataRetrieverConfig{})

	intent := domain.ParsedIntent{
		Slots: map[string]string{domain.SlotProtocolNumber: "PR-567"},
	}
	matches, err := retriever.Retrieve(context.Background(), intent, "PR-567", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected topK=2 matches, got %d", len(matches))
	}
	// Equal scores break the tie by document id.
	if matches[0].Record.DocumentID != "doc-1" || matches[1].Record.DocumentID != "doc-2" {
		t.Fatalf("expected deterministic order, got %s, %s", matches[0].Record.DocumentID, matches[1].Record.DocumentID)
	}
}

func TestMetadataRetrievePropagatesStoreError(t *testing.T) {
	store := &fakeMetadataStore{err: errors.New("connection refused")}
	retriever := NewMetadataRetriever(store, MetadataRetrieverConfig{})

	_, err := retriever.Retrieve(context.Background(), domain.ParsedIntent{Slots: map[string]string{}}, "anything", 5)
	if err == nil {
		t.Fatalf("expected store error to propagate")
	}
}

func TestCandidateTokensDeduplicates(t *testing.T) {
	tokens := candidateTokens(
		map[string]string{domain.SlotProtocolNumber: "PR-567"},
		"reports for PR-567",
	)
	seen := map[string]int{}
	for _, token := range tokens {
		seen[token]++
	}
	if seen["pr"] != 1 || seen["567"] != 1 {
		t.Fatalf("expected deduplicated tokens, got %v", tokens)
	}
	if seen["reports"] != 1 || seen["for"] != 1 {
		t.Fatalf("expected raw query tokens included, got %v", tokens)
	}
}
