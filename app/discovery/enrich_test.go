package discovery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lysyi3m/agenda-comb/app/agenda"
	"github.com/lysyi3m/agenda-comb/app/database"
)

func TestMergeMetadata_IdentityFieldsAreProtected(t *testing.T) {
	owner := agenda.OwnerRef{LocationID: "loc-1"}
	current := database.Metadata{
		database.MetaScrapingURL: "https://venue.example/events/1",
		database.MetaOrganizerID: "stale-org",
		"note":                   "kept",
	}
	extracted := map[string]any{
		database.MetaScrapingURL: "https://evil.example/other",
		database.MetaOrganizerID: "org-from-page",
		database.MetaLocationID:  "loc-from-page",
		"title":                  "Jazz Night",
		"note":                   "overwritten",
	}

	merged := MergeMetadata(current, owner, "https://venue.example/events/1?ignored", extracted)

	if merged.String(database.MetaScrapingURL) != "https://venue.example/events/1" {
		t.Errorf("Expected scrapingUrl preserved, got %v", merged[database.MetaScrapingURL])
	}
	if merged.String(database.MetaLocationID) != "loc-1" {
		t.Errorf("Expected locationId from source, got %v", merged[database.MetaLocationID])
	}
	if _, ok := merged[database.MetaOrganizerID]; ok {
		t.Errorf("Expected organizerId removed for location-owned source, got %v", merged[database.MetaOrganizerID])
	}
	if merged.String("title") != "Jazz Night" {
		t.Errorf("Expected extracted title, got %v", merged["title"])
	}
	if merged.String("note") != "overwritten" {
		t.Errorf("Expected extractor to overwrite non-identity fields, got %v", merged["note"])
	}
	if current.String(database.MetaOrganizerID) != "stale-org" {
		t.Error("Expected current metadata to be left untouched")
	}
}

func TestMergeMetadata_SetsMissingScrapingURL(t *testing.T) {
	merged := MergeMetadata(nil, agenda.OwnerRef{OrganizerID: "org-1"}, "https://venue.example/events/2", map[string]any{"title": "x"})

	if merged.String(database.MetaScrapingURL) != "https://venue.example/events/2" {
		t.Errorf("Expected scrapingUrl set to the event URL, got %v", merged[database.MetaScrapingURL])
	}
	if merged.String(database.MetaOrganizerID) != "org-1" {
		t.Errorf("Expected organizerId, got %v", merged[database.MetaOrganizerID])
	}
}

func TestEnricher_PersistsMergedMetadata(t *testing.T) {
	ctx := context.Background()
	store := NewMockRequestStore()
	extractor := NewMockExtractor()

	owner := agenda.OwnerRef{OrganizerID: "org-1"}
	req := database.NewPendingRequest("https://venue.example/events/1", owner)
	if err := store.Create(ctx, req); err != nil {
		t.Fatal(err)
	}
	extractor.fields[req.SourceURL] = map[string]any{
		"title":                  "Jazz Night",
		database.MetaOrganizerID: "org-evil",
	}

	enriched, err := NewEnricher(extractor, store).Enrich(ctx, req, owner)
	if err != nil {
		t.Fatal(err)
	}
	if !enriched {
		t.Fatal("Expected request to be enriched")
	}

	stored := store.byID(req.ID)
	if stored.Metadata.String(database.MetaOrganizerID) != "org-1" {
		t.Errorf("Expected organizerId to survive enrichment, got %v", stored.Metadata[database.MetaOrganizerID])
	}
	if stored.Metadata.String("title") != "Jazz Night" || stored.EnrichmentStatus != database.EnrichmentSuccess {
		t.Errorf("Unexpected stored request: %+v", stored)
	}
}

func TestEnricher_ExtractionFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMockRequestStore()
	extractor := NewMockExtractor()

	owner := agenda.OwnerRef{OrganizerID: "org-1"}
	req := database.NewPendingRequest("https://venue.example/events/1", owner)
	store.Create(ctx, req)
	extractor.errs[req.SourceURL] = errors.New("timeout")

	enriched, err := NewEnricher(extractor, store).Enrich(ctx, req, owner)
	if err != nil {
		t.Fatalf("Expected extraction failure not to be an error, got %v", err)
	}
	if enriched {
		t.Error("Expected request to stay unenriched")
	}
	if stored := store.byID(req.ID); stored.EnrichmentStatus != database.EnrichmentFailed || stored.EnrichmentError != "timeout" {
		t.Errorf("Expected failure recorded, got %+v", stored)
	}
}

func TestEnricher_EmptyExtraction(t *testing.T) {
	ctx := context.Background()
	store := NewMockRequestStore()
	extractor := NewMockExtractor()

	owner := agenda.OwnerRef{LocationID: "loc-1"}
	req := database.NewPendingRequest("https://venue.example/events/1", owner)
	store.Create(ctx, req)
	extractor.fields[req.SourceURL] = map[string]any{}

	enriched, err := NewEnricher(extractor, store).Enrich(ctx, req, owner)
	if err != nil || enriched {
		t.Fatalf("Expected unenriched without error, got %v / %v", enriched, err)
	}
	if req.EnrichmentStatus != database.EnrichmentFailed || !strings.Contains(req.EnrichmentError, "no fields") {
		t.Errorf("Expected empty extraction to mark the request failed, got %+v", req)
	}
}

func TestEnricher_StoreFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMockRequestStore()

	owner := agenda.OwnerRef{LocationID: "loc-1"}
	req := database.NewPendingRequest("https://venue.example/events/1", owner)
	store.Create(ctx, req)
	store.updateErr = errStoreDown

	_, err := NewEnricher(NewMockExtractor(), store).Enrich(ctx, req, owner)

	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Expected StoreError, got %v", err)
	}
	if !errors.Is(err, errStoreDown) {
		t.Errorf("Expected StoreError to wrap the cause, got %v", err)
	}
}
