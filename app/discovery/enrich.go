package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/lysyi3m/agenda-comb/app/agenda"
	"github.com/lysyi3m/agenda-comb/app/database"
)

var identityKeys = map[string]bool{
	database.MetaScrapingURL: true,
	database.MetaOrganizerID: true,
	database.MetaLocationID:  true,
}

type Enricher struct {
	extractor PageExtractor
	store     RequestStore
}

func NewEnricher(extractor PageExtractor, store RequestStore) *Enricher {
	return &Enricher{
		extractor: extractor,
		store:     store,
	}
}

// Enrich scrapes the request's event page and persists the merged metadata.
// It returns false with a nil error when extraction failed and the request
// was marked as unenriched; a non-nil error is always a *StoreError.
func (e *Enricher) Enrich(ctx context.Context, req *database.PendingRequest, owner agenda.OwnerRef) (bool, error) {
	fields, err := e.extractor.ScrapeEventPage(ctx, req.SourceURL, owner)
	if err == nil && len(fields) == 0 {
		err = fmt.Errorf("%w: extractor returned no fields", ErrExtraction)
	}
	if err != nil {
		slog.Warn("Event enrichment failed", "url", req.SourceURL, "error", err)

		if markErr := e.store.MarkEnrichmentFailed(ctx, req.ID, err.Error()); markErr != nil {
			return false, &StoreError{Op: "mark enrichment failed", URL: req.SourceURL, Err: markErr}
		}
		req.EnrichmentStatus = database.EnrichmentFailed
		req.EnrichmentError = err.Error()
		return false, nil
	}

	merged := MergeMetadata(req.Metadata, owner, req.SourceURL, fields)
	if err := e.store.UpdateMetadata(ctx, req.ID, merged); err != nil {
		return false, &StoreError{Op: "update metadata", URL: req.SourceURL, Err: err}
	}

	req.Metadata = merged
	req.EnrichmentStatus = database.EnrichmentSuccess
	return true, nil
}

// MergeMetadata layers extracted fields over the current metadata. The owner
// ids always come from the source and scrapingUrl is never replaced once set.
func MergeMetadata(current database.Metadata, owner agenda.OwnerRef, eventURL string, extracted map[string]any) database.Metadata {
	merged := make(database.Metadata, len(current)+len(extracted)+3)
	maps.Copy(merged, current)

	delete(merged, database.MetaOrganizerID)
	delete(merged, database.MetaLocationID)
	if owner.OrganizerID != "" {
		merged[database.MetaOrganizerID] = owner.OrganizerID
	}
	if owner.LocationID != "" {
		merged[database.MetaLocationID] = owner.LocationID
	}

	if merged.String(database.MetaScrapingURL) == "" {
		merged[database.MetaScrapingURL] = eventURL
	}

	for key, value := range extracted {
		if identityKeys[key] {
			continue
		}
		merged[key] = value
	}

	return merged
}
