package database

import (
	"time"

	"github.com/lysyi3m/agenda-comb/app/agenda"
)

const RequestTypeEventScraping = "event_scraping"

// Review status of a pending request
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Enrichment status of a pending request
const (
	EnrichmentPending = "pending"
	EnrichmentSuccess = "success"
	EnrichmentFailed  = "failed"
)

// Metadata keys owned by discovery. Enrichment never overwrites them.
const (
	MetaScrapingURL = "scrapingUrl"
	MetaExternalURL = "externalUrl"
	MetaOrganizerID = "organizerId"
	MetaLocationID  = "locationId"
)

type Metadata map[string]any

// String returns the value stored under key when it is a string.
func (m Metadata) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

type PendingRequest struct {
	ID               string // Database UUID
	RequestType      string
	SourceURL        string // Normalized event page URL
	Status           string // pending, approved, rejected
	OrganizerID      string
	LocationID       string
	Metadata         Metadata
	EnrichmentStatus string // pending, success, failed
	EnrichmentError  string
	EnrichedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewPendingRequest builds an event_scraping request for a discovered URL.
// Exactly one of the owner ids ends up in both the columns and the metadata.
func NewPendingRequest(eventURL string, owner agenda.OwnerRef) *PendingRequest {
	metadata := Metadata{MetaScrapingURL: eventURL}
	if owner.OrganizerID != "" {
		metadata[MetaOrganizerID] = owner.OrganizerID
	}
	if owner.LocationID != "" {
		metadata[MetaLocationID] = owner.LocationID
	}

	return &PendingRequest{
		RequestType:      RequestTypeEventScraping,
		SourceURL:        eventURL,
		Status:           StatusPending,
		OrganizerID:      owner.OrganizerID,
		LocationID:       owner.LocationID,
		Metadata:         metadata,
		EnrichmentStatus: EnrichmentPending,
	}
}
