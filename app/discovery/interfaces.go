package discovery

import (
	"context"

	"github.com/lysyi3m/agenda-comb/app/agenda"
	"github.com/lysyi3m/agenda-comb/app/database"
)

type SourceConfigStore interface {
	GetEnabledSources(ctx context.Context) ([]agenda.SourceConfig, error)
}

type RequestStore interface {
	FindBySourceURL(ctx context.Context, sourceURL string) (*database.PendingRequest, error)
	FindByMetadataURL(ctx context.Context, key, value string) (*database.PendingRequest, error)
	Create(ctx context.Context, req *database.PendingRequest) error
	UpdateMetadata(ctx context.Context, id string, metadata database.Metadata) error
	MarkEnrichmentFailed(ctx context.Context, id string, reason string) error
}

type AgendaCrawler interface {
	Discover(ctx context.Context, src agenda.SourceConfig) (*agenda.CrawlResult, error)
}

// PageExtractor scrapes structured fields from a single event page.
// A non-nil error means the page could not be enriched.
type PageExtractor interface {
	ScrapeEventPage(ctx context.Context, pageURL string, owner agenda.OwnerRef) (map[string]any, error)
}
