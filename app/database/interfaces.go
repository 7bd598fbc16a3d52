package database

import (
	"context"

	"github.com/lysyi3m/agenda-comb/app/agenda"
)

type SourceRepository interface {
	GetEnabledSources(ctx context.Context) ([]agenda.SourceConfig, error)
	ListSources(ctx context.Context) ([]agenda.SourceConfig, error)
	GetSourceCount(ctx context.Context) (int, error)

	UpsertSource(ctx context.Context, source agenda.SourceConfig) error
}

type RequestRepository interface {
	FindBySourceURL(ctx context.Context, sourceURL string) (*PendingRequest, error)
	FindByMetadataURL(ctx context.Context, key, value string) (*PendingRequest, error)
	ListRequests(ctx context.Context, status string, limit int) ([]PendingRequest, error)
	GetRequestCount(ctx context.Context, status string) (int, error)

	Create(ctx context.Context, req *PendingRequest) error
	UpdateMetadata(ctx context.Context, id string, metadata Metadata) error
	MarkEnrichmentFailed(ctx context.Context, id string, reason string) error
}
