package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/lysyi3m/agenda-comb/app/agenda"
	"github.com/lysyi3m/agenda-comb/app/database"
)

// Orchestrator drives enabled sources one at a time through
// crawl, dedup, create and enrich.
type Orchestrator struct {
	sources  SourceConfigStore
	requests RequestStore
	crawler  AgendaCrawler
	enricher *Enricher
	limits   Limits
	guard    *RunGuard
}

func NewOrchestrator(sources SourceConfigStore, requests RequestStore, crawler AgendaCrawler, extractor PageExtractor, limits Limits, guard *RunGuard) *Orchestrator {
	if guard == nil {
		guard = NewRunGuard("")
	}
	return &Orchestrator{
		sources:  sources,
		requests: requests,
		crawler:  crawler,
		enricher: NewEnricher(extractor, requests),
		limits:   limits.Normalize(),
		guard:    guard,
	}
}

func (o *Orchestrator) Limits() Limits {
	return o.limits
}

// Run performs one discovery run. Per-source failures are recorded in the
// result; an error is returned only when no source could be processed at all.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	release, err := o.guard.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	sources, err := o.sources.GetEnabledSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	result := newRunResult(o.limits)
	result.Configs = len(sources)

	quota := NewQuota(o.limits)
	dedup := NewDedupIndex(o.requests)

	slog.Info("Discovery run started", "configs", len(sources), "max_total", o.limits.MaxTotal, "max_per_config", o.limits.MaxPerConfig)

	for _, src := range sources {
		if quota.GlobalExhausted() {
			slog.Info("Global cap reached, skipping remaining sources", "created", quota.Total())
			break
		}
		if err := ctx.Err(); err != nil {
			result.addError(fmt.Sprintf("run cancelled: %v", err))
			break
		}

		if err := o.processSource(ctx, src, quota, dedup, result); err != nil {
			slog.Error("Source failed", "source", src.ID, "agenda_url", src.AgendaURL, "error", err)
			result.addSourceError(src, err)
		}
	}

	result.Duration = time.Since(result.StartedAt)

	slog.Info("Discovery run completed",
		"configs", result.Configs,
		"discovered", result.DiscoveredURLs,
		"created", result.CreatedRequests,
		"enriched", result.EnrichedRequests,
		"unenriched", result.UnenrichedRequests,
		"errors", result.Errors,
		"duration", result.Duration)

	return result, nil
}

func (o *Orchestrator) processSource(ctx context.Context, src agenda.SourceConfig, quota *Quota, dedup *DedupIndex, result *RunResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while processing source", "source", src.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	src = src.WithDefaults()
	if err := src.Validate(); err != nil {
		return &ConfigError{SourceID: src.ID, Err: err}
	}

	quota.BeginSource()

	crawl, err := o.crawler.Discover(ctx, src)
	if err != nil {
		if errors.Is(err, agenda.ErrInvalidSource) {
			return &ConfigError{SourceID: src.ID, Err: err}
		}
		return &SourceCrawlError{SourceID: src.ID, Err: err}
	}

	result.DiscoveredURLs += len(crawl.URLs)

	var created, skipped int
	for _, eventURL := range quota.Truncate(crawl.URLs) {
		if !quota.Allow() {
			break
		}

		exists, err := dedup.Exists(ctx, eventURL)
		if err != nil {
			result.addSourceError(src, &StoreError{Op: "lookup", URL: eventURL, Err: err})
			continue
		}
		if exists {
			skipped++
			continue
		}

		req := database.NewPendingRequest(eventURL, src.Owner)
		if err := o.requests.Create(ctx, req); err != nil {
			if errors.Is(err, database.ErrDuplicateRequest) {
				dedup.Remember(eventURL)
				skipped++
				continue
			}
			result.addSourceError(src, &StoreError{Op: "create", URL: eventURL, Err: err})
			continue
		}

		dedup.Remember(eventURL)
		quota.Record()
		created++
		result.CreatedRequests++

		enriched, err := o.enricher.Enrich(ctx, req, src.Owner)
		if err != nil {
			result.addSourceError(src, err)
			continue
		}
		if enriched {
			result.EnrichedRequests++
		} else {
			result.UnenrichedRequests++
		}
	}

	slog.Info("Source processed",
		"source", src.ID,
		"owner", src.Owner.String(),
		"pages", len(crawl.Pages),
		"discovered", len(crawl.URLs),
		"filtered", crawl.Filtered,
		"created", created,
		"duplicates", skipped)

	return nil
}
