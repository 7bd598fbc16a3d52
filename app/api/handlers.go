package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/agenda-comb/app/agenda"
	"github.com/lysyi3m/agenda-comb/app/database"
	"github.com/lysyi3m/agenda-comb/app/discovery"
	"github.com/lysyi3m/agenda-comb/app/tasks"
)

const (
	defaultRequestLimit = 50
	maxRequestLimit     = 500
	pendingFeedLimit    = 100
)

func NewHandler(sourceRepo database.SourceRepository, requestRepo database.RequestRepository,
	sourceCache *agenda.SourceCache, runner tasks.DiscoveryRunner,
	scheduler tasks.TaskSchedulerInterface, generator GeneratorInterface, limits discovery.Limits) *Handler {
	return &Handler{
		sourceRepo:  sourceRepo,
		requestRepo: requestRepo,
		sourceCache: sourceCache,
		runner:      runner,
		scheduler:   scheduler,
		generator:   generator,
		limits:      limits.Normalize(),
	}
}

// CronDiscover runs discovery synchronously and reports the aggregate result.
// The run is detached from the request context so a dropped connection does
// not abort it half-way.
func (h *Handler) CronDiscover(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())

	result, err := h.runner.Run(ctx)
	if errors.Is(err, discovery.ErrRunInProgress) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Success: false,
			Message: "Discovery run already in progress",
			Limits:  h.limits,
		})
		return
	}
	if err != nil {
		slog.Error("Discovery run failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Success: false,
			Message: "Discovery run failed",
			Error:   err.Error(),
			Limits:  h.limits,
		})
		return
	}

	c.JSON(http.StatusOK, newDiscoverResponse(result))
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()

	health := map[string]any{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(ctx); err == nil {
		health["sources"] = sourceCount
	}

	if requestCount, err := h.requestRepo.GetRequestCount(ctx, ""); err == nil {
		health["requests"] = requestCount
	}

	if pendingCount, err := h.requestRepo.GetRequestCount(ctx, database.StatusPending); err == nil {
		health["pending_requests"] = pendingCount
	}

	health["loaded_definitions"] = h.sourceCache.GetSourceCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetPendingFeed(c *gin.Context) {
	requests, err := h.requestRepo.ListRequests(c.Request.Context(), database.StatusPending, pendingFeedLimit)
	if err != nil {
		slog.Error("Database error", "operation", "list_requests", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(requests)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(requests)))

	c.String(http.StatusOK, rss)
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources, err := h.sourceRepo.ListSources(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]map[string]any, 0, len(sources))
	for _, source := range sources {
		items = append(items, map[string]any{
			"id":                   source.ID,
			"organizer_id":         source.Owner.OrganizerID,
			"location_id":          source.Owner.LocationID,
			"enabled":              source.Enabled,
			"agenda_url":           source.AgendaURL,
			"event_link_selector":  source.EventLinkSelector,
			"event_link_attribute": source.EventLinkAttribute,
			"next_page_selector":   source.NextPageSelector,
			"next_page_attribute":  source.NextPageAttribute,
			"max_pages":            source.MaxPages,
			"listing_format":       source.ListingFormat,
			"filters":              len(source.Filters),
			"valid":                source.Validate() == nil,
		})
	}

	c.JSON(http.StatusOK, map[string]any{
		"sources": items,
		"total":   len(items),
	})
}

func (h *Handler) APIListRequests(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", database.StatusPending, database.StatusApproved, database.StatusRejected:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status parameter"})
		return
	}

	limit := defaultRequestLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(parsed, maxRequestLimit)
	}

	requests, err := h.requestRepo.ListRequests(c.Request.Context(), status, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_requests", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]map[string]any, 0, len(requests))
	for _, req := range requests {
		items = append(items, map[string]any{
			"id":                req.ID,
			"request_type":      req.RequestType,
			"source_url":        req.SourceURL,
			"status":            req.Status,
			"organizer_id":      req.OrganizerID,
			"location_id":       req.LocationID,
			"metadata":          req.Metadata,
			"enrichment_status": req.EnrichmentStatus,
			"enrichment_error":  req.EnrichmentError,
			"enriched_at":       req.EnrichedAt,
			"created_at":        req.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, map[string]any{
		"requests": items,
		"total":    len(items),
	})
}

func (h *Handler) APIReloadSources(c *gin.Context) {
	if err := h.sourceCache.Run(); err != nil {
		slog.Error("Failed to reload source definitions", "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to reload source definitions", "details": err.Error()})
		return
	}

	queued, err := h.scheduler.EnqueueSourceSync()
	if err != nil {
		slog.Error("Failed to enqueue source sync", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue source sync", "queued": queued})
		return
	}

	slog.Info("Source definitions reloaded", "queued", queued)

	c.JSON(http.StatusAccepted, map[string]any{
		"message":     "Source sync queued",
		"definitions": h.sourceCache.GetSourceCount(),
		"queued":      queued,
	})
}
