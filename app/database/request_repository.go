package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrDuplicateRequest = errors.New("request already exists for this URL")

const requestColumns = `id, request_type, source_url, status, organizer_id, location_id, metadata,
	enrichment_status, enrichment_error, enriched_at, created_at, updated_at`

// Metadata URL keys backed by an expression index
var metadataURLPaths = map[string]string{
	MetaScrapingURL: "$.scrapingUrl",
	MetaExternalURL: "$.externalUrl",
}

// SQLRequestRepository handles database operations for pending requests
type SQLRequestRepository struct {
	db *DB
}

var _ RequestRepository = (*SQLRequestRepository)(nil)

func NewRequestRepository(db *DB) *SQLRequestRepository {
	return &SQLRequestRepository{db: db}
}

// FindBySourceURL returns the event_scraping request for sourceURL, or nil when none exists
func (r *SQLRequestRepository) FindBySourceURL(ctx context.Context, sourceURL string) (*PendingRequest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM pending_requests
		WHERE request_type = ? AND source_url = ?
		LIMIT 1
	`, RequestTypeEventScraping, sourceURL)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find request by source URL: %w", err)
	}
	return req, nil
}

// FindByMetadataURL looks up an event_scraping request whose metadata key equals value.
// Only scrapingUrl and externalUrl are supported.
func (r *SQLRequestRepository) FindByMetadataURL(ctx context.Context, key, value string) (*PendingRequest, error) {
	path, ok := metadataURLPaths[key]
	if !ok {
		return nil, fmt.Errorf("unsupported metadata key: %s", key)
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM pending_requests
		WHERE request_type = ? AND json_extract(metadata, '`+path+`') = ?
		LIMIT 1
	`, RequestTypeEventScraping, value)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find request by metadata %s: %w", key, err)
	}
	return req, nil
}

// Create inserts req, assigning its ID and timestamps
func (r *SQLRequestRepository) Create(ctx context.Context, req *PendingRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.RequestType == "" {
		req.RequestType = RequestTypeEventScraping
	}
	if req.Status == "" {
		req.Status = StatusPending
	}
	if req.EnrichmentStatus == "" {
		req.EnrichmentStatus = EnrichmentPending
	}
	if req.Metadata == nil {
		req.Metadata = Metadata{}
	}

	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	req.CreatedAt = now
	req.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pending_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
	`, req.ID, req.RequestType, req.SourceURL, req.Status, nullString(req.OrganizerID), nullString(req.LocationID),
		string(metadata), req.EnrichmentStatus, req.EnrichmentError, formatTime(now), formatTime(now))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrDuplicateRequest, req.SourceURL)
		}
		return fmt.Errorf("failed to create request: %w", err)
	}

	return nil
}

// UpdateMetadata replaces the metadata document and marks enrichment as successful
func (r *SQLRequestRepository) UpdateMetadata(ctx context.Context, id string, metadata Metadata) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := formatTime(time.Now())
	result, err := r.db.ExecContext(ctx, `
		UPDATE pending_requests
		SET metadata = ?, enrichment_status = ?, enrichment_error = '', enriched_at = ?, updated_at = ?
		WHERE id = ?
	`, string(data), EnrichmentSuccess, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to update request metadata: %w", err)
	}

	return requireAffected(result, id)
}

func (r *SQLRequestRepository) MarkEnrichmentFailed(ctx context.Context, id string, reason string) error {
	now := formatTime(time.Now())
	result, err := r.db.ExecContext(ctx, `
		UPDATE pending_requests
		SET enrichment_status = ?, enrichment_error = ?, enriched_at = ?, updated_at = ?
		WHERE id = ?
	`, EnrichmentFailed, reason, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark enrichment failed: %w", err)
	}

	return requireAffected(result, id)
}

// ListRequests returns the newest requests first, optionally filtered by review status
func (r *SQLRequestRepository) ListRequests(ctx context.Context, status string, limit int) ([]PendingRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM pending_requests`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []PendingRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate requests: %w", err)
	}

	return requests, nil
}

func (r *SQLRequestRepository) GetRequestCount(ctx context.Context, status string) (int, error) {
	query := `SELECT COUNT(*) FROM pending_requests`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*PendingRequest, error) {
	var (
		req                     PendingRequest
		organizerID, locationID sql.NullString
		metadata                string
		enrichedAt              sql.NullString
		createdAt, updatedAt    string
	)

	err := row.Scan(&req.ID, &req.RequestType, &req.SourceURL, &req.Status, &organizerID, &locationID, &metadata,
		&req.EnrichmentStatus, &req.EnrichmentError, &enrichedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	req.OrganizerID = organizerID.String
	req.LocationID = locationID.String
	req.EnrichedAt = parseNullTime(enrichedAt)
	req.CreatedAt = parseTime(createdAt)
	req.UpdatedAt = parseTime(updatedAt)

	req.Metadata = Metadata{}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &req.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &req, nil
}

func requireAffected(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("request with id '%s' not found", id)
	}
	return nil
}
