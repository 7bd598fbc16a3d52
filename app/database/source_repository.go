package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/agenda-comb/app/agenda"
)

const sourceColumns = `id, organizer_id, location_id, enabled, agenda_url,
	event_link_selector, event_link_attribute, next_page_selector, next_page_attribute,
	max_pages, listing_format, filters`

// SQLSourceRepository handles database operations for scraping sources
type SQLSourceRepository struct {
	db *DB
}

var _ SourceRepository = (*SQLSourceRepository)(nil)

func NewSourceRepository(db *DB) *SQLSourceRepository {
	return &SQLSourceRepository{db: db}
}

// UpsertSource inserts or replaces a source definition keyed by its ID
func (r *SQLSourceRepository) UpsertSource(ctx context.Context, source agenda.SourceConfig) error {
	filters, err := json.Marshal(source.Filters)
	if err != nil {
		return fmt.Errorf("failed to marshal filters: %w", err)
	}
	if source.Filters == nil {
		filters = []byte("[]")
	}

	now := formatTime(time.Now())
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO scraping_sources (`+sourceColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			organizer_id = excluded.organizer_id,
			location_id = excluded.location_id,
			enabled = excluded.enabled,
			agenda_url = excluded.agenda_url,
			event_link_selector = excluded.event_link_selector,
			event_link_attribute = excluded.event_link_attribute,
			next_page_selector = excluded.next_page_selector,
			next_page_attribute = excluded.next_page_attribute,
			max_pages = excluded.max_pages,
			listing_format = excluded.listing_format,
			filters = excluded.filters,
			updated_at = excluded.updated_at
	`, source.ID, nullString(source.Owner.OrganizerID), nullString(source.Owner.LocationID), source.Enabled,
		source.AgendaURL, source.EventLinkSelector, source.EventLinkAttribute,
		source.NextPageSelector, source.NextPageAttribute, source.MaxPages,
		string(source.ListingFormat), string(filters), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert source %s: %w", source.ID, err)
	}

	return nil
}

func (r *SQLSourceRepository) GetEnabledSources(ctx context.Context) ([]agenda.SourceConfig, error) {
	return r.querySources(ctx, `SELECT `+sourceColumns+` FROM scraping_sources WHERE enabled = 1 ORDER BY id`)
}

func (r *SQLSourceRepository) ListSources(ctx context.Context) ([]agenda.SourceConfig, error) {
	return r.querySources(ctx, `SELECT `+sourceColumns+` FROM scraping_sources ORDER BY id`)
}

func (r *SQLSourceRepository) GetSourceCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scraping_sources`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sources: %w", err)
	}
	return count, nil
}

func (r *SQLSourceRepository) querySources(ctx context.Context, query string, args ...any) ([]agenda.SourceConfig, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []agenda.SourceConfig
	for rows.Next() {
		var (
			source                  agenda.SourceConfig
			organizerID, locationID sql.NullString
			listingFormat, filters  string
		)

		err := rows.Scan(&source.ID, &organizerID, &locationID, &source.Enabled, &source.AgendaURL,
			&source.EventLinkSelector, &source.EventLinkAttribute, &source.NextPageSelector, &source.NextPageAttribute,
			&source.MaxPages, &listingFormat, &filters)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}

		source.Owner = agenda.OwnerRef{OrganizerID: organizerID.String, LocationID: locationID.String}
		source.ListingFormat = agenda.ListingFormat(listingFormat)
		if filters != "" {
			if err := json.Unmarshal([]byte(filters), &source.Filters); err != nil {
				slog.Warn("Stored source has malformed filters", "source", source.ID, "error", err)
				source.Filters = nil
				source.LoadError = fmt.Errorf("failed to unmarshal filters: %w", err)
			}
		}

		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}

	return sources, nil
}
