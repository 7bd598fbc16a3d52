package discovery

import (
	"context"

	"github.com/lysyi3m/agenda-comb/app/database"
)

// DedupIndex decides whether a normalized event URL is already known.
// A URL is known when an event_scraping request has it as sourceUrl, as
// metadata.scrapingUrl or as metadata.externalUrl, or when it was created
// earlier in the same run.
type DedupIndex struct {
	store RequestStore
	seen  map[string]struct{}
}

func NewDedupIndex(store RequestStore) *DedupIndex {
	return &DedupIndex{
		store: store,
		seen:  make(map[string]struct{}),
	}
}

func (d *DedupIndex) Exists(ctx context.Context, eventURL string) (bool, error) {
	if _, ok := d.seen[eventURL]; ok {
		return true, nil
	}

	existing, err := d.store.FindBySourceURL(ctx, eventURL)
	if err != nil {
		return false, err
	}
	if existing != nil {
		d.Remember(eventURL)
		return true, nil
	}

	for _, key := range []string{database.MetaScrapingURL, database.MetaExternalURL} {
		existing, err := d.store.FindByMetadataURL(ctx, key, eventURL)
		if err != nil {
			return false, err
		}
		if existing != nil {
			d.Remember(eventURL)
			return true, nil
		}
	}

	return false, nil
}

func (d *DedupIndex) Remember(eventURL string) {
	d.seen[eventURL] = struct{}{}
}
