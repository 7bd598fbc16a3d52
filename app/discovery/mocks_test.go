package discovery

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/lysyi3m/agenda-comb/app/agenda"
	"github.com/lysyi3m/agenda-comb/app/database"
)

// MockSourceStore returns a fixed list of sources
type MockSourceStore struct {
	sources []agenda.SourceConfig
	err     error
}

func (m *MockSourceStore) GetEnabledSources(ctx context.Context) ([]agenda.SourceConfig, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sources, nil
}

// MockRequestStore keeps requests in memory with the same lookup semantics as the SQLite repository
type MockRequestStore struct {
	requests  []*database.PendingRequest
	createErr map[string]error
	findErr   error
	updateErr error
	nextID    int
}

func NewMockRequestStore() *MockRequestStore {
	return &MockRequestStore{createErr: make(map[string]error)}
}

func (m *MockRequestStore) FindBySourceURL(ctx context.Context, sourceURL string) (*database.PendingRequest, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, req := range m.requests {
		if req.RequestType == database.RequestTypeEventScraping && req.SourceURL == sourceURL {
			return cloneRequest(req), nil
		}
	}
	return nil, nil
}

func (m *MockRequestStore) FindByMetadataURL(ctx context.Context, key, value string) (*database.PendingRequest, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, req := range m.requests {
		if req.RequestType == database.RequestTypeEventScraping && req.Metadata.String(key) == value {
			return cloneRequest(req), nil
		}
	}
	return nil, nil
}

func (m *MockRequestStore) Create(ctx context.Context, req *database.PendingRequest) error {
	if err, ok := m.createErr[req.SourceURL]; ok {
		return err
	}
	for _, existing := range m.requests {
		if existing.SourceURL == req.SourceURL {
			return fmt.Errorf("%w: %s", database.ErrDuplicateRequest, req.SourceURL)
		}
	}
	m.nextID++
	req.ID = fmt.Sprintf("req-%d", m.nextID)
	m.requests = append(m.requests, cloneRequest(req))
	return nil
}

func (m *MockRequestStore) UpdateMetadata(ctx context.Context, id string, metadata database.Metadata) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	req := m.byID(id)
	if req == nil {
		return fmt.Errorf("request with id '%s' not found", id)
	}
	req.Metadata = maps.Clone(metadata)
	req.EnrichmentStatus = database.EnrichmentSuccess
	return nil
}

func (m *MockRequestStore) MarkEnrichmentFailed(ctx context.Context, id string, reason string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	req := m.byID(id)
	if req == nil {
		return fmt.Errorf("request with id '%s' not found", id)
	}
	req.EnrichmentStatus = database.EnrichmentFailed
	req.EnrichmentError = reason
	return nil
}

func (m *MockRequestStore) byID(id string) *database.PendingRequest {
	for _, req := range m.requests {
		if req.ID == id {
			return req
		}
	}
	return nil
}

func (m *MockRequestStore) bySourceURL(sourceURL string) *database.PendingRequest {
	for _, req := range m.requests {
		if req.SourceURL == sourceURL {
			return req
		}
	}
	return nil
}

func (m *MockRequestStore) countFor(prefix string) int {
	n := 0
	for _, req := range m.requests {
		if strings.HasPrefix(req.SourceURL, prefix) {
			n++
		}
	}
	return n
}

func cloneRequest(req *database.PendingRequest) *database.PendingRequest {
	c := *req
	c.Metadata = maps.Clone(req.Metadata)
	return &c
}

// MockExtractor returns a title per URL unless an error or custom fields are configured
type MockExtractor struct {
	fields map[string]map[string]any
	errs   map[string]error
	calls  []string
}

func NewMockExtractor() *MockExtractor {
	return &MockExtractor{
		fields: make(map[string]map[string]any),
		errs:   make(map[string]error),
	}
}

func (m *MockExtractor) ScrapeEventPage(ctx context.Context, pageURL string, owner agenda.OwnerRef) (map[string]any, error) {
	m.calls = append(m.calls, pageURL)
	if err, ok := m.errs[pageURL]; ok {
		return nil, err
	}
	if fields, ok := m.fields[pageURL]; ok {
		return maps.Clone(fields), nil
	}
	return map[string]any{"title": "Event at " + pageURL}, nil
}

// MockFetcher serves canned listing pages keyed by URL
type MockFetcher struct {
	pages   map[string]string
	fetched []string
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{pages: make(map[string]string)}
}

func (m *MockFetcher) Fetch(ctx context.Context, pageURL string) (*agenda.Page, error) {
	m.fetched = append(m.fetched, pageURL)
	body, ok := m.pages[pageURL]
	if !ok {
		return nil, &agenda.HTTPStatusError{URL: pageURL, StatusCode: 404, Status: "404 Not Found"}
	}
	return &agenda.Page{URL: pageURL, Body: []byte(body), ContentType: "text/html"}, nil
}

func (m *MockFetcher) fetchCount(prefix string) int {
	n := 0
	for _, u := range m.fetched {
		if strings.HasPrefix(u, prefix) {
			n++
		}
	}
	return n
}

// PanicCrawler panics for one source and delegates the rest
type PanicCrawler struct {
	next     AgendaCrawler
	sourceID string
}

func (p *PanicCrawler) Discover(ctx context.Context, src agenda.SourceConfig) (*agenda.CrawlResult, error) {
	if src.ID == p.sourceID {
		panic("selector engine exploded")
	}
	return p.next.Discover(ctx, src)
}

var errStoreDown = errors.New("database is locked")

func listingPage(eventPaths []string, next string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, p := range eventPaths {
		fmt.Fprintf(&b, `<a class="event-card" href="%s">%s</a>`, p, p)
	}
	if next != "" {
		fmt.Fprintf(&b, `<a class="next" href="%s">Next</a>`, next)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func eventPaths(from, to int) []string {
	paths := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		paths = append(paths, fmt.Sprintf("/events/%d", i))
	}
	return paths
}

func venueSource(id, host string) agenda.SourceConfig {
	return agenda.SourceConfig{
		ID:                id,
		Owner:             agenda.OwnerRef{LocationID: "loc-" + id},
		Enabled:           true,
		AgendaURL:         "https://" + host + "/events",
		EventLinkSelector: "a.event-card",
		NextPageSelector:  "a.next",
		MaxPages:          3,
	}
}
