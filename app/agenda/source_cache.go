package agenda

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// sourceFile is the on-disk YAML shape of a source definition.
type sourceFile struct {
	OrganizerID        string           `yaml:"organizer_id"`
	LocationID         string           `yaml:"location_id"`
	Enabled            *bool            `yaml:"enabled"`
	AgendaURL          string           `yaml:"agenda_url"`
	EventLinkSelector  string           `yaml:"event_link_selector"`
	EventLinkAttribute string           `yaml:"event_link_attribute"`
	NextPageSelector   string           `yaml:"next_page_selector"`
	NextPageAttribute  string           `yaml:"next_page_attribute"`
	MaxPages           int              `yaml:"max_pages"`
	ListingFormat      string           `yaml:"listing_format"`
	Filters            []LinkFilterRule `yaml:"filters"`
}

// SourceCache holds source definitions loaded from <sourcesDir>/<id>.yml.
type SourceCache struct {
	sourcesDir string
	cache      map[string]*SourceConfig
	mu         sync.RWMutex
}

func NewSourceCache(sourcesDir string) *SourceCache {
	return &SourceCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*SourceConfig),
	}
}

func (sc *SourceCache) Run() error {
	if _, err := os.Stat(sc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(sc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		sourceID := strings.TrimSuffix(filepath.Base(file), ".yml")

		source, err := sc.LoadSource(sourceID)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source definition loaded", "source", sourceID, "enabled", source.Enabled, "owner", source.Owner.String())
	}

	return nil
}

func (sc *SourceCache) LoadSource(sourceID string) (*SourceConfig, error) {
	sourceFile := sc.getSourceFilePath(sourceID)
	source, err := sc.parseSource(sourceFile)
	if err != nil {
		return nil, err
	}

	source.ID = sourceID

	if err := source.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source %s: %w", sourceFile, err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cache[source.ID] = source

	return source, nil
}

func (sc *SourceCache) GetSource(sourceID string) (*SourceConfig, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	source, ok := sc.cache[sourceID]
	if !ok {
		return nil, fmt.Errorf("source with id '%s' not found", sourceID)
	}
	return source, nil
}

// GetSources returns all loaded sources ordered by ID.
func (sc *SourceCache) GetSources() []*SourceConfig {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	sources := make([]*SourceConfig, 0, len(sc.cache))
	for _, v := range sc.cache {
		sources = append(sources, v)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })
	return sources
}

func (sc *SourceCache) GetSourceCount() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.cache)
}

func (sc *SourceCache) parseSource(path string) (*SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var raw sourceFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if raw.MaxPages == 0 {
		raw.MaxPages = DefaultMaxPages
	}

	enabled := true
	if raw.Enabled != nil {
		enabled = *raw.Enabled
	}

	source := SourceConfig{
		Owner: OwnerRef{
			OrganizerID: strings.TrimSpace(raw.OrganizerID),
			LocationID:  strings.TrimSpace(raw.LocationID),
		},
		Enabled:            enabled,
		AgendaURL:          raw.AgendaURL,
		EventLinkSelector:  raw.EventLinkSelector,
		EventLinkAttribute: raw.EventLinkAttribute,
		NextPageSelector:   raw.NextPageSelector,
		NextPageAttribute:  raw.NextPageAttribute,
		MaxPages:           raw.MaxPages,
		ListingFormat:      ListingFormat(strings.ToLower(strings.TrimSpace(raw.ListingFormat))),
		Filters:            raw.Filters,
	}.WithDefaults()

	return &source, nil
}

func (sc *SourceCache) getSourceFilePath(sourceID string) string {
	return filepath.Join(sc.sourcesDir, sourceID+".yml")
}
