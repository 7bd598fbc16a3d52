package agenda

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultLinkAttribute = "href"
	DefaultMaxPages      = 10
	MinMaxPages          = 1
	MaxMaxPages          = 200
)

type ListingFormat string

const (
	ListingFormatHTML ListingFormat = "html"
	ListingFormatFeed ListingFormat = "feed"
)

// OwnerRef identifies the organizer or venue that configured a source.
// Exactly one of the two IDs is set on a valid reference.
type OwnerRef struct {
	OrganizerID string
	LocationID  string
}

func (o OwnerRef) Valid() bool {
	return (o.OrganizerID == "") != (o.LocationID == "")
}

func (o OwnerRef) String() string {
	switch {
	case o.OrganizerID != "" && o.LocationID == "":
		return "organizer:" + o.OrganizerID
	case o.LocationID != "" && o.OrganizerID == "":
		return "location:" + o.LocationID
	default:
		return fmt.Sprintf("organizer:%q/location:%q", o.OrganizerID, o.LocationID)
	}
}

type SourceConfig struct {
	ID                 string
	Owner              OwnerRef
	Enabled            bool
	AgendaURL          string
	EventLinkSelector  string
	EventLinkAttribute string
	NextPageSelector   string
	NextPageAttribute  string
	MaxPages           int
	ListingFormat      ListingFormat
	Filters            []LinkFilterRule

	// LoadError is set by a store that could not decode part of the stored definition
	LoadError error
}

type LinkFilterRule struct {
	Field    string   `yaml:"field" json:"field"`
	Includes []string `yaml:"includes" json:"includes,omitempty"`
	Excludes []string `yaml:"excludes" json:"excludes,omitempty"`
}

var ErrInvalidSource = errors.New("invalid source config")

// WithDefaults returns a copy with attribute defaults applied and MaxPages clamped to [1, 200].
func (s SourceConfig) WithDefaults() SourceConfig {
	s.AgendaURL = strings.TrimSpace(s.AgendaURL)
	s.EventLinkSelector = strings.TrimSpace(s.EventLinkSelector)
	s.NextPageSelector = strings.TrimSpace(s.NextPageSelector)
	if strings.TrimSpace(s.EventLinkAttribute) == "" {
		s.EventLinkAttribute = DefaultLinkAttribute
	}
	if strings.TrimSpace(s.NextPageAttribute) == "" {
		s.NextPageAttribute = DefaultLinkAttribute
	}
	if s.ListingFormat == "" {
		s.ListingFormat = ListingFormatHTML
	}
	s.MaxPages = ClampMaxPages(s.MaxPages)
	return s
}

func ClampMaxPages(n int) int {
	return min(max(n, MinMaxPages), MaxMaxPages)
}

// Validate reports config invariant violations: owner must be exactly one of
// organizer/location, and the selectors needed for the listing format must be present.
func (s SourceConfig) Validate() error {
	if s.LoadError != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, s.LoadError)
	}
	if !s.Owner.Valid() {
		return fmt.Errorf("%w: exactly one of organizer or location must be set (got %s)", ErrInvalidSource, s.Owner)
	}
	if strings.TrimSpace(s.AgendaURL) == "" {
		return fmt.Errorf("%w: agenda URL is required", ErrInvalidSource)
	}
	if _, ok := NormalizeURL(s.AgendaURL, ""); !ok {
		return fmt.Errorf("%w: agenda URL %q is not an absolute http(s) URL", ErrInvalidSource, s.AgendaURL)
	}

	switch s.ListingFormat {
	case "", ListingFormatHTML:
		if strings.TrimSpace(s.EventLinkSelector) == "" {
			return fmt.Errorf("%w: event link selector is required", ErrInvalidSource)
		}
	case ListingFormatFeed:
	default:
		return fmt.Errorf("%w: unknown listing format %q", ErrInvalidSource, s.ListingFormat)
	}

	for i, rule := range s.Filters {
		if !validFilterFields[rule.Field] {
			return fmt.Errorf("%w: invalid filter field at index %d: %s", ErrInvalidSource, i, rule.Field)
		}
		if len(rule.Includes) == 0 && len(rule.Excludes) == 0 {
			return fmt.Errorf("%w: filter at index %d must have at least one include or exclude rule", ErrInvalidSource, i)
		}
	}

	return nil
}
