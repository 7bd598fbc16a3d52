package agenda

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// CrawlResult holds the unique event URLs of one source in discovery order
// and the listing pages that were fetched to find them.
type CrawlResult struct {
	URLs     []string
	Pages    []string
	Filtered int
}

type Crawler struct {
	fetcher     Fetcher
	filter      *LinkFilter
	feedListing *FeedListing
}

func NewCrawler(fetcher Fetcher, filter *LinkFilter, feedListing *FeedListing) *Crawler {
	if filter == nil {
		filter = NewLinkFilter()
	}
	if feedListing == nil {
		feedListing = NewFeedListing()
	}
	return &Crawler{
		fetcher:     fetcher,
		filter:      filter,
		feedListing: feedListing,
	}
}

// Discover follows the source's pagination from its agenda URL and returns every unique
// event URL found. It fetches at most MaxPages pages and never fetches a page twice.
func (c *Crawler) Discover(ctx context.Context, src SourceConfig) (*CrawlResult, error) {
	src = src.WithDefaults()

	startURL, ok := NormalizeURL(src.AgendaURL, "")
	if !ok {
		return nil, fmt.Errorf("%w: agenda URL %q is not an absolute http(s) URL", ErrInvalidSource, src.AgendaURL)
	}

	if src.ListingFormat == ListingFormatFeed {
		return c.discoverFeed(ctx, src, startURL)
	}

	linkMatcher, err := cascadia.Compile(src.EventLinkSelector)
	if err != nil {
		return nil, fmt.Errorf("%w: event link selector %q: %v", ErrInvalidSource, src.EventLinkSelector, err)
	}

	var nextMatcher goquery.Matcher
	if src.NextPageSelector != "" {
		nextMatcher, err = cascadia.Compile(src.NextPageSelector)
		if err != nil {
			return nil, fmt.Errorf("%w: next page selector %q: %v", ErrInvalidSource, src.NextPageSelector, err)
		}
	}

	result := &CrawlResult{}
	found := newOrderedSet()
	visited := make(map[string]struct{})

	currentURL := startURL
	for currentURL != "" && len(result.Pages) < src.MaxPages {
		if _, seen := visited[currentURL]; seen {
			slog.Debug("Pagination cycle detected", "source", src.ID, "url", currentURL)
			break
		}
		visited[currentURL] = struct{}{}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := c.fetcher.Fetch(ctx, currentURL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch agenda page %s: %w", currentURL, err)
		}
		result.Pages = append(result.Pages, currentURL)

		pageURL := currentURL
		if finalURL, ok := NormalizeURL(page.URL, ""); ok {
			pageURL = finalURL
			visited[finalURL] = struct{}{}
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
		if err != nil {
			return nil, fmt.Errorf("failed to parse agenda page %s: %w", currentURL, err)
		}

		before := found.Len()
		doc.FindMatcher(linkMatcher).Each(func(_ int, s *goquery.Selection) {
			raw, exists := s.Attr(src.EventLinkAttribute)
			if !exists {
				return
			}
			eventURL, ok := NormalizeURL(raw, pageURL)
			if !ok {
				return
			}
			if rejected, reason := c.filter.Run(Link{URL: eventURL, Text: collapseSpace(s.Text())}, src.Filters); rejected {
				slog.Debug("Event link filtered", "source", src.ID, "url", eventURL, "reason", reason)
				result.Filtered++
				return
			}
			found.Add(eventURL)
		})

		slog.Debug("Agenda page crawled",
			"source", src.ID,
			"page", len(result.Pages),
			"url", currentURL,
			"new_links", found.Len()-before)

		if nextMatcher == nil {
			break
		}

		currentURL = ""
		next := doc.FindMatcher(nextMatcher).First()
		if next.Length() == 0 {
			break
		}
		raw, exists := next.Attr(src.NextPageAttribute)
		if !exists {
			break
		}
		nextURL, ok := NormalizeURL(raw, pageURL)
		if !ok {
			break
		}
		if _, seen := visited[nextURL]; seen {
			slog.Debug("Next page already visited", "source", src.ID, "url", nextURL)
			break
		}
		currentURL = nextURL
	}

	result.URLs = found.Values()
	return result, nil
}

func (c *Crawler) discoverFeed(ctx context.Context, src SourceConfig, feedURL string) (*CrawlResult, error) {
	page, err := c.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agenda feed %s: %w", feedURL, err)
	}

	links, err := c.feedListing.Run(page)
	if err != nil {
		return nil, fmt.Errorf("failed to parse agenda feed %s: %w", feedURL, err)
	}

	result := &CrawlResult{Pages: []string{feedURL}}
	found := newOrderedSet()
	for _, link := range links {
		if rejected, reason := c.filter.Run(link, src.Filters); rejected {
			slog.Debug("Event link filtered", "source", src.ID, "url", link.URL, "reason", reason)
			result.Filtered++
			continue
		}
		found.Add(link.URL)
	}

	result.URLs = found.Values()
	return result, nil
}

type orderedSet struct {
	index  map[string]struct{}
	values []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: make(map[string]struct{})}
}

func (s *orderedSet) Add(v string) {
	if _, ok := s.index[v]; ok {
		return
	}
	s.index[v] = struct{}{}
	s.values = append(s.values, v)
}

func (s *orderedSet) Len() int {
	return len(s.values)
}

func (s *orderedSet) Values() []string {
	return s.values
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
