package agenda

import (
	"bytes"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// FeedListing reads event links out of an RSS/Atom agenda.
type FeedListing struct {
	gofeedParser *gofeed.Parser
}

func NewFeedListing() *FeedListing {
	return &FeedListing{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *FeedListing) Run(page *Page) ([]Link, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	links := make([]Link, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		raw := item.Link
		if raw == "" && len(item.Links) > 0 {
			raw = item.Links[0]
		}

		eventURL, ok := NormalizeURL(raw, page.URL)
		if !ok {
			continue
		}
		links = append(links, Link{URL: eventURL, Text: collapseSpace(item.Title)})
	}

	return links, nil
}
