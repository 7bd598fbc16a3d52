package agenda

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/text/unicode/norm"
)

var ErrNoEventData = errors.New("no event data found on page")

const maxDescriptionLength = 2000

// EventExtractor scrapes structured event fields from an event's own page.
// Sources, in priority order: schema.org Event JSON-LD, OpenGraph/meta tags, readability.
type EventExtractor struct {
	fetcher Fetcher
}

func NewEventExtractor(fetcher Fetcher) *EventExtractor {
	return &EventExtractor{fetcher: fetcher}
}

func (e *EventExtractor) ScrapeEventPage(ctx context.Context, pageURL string, owner OwnerRef) (map[string]any, error) {
	page, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event page: %w", err)
	}

	fields, err := e.Run(page)
	if err != nil {
		return nil, err
	}

	slog.Debug("Event page extracted", "url", pageURL, "owner", owner.String(), "fields", len(fields))
	return fields, nil
}

// Run extracts event fields from an already fetched page.
func (e *EventExtractor) Run(page *Page) (map[string]any, error) {
	if page == nil || len(page.Body) == 0 {
		return nil, fmt.Errorf("%w: HTML data is empty", ErrNoEventData)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse event page: %w", err)
	}

	fields := make(map[string]any)

	if event := findJSONLDEvent(doc); event != nil {
		applyJSONLDEvent(fields, event, page.URL)
	}
	applyMetaTags(fields, doc, page.URL)
	e.applyReadability(fields, page)

	if _, ok := fields["title"]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEventData, page.URL)
	}

	fields["scrapedAt"] = time.Now().UTC().Format(time.RFC3339)
	return fields, nil
}

func (e *EventExtractor) applyReadability(fields map[string]any, page *Page) {
	pageURL, err := url.Parse(page.URL)
	if err != nil {
		return
	}

	article, err := readability.FromReader(bytes.NewReader(page.Body), pageURL)
	if err != nil {
		slog.Debug("Readability extraction failed", "url", page.URL, "error", err)
		return
	}

	setText(fields, "title", article.Title)
	setText(fields, "siteName", article.SiteName)
	setText(fields, "description", truncate(cleanText(article.Excerpt), maxDescriptionLength))
	setURL(fields, "imageUrl", article.Image, page.URL)
}

func applyMetaTags(fields map[string]any, doc *goquery.Document, pageURL string) {
	meta := func(selector string) string {
		value, _ := doc.Find(selector).First().Attr("content")
		return value
	}

	setText(fields, "title", meta(`meta[property="og:title"]`))
	setText(fields, "description", truncate(cleanText(meta(`meta[property="og:description"]`)), maxDescriptionLength))
	setText(fields, "description", truncate(cleanText(meta(`meta[name="description"]`)), maxDescriptionLength))
	setText(fields, "siteName", meta(`meta[property="og:site_name"]`))
	setURL(fields, "imageUrl", meta(`meta[property="og:image"]`), pageURL)

	if canonical, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		setURL(fields, "externalUrl", canonical, pageURL)
	}
	setURL(fields, "externalUrl", meta(`meta[property="og:url"]`), pageURL)

	setText(fields, "title", doc.Find("title").First().Text())
}

func findJSONLDEvent(doc *goquery.Document) map[string]any {
	var found map[string]any

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
			return true
		}
		found = searchEvent(data)
		return found == nil
	})

	return found
}

func searchEvent(data any) map[string]any {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			if event := searchEvent(item); event != nil {
				return event
			}
		}
	case map[string]any:
		if isEventType(v["@type"]) {
			return v
		}
		if graph, ok := v["@graph"]; ok {
			return searchEvent(graph)
		}
	}
	return nil
}

func isEventType(t any) bool {
	switch v := t.(type) {
	case string:
		return strings.HasSuffix(v, "Event")
	case []any:
		for _, item := range v {
			if isEventType(item) {
				return true
			}
		}
	}
	return false
}

func applyJSONLDEvent(fields map[string]any, event map[string]any, pageURL string) {
	setText(fields, "title", stringValue(event["name"]))
	setText(fields, "description", truncate(cleanText(stringValue(event["description"])), maxDescriptionLength))
	setText(fields, "startDate", stringValue(event["startDate"]))
	setText(fields, "endDate", stringValue(event["endDate"]))
	setURL(fields, "imageUrl", imageValue(event["image"]), pageURL)
	setURL(fields, "externalUrl", stringValue(event["url"]), pageURL)

	if location := firstObject(event["location"]); location != nil {
		setText(fields, "venueName", stringValue(location["name"]))
		setText(fields, "address", addressValue(location["address"]))
	} else {
		setText(fields, "venueName", stringValue(event["location"]))
	}

	if offer := firstObject(event["offers"]); offer != nil {
		setURL(fields, "ticketUrl", stringValue(offer["url"]), pageURL)
		price := stringValue(offer["price"])
		if price != "" {
			if currency := stringValue(offer["priceCurrency"]); currency != "" {
				price = price + " " + currency
			}
		}
		setText(fields, "price", price)
	}
}

func firstObject(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		for _, item := range t {
			if obj, ok := item.(map[string]any); ok {
				return obj
			}
		}
	}
	return nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", t), "0"), ".")
	case []any:
		if len(t) > 0 {
			return stringValue(t[0])
		}
	}
	return ""
}

func imageValue(v any) string {
	if obj := firstObject(v); obj != nil {
		return stringValue(obj["url"])
	}
	return stringValue(v)
}

func addressValue(v any) string {
	obj, ok := v.(map[string]any)
	if !ok {
		return stringValue(v)
	}

	var parts []string
	for _, key := range []string{"streetAddress", "postalCode", "addressLocality", "addressCountry"} {
		if part := cleanText(stringValue(obj[key])); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

// setText stores value under key unless the key is already set or value is blank.
func setText(fields map[string]any, key, value string) {
	if _, ok := fields[key]; ok {
		return
	}
	if value = cleanText(value); value != "" {
		fields[key] = value
	}
}

func setURL(fields map[string]any, key, raw, base string) {
	if _, ok := fields[key]; ok {
		return
	}
	if normalized, ok := NormalizeURL(raw, base); ok {
		fields[key] = normalized
	}
}

func cleanText(s string) string {
	return collapseSpace(norm.NFC.String(s))
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
