package api

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/agenda-comb/app/database"
)

// Generator renders pending requests as an RSS 2.0 feed for reviewers
type Generator struct {
	baseURL string
	port    string
	version string
}

func NewGenerator(baseURL, port, version string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		port:    port,
		version: version,
	}
}

func (g *Generator) Run(requests []database.PendingRequest) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", "Pending event requests", 4)
	g.writeElement(&buf, "link", g.selfLink(), 4)
	g.writeElement(&buf, "description", "Events discovered on agenda pages awaiting review", 4)

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(g.selfLink())))

	lastBuildDate := time.Now().In(time.Local)
	if len(requests) > 0 {
		lastBuildDate = requests[0].CreatedAt.In(time.Local)
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Agenda-Comb/%s", g.version), 4)

	for _, req := range requests {
		g.writeItem(&buf, req)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, req database.PendingRequest) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(req.ID))
	buf.WriteString("</guid>\n")

	title := req.Metadata.String("title")
	if title == "" {
		title = req.SourceURL
	}
	g.writeElement(buf, "title", title, 6)
	g.writeElement(buf, "link", req.SourceURL, 6)
	g.writeElement(buf, "description", describe(req), 6)
	g.writeElement(buf, "pubDate", req.CreatedAt.In(time.Local).Format(time.RFC1123Z), 6)

	if req.OrganizerID != "" {
		g.writeElement(buf, "category", "organizer:"+req.OrganizerID, 6)
	}
	if req.LocationID != "" {
		g.writeElement(buf, "category", "location:"+req.LocationID, 6)
	}
	g.writeElement(buf, "category", "enrichment:"+req.EnrichmentStatus, 6)

	buf.WriteString("    </item>\n")
}

func describe(req database.PendingRequest) string {
	var parts []string
	for _, key := range []string{"startDate", "venueName", "address", "price", "description"} {
		if v := req.Metadata.String(key); v != "" {
			parts = append(parts, v)
		}
	}
	if req.EnrichmentStatus == database.EnrichmentFailed && req.EnrichmentError != "" {
		parts = append(parts, "Enrichment failed: "+req.EnrichmentError)
	}
	if len(parts) == 0 {
		return "No details available"
	}
	return strings.Join(parts, " | ")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) selfLink() string {
	if g.baseURL != "" {
		return g.baseURL + "/feeds/pending"
	}
	return fmt.Sprintf("http://localhost:%s/feeds/pending", g.port)
}
