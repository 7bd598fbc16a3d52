package agenda

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPFetcher_SendsBrowserHeaders(t *testing.T) {
	var gotUA, gotLang string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.Client(), FetcherOptions{
		UserAgent:      "Mozilla/5.0 Test",
		AcceptLanguage: "fr-FR,fr;q=0.9",
	})

	page, err := fetcher.Fetch(context.Background(), server.URL+"/events")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if gotUA != "Mozilla/5.0 Test" {
		t.Errorf("Expected user agent to be sent, got '%s'", gotUA)
	}
	if gotLang != "fr-FR,fr;q=0.9" {
		t.Errorf("Expected accept-language to be sent, got '%s'", gotLang)
	}
	if !strings.Contains(string(page.Body), "ok") {
		t.Errorf("Unexpected body: %s", page.Body)
	}
	if page.URL != server.URL+"/events" {
		t.Errorf("Expected page URL %s, got %s", server.URL+"/events", page.URL)
	}
}

func TestHTTPFetcher_Non2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.Client(), FetcherOptions{})

	_, err := fetcher.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error for 404 response")
	}

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected HTTPStatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", statusErr.StatusCode)
	}
}

func TestHTTPFetcher_DecodesGzip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		gz.Write([]byte("<html>compressed agenda</html>"))
		gz.Close()

		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.Client(), FetcherOptions{})

	page, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if string(page.Body) != "<html>compressed agenda</html>" {
		t.Errorf("Unexpected decoded body: %q", page.Body)
	}
}

func TestHTTPFetcher_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("a"), 2048))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.Client(), FetcherOptions{MaxBodyBytes: 1024})

	if _, err := fetcher.Fetch(context.Background(), server.URL); err == nil {
		t.Error("Expected error for oversized body")
	}
}

func TestHTTPFetcher_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.Client(), FetcherOptions{RequestsPerSecond: 0.01})

	if _, err := fetcher.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("First request should use the burst, got: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := fetcher.Fetch(ctx, server.URL); err == nil {
		t.Error("Expected second request to fail while waiting on the limiter")
	}
}
