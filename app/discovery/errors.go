package discovery

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized rejects a trigger before any source is processed
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRunInProgress is returned when another discovery run holds the run guard
	ErrRunInProgress = errors.New("discovery run already in progress")

	// ErrExtraction marks an event page that yielded no usable fields
	ErrExtraction = errors.New("event extraction failed")
)

// SourceCrawlError is a network or parse failure while paginating one source
type SourceCrawlError struct {
	SourceID string
	Err      error
}

func (e *SourceCrawlError) Error() string {
	return fmt.Sprintf("crawl failed: %v", e.Err)
}

func (e *SourceCrawlError) Unwrap() error {
	return e.Err
}

// StoreError is a persistence failure for a single URL
type StoreError struct {
	Op  string
	URL string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed for %s: %v", e.Op, e.URL, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ConfigError is a source definition violating its invariants
type ConfigError struct {
	SourceID string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
