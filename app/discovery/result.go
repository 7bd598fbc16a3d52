package discovery

import (
	"fmt"
	"time"

	"github.com/lysyi3m/agenda-comb/app/agenda"
)

// RunResult aggregates one discovery run
type RunResult struct {
	Configs            int
	DiscoveredURLs     int
	CreatedRequests    int
	EnrichedRequests   int
	UnenrichedRequests int
	Errors             int
	ErrorDetails       []string
	Limits             Limits
	StartedAt          time.Time
	Duration           time.Duration
}

func newRunResult(limits Limits) *RunResult {
	return &RunResult{
		Limits:    limits,
		StartedAt: time.Now(),
	}
}

func (r *RunResult) Success() bool {
	return r.Errors == 0
}

func (r *RunResult) Message() string {
	if r.Errors > 0 {
		return fmt.Sprintf("Discovery completed with %d errors: %d requests created from %d configs",
			r.Errors, r.CreatedRequests, r.Configs)
	}
	return fmt.Sprintf("Discovery completed: %d requests created from %d configs",
		r.CreatedRequests, r.Configs)
}

func (r *RunResult) addSourceError(src agenda.SourceConfig, err error) {
	r.addError(fmt.Sprintf("source %s (%s): %v", src.ID, src.AgendaURL, err))
}

func (r *RunResult) addError(detail string) {
	r.Errors++
	r.ErrorDetails = append(r.ErrorDetails, detail)
}
