package api

import (
	"github.com/lysyi3m/agenda-comb/app/agenda"
	"github.com/lysyi3m/agenda-comb/app/database"
	"github.com/lysyi3m/agenda-comb/app/discovery"
	"github.com/lysyi3m/agenda-comb/app/tasks"
)

type GeneratorInterface interface {
	Run(requests []database.PendingRequest) (string, error)
}

var _ GeneratorInterface = (*Generator)(nil)

type Handler struct {
	sourceRepo  database.SourceRepository
	requestRepo database.RequestRepository
	sourceCache *agenda.SourceCache
	runner      tasks.DiscoveryRunner
	scheduler   tasks.TaskSchedulerInterface
	generator   GeneratorInterface
	limits      discovery.Limits
}

// DiscoverResponse is the JSON summary returned to the cron trigger
type DiscoverResponse struct {
	Success            bool             `json:"success"`
	Message            string           `json:"message"`
	Configs            int              `json:"configs"`
	DiscoveredURLs     int              `json:"discoveredUrls"`
	CreatedRequests    int              `json:"createdRequests"`
	EnrichedRequests   int              `json:"enrichedRequests"`
	UnenrichedRequests int              `json:"unenrichedRequests"`
	Errors             int              `json:"errors"`
	Limits             discovery.Limits `json:"limits"`
	ErrorDetails       []string         `json:"errorDetails,omitempty"`
	Duration           string           `json:"duration"`
}

func newDiscoverResponse(result *discovery.RunResult) DiscoverResponse {
	return DiscoverResponse{
		Success:            result.Success(),
		Message:            result.Message(),
		Configs:            result.Configs,
		DiscoveredURLs:     result.DiscoveredURLs,
		CreatedRequests:    result.CreatedRequests,
		EnrichedRequests:   result.EnrichedRequests,
		UnenrichedRequests: result.UnenrichedRequests,
		Errors:             result.Errors,
		Limits:             result.Limits,
		ErrorDetails:       result.ErrorDetails,
		Duration:           result.Duration.String(),
	}
}

// ErrorResponse is returned when a trigger is rejected or the run cannot start
type ErrorResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Error   string           `json:"error,omitempty"`
	Limits  discovery.Limits `json:"limits"`
}
