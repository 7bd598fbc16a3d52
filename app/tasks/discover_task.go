package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/agenda-comb/app/discovery"
)

// A discovery run is never retried; the next scheduled run picks up where this one failed.
const discoverTimeout = 30 * time.Minute

type DiscoverTask struct {
	Task
	runner DiscoveryRunner
}

func NewDiscoverTask(runner DiscoveryRunner) *DiscoverTask {
	task := NewTask(TaskTypeDiscover, "all")
	task.MaxRetries = 0
	task.Timeout = discoverTimeout

	return &DiscoverTask{
		Task:   task,
		runner: runner,
	}
}

func (t *DiscoverTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.runner.Run(ctx)
	if errors.Is(err, discovery.ErrRunInProgress) {
		slog.Info("Discovery already running, skipping", "id", t.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run discovery: %w", err)
	}

	slog.Info("Task completed",
		"type", "Discover",
		"configs", result.Configs,
		"discovered", result.DiscoveredURLs,
		"created", result.CreatedRequests,
		"enriched", result.EnrichedRequests,
		"errors", result.Errors,
		"duration", t.GetDuration())

	return nil
}
