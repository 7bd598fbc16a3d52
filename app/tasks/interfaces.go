package tasks

import (
	"context"

	"github.com/lysyi3m/agenda-comb/app/discovery"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the API to queue background work.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueSourceSync() (int, error)
}

// DiscoveryRunner performs one discovery run
type DiscoveryRunner interface {
	Run(ctx context.Context) (*discovery.RunResult, error)
}
