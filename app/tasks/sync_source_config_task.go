package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/agenda-comb/app/agenda"
	"github.com/lysyi3m/agenda-comb/app/database"
)

type SyncSourceConfigTask struct {
	Task
	Source     *agenda.SourceConfig
	sourceRepo database.SourceRepository
}

func NewSyncSourceConfigTask(source *agenda.SourceConfig, sourceRepo database.SourceRepository) *SyncSourceConfigTask {
	return &SyncSourceConfigTask{
		Task:       NewTask(TaskTypeSyncSourceConfig, source.ID),
		Source:     source,
		sourceRepo: sourceRepo,
	}
}

func (t *SyncSourceConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.sourceRepo.UpsertSource(ctx, *t.Source); err != nil {
		slog.Error("Task failed", "type", "SyncSourceConfig", "source", t.Source.ID, "error", err)
		return fmt.Errorf("failed to sync source config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncSourceConfig",
		"source", t.Source.ID,
		"enabled", t.Source.Enabled,
		"duration", t.GetDuration())

	return nil
}
