package orchestrator

import (
	"context"
	"log/slog"

	"github.com/cross-impact/impactengine/internal/core/ports"
)

// taskLogSink writes to both the process logger and the task's
// append-only log stream (spec.md §1.1 "Logging" — one logger per
// task, no global mutable logger).
type taskLogSink struct {
	store  ports.Store
	log    *slog.Logger
	taskID string
}

func newTaskLogSink(store ports.Store, log *slog.Logger, taskID string) *taskLogSink {
	return &taskLogSink{store: store, log: log.With("task_id", taskID), taskID: taskID}
}

func (s *taskLogSink) Info(line string) {
	s.log.Info(line)
	_ = s.store.AppendLog(context.Background(), s.taskID, line)
}

func (s *taskLogSink) Warn(line string) {
	s.log.Warn(line)
	_ = s.store.AppendLog(context.Background(), s.taskID, line)
}

func (s *taskLogSink) Error(line string) {
	s.log.Error(line)
	_ = s.store.AppendLog(context.Background(), s.taskID, line)
}
