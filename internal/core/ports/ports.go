// Package ports defines the narrow interfaces the orchestrator calls
// through for persistence and the LLM client — both out of scope for
// this module (spec.md §1), so only the boundary is defined here.
package ports

import (
	"context"

	"github.com/cross-impact/impactengine/internal/domain"
)

// Store is the persistence contract the orchestrator drives (spec.md
// §6 "Persistence contract"). The core does not define the store's
// schema beyond the entity fields in the data model.
type Store interface {
	CreateTask(ctx context.Context, task domain.AnalysisTask) error
	AppendLog(ctx context.Context, taskID, line string) error
	UpdateStatus(ctx context.Context, taskID string, status domain.TaskStatus) error
	InsertReport(ctx context.Context, report domain.AnalysisReport) error
	LoadProjectRelations(ctx context.Context, mainGitURL string) ([]domain.ProjectRelation, error)
}

// LLMClient is the transport-level LLM boundary; prompt assembly and
// reply parsing live in internal/llmreport, not here.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
