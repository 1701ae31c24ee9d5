// Package memstore is the in-memory ports.Store used by the CLI's
// single-run mode and by orchestrator tests (spec.md §6 "Persistence
// contract" — the core ships no schema, only this default binding).
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/cross-impact/impactengine/internal/core/ports"
	"github.com/cross-impact/impactengine/internal/domain"
)

// Store is a mutex-guarded in-memory implementation of ports.Store.
type Store struct {
	mu        sync.Mutex
	tasks     map[string]domain.AnalysisTask
	reports   []domain.AnalysisReport
	relations map[string][]domain.ProjectRelation
}

var _ ports.Store = (*Store)(nil)

// New returns an empty Store. relations seeds LoadProjectRelations's
// lookup table (main_git_url -> its related projects); nil is fine for
// callers that load relations from elsewhere.
func New(relations map[string][]domain.ProjectRelation) *Store {
	if relations == nil {
		relations = make(map[string][]domain.ProjectRelation)
	}
	return &Store{
		tasks:     make(map[string]domain.AnalysisTask),
		relations: relations,
	}
}

func (s *Store) CreateTask(_ context.Context, t domain.AnalysisTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("memstore: task %q already exists", t.ID)
	}
	s.tasks[t.ID] = t
	return nil
}

func (s *Store) AppendLog(_ context.Context, taskID, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("memstore: unknown task %q", taskID)
	}
	t.AppendLog("INFO", line)
	s.tasks[taskID] = t
	return nil
}

func (s *Store) UpdateStatus(_ context.Context, taskID string, status domain.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("memstore: unknown task %q", taskID)
	}
	t.Status = status
	s.tasks[taskID] = t
	return nil
}

func (s *Store) InsertReport(_ context.Context, r domain.AnalysisReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return nil
}

func (s *Store) LoadProjectRelations(_ context.Context, mainGitURL string) ([]domain.ProjectRelation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ProjectRelation{}, s.relations[mainGitURL]...), nil
}

// Task returns the current snapshot of a task, for tests and the CLI's
// post-run summary.
func (s *Store) Task(taskID string) (domain.AnalysisTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	return t, ok
}

// Reports returns every report inserted so far, in insertion order.
func (s *Store) Reports() []domain.AnalysisReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AnalysisReport{}, s.reports...)
}
