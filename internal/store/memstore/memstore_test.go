package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cross-impact/impactengine/internal/domain"
)

func TestCreateTaskThenAppendLogAndUpdateStatus(t *testing.T) {
	store := New(nil)
	ctx := context.Background()

	task := domain.NewTask("https://example.com/main.git", "develop", "abc", "def", true, nil)
	require.NoError(t, store.CreateTask(ctx, task))
	require.NoError(t, store.AppendLog(ctx, task.ID, "materializing main repo"))
	require.NoError(t, store.UpdateStatus(ctx, task.ID, domain.StatusProcessing))

	got, ok := store.Task(task.ID)
	require.True(t, ok)
	require.Equal(t, domain.StatusProcessing, got.Status)
	require.Len(t, got.Log, 1)
	require.Equal(t, "materializing main repo", got.Log[0].Message)
}

func TestAppendLogUnknownTaskErrors(t *testing.T) {
	store := New(nil)
	require.Error(t, store.AppendLog(context.Background(), "missing", "x"))
}

func TestInsertReportAccumulates(t *testing.T) {
	store := New(nil)
	ctx := context.Background()
	require.NoError(t, store.InsertReport(ctx, domain.AnalysisReport{FileName: "A.java"}))
	require.NoError(t, store.InsertReport(ctx, domain.AnalysisReport{FileName: "B.java"}))
	require.Len(t, store.Reports(), 2)
}

func TestLoadProjectRelationsReturnsSeededRows(t *testing.T) {
	relations := map[string][]domain.ProjectRelation{
		"https://example.com/main.git": {{MainGitURL: "https://example.com/main.git", RelatedName: "ucenter-provider"}},
	}
	store := New(relations)
	rows, err := store.LoadProjectRelations(context.Background(), "https://example.com/main.git")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "ucenter-provider", rows[0].RelatedName)
}
