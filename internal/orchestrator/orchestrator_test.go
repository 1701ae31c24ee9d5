package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cross-impact/impactengine/internal/core/ports"
	"github.com/cross-impact/impactengine/internal/domain"
	"github.com/cross-impact/impactengine/internal/engine/indexcache"
	"github.com/cross-impact/impactengine/internal/engine/javaindex"
	"github.com/cross-impact/impactengine/internal/store/memstore"
)

const widgetDiff = `diff --git a/src/main/java/com/example/Widget.java b/src/main/java/com/example/Widget.java
index 1111111..2222222 100644
--- a/src/main/java/com/example/Widget.java
+++ b/src/main/java/com/example/Widget.java
@@ -1,8 +1,12 @@
 package com.example;
 
 public class Widget {
 
     public void oldMethod() {
         System.out.println("old");
     }
+
+    public void newMethod() {
+        System.out.println("new");
+    }
 }
`

const widgetPostImage = `package com.example;

public class Widget {

    public void oldMethod() {
        System.out.println("old");
    }

    public void newMethod() {
        System.out.println("new");
    }
}
`

const consumerSource = `package com.example.consumer;

import com.example.Widget;

public class Consumer {
    private Widget widget;

    public void run() {
        widget.newMethod();
    }
}
`

// fakeGitRunner answers the fixed set of git invocations the
// orchestrator issues without touching the filesystem or network; the
// repo content itself is pre-seeded onto disk by the test.
type fakeGitRunner struct {
	diffOutput string
}

func (f fakeGitRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	switch args[0] {
	case "rev-parse":
		return "main-sha", nil
	case "diff":
		return f.diffOutput, nil
	default: // clone, fetch, checkout, reset
		return "", nil
	}
}

// fakeLLM always returns a valid, minimal reply.
type fakeLLM struct{ reply string }

var _ ports.LLMClient = fakeLLM{}

func (f fakeLLM) Complete(_ context.Context, _ string) (string, error) {
	return f.reply, nil
}

func seedRepo(t *testing.T, workspace, taskID, repoName string) {
	t.Helper()
	root := filepath.Join(workspace, taskID, repoName)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src/main/java/com/example"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src/main/java/com/example/Widget.java"), []byte(widgetPostImage), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src/main/java/com/example/consumer"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src/main/java/com/example/consumer/Consumer.java"), []byte(consumerSource), 0o644))
}

func TestRunEndToEndSingleRepoProducesReport(t *testing.T) {
	workspace := t.TempDir()
	task := domain.NewTask("https://example.com/widgets.git", "develop", "base-sha", "target-sha", false, nil)
	seedRepo(t, workspace, task.ID, "widgets")

	provider, err := indexcache.Open("", javaindex.ExcludeRules{}, nil)
	require.NoError(t, err)

	store := memstore.New(nil)
	llm := fakeLLM{reply: `{"risk_level":"LOW","change_intent":"added newMethod","functional_impact":"none","test_strategy":["unit test newMethod"]}`}

	orch := New(store, llm, provider, nil, Options{Workspace: workspace, ParallelCloneLimit: 1, Runner: fakeGitRunner{diffOutput: widgetDiff}})

	reports, err := orch.Run(context.Background(), task)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	r := reports[0]
	require.Equal(t, "src/main/java/com/example/Widget.java", r.FileName)
	require.Equal(t, "LOW", r.RiskLevel)
	require.NotEmpty(t, r.DownstreamDependency)
	require.Empty(t, r.CrossServiceImpact) // no related repos configured

	finalTask, ok := store.Task(task.ID)
	require.True(t, ok)
	require.Equal(t, domain.StatusCompleted, finalTask.Status)
}

func TestRunPersistsFailedReportWhenLLMNeverValidates(t *testing.T) {
	workspace := t.TempDir()
	task := domain.NewTask("https://example.com/widgets.git", "develop", "base-sha", "target-sha", false, nil)
	seedRepo(t, workspace, task.ID, "widgets")

	provider, err := indexcache.Open("", javaindex.ExcludeRules{}, nil)
	require.NoError(t, err)

	store := memstore.New(nil)
	llm := fakeLLM{reply: `not json at all`}

	orch := New(store, llm, provider, nil, Options{Workspace: workspace, ParallelCloneLimit: 1, Runner: fakeGitRunner{diffOutput: widgetDiff}})

	reports, err := orch.Run(context.Background(), task)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, "UNKNOWN", reports[0].RiskLevel)

	finalTask, ok := store.Task(task.ID)
	require.True(t, ok)
	require.Equal(t, domain.StatusCompleted, finalTask.Status) // the file was still analyzed
}

func TestRunFailsTaskWhenMainRepoCannotBeMaterialized(t *testing.T) {
	workspace := t.TempDir()
	task := domain.NewTask("https://example.com/widgets.git", "develop", "base-sha", "target-sha", false, nil)
	// deliberately do not seed the repo's files on disk and make clone fail
	provider, err := indexcache.Open("", javaindex.ExcludeRules{}, nil)
	require.NoError(t, err)
	store := memstore.New(nil)

	orch := New(store, fakeLLM{}, provider, nil, Options{Workspace: workspace, ParallelCloneLimit: 1, Runner: failingCloneRunner{}})

	_, err = orch.Run(context.Background(), task)
	require.Error(t, err)

	finalTask, ok := store.Task(task.ID)
	require.True(t, ok)
	require.Equal(t, domain.StatusFailed, finalTask.Status)
}

type failingCloneRunner struct{}

func (failingCloneRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	if len(args) > 0 && args[0] == "clone" {
		return "", os.ErrNotExist
	}
	return "", nil
}
