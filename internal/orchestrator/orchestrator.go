// Package orchestrator implements the Analysis Orchestrator (C5): the
// end-to-end flow from a task descriptor to a set of persisted
// AnalysisReports (spec.md §4.5).
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cross-impact/impactengine/internal/core/ports"
	"github.com/cross-impact/impactengine/internal/domain"
	"github.com/cross-impact/impactengine/internal/domainerr"
	"github.com/cross-impact/impactengine/internal/engine/crosstrace"
	"github.com/cross-impact/impactengine/internal/engine/javaindex"
	"github.com/cross-impact/impactengine/internal/gitops"
	"github.com/cross-impact/impactengine/internal/llmreport"
	"github.com/cross-impact/impactengine/internal/observability"
	"github.com/cross-impact/impactengine/internal/unifieddiff"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IndexProvider is the subset of indexcache.Cache the orchestrator
// needs — kept local so this package doesn't import indexcache
// directly, matching crosstrace's own IndexProvider pattern.
type IndexProvider interface {
	GetOrBuild(root, commit string) (*domain.SymbolIndex, error)
}

// Options configures one Orchestrator.
type Options struct {
	Workspace          string
	ParallelCloneLimit int
	GitOpTimeout       time.Duration
	ContextLinesK      int
	BranchFallback     bool
	Runner             gitops.Runner // nil selects the real git binary
	LLMRetryBackoff    time.Duration
	RateLimit          float64 // repo materializations started/sec across the clone pool (one token per repo, not per git command); 0 disables pacing
}

// Orchestrator drives Run for one task at a time; distinct tasks run
// on distinct goroutines, each owning its own Orchestrator call.
type Orchestrator struct {
	store    ports.Store
	llm      ports.LLMClient
	provider IndexProvider
	log      *slog.Logger
	opts     Options
}

func New(store ports.Store, llm ports.LLMClient, provider IndexProvider, log *slog.Logger, opts Options) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if opts.ContextLinesK <= 0 {
		opts.ContextLinesK = 2
	}
	return &Orchestrator{store: store, llm: llm, provider: provider, log: log, opts: opts}
}

// Run executes the full flow described in spec.md §4.5 for task and
// returns every report persisted along the way. The task's status is
// always left at COMPLETED or FAILED before Run returns.
func (o *Orchestrator) Run(ctx context.Context, task domain.AnalysisTask) ([]domain.AnalysisReport, error) {
	ctx, span := observability.Tracer.Start(ctx, "orchestrator.Run", trace.WithAttributes(
		attribute.String("task_id", task.ID),
		attribute.String("main_git_url", task.MainGitURL),
	))
	defer span.End()

	start := time.Now()
	taskLog := newTaskLogSink(o.store, o.log, task.ID)

	if err := o.store.CreateTask(ctx, task); err != nil {
		return nil, domainerr.Wrap(err, domainerr.CodeConfig, "create task")
	}
	_ = o.store.UpdateStatus(ctx, task.ID, domain.StatusProcessing)

	reports, err := o.run(ctx, task, taskLog)

	finalStatus := domain.StatusCompleted
	if err != nil {
		finalStatus = domain.StatusFailed
		taskLog.Error("task failed fatally: " + err.Error())
	} else if len(reports) == 0 {
		finalStatus = domain.StatusFailed
		taskLog.Error("task failed: no file was analyzed")
	}
	_ = o.store.UpdateStatus(ctx, task.ID, finalStatus)
	observability.OrchestratorTaskDuration.WithLabelValues(string(finalStatus)).Observe(time.Since(start).Seconds())

	if finalStatus == domain.StatusFailed && err == nil {
		err = domainerr.New(domainerr.CodeGitOp, "no file was analyzed")
	}
	return reports, err
}

func (o *Orchestrator) run(ctx context.Context, task domain.AnalysisTask, taskLog *taskLogSink) ([]domain.AnalysisReport, error) {
	workspace := filepath.Join(o.opts.Workspace, task.ID)
	mainName := lastPathSegment(task.MainGitURL)

	// Step 1: materialize the main repo (a single-entry materialization).
	mainRelation := domain.ProjectRelation{
		RelatedName:   mainName,
		RelatedGitURL: task.MainGitURL,
		RelatedBranch: task.TargetBranch,
		Active:        true,
	}
	mainReport := gitops.Materialize(ctx, []domain.ProjectRelation{mainRelation}, gitops.Options{
		Workspace:          workspace,
		ParallelCloneLimit: 1,
		GitOpTimeout:       o.opts.GitOpTimeout,
		BranchFallback:     o.opts.BranchFallback,
		Runner:             o.opts.Runner,
		RateLimit:          o.opts.RateLimit,
	})
	if len(mainReport.OK) == 0 {
		reason := "unknown"
		if len(mainReport.Fail) > 0 {
			reason = mainReport.Fail[0].Error
		}
		return nil, domainerr.Wrap(errors.New(reason), domainerr.CodeGitOp, "materialize main repo")
	}
	mainResult := mainReport.OK[0]
	taskLog.Info(fmt.Sprintf("materialized main repo %s at %s", mainName, mainResult.HeadCommit))

	runner := o.opts.Runner
	if runner == nil {
		runner = gitops.NewExecRunner()
	}

	// Step 2: diff base_commit..target_commit.
	patch, err := runner.Run(ctx, mainResult.Path, "diff", task.BaseCommit, task.TargetCommit)
	if err != nil {
		return nil, domainerr.Wrap(err, domainerr.CodeGitOp, "diff base..target")
	}
	changes, err := unifieddiff.Parse(patch)
	if err != nil {
		return nil, domainerr.Wrap(err, domainerr.CodeParse, "parse diff")
	}
	taskLog.Info(fmt.Sprintf("diff produced %d changed files", len(changes)))

	// Step 3: materialize related repos, if enabled.
	var relatedRoots []crosstrace.ScanRoot
	relatedRootPaths := make(map[string]string)
	if task.EnableCrossProject && len(task.RelatedProjects) > 0 {
		relReport := gitops.Materialize(ctx, task.RelatedProjects, gitops.Options{
			Workspace:          workspace,
			ParallelCloneLimit: o.opts.ParallelCloneLimit,
			GitOpTimeout:       o.opts.GitOpTimeout,
			BranchFallback:     o.opts.BranchFallback,
			Runner:             o.opts.Runner,
			RateLimit:          o.opts.RateLimit,
		})
		for _, f := range relReport.Fail {
			taskLog.Warn(fmt.Sprintf("related repo %s degraded: %s", f.Name, f.Error))
		}
		for _, r := range relReport.OK {
			relatedRoots = append(relatedRoots, crosstrace.ScanRoot{Name: r.Name, Path: r.Path, Commit: r.HeadCommit})
			relatedRootPaths[r.Name] = r.Path
		}
	}

	// Step 4: build the main index and the tracer over scan_roots, even
	// with zero related roots (P-NoSingleProject).
	mainIdx, err := o.provider.GetOrBuild(mainResult.Path, mainResult.HeadCommit)
	if err != nil {
		return nil, domainerr.Wrap(err, domainerr.CodeParse, "build main index")
	}
	tracer := crosstrace.New(o.provider, crosstrace.ScanRoot{Name: mainName, Path: mainResult.Path, Commit: mainResult.HeadCommit}, mainIdx, relatedRoots, o.log)

	// Step 5: per-file loop.
	var reports []domain.AnalysisReport
	for _, fc := range changes {
		if ctx.Err() != nil {
			taskLog.Warn("task cancelled between files")
			return reports, domainerr.Wrap(ctx.Err(), domainerr.CodeCancel, "cancelled")
		}
		report, ok := o.analyzeFile(ctx, task, taskLog, mainResult, mainIdx, tracer, relatedRootPaths, fc)
		if ok {
			reports = append(reports, report)
		}
	}

	for _, repo := range tracer.DegradedProjects() {
		taskLog.Warn(fmt.Sprintf("related repo %s excluded from cross-project scan", repo))
	}

	return reports, nil
}

// analyzeFile runs step 5a-5e for one changed file. It always returns
// ok=true once a report (possibly a FAILED one) is persisted; ok=false
// only for changes this build intentionally skips (e.g. deletions).
func (o *Orchestrator) analyzeFile(ctx context.Context, task domain.AnalysisTask, taskLog *taskLogSink, mainResult gitops.Result, mainIdx *domain.SymbolIndex, tracer *crosstrace.Tracer, relatedRootPaths map[string]string, fc unifieddiff.FileChange) (domain.AnalysisReport, bool) {
	ctx, span := observability.Tracer.Start(ctx, "orchestrator.analyzeFile", trace.WithAttributes(attribute.String("file", fc.Path())))
	defer span.End()

	path := fc.Path()
	if fc.Deleted {
		taskLog.Info("skipping deleted file " + path)
		return domain.AnalysisReport{}, false
	}

	var fqn string
	var changedMethods []string
	var content string
	if strings.HasSuffix(path, ".java") {
		raw, err := os.ReadFile(filepath.Join(mainResult.Path, path))
		if err != nil {
			taskLog.Warn("could not read post-image for " + path + ": " + err.Error())
		} else {
			content = string(raw)
			if parsedFQN, ok := javaindex.ParseSingleFile(content); ok {
				fqn = parsedFQN
			}
			for _, m := range javaindex.ExtractMethods(content) {
				if fc.IntersectsRange(m.StartLine, m.EndLine) {
					changedMethods = append(changedMethods, m.Name)
				}
			}
		}
	}

	var downstream []domain.DownstreamEntry
	var downstreamCitations []llmreport.Citation
	if fqn != "" {
		for _, u := range javaindex.FindUsages(mainIdx, fqn) {
			downstream = append(downstream, domain.DownstreamEntry{File: u.Path, Line: u.Line, Snippet: u.Snippet, Detail: u.Detail})
			downstreamCitations = append(downstreamCitations, llmreport.Citation{
				File: u.Path, Line: u.Line, Snippet: u.Snippet, Detail: u.Detail,
				Window: windowFor(mainResult.Path, u.Path, u.Line, o.opts.ContextLinesK),
			})
		}
	}

	var crossImpacts []domain.Impact
	var crossCitations []llmreport.Citation
	if fqn != "" {
		crossImpacts = tracer.FindCrossProjectImpacts(fqn, changedMethods)
		observability.CrossProjectImpactsFound.WithLabelValues(task.MainGitURL).Observe(float64(len(crossImpacts)))
		for _, imp := range crossImpacts {
			crossCitations = append(crossCitations, llmreport.Citation{
				Project: imp.Project, Type: string(imp.Type), File: imp.File, Line: imp.Line, Snippet: imp.Snippet, Detail: imp.Detail,
				Window: windowFor(relatedRootPaths[imp.Project], imp.File, imp.Line, o.opts.ContextLinesK),
			})
		}
	}

	prompt := llmreport.AssemblePrompt(llmreport.PromptContext{
		FileName:         path,
		ChangeIntentStub: changeIntentStub(fc.Header),
		UnifiedDiff:      fc.Raw,
		Downstream:       downstreamCitations,
		CrossProject:     crossCitations,
		ContextLinesK:    o.opts.ContextLinesK,
	})

	reply, failReason := o.callLLM(ctx, prompt)

	var report domain.AnalysisReport
	if reply != nil {
		report = llmreport.MergeReport(task.ID, task.MainGitURL, path, fc.Raw, "main", downstream, crossImpacts, *reply)
	} else {
		observability.LLMFailuresTotal.Inc()
		report = llmreport.FailedReport(task.ID, task.MainGitURL, path, fc.Raw, "main", failReason)
		taskLog.Warn("llm reply validation failed for " + path + ": " + failReason)
	}

	if err := o.store.InsertReport(ctx, report); err != nil {
		taskLog.Warn("failed to persist report for " + path + ": " + err.Error())
	}
	return report, true
}

// callLLM issues the prompt, retrying once on a shape failure (spec.md
// §4.6 "Reply contract").
func (o *Orchestrator) callLLM(ctx context.Context, prompt string) (*llmreport.Reply, string) {
	raw, err := o.llm.Complete(ctx, prompt)
	if err == nil {
		if reply, perr := llmreport.ParseReply(raw); perr == nil {
			return reply, ""
		}
	}
	observability.LLMRetriesTotal.Inc()
	if o.opts.LLMRetryBackoff > 0 {
		select {
		case <-time.After(o.opts.LLMRetryBackoff):
		case <-ctx.Done():
			return nil, "cancelled during retry backoff"
		}
	}
	raw, err = o.llm.Complete(ctx, prompt+"\n\nYour previous reply did not match the required JSON shape. Return risk_level and change_intent at minimum.")
	if err != nil {
		return nil, err.Error()
	}
	reply, perr := llmreport.ParseReply(raw)
	if perr != nil {
		return nil, perr.Error()
	}
	return reply, ""
}

func windowFor(repoRoot, relPath string, line, k int) llmreport.CodeWindow {
	raw, err := os.ReadFile(filepath.Join(repoRoot, relPath))
	if err != nil {
		return llmreport.CodeWindow{TargetLine: line, TargetCode: "<file unavailable>"}
	}
	lines := strings.Split(string(raw), "\n")
	return llmreport.BuildCodeWindow(lines, line, k)
}

func changeIntentStub(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	lines := strings.SplitN(header, "\n", 2)
	return lines[0]
}

func lastPathSegment(gitURL string) string {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(gitURL, "/"), ".git")
	idx := strings.LastIndexAny(trimmed, "/:")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}
