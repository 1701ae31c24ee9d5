package gitops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cross-impact/impactengine/internal/domain"
	"github.com/cross-impact/impactengine/internal/observability"
)

// ErrBranchNotFound is returned (wrapped) when the requested branch
// does not exist on the remote and branch fallback is disabled — the
// spec's chosen default (spec.md §8 scenario 3, §9 Open Question 1).
var ErrBranchNotFound = errors.New("branch_not_found")

// Options configures one materialization run.
type Options struct {
	Workspace          string
	ParallelCloneLimit int
	GitOpTimeout       time.Duration
	BranchFallback     bool // opt into {branch, master, main} probing instead of failing
	Runner             Runner
	RateLimit          float64 // repo materializations started/sec across the whole pool (one token per repo, not per git command); 0 disables pacing
}

// Result is one repo's materialization outcome.
type Result struct {
	Name       string
	Path       string
	Branch     string
	HeadCommit string
}

// Failure describes why one repo could not be materialized.
type Failure struct {
	Name  string
	Error string
}

// Report is the aggregate output of Materialize (spec.md §4.4 contract).
type Report struct {
	OK   []Result
	Fail []Failure
}

// Materialize clones or fast-forwards each related project into
// workspace/<name>, in parallel, bounded by opts.ParallelCloneLimit.
// A worker's failure never cancels its siblings (spec.md §4.4
// "Scheduling").
func Materialize(ctx context.Context, related []domain.ProjectRelation, opts Options) Report {
	runner := opts.Runner
	if runner == nil {
		runner = NewExecRunner()
	}
	timeout := opts.GitOpTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	runner = withTimeout(runner, timeout)

	var lim *limiter
	if opts.RateLimit > 0 {
		lim = newLimiter(opts.RateLimit, 1)
	}

	limit := opts.ParallelCloneLimit
	if limit <= 0 {
		limit = 8
	}
	if limit > len(related) {
		limit = len(related)
	}
	if limit < 1 {
		limit = 1
	}

	var (
		mu   sync.Mutex
		okR  []Result
		fail []Failure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, rp := range related {
		rp := rp
		g.Go(func() error {
			if lim != nil {
				if err := lim.wait(gctx); err != nil {
					mu.Lock()
					fail = append(fail, Failure{Name: rp.RelatedName, Error: err.Error()})
					mu.Unlock()
					return nil
				}
			}
			res, err := materializeOne(gctx, runner, opts.Workspace, rp, opts.BranchFallback)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fail = append(fail, Failure{Name: rp.RelatedName, Error: err.Error()})
				observability.MaterializeOutcomes.WithLabelValues("fail").Inc()
				return nil
			}
			okR = append(okR, res)
			observability.MaterializeOutcomes.WithLabelValues("ok").Inc()
			return nil
		})
	}
	_ = g.Wait()

	return Report{OK: okR, Fail: fail}
}

func materializeOne(ctx context.Context, runner Runner, workspace string, rp domain.ProjectRelation, allowFallback bool) (Result, error) {
	target := filepath.Join(workspace, rp.RelatedName)
	branch := rp.NormalizedBranch()

	if gitDirExists(target) {
		if _, err := runner.Run(ctx, target, "fetch", "--all", "--prune"); err != nil {
			return Result{}, fmt.Errorf("fetch %s: %w", rp.RelatedName, err)
		}
		resolvedBranch, err := checkoutBranch(ctx, runner, target, rp.RelatedGitURL, branch, allowFallback)
		if err != nil {
			return Result{}, err
		}
		if _, err := runner.Run(ctx, target, "reset", "--hard", "origin/"+resolvedBranch); err != nil {
			return Result{}, fmt.Errorf("reset %s: %w", rp.RelatedName, err)
		}
		head, err := runner.Run(ctx, target, "rev-parse", "HEAD")
		if err != nil {
			return Result{}, fmt.Errorf("rev-parse %s: %w", rp.RelatedName, err)
		}
		return Result{Name: rp.RelatedName, Path: target, Branch: resolvedBranch, HeadCommit: head}, nil
	}

	if _, err := runner.Run(ctx, "", "clone", "--branch", branch, "--single-branch", rp.RelatedGitURL, target); err != nil {
		if !allowFallback {
			return Result{}, fmt.Errorf("clone %s branch %s: %w: %w", rp.RelatedName, branch, ErrBranchNotFound, err)
		}
		_ = os.RemoveAll(target)
		if _, cloneErr := runner.Run(ctx, "", "clone", rp.RelatedGitURL, target); cloneErr != nil {
			return Result{}, fmt.Errorf("clone %s: %w", rp.RelatedName, cloneErr)
		}
		resolvedBranch, err := resolveFallbackBranch(ctx, runner, target, branch)
		if err != nil {
			return Result{}, fmt.Errorf("resolve fallback branch for %s: %w", rp.RelatedName, err)
		}
		if _, err := runner.Run(ctx, target, "checkout", resolvedBranch); err != nil {
			return Result{}, fmt.Errorf("checkout %s %s: %w", rp.RelatedName, resolvedBranch, err)
		}
		head, err := runner.Run(ctx, target, "rev-parse", "HEAD")
		if err != nil {
			return Result{}, fmt.Errorf("rev-parse %s: %w", rp.RelatedName, err)
		}
		return Result{Name: rp.RelatedName, Path: target, Branch: resolvedBranch, HeadCommit: head}, nil
	}

	head, err := runner.Run(ctx, target, "rev-parse", "HEAD")
	if err != nil {
		return Result{}, fmt.Errorf("rev-parse %s: %w", rp.RelatedName, err)
	}
	return Result{Name: rp.RelatedName, Path: target, Branch: branch, HeadCommit: head}, nil
}

func checkoutBranch(ctx context.Context, runner Runner, target, remoteURL, branch string, allowFallback bool) (string, error) {
	if _, err := runner.Run(ctx, target, "checkout", branch); err != nil {
		if !allowFallback {
			return "", fmt.Errorf("%w: %s", ErrBranchNotFound, branch)
		}
		return resolveFallbackBranch(ctx, runner, target, branch)
	}
	return branch, nil
}

// resolveFallbackBranch probes {branch, master, main} in order and
// returns the first that resolves remotely. Only reached when the
// caller opted into BranchFallback.
func resolveFallbackBranch(ctx context.Context, runner Runner, target, branch string) (string, error) {
	candidates := []string{branch, "master", "main"}
	for _, candidate := range candidates {
		if _, err := runner.Run(ctx, target, "rev-parse", "--verify", "origin/"+candidate); err == nil {
			if _, err := runner.Run(ctx, target, "checkout", candidate); err == nil {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no candidate in %v resolved", ErrBranchNotFound, candidates)
}

func gitDirExists(repoPath string) bool {
	info, err := os.Stat(filepath.Join(repoPath, ".git"))
	return err == nil && info.IsDir()
}
