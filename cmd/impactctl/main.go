package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cross-impact/impactengine/internal/core/config"
	"github.com/cross-impact/impactengine/internal/core/ports"
	"github.com/cross-impact/impactengine/internal/domain"
	"github.com/cross-impact/impactengine/internal/engine/indexcache"
	"github.com/cross-impact/impactengine/internal/engine/javaindex"
	"github.com/cross-impact/impactengine/internal/orchestrator"
	"github.com/cross-impact/impactengine/internal/store/memstore"
)

var (
	configPath         = flag.String("config", "./impactctl.toml", "Path to config file")
	taskPath           = flag.String("task", "", "Path to a task descriptor (TOML or JSON)")
	workspace          = flag.String("workspace", "", "Override the configured workspace directory")
	cacheDir           = flag.String("cache-dir", "", "Override the configured index cache directory")
	parallelCloneLimit = flag.Int("parallel-clone-limit", 0, "Override the configured parallel clone limit")
	gitOpTimeout       = flag.Int("git-op-timeout", 0, "Override the configured git operation timeout (seconds)")
	contextLines       = flag.Int("context-lines", 0, "Override the configured code-snippet context window (K)")
	verbose            = flag.Bool("verbose", false, "Enable verbose logging")
	version            = flag.Bool("version", false, "Print version and exit")
)

const versionString = "0.1.0"

// taskDescriptor is the on-disk shape decoded from -task (TOML or
// JSON; spec.md §6 "Command-line surface").
type taskDescriptor struct {
	MainGitURL         string `toml:"main_git_url" json:"main_git_url"`
	TargetBranch       string `toml:"target_branch" json:"target_branch"`
	BaseCommit         string `toml:"base_commit" json:"base_commit"`
	TargetCommit       string `toml:"target_commit" json:"target_commit"`
	EnableCrossProject bool   `toml:"enable_cross_project" json:"enable_cross_project"`
}

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("impactctl v%s\n", versionString)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath == "./impactctl.toml" {
			cfg, err = config.Load("./impactctl.example.toml")
		}
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(3)
		}
	}
	applyFlagOverrides(cfg)

	if *taskPath == "" {
		fmt.Fprintln(os.Stderr, "-task is required")
		os.Exit(3)
	}
	desc, err := loadTaskDescriptor(*taskPath)
	if err != nil {
		slog.Error("failed to load task descriptor", "error", err)
		os.Exit(3)
	}

	related := make([]domain.ProjectRelation, 0, len(cfg.RelatedProjects))
	for _, rp := range cfg.RelatedProjects {
		if !rp.Active {
			continue
		}
		related = append(related, domain.ProjectRelation{
			MainName:      filepath.Base(strings.TrimSuffix(desc.MainGitURL, ".git")),
			MainGitURL:    desc.MainGitURL,
			RelatedName:   rp.Name,
			RelatedGitURL: rp.GitURL,
			RelatedBranch: rp.Branch,
			Active:        rp.Active,
		})
	}
	task := domain.NewTask(desc.MainGitURL, desc.TargetBranch, desc.BaseCommit, desc.TargetCommit, desc.EnableCrossProject, related)

	exclude := javaindex.ExcludeRules{Dirs: cfg.Exclude.Dirs, Files: cfg.Exclude.Files}
	cacheFile := ""
	if cfg.CacheDir != "" {
		cacheFile = filepath.Join(cfg.CacheDir, "index.db")
	}
	provider, err := indexcache.Open(cacheFile, exclude, logger)
	if err != nil {
		slog.Error("failed to open index cache", "error", err)
		os.Exit(3)
	}
	defer provider.Close()

	store := memstore.New(nil)
	orch := orchestrator.New(store, unconfiguredLLMClient{}, provider, logger, orchestrator.Options{
		Workspace:          cfg.Workspace,
		ParallelCloneLimit: cfg.ParallelCloneLimit,
		GitOpTimeout:       time.Duration(cfg.GitOpTimeoutSeconds) * time.Second,
		ContextLinesK:      cfg.ContextLinesK,
		BranchFallback:     cfg.BranchFallback,
		LLMRetryBackoff:    cfg.LLMRetryBackoff,
		RateLimit:          cfg.RateLimit,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reports, err := orch.Run(ctx, task)
	if err != nil {
		slog.Error("task failed", "task_id", task.ID, "error", err)
		os.Exit(2)
	}
	fmt.Printf("task %s completed: %d report(s) persisted\n", task.ID, len(reports))
	os.Exit(0)
}

func applyFlagOverrides(cfg *config.Config) {
	if *workspace != "" {
		cfg.Workspace = *workspace
	}
	if *cacheDir != "" {
		cfg.CacheDir = *cacheDir
	}
	if *parallelCloneLimit > 0 {
		cfg.ParallelCloneLimit = *parallelCloneLimit
	}
	if *gitOpTimeout > 0 {
		cfg.GitOpTimeoutSeconds = *gitOpTimeout
	}
	if *contextLines > 0 {
		cfg.ContextLinesK = *contextLines
	}
}

func loadTaskDescriptor(path string) (taskDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return taskDescriptor{}, fmt.Errorf("read task descriptor %q: %w", path, err)
	}

	var desc taskDescriptor
	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, &desc); err != nil {
			return taskDescriptor{}, fmt.Errorf("decode task descriptor %q: %w", path, err)
		}
	} else if _, err := toml.Decode(string(data), &desc); err != nil {
		return taskDescriptor{}, fmt.Errorf("decode task descriptor %q: %w", path, err)
	}

	if desc.MainGitURL == "" || desc.BaseCommit == "" || desc.TargetCommit == "" {
		return taskDescriptor{}, errors.New("task descriptor missing main_git_url, base_commit, or target_commit")
	}
	return desc, nil
}

// unconfiguredLLMClient is the CLI's default ports.LLMClient: the LLM
// provider itself is out of scope for this module, so without an
// injected client every call returns an error and, after its one
// retry, the orchestrator persists a FAILED report per file rather
// than crashing the task.
type unconfiguredLLMClient struct{}

var _ ports.LLMClient = unconfiguredLLMClient{}

func (unconfiguredLLMClient) Complete(_ context.Context, _ string) (string, error) {
	return "", errors.New("no LLM client configured")
}
