// Package config loads the orchestrator's TOML configuration: where to
// materialize repos, where to cache indices, the related-project
// relations for the active main repo, and the Git/report tuning knobs
// from spec.md §6.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration object.
type Config struct {
	Workspace string `toml:"workspace"`
	CacheDir  string `toml:"cache_dir"`

	EnableCrossProject bool             `toml:"enable_cross_project"`
	RelatedProjects    []RelatedProject `toml:"related_projects"`

	ParallelCloneLimit  int           `toml:"parallel_clone_limit"`
	GitOpTimeoutSeconds int           `toml:"git_op_timeout_seconds"`
	ContextLinesK       int           `toml:"context_lines_k"`
	BranchFallback      bool          `toml:"branch_fallback"`
	LLMRetryBackoff     time.Duration `toml:"llm_retry_backoff"`
	RateLimit           float64       `toml:"rate_limit"` // repo materializations started/sec across the clone pool (one token per repo, not per git command)

	Exclude Exclude `toml:"exclude"`
}

// RelatedProject mirrors one ProjectRelation row as read from TOML.
type RelatedProject struct {
	Name   string `toml:"name"`
	GitURL string `toml:"git_url"`
	Branch string `toml:"branch"`
	Active bool   `toml:"active"`
}

// Exclude controls which directories/files the Java indexer skips.
type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

// Load reads and validates a TOML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	return Decode(data)
}

// Decode parses TOML bytes directly, useful for tests and embedded defaults.
func Decode(data []byte) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Workspace) == "" {
		cfg.Workspace = "data/workspace"
	}
	if strings.TrimSpace(cfg.CacheDir) == "" {
		cfg.CacheDir = "data/cache"
	}
	if cfg.ParallelCloneLimit <= 0 {
		cfg.ParallelCloneLimit = 8
	}
	if cfg.GitOpTimeoutSeconds <= 0 {
		cfg.GitOpTimeoutSeconds = 120
	}
	if cfg.ContextLinesK <= 0 {
		cfg.ContextLinesK = 2
	}
	if cfg.LLMRetryBackoff <= 0 {
		cfg.LLMRetryBackoff = 2 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{
			".git", ".svn", ".hg",
			"target", "build", "out", "bin", ".gradle", ".mvn", "node_modules",
			"test", "tests", "src/test",
		}
	}
	if len(cfg.Exclude.Files) == 0 {
		cfg.Exclude.Files = []string{"*Test.java", "*Tests.java", "*IT.java"}
	}
	for i := range cfg.RelatedProjects {
		if strings.TrimSpace(cfg.RelatedProjects[i].Branch) == "" {
			cfg.RelatedProjects[i].Branch = "master"
		}
	}
}

func validate(cfg *Config) error {
	if cfg.ParallelCloneLimit > 64 {
		return fmt.Errorf("config: parallel_clone_limit %d exceeds sane maximum", cfg.ParallelCloneLimit)
	}
	seen := make(map[string]bool, len(cfg.RelatedProjects))
	for _, rp := range cfg.RelatedProjects {
		if strings.TrimSpace(rp.GitURL) == "" {
			return fmt.Errorf("config: related project %q missing git_url", rp.Name)
		}
		if seen[rp.GitURL] {
			return fmt.Errorf("config: duplicate related project git_url %q", rp.GitURL)
		}
		seen[rp.GitURL] = true
	}
	return nil
}
