// Package indexcache implements the Index Cache (C7): a disk-backed
// cache of SymbolIndex values keyed by (canonical repo root, commit
// hash), fronted by an in-process layer so repeated lookups within one
// process never touch SQLite (spec.md §4.7).
package indexcache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cross-impact/impactengine/internal/domain"
	"github.com/cross-impact/impactengine/internal/engine/javaindex"
	"github.com/cross-impact/impactengine/internal/observability"
)

const sqliteDriverName = "sqlite"

// Cache is the disk-backed index cache plus its in-process layer.
type Cache struct {
	db      *sql.DB
	exclude javaindex.ExcludeRules
	log     *slog.Logger

	mu  sync.RWMutex
	mem map[string]*domain.SymbolIndex
}

// Open creates (or reuses) a SQLite-backed cache at path. An empty
// path selects an in-memory-only cache (no persistence across runs) —
// useful for the CLI's single-shot mode and for tests.
func Open(path string, exclude javaindex.ExcludeRules, log *slog.Logger) (*Cache, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &Cache{exclude: exclude, log: log, mem: make(map[string]*domain.SymbolIndex)}
	if path == "" {
		return c, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index cache directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open index cache %q: %w", path, err)
	}
	db.SetMaxOpenConns(4)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping index cache %q: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS symbol_index_cache (
		cache_key   TEXT PRIMARY KEY,
		repo_root   TEXT NOT NULL,
		commit_hash TEXT NOT NULL,
		payload     BLOB NOT NULL,
		created_at  INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate index cache schema: %w", err)
	}

	c.db = db
	return c, nil
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// CanonicalRoot resolves root to an absolute, cleaned path so that two
// different relative spellings of the same directory produce the same
// cache key (spec.md §4.7 "Determinism", Property 23).
func CanonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// Key computes the cache key for (canonicalRoot, commit): a pure
// function of its inputs, stable across process restarts.
func Key(canonicalRoot, commit string) string {
	sum := sha256.Sum256([]byte(canonicalRoot + "|" + commit))
	return hex.EncodeToString(sum[:])
}

// GetOrBuild returns the cached SymbolIndex for (root, commit),
// building and persisting it on a miss (spec.md §4.7 "Behavior").
func (c *Cache) GetOrBuild(root, commit string) (*domain.SymbolIndex, error) {
	canonical, err := CanonicalRoot(root)
	if err != nil {
		return nil, fmt.Errorf("canonicalize repo root %q: %w", root, err)
	}
	key := Key(canonical, commit)

	if idx := c.fromMem(key); idx != nil {
		observability.IndexCacheHits.WithLabelValues(filepath.Base(canonical)).Inc()
		return idx, nil
	}

	if idx := c.fromDisk(key); idx != nil {
		c.toMem(key, idx)
		observability.IndexCacheHits.WithLabelValues(filepath.Base(canonical)).Inc()
		return idx, nil
	}

	observability.IndexCacheMisses.WithLabelValues(filepath.Base(canonical)).Inc()
	start := time.Now()
	idx, err := javaindex.Build(root, commit, c.exclude)
	if err != nil {
		return nil, err
	}
	observability.IndexBuildDuration.WithLabelValues(filepath.Base(canonical)).Observe(time.Since(start).Seconds())
	observability.IndexFilesScanned.WithLabelValues(filepath.Base(canonical)).Add(float64(len(idx.FilesScanned)))

	c.toMem(key, idx)
	if err := c.persist(key, canonical, commit, idx); err != nil {
		c.log.Warn("index cache persist failed, continuing without disk cache", "repo", canonical, "error", err)
	}
	return idx, nil
}

func (c *Cache) fromMem(key string) *domain.SymbolIndex {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mem[key]
}

func (c *Cache) toMem(key string, idx *domain.SymbolIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[key] = idx
}

func (c *Cache) fromDisk(key string) *domain.SymbolIndex {
	if c.db == nil {
		return nil
	}
	var payload []byte
	row := c.db.QueryRow(`SELECT payload FROM symbol_index_cache WHERE cache_key = ?`, key)
	if err := row.Scan(&payload); err != nil {
		return nil
	}
	var idx domain.SymbolIndex
	if err := json.Unmarshal(payload, &idx); err != nil {
		c.log.Warn("index cache payload corrupt, rebuilding", "cache_key", key, "error", err)
		return nil
	}
	return &idx
}

func (c *Cache) persist(key, canonicalRoot, commit string, idx *domain.SymbolIndex) error {
	if c.db == nil {
		return nil
	}
	payload, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal symbol index: %w", err)
	}
	_, err = c.db.Exec(`INSERT INTO symbol_index_cache (cache_key, repo_root, commit_hash, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		key, canonicalRoot, commit, payload, time.Now().Unix())
	return err
}
