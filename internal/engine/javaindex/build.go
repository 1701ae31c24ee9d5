package javaindex

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/cross-impact/impactengine/internal/domain"
	"github.com/cross-impact/impactengine/internal/domainerr"
)

// ExcludeRules names the directory and file glob patterns to skip
// while walking a repo tree (kept independent of internal/core/config
// so this package has no upward dependency on configuration).
type ExcludeRules struct {
	Dirs  []string
	Files []string
}

func compileGlobs(patterns []string) []glob.Glob {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		if g, err := glob.Compile(p); err == nil {
			out = append(out, g)
		}
	}
	return out
}

func matchesAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Build walks repoRoot and constructs a SymbolIndex by applying the
// heuristic Java parser to every non-excluded *.java file (spec.md
// §4.1 "Build"). It tolerates unreadable individual files — a repo
// with one bad file still produces a usable partial index, consistent
// with the materializer's partial-failure tolerance (spec.md §4.4).
func Build(repoRoot, commitHash string, exclude ExcludeRules) (*domain.SymbolIndex, error) {
	idx := domain.NewSymbolIndex(repoRoot, commitHash)

	dirGlobs := compileGlobs(exclude.Dirs)
	fileGlobs := compileGlobs(exclude.Files)

	err := filepath.WalkDir(repoRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries, keep walking
		}
		rel, relErr := filepath.Rel(repoRoot, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if rel != "." && matchesAny(dirGlobs, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".java") {
			return nil
		}
		if matchesAny(fileGlobs, d.Name()) {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		indexFile(idx, rel, string(content))
		return nil
	})
	if err != nil {
		return nil, domainerr.AddContext(domainerr.Wrap(err, domainerr.CodeParse, "walk repo tree"), domainerr.CtxRepo, repoRoot)
	}

	return idx, nil
}

// indexFile parses one file's content and merges the result into idx,
// keyed by its repo-relative path.
func indexFile(idx *domain.SymbolIndex, relPath, content string) {
	parsed := parseJavaFile(content)
	idx.FilesScanned = append(idx.FilesScanned, relPath)

	idx.Imports[relPath] = parsed.Imports

	if parsed.HasPrimary {
		idx.ClassMap[parsed.FQN] = domain.ClassEntry{
			FQN:            parsed.FQN,
			File:           relPath,
			IsFeignClient:  parsed.IsFeign,
			FeignName:      parsed.FeignName,
			IsDubboService: parsed.IsDubboImpl,
		}
		idx.SimpleNames[parsed.SimpleName] = append(idx.SimpleNames[parsed.SimpleName], parsed.FQN)
	}

	if len(parsed.APIEntries) > 0 {
		// Recorded for both REST controllers (route definitions) and
		// Feign clients (route declarations treated as call sites by
		// find_api_callers) — spec.md §4.2.
		for _, e := range parsed.APIEntries {
			e.File = relPath
			idx.APIMap[e.Route] = append(idx.APIMap[e.Route], e)
		}
	}

	if len(parsed.RPCEntries) > 0 {
		for _, e := range parsed.RPCEntries {
			e.File = relPath
			idx.RPCMap[e.InterfaceFQN] = append(idx.RPCMap[e.InterfaceFQN], e)
		}
	}
}
