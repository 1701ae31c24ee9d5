// Package crosstrace implements the Multi-Project Tracer (C3): it
// composes one main repo's SymbolIndex with N related repos' indices
// to find cross-repository references to a changed symbol (spec.md
// §4.3).
package crosstrace

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cross-impact/impactengine/internal/domain"
	"github.com/cross-impact/impactengine/internal/engine/javaindex"
)

// state names the per-repo lifecycle spec.md §4.3 describes:
// NEW --init-indices--> READY --query--> READY
//                         \---cache_miss--> BUILDING --ok--> READY
//                                                     \--err--> DEGRADED
type state int

const (
	stateNew state = iota
	stateReady
	stateBuilding
	stateDegraded
)

// IndexProvider fetches or builds a repo's SymbolIndex — satisfied by
// *indexcache.Cache without this package importing it directly.
type IndexProvider interface {
	GetOrBuild(root, commit string) (*domain.SymbolIndex, error)
}

// ScanRoot names one repository to compose into the tracer.
type ScanRoot struct {
	Name   string // project label; defaults to basename(Path) if empty
	Path   string
	Commit string
}

func (r ScanRoot) label() string {
	if r.Name != "" {
		return r.Name
	}
	return filepath.Base(r.Path)
}

// Tracer composes a main repo's index with zero or more related
// repos' indices (spec.md §4.3).
type Tracer struct {
	provider IndexProvider
	log      *slog.Logger

	mainLabel string
	mainIndex *domain.SymbolIndex

	mu       sync.Mutex
	related  []ScanRoot
	states   map[string]state
	indices  map[string]*domain.SymbolIndex
	degraded []string
}

// New builds a Tracer over mainIndex (already materialized by the
// orchestrator for in-repo usage tracing) plus relatedRoots, whose
// indices are fetched lazily on first query (spec.md §4.3 state
// machine: NEW until first "init-indices").
func New(provider IndexProvider, mainRoot ScanRoot, mainIndex *domain.SymbolIndex, relatedRoots []ScanRoot, log *slog.Logger) *Tracer {
	if log == nil {
		log = slog.Default()
	}
	states := make(map[string]state, len(relatedRoots))
	for _, r := range relatedRoots {
		states[r.label()] = stateNew
	}
	return &Tracer{
		provider:  provider,
		log:       log,
		mainLabel: mainRoot.label(),
		mainIndex: mainIndex,
		related:   relatedRoots,
		states:    states,
		indices:   make(map[string]*domain.SymbolIndex),
	}
}

// DegradedProjects returns the labels of related repos whose index
// failed to build and were excluded from the scan (spec.md §4.3
// "Failure semantics").
func (t *Tracer) DegradedProjects() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.degraded))
	copy(out, t.degraded)
	return out
}

// FindCrossProjectImpacts implements C3's algorithm (spec.md §4.3).
// A single-root tracer (no related repos) trivially returns []
// (Property P-NoSingleProject). A total failure across all related
// repos is never fatal — it simply yields an empty impact list.
func (t *Tracer) FindCrossProjectImpacts(fqn string, changedMethods []string) []domain.Impact {
	if len(t.related) == 0 {
		return nil
	}

	_, simpleName := splitFQN(fqn)
	mainEntry, isKnownInMain := t.mainIndex.ClassMap[fqn]

	var impacts []domain.Impact
	for _, root := range t.related {
		idx := t.ensureIndex(root)
		if idx == nil {
			continue // DEGRADED: excluded from the scan, siblings continue
		}
		project := root.label()
		if project == t.mainLabel {
			continue // Property P-ExcludeMain
		}

		for _, u := range javaindex.FindUsages(idx, fqn) {
			impacts = append(impacts, domain.Impact{
				Project: project,
				Type:    domain.ImpactClassReference,
				File:    u.Path,
				Line:    u.Line,
				Snippet: u.Snippet,
				Detail:  u.Detail,
			})
		}

		if isKnownInMain && (mainEntry.IsFeignClient || mainEntry.IsDubboService) {
			for _, route := range routesForMethods(t.mainIndex, fqn, changedMethods) {
				for _, u := range javaindex.FindAPICallers(idx, route) {
					impacts = append(impacts, domain.Impact{
						Project: project,
						Type:    domain.ImpactAPICall,
						File:    u.Path,
						Line:    u.Line,
						Snippet: u.Snippet,
						Detail:  u.Detail,
						API:     route,
					})
				}
			}
		}

		for _, e := range idx.RPCMap[simpleName] {
			if e.Kind != domain.InjectionDubbo {
				continue // §4.3 step 2c: rpc_reference is for @DubboReference fields only
			}
			impacts = append(impacts, domain.Impact{
				Project: project,
				Type:    domain.ImpactRPCReference,
				File:    e.File,
				Line:    e.Line,
				Snippet: e.Snippet,
				Detail:  string(e.Kind),
			})
		}
	}

	sort.SliceStable(impacts, func(i, j int) bool {
		if impacts[i].Project != impacts[j].Project {
			return impacts[i].Project < impacts[j].Project
		}
		if impacts[i].File != impacts[j].File {
			return impacts[i].File < impacts[j].File
		}
		return impacts[i].Line < impacts[j].Line
	})

	return impacts
}

// ensureIndex resolves root's index, building it on first access and
// caching the outcome — READY or DEGRADED — for the tracer's lifetime.
func (t *Tracer) ensureIndex(root ScanRoot) *domain.SymbolIndex {
	label := root.label()

	t.mu.Lock()
	if idx, ok := t.indices[label]; ok {
		t.mu.Unlock()
		return idx
	}
	if t.states[label] == stateDegraded {
		t.mu.Unlock()
		return nil
	}
	t.states[label] = stateBuilding
	t.mu.Unlock()

	idx, err := t.provider.GetOrBuild(root.Path, root.Commit)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.states[label] = stateDegraded
		t.degraded = append(t.degraded, label)
		t.log.Warn("repo index build failed, excluding from cross-project scan", "project", label, "error", err)
		return nil
	}
	t.states[label] = stateReady
	t.indices[label] = idx
	return idx
}

// routesForMethods resolves the API routes declared on fqn's type for
// each name in methods, or every route on that type when methods is
// empty (spec.md §4.3 step 2b).
func routesForMethods(mainIdx *domain.SymbolIndex, fqn string, methods []string) []string {
	wantAll := len(methods) == 0
	want := make(map[string]bool, len(methods))
	for _, m := range methods {
		want[m] = true
	}

	entry, ok := mainIdx.ClassMap[fqn]
	if !ok {
		return nil
	}

	var routes []string
	seen := make(map[string]bool)
	for route, entries := range mainIdx.APIMap {
		for _, e := range entries {
			if e.File != entry.File {
				continue
			}
			if !wantAll && !want[e.Method] {
				continue
			}
			if !seen[route] {
				seen[route] = true
				routes = append(routes, route)
			}
		}
	}
	sort.Strings(routes)
	return routes
}

func splitFQN(fqn string) (pkg, simpleName string) {
	idx := strings.LastIndex(fqn, ".")
	if idx < 0 {
		return "", fqn
	}
	return fqn[:idx], fqn[idx+1:]
}
