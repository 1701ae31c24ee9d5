package crosstrace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cross-impact/impactengine/internal/domain"
	"github.com/cross-impact/impactengine/internal/engine/javaindex"
)

func writeJavaFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// fakeProvider builds indices on demand via javaindex.Build, except
// for roots configured to fail (simulating a materialization or
// parse failure for DEGRADED coverage).
type fakeProvider struct {
	fail map[string]bool
}

func (p *fakeProvider) GetOrBuild(root, commit string) (*domain.SymbolIndex, error) {
	if p.fail[root] {
		return nil, errors.New("simulated index build failure")
	}
	return javaindex.Build(root, commit, javaindex.ExcludeRules{})
}

// TestFindCrossProjectImpactsFeignScenario grounds §8 scenario 1.
func TestFindCrossProjectImpactsFeignScenario(t *testing.T) {
	mainRoot := t.TempDir()
	writeJavaFile(t, mainRoot, "src/main/java/com/cloudE/pay/client/PointClient.java", `
package com.cloudE.pay.client;

@FeignClient(name = "pay-provider")
public interface PointClient {

    @PostMapping("/points/batchUpdate")
    Result batchUpdatePoints(@RequestBody List<PointReq> reqs);
}
`)
	mainIdx, err := javaindex.Build(mainRoot, "main-sha", javaindex.ExcludeRules{})
	require.NoError(t, err)

	relatedRoot := t.TempDir()
	writeJavaFile(t, relatedRoot, "src/main/java/com/cloudE/ucenter/PointManager.java", `
package com.cloudE.ucenter;

import com.cloudE.pay.client.PointClient;

public class PointManager {

    @Resource
    private PointClient pointClient;

    public void sync() {
        pointClient.batchUpdatePoints(reqs);
    }
}
`)

	provider := &fakeProvider{}
	tracer := New(provider,
		ScanRoot{Name: "pay-api", Path: mainRoot, Commit: "main-sha"}, mainIdx,
		[]ScanRoot{{Name: "ucenter-provider", Path: relatedRoot, Commit: "rel-sha"}},
		nil,
	)

	impacts := tracer.FindCrossProjectImpacts("com.cloudE.pay.client.PointClient", nil)
	require.NotEmpty(t, impacts)
	for _, imp := range impacts {
		require.Equal(t, "ucenter-provider", imp.Project) // P-ExcludeMain
		require.NotEmpty(t, imp.Snippet)
		require.GreaterOrEqual(t, imp.Line, 1)
		// the field is @Resource-injected (spring_di), not @DubboReference,
		// so it must never surface as an rpc_reference (spec.md §4.3 step 2c).
		require.NotEqual(t, domain.ImpactRPCReference, imp.Type)
	}
}

// TestFindCrossProjectImpactsDubboScenario grounds §8 scenario 2.
func TestFindCrossProjectImpactsDubboScenario(t *testing.T) {
	mainRoot := t.TempDir()
	writeJavaFile(t, mainRoot, "src/main/java/com/example/service/impl/UserServiceImpl.java", `
package com.example.service.impl;

@DubboService
public class UserServiceImpl implements com.example.service.UserService {

    public UserDTO getUserById(Long id) {
        return repo.findById(id);
    }
}
`)
	mainIdx, err := javaindex.Build(mainRoot, "main-sha", javaindex.ExcludeRules{})
	require.NoError(t, err)

	relatedRoot := t.TempDir()
	writeJavaFile(t, relatedRoot, "src/main/java/com/example/consumer/OrderService.java", `
package com.example.consumer;

import com.example.service.UserService;

public class OrderService {

    @DubboReference
    private UserService remoteService;

    public void place(Long userId) {
        remoteService.getUserById(userId);
    }
}
`)

	provider := &fakeProvider{}
	tracer := New(provider,
		ScanRoot{Name: "user-service", Path: mainRoot, Commit: "main-sha"}, mainIdx,
		[]ScanRoot{{Name: "order-service", Path: relatedRoot, Commit: "rel-sha"}},
		nil,
	)

	impacts := tracer.FindCrossProjectImpacts("com.example.service.UserService", nil)

	var sawRPC, sawClassRef bool
	for _, imp := range impacts {
		require.Equal(t, "order-service", imp.Project)
		switch imp.Type {
		case domain.ImpactRPCReference:
			sawRPC = true
			// P-SnippetAccuracy: the snippet must be the cited source
			// line itself, not a synthetic "<kind> <fqn>" string.
			require.Contains(t, imp.Snippet, "private UserService remoteService")
		case domain.ImpactClassReference:
			sawClassRef = true
		}
	}
	require.True(t, sawRPC)
	require.True(t, sawClassRef)
}

// TestFindCrossProjectImpactsSingleRootReturnsEmpty covers
// P-NoSingleProject.
func TestFindCrossProjectImpactsSingleRootReturnsEmpty(t *testing.T) {
	mainRoot := t.TempDir()
	mainIdx, err := javaindex.Build(mainRoot, "main-sha", javaindex.ExcludeRules{})
	require.NoError(t, err)

	tracer := New(&fakeProvider{}, ScanRoot{Name: "solo", Path: mainRoot, Commit: "main-sha"}, mainIdx, nil, nil)

	impacts := tracer.FindCrossProjectImpacts("com.example.Anything", nil)
	require.Empty(t, impacts)
}

// TestFindCrossProjectImpactsDegradedRepoExcluded covers the tracer's
// DEGRADED failure path: one related repo fails to build and is
// skipped while the other still contributes impacts.
func TestFindCrossProjectImpactsDegradedRepoExcluded(t *testing.T) {
	mainRoot := t.TempDir()
	writeJavaFile(t, mainRoot, "src/main/java/com/example/Widget.java", "package com.example;\nclass Widget {}\n")
	mainIdx, err := javaindex.Build(mainRoot, "main-sha", javaindex.ExcludeRules{})
	require.NoError(t, err)

	okRoot := t.TempDir()
	writeJavaFile(t, okRoot, "src/main/java/com/other/Consumer.java", `
package com.other;

import com.example.Widget;

public class Consumer {
    private Widget w;
}
`)
	brokenRoot := t.TempDir()

	provider := &fakeProvider{fail: map[string]bool{brokenRoot: true}}
	tracer := New(provider,
		ScanRoot{Name: "main", Path: mainRoot, Commit: "main-sha"}, mainIdx,
		[]ScanRoot{
			{Name: "broken", Path: brokenRoot, Commit: "x"},
			{Name: "ok", Path: okRoot, Commit: "y"},
		},
		nil,
	)

	impacts := tracer.FindCrossProjectImpacts("com.example.Widget", nil)
	require.NotEmpty(t, impacts)
	for _, imp := range impacts {
		require.Equal(t, "ok", imp.Project)
	}
	require.Equal(t, []string{"broken"}, tracer.DegradedProjects())
}
