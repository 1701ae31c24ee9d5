package javaindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeJavaFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// TestBuildPopulatesClassMap covers P-FQN: a file with "package p;"
// and primary class C yields class_map["p.C"] pointing at that file.
func TestBuildPopulatesClassMap(t *testing.T) {
	root := t.TempDir()
	writeJavaFile(t, root, "src/main/java/com/example/service/UserService.java", `
package com.example.service;

public interface UserService {
    UserDTO getUserById(Long id);
}
`)

	idx, err := Build(root, "abc123", ExcludeRules{})
	require.NoError(t, err)

	entry, ok := idx.ClassMap["com.example.service.UserService"]
	require.True(t, ok)
	require.Equal(t, "src/main/java/com/example/service/UserService.java", entry.File)
}

func TestBuildSkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	writeJavaFile(t, root, "src/main/java/com/example/Foo.java", "package com.example;\nclass Foo {}\n")
	writeJavaFile(t, root, "src/test/java/com/example/FooTest.java", "package com.example;\nclass FooTest {}\n")

	idx, err := Build(root, "abc123", ExcludeRules{Dirs: []string{"test"}})
	require.NoError(t, err)

	_, hasFoo := idx.ClassMap["com.example.Foo"]
	require.True(t, hasFoo)
	_, hasFooTest := idx.ClassMap["com.example.FooTest"]
	require.False(t, hasFooTest)
}

// TestBuildFeignClientScenario grounds §8 scenario 1: a @FeignClient
// interface with an added method gets recorded as both a class and,
// once annotated, an API-route declaration usable by find_api_callers.
func TestBuildFeignClientScenario(t *testing.T) {
	root := t.TempDir()
	writeJavaFile(t, root, "src/main/java/com/cloudE/pay/client/PointClient.java", `
package com.cloudE.pay.client;

@FeignClient(name = "pay-provider")
public interface PointClient {

    @PostMapping("/points/batchUpdate")
    Result batchUpdatePoints(@RequestBody List<PointReq> reqs);
}
`)

	idx, err := Build(root, "abc123", ExcludeRules{})
	require.NoError(t, err)

	entries := idx.APIMap["/points/batchUpdate"]
	require.Len(t, entries, 1)
	require.Equal(t, "POST", entries[0].Verb)
}

// TestBuildDubboServiceScenario grounds §8 scenario 2: a @DubboService
// implementation class is indexed under its own FQN, independent of
// the interface it implements.
func TestBuildDubboServiceScenario(t *testing.T) {
	root := t.TempDir()
	writeJavaFile(t, root, "src/main/java/com/example/service/impl/UserServiceImpl.java", `
package com.example.service.impl;

@DubboService
public class UserServiceImpl implements com.example.service.UserService {

    public UserDTO getUserById(Long id) {
        return repo.findById(id);
    }
}
`)

	idx, err := Build(root, "abc123", ExcludeRules{})
	require.NoError(t, err)

	_, ok := idx.ClassMap["com.example.service.impl.UserServiceImpl"]
	require.True(t, ok)
}

// TestBuildDubboReferenceInjectionSite grounds the related-repo side
// of §8 scenario 2: a @DubboReference field pairs with the next field
// declaration to produce an rpc_map entry.
func TestBuildDubboReferenceInjectionSite(t *testing.T) {
	root := t.TempDir()
	writeJavaFile(t, root, "src/main/java/com/example/consumer/OrderService.java", `
package com.example.consumer;

public class OrderService {

    @DubboReference
    private UserService remoteService;

    public void place(Long userId) {
        remoteService.getUserById(userId);
    }
}
`)

	idx, err := Build(root, "abc123", ExcludeRules{})
	require.NoError(t, err)

	entries := idx.RPCMap["UserService"]
	require.Len(t, entries, 1)
	require.Equal(t, "src/main/java/com/example/consumer/OrderService.java", entries[0].File)
}
