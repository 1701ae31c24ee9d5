package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeAppliesDefaults(t *testing.T) {
	cfg, err := Decode([]byte(`
workspace = "/tmp/ws"
`))
	require.NoError(t, err)
	require.Equal(t, "/tmp/ws", cfg.Workspace)
	require.Equal(t, "data/cache", cfg.CacheDir)
	require.Equal(t, 8, cfg.ParallelCloneLimit)
	require.Equal(t, 120, cfg.GitOpTimeoutSeconds)
	require.Equal(t, 2, cfg.ContextLinesK)
	require.False(t, cfg.BranchFallback)
	require.NotEmpty(t, cfg.Exclude.Dirs)
	require.Equal(t, 5.0, cfg.RateLimit)
}

func TestDecodeRelatedProjectDefaultsBranch(t *testing.T) {
	cfg, err := Decode([]byte(`
[[related_projects]]
name = "ucenter-provider"
git_url = "https://example.com/ucenter-provider.git"
active = true
`))
	require.NoError(t, err)
	require.Len(t, cfg.RelatedProjects, 1)
	require.Equal(t, "master", cfg.RelatedProjects[0].Branch)
}

func TestDecodeRejectsDuplicateGitURL(t *testing.T) {
	_, err := Decode([]byte(`
[[related_projects]]
name = "a"
git_url = "https://example.com/x.git"

[[related_projects]]
name = "b"
git_url = "https://example.com/x.git"
`))
	require.Error(t, err)
}

func TestDecodeRejectsOversizedCloneLimit(t *testing.T) {
	_, err := Decode([]byte(`
parallel_clone_limit = 1000
`))
	require.Error(t, err)
}
