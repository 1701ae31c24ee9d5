package llmreport_test

import (
	"context"

	"github.com/cross-impact/impactengine/internal/core/ports"
)

// fakeLLMClient is a deterministic ports.LLMClient for the llmreport
// tests; it never touches the network.
type fakeLLMClient struct {
	replies []string
	calls   int
}

var _ ports.LLMClient = (*fakeLLMClient)(nil)

func (f *fakeLLMClient) Complete(_ context.Context, _ string) (string, error) {
	if f.calls >= len(f.replies) {
		return f.replies[len(f.replies)-1], nil
	}
	r := f.replies[f.calls]
	f.calls++
	return r, nil
}
