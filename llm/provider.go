package llm

import (
	"context"

	"github.com/kbukum/speakerhub/provider"
)

// Provider is the interface LLM backends implement.
type Provider interface {
	provider.Provider
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// NewRegistry creates a registry for LLM backends.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}
