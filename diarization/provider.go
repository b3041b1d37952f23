package diarization

import (
	"context"

	"github.com/kbukum/speakerhub/provider"
)

// Provider performs speaker diarization.
type Provider interface {
	provider.Provider
	Diarize(ctx context.Context, req Request) (*Response, error)
}

// Embedder extracts a speaker embedding for a span of audio. The returned
// vector is not required to be normalized.
type Embedder interface {
	Embed(ctx context.Context, req EmbedRequest) ([]float32, error)
}

// NewRegistry returns a registry for diarization backends.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}
