package transcription

import (
	"context"

	"github.com/kbukum/speakerhub/provider"
)

// Provider is implemented by transcription backends.
type Provider interface {
	provider.Provider
	Transcribe(ctx context.Context, req Request) (*Response, error)
}

// NewRegistry creates a registry for transcription backends.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}
