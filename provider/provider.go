package provider

import "context"

// Provider is the base interface every collaborator backend implements.
type Provider interface {
	// Name returns the provider's registered name.
	Name() string
	// IsAvailable reports whether the backend is ready to handle requests.
	IsAvailable(ctx context.Context) bool
}

// Factory creates a provider instance from its configuration section.
type Factory[T Provider] func(cfg Config) (T, error)
