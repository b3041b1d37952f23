// Package provider holds what every collaborator backend shares: the
// Provider interface, a name-keyed factory Registry, the common
// configuration section, and Guard, which wraps calls in a circuit breaker
// and bounded retry and turns failures into CollaboratorFailure errors.
//
//	reg := provider.NewRegistry[diarization.Provider]()
//	reg.RegisterFactory(pyannote.ProviderName, pyannote.Factory(log))
//	p, err := reg.Create(cfg.Diarization)
package provider
