package provider

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/httpclient"
	"github.com/kbukum/speakerhub/resilience"
)

type stubProvider struct{ name string }

func (s *stubProvider) Name() string                       { return s.name }
func (s *stubProvider) IsAvailable(_ context.Context) bool { return true }

func TestRegistry_CreateAndList(t *testing.T) {
	reg := NewRegistry[*stubProvider]()
	reg.RegisterFactory("b", func(cfg Config) (*stubProvider, error) {
		return &stubProvider{name: "b:" + cfg.BaseURL}, nil
	})
	reg.RegisterFactory("a", func(cfg Config) (*stubProvider, error) {
		return &stubProvider{name: "a"}, nil
	})

	p, err := reg.Create(Config{Provider: "b", BaseURL: "http://x"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if p.Name() != "b:http://x" {
		t.Errorf("Name() = %q", p.Name())
	}

	if _, err := reg.Create(Config{Provider: "missing"}); err == nil {
		t.Error("expected error for unregistered provider")
	}

	names := reg.List()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("List() = %v, want [a b]", names)
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults("pyannote", "http://localhost:8388")
	if cfg.Provider != "pyannote" || cfg.BaseURL != "http://localhost:8388" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if cfg.TimeoutDuration().Seconds() != 300 {
		t.Errorf("TimeoutDuration() = %v", cfg.TimeoutDuration())
	}

	cfg.Timeout = "soon"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid timeout")
	}
}

func testGuard(retries, maxFailures int) *Guard {
	return NewGuard("diarization", Config{
		Retries:      retries,
		MaxFailures:  maxFailures,
		ResetTimeout: "1h",
	}, nil)
}

func TestGuard_RetriesTransientFailures(t *testing.T) {
	g := testGuard(3, 10)
	calls := 0
	got, err := Call(context.Background(), g, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", httpclient.ClassifyStatusCode(503, nil)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls, want ok after 3", got, calls)
	}
}

func TestGuard_DoesNotRetryPermanentFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"client error", httpclient.ClassifyStatusCode(400, []byte("bad audio"))},
		{"marked permanent", Permanent(stderrors.New("unparseable"))},
		{"app error", errors.Validation("missing fields")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testGuard(3, 10)
			calls := 0
			err := g.Do(context.Background(), func(ctx context.Context) error {
				calls++
				return tt.err
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
		})
	}
}

func TestGuard_WrapsAsCollaboratorFailure(t *testing.T) {
	g := testGuard(1, 10)
	err := g.Do(context.Background(), func(ctx context.Context) error {
		return stderrors.New("connection refused")
	})
	if !errors.IsCode(err, errors.ErrCodeCollaboratorFailure) {
		t.Fatalf("error = %v, want COLLABORATOR_FAILURE", err)
	}
	appErr, _ := errors.AsAppError(err)
	if appErr.Details["service"] != "diarization" {
		t.Errorf("service detail = %v", appErr.Details["service"])
	}
}

func TestGuard_KeepsAppErrors(t *testing.T) {
	g := testGuard(1, 10)
	err := g.Do(context.Background(), func(ctx context.Context) error {
		return errors.Validation("missing required fields: segments")
	})
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
}

func TestGuard_OpensCircuit(t *testing.T) {
	g := testGuard(1, 2)
	fail := func(ctx context.Context) error { return stderrors.New("down") }

	_ = g.Do(context.Background(), fail)
	_ = g.Do(context.Background(), fail)

	called := false
	err := g.Do(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Error("function ran while circuit should be open")
	}
	if !stderrors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("error = %v, want wrapped ErrCircuitOpen", err)
	}
	if !errors.IsCode(err, errors.ErrCodeCollaboratorFailure) {
		t.Errorf("error = %v, want COLLABORATOR_FAILURE", err)
	}
}

func TestGuard_ValidationDoesNotTripCircuit(t *testing.T) {
	g := testGuard(1, 1)
	_ = g.Do(context.Background(), func(ctx context.Context) error {
		return errors.Validation("bad request")
	})
	called := false
	if err := g.Do(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if !called {
		t.Error("circuit opened on a caller error")
	}
}
