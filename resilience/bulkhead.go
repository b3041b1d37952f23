package resilience

import (
	"context"
	"errors"
	"time"
)

var (
	ErrBulkheadFull    = errors.New("bulkhead is full")
	ErrBulkheadTimeout = errors.New("bulkhead wait timeout")
)

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	Name          string
	MaxConcurrent int
	// MaxWait bounds how long Execute waits for a slot. Zero fails immediately;
	// negative waits until ctx is done.
	MaxWait time.Duration
}

// Bulkhead limits concurrent executions.
type Bulkhead struct {
	cfg BulkheadConfig
	sem chan struct{}
}

// NewBulkhead creates a bulkhead with cfg.MaxConcurrent slots (default 10).
func NewBulkhead(cfg BulkheadConfig) *Bulkhead {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	return &Bulkhead{cfg: cfg, sem: make(chan struct{}, cfg.MaxConcurrent)}
}

// Execute runs fn while holding a slot.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return fn()
}

// Acquire takes a slot according to MaxWait. Every successful Acquire
// must be paired with Release.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	default:
	}
	if b.cfg.MaxWait == 0 {
		return ErrBulkheadFull
	}

	var timeout <-chan time.Time
	if b.cfg.MaxWait > 0 {
		timer := time.NewTimer(b.cfg.MaxWait)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-timeout:
		return ErrBulkheadTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot.
func (b *Bulkhead) Release() { <-b.sem }

// InUse returns the number of held slots.
func (b *Bulkhead) InUse() int { return len(b.sem) }

// MaxConcurrent returns the slot count.
func (b *Bulkhead) MaxConcurrent() int { return b.cfg.MaxConcurrent }
