package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/speakerhub/component"
	apperrors "github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/resilience"
)

// JobEvent asks a worker to process one job.
type JobEvent struct {
	JobID       string `json:"job_id"`
	RecordingID string `json:"recording_id"`
}

// Processor runs a job to completion. *pipeline.Orchestrator implements it.
type Processor interface {
	Process(ctx context.Context, jobID string) error
}

// Dispatcher hands a job to whatever will run it.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev JobEvent) error
}

var (
	_ component.Component = (*Pool)(nil)
	_ Dispatcher          = (*Pool)(nil)
)

// Pool runs queued jobs with at most Workers in flight.
type Pool struct {
	proc     Processor
	queue    chan JobEvent
	bulkhead *resilience.Bulkhead
	log      *logger.Logger

	mu         sync.RWMutex
	running    bool
	stopIntake context.CancelFunc
	cancelJobs context.CancelFunc
	loop       sync.WaitGroup
	jobs       sync.WaitGroup
}

// NewPool creates a stopped pool.
func NewPool(cfg Config, proc Processor, log *logger.Logger) *Pool {
	cfg.ApplyDefaults()
	return &Pool{
		proc:  proc,
		queue: make(chan JobEvent, cfg.QueueSize),
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "jobs",
			MaxConcurrent: cfg.Workers,
			MaxWait:       -1,
		}),
		log: log.WithComponent("worker"),
	}
}

func (p *Pool) Name() string { return "worker" }

// Start launches the intake loop.
func (p *Pool) Start(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	intakeCtx, stopIntake := context.WithCancel(jobCtx)
	p.cancelJobs = cancelJobs
	p.stopIntake = stopIntake
	p.running = true

	p.loop.Add(1)
	go func() {
		defer p.loop.Done()
		p.run(intakeCtx, jobCtx)
	}()
	p.log.Info("worker pool started", map[string]interface{}{
		"workers":    p.bulkhead.MaxConcurrent(),
		"queue_size": cap(p.queue),
	})
	return nil
}

func (p *Pool) run(intakeCtx, jobCtx context.Context) {
	for {
		select {
		case <-intakeCtx.Done():
			return
		case ev := <-p.queue:
			if err := p.bulkhead.Acquire(intakeCtx); err != nil {
				p.log.Warn("job not started before shutdown", map[string]interface{}{logger.FieldJobID: ev.JobID})
				return
			}
			p.jobs.Add(1)
			go func() {
				defer p.jobs.Done()
				defer p.bulkhead.Release()
				p.execute(jobCtx, ev)
			}()
		}
	}
}

func (p *Pool) execute(ctx context.Context, ev JobEvent) {
	log := p.log.WithFields(map[string]interface{}{
		logger.FieldJobID:       ev.JobID,
		logger.FieldRecordingID: ev.RecordingID,
	})
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
		}
	}()
	// the orchestrator already recorded the failure on the job row
	err := p.proc.Process(ctx, ev.JobID)
	switch {
	case err == nil:
	case apperrors.IsCode(err, apperrors.ErrCodeConflict):
		log.Info("job already claimed, skipping duplicate", logger.ErrorFields("process_job", err))
	default:
		log.Warn("job finished with error", logger.ErrorFields("process_job", err))
	}
}

// Dispatch queues ev. It blocks while the queue is full until ctx is done.
func (p *Pool) Dispatch(ctx context.Context, ev JobEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return apperrors.ServiceUnavailable("worker")
	}
	select {
	case p.queue <- ev:
		p.log.Debug("job queued", map[string]interface{}{logger.FieldJobID: ev.JobID})
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops taking jobs and waits for running ones. When ctx expires first
// the running jobs are cancelled; they still record their FAILED state.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.stopIntake()
	p.loop.Wait()

	done := make(chan struct{})
	go func() {
		p.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		p.log.Warn("shutdown timeout, cancelling running jobs")
	}
	p.cancelJobs()
	p.jobs.Wait()

	if n := len(p.queue); n > 0 {
		p.log.Warn("queued jobs not started", map[string]interface{}{"count": n})
	}
	return nil
}

func (p *Pool) Health(context.Context) component.Health {
	p.mu.RLock()
	running := p.running
	p.mu.RUnlock()
	h := component.Health{
		Name:    p.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d/%d busy, %d queued", p.bulkhead.InUse(), p.bulkhead.MaxConcurrent(), len(p.queue)),
	}
	if !running {
		h.Status = component.StatusUnhealthy
		h.Message = "not running"
	}
	return h
}

func (p *Pool) Describe() component.Description {
	return component.Description{
		Name:    "Worker Pool",
		Type:    "worker",
		Details: fmt.Sprintf("%d workers", p.bulkhead.MaxConcurrent()),
	}
}
