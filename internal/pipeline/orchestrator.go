package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/kbukum/speakerhub/analysis"
	"github.com/kbukum/speakerhub/diarization"
	apperrors "github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/internal/insights"
	"github.com/kbukum/speakerhub/internal/speaker"
	"github.com/kbukum/speakerhub/internal/store"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/observability"
	"github.com/kbukum/speakerhub/storage"
	"github.com/kbukum/speakerhub/transcription"
)

// Deps are the collaborators an Orchestrator is built from. Staged needs
// Diarizer and Transcriber; SingleCall needs Analyzer. Embedder, Insights,
// Progress and Metrics are optional.
type Deps struct {
	Store       *store.Store
	Resolver    *speaker.Resolver
	Storage     storage.Storage
	Progress    *Reporter
	Metrics     *observability.Metrics
	Diarizer    diarization.Provider
	Embedder    diarization.Embedder
	Transcriber transcription.Provider
	Insights    insights.Generator
	Analyzer    analysis.Provider
	Logger      *logger.Logger
}

// Orchestrator drives jobs through the configured variant and owns the
// job's terminal transition.
type Orchestrator struct {
	store    *store.Store
	resolver *speaker.Resolver
	progress *Reporter
	metrics  *observability.Metrics
	variant  Variant
	log      *logger.Logger
}

// New builds an Orchestrator for cfg.Variant.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil || deps.Resolver == nil || deps.Storage == nil {
		return nil, fmt.Errorf("pipeline: store, resolver and storage are required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("pipeline")
	progress := deps.Progress
	if progress == nil {
		progress = NewReporter(deps.Store, nil, nil, log)
	}

	base := &shared{
		cfg:      cfg,
		store:    deps.Store,
		resolver: deps.Resolver,
		storage:  deps.Storage,
		progress: progress,
		metrics:  deps.Metrics,
		log:      log,
	}

	var v Variant
	switch cfg.Variant {
	case VariantSingleCall:
		if deps.Analyzer == nil {
			return nil, fmt.Errorf("pipeline: single_call variant requires an analysis provider")
		}
		v = &SingleCall{shared: base, analyzer: deps.Analyzer}
	default:
		if deps.Diarizer == nil || deps.Transcriber == nil {
			return nil, fmt.Errorf("pipeline: staged variant requires diarization and transcription providers")
		}
		v = &Staged{
			shared:      base,
			diarizer:    deps.Diarizer,
			embedder:    deps.Embedder,
			transcriber: deps.Transcriber,
			insights:    deps.Insights,
		}
	}

	return &Orchestrator{
		store:    deps.Store,
		resolver: deps.Resolver,
		progress: progress,
		metrics:  deps.Metrics,
		variant:  v,
		log:      log,
	}, nil
}

// Variant returns the name of the configured variant.
func (o *Orchestrator) Variant() string { return o.variant.Name() }

// ProcessRecording creates a job for recordingID and processes it.
func (o *Orchestrator) ProcessRecording(ctx context.Context, recordingID string) (string, error) {
	if _, err := o.store.GetRecording(ctx, recordingID); err != nil {
		return "", err
	}
	job, err := o.store.CreateJob(ctx, recordingID)
	if err != nil {
		return "", err
	}
	return job.ID, o.Process(ctx, job.ID)
}

// Process runs jobID to a terminal state. A missing job or recording aborts
// without touching anything, as does a job that is not QUEUED: only the
// worker that claims the job runs it. Every later error marks both the job
// and the recording FAILED and is returned.
func (o *Orchestrator) Process(ctx context.Context, jobID string) (err error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != store.StatusQueued {
		return apperrors.Conflict(fmt.Sprintf("job %s is already %s", job.ID, job.Status)).
			WithDetail("job_id", job.ID)
	}
	rec, err := o.store.GetRecording(ctx, job.RecordingID)
	if err != nil {
		return err
	}
	now := store.Now()
	if err := o.progress.Claim(ctx, job, map[string]interface{}{
		"started_at":    now,
		"current_step":  StepInitialization,
		"progress":      0,
		"error_message": "",
	}); err != nil {
		return err
	}
	job.StartedAt = &now

	ctx, span := observability.StartSpan(ctx, "pipeline.job",
		attribute.String(observability.AttrJobID, job.ID),
		attribute.String(observability.AttrRecordingID, rec.ID),
		attribute.String(observability.AttrVariant, o.variant.Name()))
	defer func() { observability.EndSpan(span, err) }()

	log := o.log.WithFields(map[string]interface{}{
		logger.FieldJobID:       job.ID,
		logger.FieldRecordingID: rec.ID,
	})
	log.Info("job started", map[string]interface{}{"variant": o.variant.Name()})

	res, err := o.run(ctx, job, rec)
	if err != nil {
		o.fail(ctx, job, rec, err, log)
		return err
	}
	if err := o.complete(ctx, job, rec, res); err != nil {
		o.fail(ctx, job, rec, err, log)
		return err
	}
	o.metrics.JobFinished(ctx, o.variant.Name(), nil)
	log.Info("job completed", map[string]interface{}{
		"speakers_detected": res.SpeakersDetected,
		"new_speakers":      res.NewSpeakers,
		"segments":          res.SegmentsCount,
	})
	return nil
}

func (o *Orchestrator) run(ctx context.Context, job *store.ProcessingJob, rec *store.Recording) (*Result, error) {
	if err := o.store.UpdateRecording(ctx, rec.ID, map[string]interface{}{
		"status":        store.StatusProcessing,
		"error_message": "",
	}); err != nil {
		return nil, err
	}

	// a previous attempt may have left partial results behind
	if err := o.resolver.ForgetRecording(ctx, rec.ID); err != nil {
		return nil, err
	}
	return o.variant.Run(ctx, job, rec)
}

func (o *Orchestrator) complete(ctx context.Context, job *store.ProcessingJob, rec *store.Recording, res *Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return apperrors.Internal(err)
	}
	now := store.Now()
	if err := o.progress.Transition(ctx, job, store.StatusCompleted, map[string]interface{}{
		"progress":     100,
		"current_step": StepCompleted,
		"completed_at": now,
		"result":       datatypes.JSON(payload),
	}); err != nil {
		return err
	}
	job.CompletedAt = &now
	duration := res.TotalDuration
	return o.store.UpdateRecording(ctx, rec.ID, map[string]interface{}{
		"status":       store.StatusCompleted,
		"processed_at": now,
		"duration":     &duration,
	})
}

// fail commits the FAILED state. It runs detached from ctx so a cancelled
// job still gets its terminal row.
func (o *Orchestrator) fail(ctx context.Context, job *store.ProcessingJob, rec *store.Recording, cause error, log *logger.Logger) {
	ctx = context.WithoutCancel(ctx)
	msg := cause.Error()
	now := store.Now()

	if err := o.progress.Transition(ctx, job, store.StatusFailed, map[string]interface{}{
		"current_step":  StepFailed,
		"error_message": msg,
		"completed_at":  now,
	}); err != nil {
		log.Error("failed to mark job failed", logger.ErrorFields("mark_job_failed", err))
	}
	job.CompletedAt = &now
	if err := o.store.UpdateRecording(ctx, rec.ID, map[string]interface{}{
		"status":        store.StatusFailed,
		"error_message": msg,
	}); err != nil {
		log.Error("failed to mark recording failed", logger.ErrorFields("mark_recording_failed", err))
	}
	o.metrics.JobFinished(ctx, o.variant.Name(), cause)

	fields := logger.ErrorFields("process_job", cause)
	fields[logger.FieldStage] = job.CurrentStep
	fields[logger.FieldProgress] = job.Progress
	if appErr, ok := apperrors.AsAppError(cause); ok {
		fields["code"] = string(appErr.Code)
	}
	log.Error("job failed", fields)
}
