package pipeline

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/internal/store"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/redis"
	"github.com/kbukum/speakerhub/sse"
)

// Steps reported in ProcessingJob.CurrentStep.
const (
	StepInitialization = "initialization"
	StepDiarization    = "diarization"
	StepTranscription  = "transcription"
	StepInsights       = "insights"
	StepCompleted      = "completed"
	StepFailed         = "failed"
)

// EventProgress is the SSE event type carrying a Progress snapshot.
const EventProgress = "progress"

// Progress is a point-in-time view of a job, mirrored to Redis and SSE.
type Progress struct {
	JobID       string       `json:"job_id"`
	RecordingID string       `json:"recording_id"`
	Status      store.Status `json:"status"`
	Step        string       `json:"step"`
	Progress    int          `json:"progress"`
	Error       string       `json:"error,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ProgressFromJob builds a snapshot from a job row.
func ProgressFromJob(job *store.ProcessingJob) Progress {
	return Progress{
		JobID:       job.ID,
		RecordingID: job.RecordingID,
		Status:      job.Status,
		Step:        job.CurrentStep,
		Progress:    job.Progress,
		Error:       job.ErrorMessage,
		UpdatedAt:   job.UpdatedAt,
	}
}

// ProgressStore caches the latest Progress of each job in Redis.
type ProgressStore struct {
	typed *redis.TypedStore[Progress]
}

// NewProgressStore creates a ProgressStore whose entries expire after ttl.
func NewProgressStore(client *redis.Client, ttl time.Duration) *ProgressStore {
	return &ProgressStore{typed: redis.NewTypedStore[Progress](client, "progress", ttl)}
}

// Load returns the cached snapshot, or nil when none is cached.
func (s *ProgressStore) Load(ctx context.Context, jobID string) (*Progress, error) {
	return s.typed.Load(ctx, jobID)
}

// Save caches p.
func (s *ProgressStore) Save(ctx context.Context, p Progress) error {
	return s.typed.Save(ctx, p.JobID, &p)
}

// ClientID is the SSE client id of a subscriber to jobID's progress.
func ClientID(jobID, subscriber string) string {
	return "job/" + jobID + "/" + subscriber
}

func topic(jobID string) string { return "job/" + jobID + "/*" }

// Reporter commits job milestones and fans them out.
type Reporter struct {
	store *store.Store
	cache *ProgressStore
	pub   sse.Publisher
	log   *logger.Logger
}

// NewReporter creates a Reporter. cache and pub may be nil.
func NewReporter(st *store.Store, cache *ProgressStore, pub sse.Publisher, log *logger.Logger) *Reporter {
	return &Reporter{store: st, cache: cache, pub: pub, log: log}
}

// Advance records step and pct on job. Progress never moves backwards: a
// lower pct keeps the current value.
func (r *Reporter) Advance(ctx context.Context, job *store.ProcessingJob, step string, pct int) error {
	if pct < job.Progress {
		pct = job.Progress
	}
	if err := r.store.UpdateJob(ctx, job.ID, map[string]interface{}{
		"progress":     pct,
		"current_step": step,
	}); err != nil {
		return err
	}
	job.Progress = pct
	job.CurrentStep = step
	job.UpdatedAt = store.Now()
	r.log.Debug("job progress", map[string]interface{}{
		logger.FieldJobID:    job.ID,
		logger.FieldStage:    step,
		logger.FieldProgress: pct,
	})
	r.publish(ctx, job)
	return nil
}

// Claim moves a QUEUED job to PROCESSING with updates. A job another worker
// already claimed, or one that finished, yields CONFLICT and nothing is
// written or published.
func (r *Reporter) Claim(ctx context.Context, job *store.ProcessingJob, updates map[string]interface{}) error {
	ok, err := r.store.ClaimJob(ctx, job.ID, updates)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Conflict(fmt.Sprintf("job %s is no longer queued", job.ID)).
			WithDetail("job_id", job.ID)
	}
	r.apply(job, store.StatusProcessing, updates)
	r.publish(ctx, job)
	return nil
}

// Transition commits a status change together with extra column updates.
func (r *Reporter) Transition(ctx context.Context, job *store.ProcessingJob, status store.Status, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = status
	if err := r.store.UpdateJob(ctx, job.ID, updates); err != nil {
		return err
	}
	r.apply(job, status, updates)
	r.publish(ctx, job)
	return nil
}

func (r *Reporter) apply(job *store.ProcessingJob, status store.Status, updates map[string]interface{}) {
	job.Status = status
	if v, ok := updates["progress"].(int); ok {
		job.Progress = v
	}
	if v, ok := updates["current_step"].(string); ok {
		job.CurrentStep = v
	}
	if v, ok := updates["error_message"].(string); ok {
		job.ErrorMessage = v
	}
	job.UpdatedAt = store.Now()
}

// publish mirrors job to the cache and SSE. Failures are logged only; the
// database row is authoritative.
func (r *Reporter) publish(ctx context.Context, job *store.ProcessingJob) {
	p := ProgressFromJob(job)
	if r.cache != nil {
		if err := r.cache.Save(ctx, p); err != nil {
			r.log.Warn("progress cache write failed", logger.ErrorFields("progress_cache", err))
		}
	}
	if r.pub != nil {
		ev, err := sse.JSONEvent(EventProgress, p, job.Status.Terminal())
		if err != nil {
			r.log.Warn("progress event encoding failed", logger.ErrorFields("progress_event", err))
			return
		}
		r.pub.Publish(topic(job.ID), ev)
	}
}
