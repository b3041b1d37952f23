package api

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/internal/pipeline"
	"github.com/kbukum/speakerhub/internal/store"
	"github.com/kbukum/speakerhub/internal/worker"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/server"
)

type acceptedResponse struct {
	JobID       string       `json:"job_id"`
	RecordingID string       `json:"recording_id"`
	Filename    string       `json:"filename"`
	Status      store.Status `json:"status"`
}

func (h *Handler) uploadRecording(c *gin.Context) {
	ctx := c.Request.Context()
	file, err := c.FormFile("file")
	if err != nil {
		server.RespondWithError(c, apperrors.MissingFields("file"))
		return
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Filename), "."))
	if !h.cfg.Allowed(ext) {
		server.RespondWithError(c, apperrors.InvalidInput("file",
			fmt.Sprintf("unsupported format %q, allowed: %s", ext, strings.Join(h.cfg.AllowedExtensions, ", "))))
		return
	}
	if file.Size == 0 {
		server.RespondWithError(c, apperrors.InvalidInput("file", "must not be empty"))
		return
	}
	if file.Size > h.cfg.MaxUploadBytes() {
		server.RespondWithError(c, apperrors.InvalidInput("file",
			fmt.Sprintf("exceeds the %d MB limit", h.cfg.MaxUploadMB)))
		return
	}

	src, err := file.Open()
	if err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("file", "unreadable upload"))
		return
	}
	defer src.Close()

	path := fmt.Sprintf("recordings/%s.%s", uuid.NewString(), ext)
	if err := h.storage.Upload(ctx, path, src); err != nil {
		server.RespondWithError(c, apperrors.PersistenceFailure("audio upload", err))
		return
	}

	rec := &store.Recording{
		Filename:    filepath.Base(file.Filename),
		StoragePath: path,
		Format:      ext,
		SizeBytes:   file.Size,
	}
	if err := h.store.CreateRecording(ctx, rec); err != nil {
		server.RespondWithError(c, err)
		return
	}
	job, err := h.enqueue(c, rec)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.Info("recording accepted", map[string]interface{}{
		logger.FieldRecordingID: rec.ID,
		logger.FieldJobID:       job.ID,
		"size_bytes":            rec.SizeBytes,
	})
	server.RespondAccepted(c, acceptedResponse{
		JobID:       job.ID,
		RecordingID: rec.ID,
		Filename:    rec.Filename,
		Status:      job.Status,
	})
}

// enqueue creates a job for rec and dispatches it. A job that cannot be
// dispatched is marked FAILED so it never sits in QUEUED forever.
func (h *Handler) enqueue(c *gin.Context, rec *store.Recording) (*store.ProcessingJob, error) {
	ctx := c.Request.Context()
	job, err := h.store.CreateJob(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if err := h.dispatcher.Dispatch(ctx, worker.JobEvent{JobID: job.ID, RecordingID: rec.ID}); err != nil {
		msg := "dispatch failed: " + err.Error()
		now := store.Now()
		if uerr := h.store.UpdateJob(ctx, job.ID, map[string]interface{}{
			"status":        store.StatusFailed,
			"current_step":  pipeline.StepFailed,
			"error_message": msg,
			"completed_at":  now,
		}); uerr != nil {
			h.log.Error("failed to mark undispatched job", logger.ErrorFields("dispatch", uerr))
		}
		if uerr := h.store.UpdateRecording(ctx, rec.ID, map[string]interface{}{
			"status":        store.StatusFailed,
			"error_message": msg,
		}); uerr != nil {
			h.log.Error("failed to mark undispatched recording", logger.ErrorFields("dispatch", uerr))
		}
		if _, ok := apperrors.AsAppError(err); ok {
			return nil, err
		}
		return nil, apperrors.ServiceUnavailable("job dispatch").WithCause(err)
	}
	return job, nil
}

func (h *Handler) listRecordings(c *gin.Context) {
	p, err := parsePage(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	recs, total, err := h.store.ListRecordings(c.Request.Context(), p.Limit, p.Offset)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOKWithMeta(c, recs, &server.Meta{Limit: p.Limit, Offset: p.Offset, Total: total})
}

type recordingDetail struct {
	*store.Recording
	Job                 *store.ProcessingJob       `json:"job,omitempty"`
	Segments            []store.SegmentView        `json:"segments"`
	Transcript          string                     `json:"transcript"`
	ConversationInsight *store.ConversationInsight `json:"conversation_insights"`
	SpeakerInsights     []store.SpeakerInsight     `json:"speaker_insights"`
}

func (h *Handler) getRecording(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	rec, err := h.store.GetRecording(ctx, id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	detail := recordingDetail{Recording: rec}

	job, err := h.store.LatestJobForRecording(ctx, id)
	switch {
	case err == nil:
		detail.Job = job
	case !apperrors.IsCode(err, apperrors.ErrCodeNotFound):
		server.RespondWithError(c, err)
		return
	}

	if detail.Segments, err = h.store.SegmentsForRecording(ctx, id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	lines := make([]pipeline.Line, len(detail.Segments))
	for i, s := range detail.Segments {
		lines[i] = pipeline.Line{Start: s.Start, Speaker: s.SpeakerName, Text: s.Transcript}
	}
	detail.Transcript = pipeline.FullTranscript(lines)

	if detail.ConversationInsight, err = h.store.ConversationInsight(ctx, id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	if detail.SpeakerInsights, err = h.store.SpeakerInsights(ctx, id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, detail)
}

// reprocessRecording queues a fresh job for a FAILED recording.
func (h *Handler) reprocessRecording(c *gin.Context) {
	ctx := c.Request.Context()
	rec, err := h.store.GetRecording(ctx, c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if rec.Status != store.StatusFailed {
		server.RespondWithError(c, apperrors.Conflict(
			fmt.Sprintf("recording %s is %s, only FAILED recordings can be reprocessed", rec.ID, rec.Status)))
		return
	}
	if err := h.store.UpdateRecording(ctx, rec.ID, map[string]interface{}{
		"status":        store.StatusQueued,
		"error_message": "",
	}); err != nil {
		server.RespondWithError(c, err)
		return
	}
	job, err := h.enqueue(c, rec)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondAccepted(c, acceptedResponse{
		JobID:       job.ID,
		RecordingID: rec.ID,
		Filename:    rec.Filename,
		Status:      job.Status,
	})
}
