package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/speakerhub/internal/pipeline"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/server"
	"github.com/kbukum/speakerhub/sse"
)

func (h *Handler) getJob(c *gin.Context) {
	job, err := h.store.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, job)
}

// jobEvents streams progress snapshots for a job. The first event is the
// current state; the stream ends with the terminal snapshot.
func (h *Handler) jobEvents(c *gin.Context) {
	snap, err := h.snapshot(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	initial, err := sse.JSONEvent(pipeline.EventProgress, snap, snap.Status.Terminal())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	clientID := pipeline.ClientID(snap.JobID, uuid.NewString())
	sse.ServeSSE(h.hub, c.Writer, c.Request, clientID, sse.StreamOptions{
		Initial:   []sse.Event{initial},
		KeepAlive: h.keepAlive,
	})
}

// snapshot prefers the cached progress and falls back to the job row.
func (h *Handler) snapshot(c *gin.Context) (pipeline.Progress, error) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if h.progress != nil {
		p, err := h.progress.Load(ctx, id)
		if err != nil {
			h.log.Warn("progress cache read failed", logger.ErrorFields("progress_cache", err))
		} else if p != nil {
			return *p, nil
		}
	}
	job, err := h.store.GetJob(ctx, id)
	if err != nil {
		return pipeline.Progress{}, err
	}
	return pipeline.ProgressFromJob(job), nil
}
