package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/speakerhub/internal/speaker"
	"github.com/kbukum/speakerhub/internal/store"
	"github.com/kbukum/speakerhub/server"
)

func (h *Handler) listSpeakers(c *gin.Context) {
	p, err := parsePage(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	speakers, total, err := h.resolver.List(c.Request.Context(), p.Limit, p.Offset)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOKWithMeta(c, speakers, &server.Meta{Limit: p.Limit, Offset: p.Offset, Total: total})
}

type speakerDetail struct {
	*store.Speaker
	Recordings []speaker.Appearance `json:"recordings"`
}

func (h *Handler) getSpeaker(c *gin.Context) {
	ctx := c.Request.Context()
	sp, err := h.resolver.Get(ctx, c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	recs, err := h.resolver.Recordings(ctx, sp.ID)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, speakerDetail{Speaker: sp, Recordings: recs})
}

type updateSpeakerRequest struct {
	Name     *string                `json:"name" validate:"omitempty,min=1,max=255"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (h *Handler) updateSpeaker(c *gin.Context) {
	var req updateSpeakerRequest
	if err := bindJSON(c, &req); err != nil {
		server.RespondWithError(c, err)
		return
	}
	sp, err := h.resolver.Update(c.Request.Context(), c.Param("id"), req.Name, req.Metadata)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, sp)
}

type mergeRequest struct {
	SourceID string `json:"source_id" validate:"required"`
	TargetID string `json:"target_id" validate:"required,nefield=SourceID"`
}

func (h *Handler) mergeSpeakers(c *gin.Context) {
	var req mergeRequest
	if err := bindJSON(c, &req); err != nil {
		server.RespondWithError(c, err)
		return
	}
	sp, err := h.resolver.Merge(c.Request.Context(), req.SourceID, req.TargetID)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, sp)
}

func (h *Handler) deleteSpeaker(c *gin.Context) {
	if err := h.resolver.Delete(c.Request.Context(), c.Param("id")); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondNoContent(c)
}
