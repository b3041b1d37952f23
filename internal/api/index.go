package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/speakerhub/server"
)

// rebuildIndex compacts the embedding index, dropping tombstoned vectors.
func (h *Handler) rebuildIndex(c *gin.Context) {
	stats, err := h.resolver.Rebuild(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, stats)
}

func (h *Handler) indexStats(c *gin.Context) {
	server.RespondOK(c, h.resolver.Index().Stats())
}
