package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/internal/pipeline"
	"github.com/kbukum/speakerhub/internal/speaker"
	"github.com/kbukum/speakerhub/internal/store"
	"github.com/kbukum/speakerhub/internal/worker"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/sse"
	"github.com/kbukum/speakerhub/storage"
	"github.com/kbukum/speakerhub/validation"
)

const defaultLimit = 50

// Deps are the services the handlers call. Progress may be nil.
type Deps struct {
	Store      *store.Store
	Resolver   *speaker.Resolver
	Storage    storage.Storage
	Dispatcher worker.Dispatcher
	Hub        *sse.Hub
	Progress   *pipeline.ProgressStore
	Pipeline   pipeline.Config
	// KeepAlive is the SSE comment interval. Zero uses the hub default.
	KeepAlive time.Duration
	Logger    *logger.Logger
}

// Handler serves the REST surface.
type Handler struct {
	store      *store.Store
	resolver   *speaker.Resolver
	storage    storage.Storage
	dispatcher worker.Dispatcher
	hub        *sse.Hub
	progress   *pipeline.ProgressStore
	cfg        pipeline.Config
	keepAlive  time.Duration
	log        *logger.Logger
}

// New creates a Handler.
func New(deps Deps) *Handler {
	cfg := deps.Pipeline
	cfg.ApplyDefaults()
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		store:      deps.Store,
		resolver:   deps.Resolver,
		storage:    deps.Storage,
		dispatcher: deps.Dispatcher,
		hub:        deps.Hub,
		progress:   deps.Progress,
		cfg:        cfg,
		keepAlive:  deps.KeepAlive,
		log:        log.WithComponent("api"),
	}
}

// Register mounts every route under /api/v1.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/api/v1")

	recordings := v1.Group("/recordings")
	recordings.POST("", h.uploadRecording)
	recordings.GET("", h.listRecordings)
	recordings.GET("/:id", h.getRecording)
	recordings.POST("/:id/reprocess", h.reprocessRecording)

	jobs := v1.Group("/jobs")
	jobs.GET("/:id", h.getJob)
	jobs.GET("/:id/events", h.jobEvents)

	speakers := v1.Group("/speakers")
	speakers.GET("", h.listSpeakers)
	speakers.POST("/merge", h.mergeSpeakers)
	speakers.GET("/:id", h.getSpeaker)
	speakers.PUT("/:id", h.updateSpeaker)
	speakers.DELETE("/:id", h.deleteSpeaker)

	index := v1.Group("/index")
	index.POST("/rebuild", h.rebuildIndex)
	index.GET("/stats", h.indexStats)
}

// page is the pagination query of list endpoints.
type page struct {
	Limit  int `form:"limit" validate:"min=1,max=200"`
	Offset int `form:"offset" validate:"min=0"`
}

func parsePage(c *gin.Context) (page, error) {
	p := page{Limit: defaultLimit}
	for _, q := range []struct {
		name string
		dst  *int
	}{{"limit", &p.Limit}, {"offset", &p.Offset}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page{}, apperrors.InvalidInput(q.name, "must be an integer")
		}
		*q.dst = n
	}
	if err := validation.Validate(p); err != nil {
		return page{}, err
	}
	return p, nil
}

// bindJSON decodes the body into dst and validates it.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperrors.Validation("invalid request body").WithCause(err)
	}
	return validation.Validate(dst)
}
