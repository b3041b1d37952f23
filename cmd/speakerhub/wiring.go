package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kbukum/speakerhub/analysis"
	"github.com/kbukum/speakerhub/analysis/remote"
	"github.com/kbukum/speakerhub/bootstrap"
	"github.com/kbukum/speakerhub/component"
	"github.com/kbukum/speakerhub/database"
	"github.com/kbukum/speakerhub/diarization"
	"github.com/kbukum/speakerhub/diarization/pyannote"
	"github.com/kbukum/speakerhub/internal/api"
	"github.com/kbukum/speakerhub/internal/insights"
	"github.com/kbukum/speakerhub/internal/pipeline"
	"github.com/kbukum/speakerhub/internal/speaker"
	"github.com/kbukum/speakerhub/internal/speaker/redislock"
	"github.com/kbukum/speakerhub/internal/store"
	"github.com/kbukum/speakerhub/internal/vectorindex"
	"github.com/kbukum/speakerhub/internal/worker"
	"github.com/kbukum/speakerhub/kafka/consumer"
	"github.com/kbukum/speakerhub/kafka/producer"
	"github.com/kbukum/speakerhub/llm"
	llmopenai "github.com/kbukum/speakerhub/llm/openai"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/observability"
	"github.com/kbukum/speakerhub/redis"
	"github.com/kbukum/speakerhub/server"
	"github.com/kbukum/speakerhub/sse"
	"github.com/kbukum/speakerhub/storage"
	"github.com/kbukum/speakerhub/transcription"
	transcribeopenai "github.com/kbukum/speakerhub/transcription/openai"
	"github.com/kbukum/speakerhub/transcription/whisper"
)

type App = bootstrap.App[*AppConfig]

// wiring holds the components registered before startup and the domain
// services built from them once they are running.
type wiring struct {
	app *App

	obs      *observability.Component
	db       *database.Component
	redis    *redis.Component
	storage  *storage.Component
	sse      *sse.Component
	index    *vectorindex.Component
	resolver *speaker.Resolver
}

func newWiring(a *App) *wiring {
	return &wiring{app: a}
}

// registerInfrastructure registers every component the domain services read
// from. They start in this order and stop in reverse.
func (w *wiring) registerInfrastructure() error {
	cfg, log := w.app.Cfg, w.app.Logger

	w.obs = observability.NewComponent(cfg.Observability, log)
	w.db = database.NewComponent(cfg.Database, log).
		WithAutoMigrate(store.Models()...).
		WithMigrator(store.Migrate)
	w.storage = storage.NewComponent(cfg.Storage, log)
	w.sse = sse.NewComponent(log)
	w.index = vectorindex.NewComponent(cfg.Index, w.storage, log)

	comps := []component.Component{w.obs, w.db}
	if cfg.Redis.Enabled {
		w.redis = redis.NewComponent(cfg.Redis, log)
		comps = append(comps, w.redis)
	}
	comps = append(comps, w.storage, w.sse, w.index)
	for _, c := range comps {
		if err := w.app.RegisterComponent(c); err != nil {
			return err
		}
	}
	return nil
}

// configureResolver builds the identity resolver over the started index.
func (w *wiring) configureResolver(_ context.Context, a *App) error {
	cfg := a.Cfg.Resolver
	var locker speaker.Locker = &speaker.LocalLocker{}
	if cfg.Lock == speaker.LockRedis {
		locker = redislock.New(w.redis.Client(), redislock.DefaultKey, cfg.LockTTLDuration(), a.Logger)
	}
	w.resolver = speaker.NewResolver(cfg, w.db.DB(), w.index.Index(), locker, w.obs.Metrics(), a.Logger)
	return nil
}

// configureService wires the pipeline, dispatch and HTTP surface.
func (w *wiring) configureService(_ context.Context, a *App) error {
	cfg, log := a.Cfg, a.Logger
	st := store.New(w.db.DB())

	var progressCache *pipeline.ProgressStore
	if w.redis != nil {
		progressCache = pipeline.NewProgressStore(w.redis.Client(), parseTTL(cfg.Pipeline.ProgressTTL))
	}

	deps := pipeline.Deps{
		Store:    st,
		Resolver: w.resolver,
		Storage:  w.storage.Storage(),
		Progress: pipeline.NewReporter(st, progressCache, w.sse.Hub(), log),
		Metrics:  w.obs.Metrics(),
		Logger:   log,
	}
	if err := w.collaborators(&deps); err != nil {
		return err
	}
	orch, err := pipeline.New(cfg.Pipeline, deps)
	if err != nil {
		return err
	}

	pool := worker.NewPool(cfg.Dispatch, orch, log)
	var dispatcher worker.Dispatcher = pool
	comps := []component.Component{}
	if cfg.Dispatch.Mode == worker.ModeKafka {
		prod, err := producer.NewProducer(cfg.Kafka, log)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		cons, err := consumer.NewConsumer(cfg.Kafka, cfg.Dispatch.Topic, log)
		if err != nil {
			_ = prod.Close()
			return fmt.Errorf("kafka consumer: %w", err)
		}
		dispatcher = worker.NewKafkaDispatcher(prod, cfg.Dispatch.Topic, log)
		comps = append(comps, &closer{name: "kafka-producer", c: prod}, pool, worker.NewIntake(cons, pool, log))
	} else {
		comps = append(comps, pool)
	}

	srv := server.New(cfg.HTTP, log, w.obs.Metrics())
	srv.RegisterDefaultEndpoints(cfg.Name, a.Components.HealthAll)
	api.New(api.Deps{
		Store:      st,
		Resolver:   w.resolver,
		Storage:    w.storage.Storage(),
		Dispatcher: dispatcher,
		Hub:        w.sse.Hub(),
		Progress:   progressCache,
		Pipeline:   cfg.Pipeline,
		Logger:     log,
	}).Register(srv.Engine())
	srv.TrackRoutes(a.Summary)
	comps = append(comps, server.NewComponent(srv))

	for _, c := range comps {
		if err := a.RegisterComponent(c); err != nil {
			return err
		}
	}
	log.Info("pipeline configured", map[string]interface{}{
		"variant":  orch.Variant(),
		"dispatch": cfg.Dispatch.Mode,
	})
	a.OnReady(func(context.Context) error {
		s := w.resolver.Index().Stats()
		log.Info("speaker index ready", logger.Fields(
			"live", s.Live,
			"identities", s.Identities,
			"generation", s.Generation,
		))
		return nil
	})
	return nil
}

// collaborators creates the backends the configured variant calls.
func (w *wiring) collaborators(deps *pipeline.Deps) error {
	cfg, log := w.app.Cfg, w.app.Logger

	if cfg.Pipeline.Variant == pipeline.VariantSingleCall {
		reg := analysis.NewRegistry()
		reg.RegisterFactory(remote.ProviderName, remote.Factory(log))
		p, err := reg.Create(cfg.Analysis)
		if err != nil {
			return fmt.Errorf("analysis: %w", err)
		}
		deps.Analyzer = p
		return nil
	}

	dreg := diarization.NewRegistry()
	dreg.RegisterFactory(pyannote.ProviderName, pyannote.Factory(log))
	d, err := dreg.Create(cfg.Diarization)
	if err != nil {
		return fmt.Errorf("diarization: %w", err)
	}
	deps.Diarizer = d
	if e, ok := d.(diarization.Embedder); ok {
		deps.Embedder = e
	}

	treg := transcription.NewRegistry()
	treg.RegisterFactory(whisper.ProviderName, whisper.Factory(log))
	treg.RegisterFactory(transcribeopenai.ProviderName, transcribeopenai.Factory(log))
	t, err := treg.Create(cfg.Transcription)
	if err != nil {
		return fmt.Errorf("transcription: %w", err)
	}
	deps.Transcriber = t

	lreg := llm.NewRegistry()
	lreg.RegisterFactory(llmopenai.ProviderName, llmopenai.Factory(log))
	l, err := lreg.Create(cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	deps.Insights = insights.NewLLMGenerator(l, log)
	return nil
}

func parseTTL(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// closer stops an io.Closer with the other components.
type closer struct {
	name string
	c    io.Closer
}

func (c *closer) Name() string                { return c.name }
func (c *closer) Start(context.Context) error { return nil }
func (c *closer) Stop(context.Context) error  { return c.c.Close() }
func (c *closer) Health(context.Context) component.Health {
	return component.Health{Name: c.name, Status: component.StatusHealthy}
}
