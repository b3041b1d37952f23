package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/speakerhub/bootstrap"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/observability"
	"github.com/kbukum/speakerhub/server/endpoint"
	"github.com/kbukum/speakerhub/server/middleware"
)

// Server is the HTTP server. Routes go on the Gin engine; the middleware
// chain wraps the whole handler.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     Config
	log        *logger.Logger

	mu   sync.Mutex
	addr string
}

// New creates a server with the standard middleware chain applied. metrics
// may be nil.
func New(cfg Config, log *logger.Logger, metrics *observability.Metrics) *Server {
	cfg.ApplyDefaults()
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	slog := log.WithComponent("server")
	engine := gin.New()
	engine.Use(middleware.Observe(metrics))

	chain := middleware.Chain(
		middleware.Recovery(slog),
		middleware.RequestID(),
		middleware.CORS(&cfg.CORS),
		middleware.BodySizeLimit(cfg.MaxBodySize),
		middleware.RequestLogger(slog),
	)
	handler := h2c.NewHandler(chain(engine), &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          time.Duration(cfg.IdleTimeout) * time.Second,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
			IdleTimeout:       time.Duration(cfg.IdleTimeout) * time.Second,
		},
		engine: engine,
		config: cfg,
		log:    slog,
		addr:   addr,
	}
}

// Engine returns the Gin engine for route registration.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Handler returns the full handler including the middleware chain.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// RegisterDefaultEndpoints mounts /health, /ready and /version.
func (s *Server) RegisterDefaultEndpoints(serviceName string, checker endpoint.HealthChecker) {
	s.engine.GET("/health", endpoint.Health(serviceName, checker))
	s.engine.GET("/ready", endpoint.Readiness(serviceName, checker))
	s.engine.GET("/version", endpoint.Version())
}

// TrackRoutes adds every registered route to the startup summary.
func (s *Server) TrackRoutes(summary *bootstrap.Summary) {
	routes := s.engine.Routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	for _, r := range routes {
		summary.TrackRoute(r.Method, r.Path)
	}
}

// Start binds the listener and serves in the background. It returns once
// the port is bound.
func (s *Server) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Server error", map[string]interface{}{"error": err.Error()})
		}
	}()

	s.log.Info("HTTP server started", map[string]interface{}{"addr": s.Addr()})
	return nil
}

// Stop shuts the server down, waiting at most 5s for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
