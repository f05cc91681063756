package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/WebIDE/backend/internal/api/http"
	"github.com/GriffinCanCode/WebIDE/backend/internal/api/middleware"
	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/WebIDE/backend/internal/terminal"
	"github.com/GriffinCanCode/WebIDE/backend/internal/watcher"
	"github.com/GriffinCanCode/WebIDE/backend/internal/workspace"
	"github.com/GriffinCanCode/WebIDE/backend/internal/ws"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	http      *http.Server
	workspace *workspace.Workspace
	terminals *terminal.Manager
	watcher   *watcher.Watcher
	tracer    *tracing.Tracer
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	space, err := workspace.New(cfg.Workspace.Root)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}

	logger.Info("Initializing Web IDE server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("workspace", space.Root()),
		zap.String("public", cfg.Workspace.PublicPath()),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("webide", logger.Named("trace").Logger)

	spawn := terminal.SpawnConfig{
		Dir:        space.Root(),
		CloseGrace: cfg.Terminal.CloseGrace.Duration,
	}
	if cfg.Terminal.Shell != "" {
		spawn.Command = []string{cfg.Terminal.Shell}
	}
	terminals := terminal.NewManager(terminal.ManagerConfig{
		MaxSessions: cfg.Terminal.MaxSessions,
		Spawn:       spawn,
		Breaker:     terminal.DefaultBreakerSettings(),
	}, logger).WithObserver(metrics).WithTracer(tracer)

	var (
		events ws.Subscriber
		fsw    *watcher.Watcher
	)
	if cfg.Watch.Enabled {
		fsw, err = watcher.New(watcher.Config{
			Root:     space.Root(),
			Debounce: cfg.Watch.Debounce.Duration,
			Exclude:  space.Excluded,
		}, logger)
		if err != nil {
			// The IDE works without live updates.
			logger.Warn("File watching disabled", zap.Error(err))
		} else {
			fsw.WithRecorder(metrics)
			events = fsw
		}
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.Logger(logger.Named("http")))
	router.Use(middleware.CORS(middleware.CORSConfigFor(cfg.Server.AllowedOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(space, terminals, metrics, logger)
	wsHandler := ws.NewHandler(terminals, events, ws.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Conn: ws.ConnConfig{
			WriteTimeout: cfg.Terminal.WriteTimeout.Duration,
			PingInterval: cfg.Terminal.PingInterval.Duration,
			Recorder:     metrics,
		},
		Gauge:  metrics,
		Logger: logger,
	})

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	{
		api.GET("/list", handlers.ListFiles)
		api.GET("/read", handlers.ReadFile)
		api.POST("/write", handlers.WriteFile)
		api.GET("/tree", handlers.Tree)
		api.GET("/search", handlers.Search)

		api.GET("/sessions", handlers.ListSessions)
		api.DELETE("/sessions/:id", handlers.KillSession)
	}

	router.GET("/ws/term", wsHandler.HandleTerminal)
	router.GET("/ws/events", wsHandler.HandleEvents)

	router.NoRoute(apihttp.Static(cfg.Workspace.PublicPath()))

	logger.Info("Server initialized successfully")

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		router:    router,
		workspace: space,
		terminals: terminals,
		watcher:   fsw,
		tracer:    tracer,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
		http:      httpServer,
	}, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Terminals returns the terminal session manager.
func (s *Server) Terminals() *terminal.Manager {
	return s.terminals
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully within
// the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			_ = s.Close()
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.config.Server.ShutdownTimeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests, tears down every terminal session and
// releases the watcher and tracer.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.terminals.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.Close(); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Error("Shutdown finished with errors", zap.Error(err))
	} else {
		s.logger.Info("Server stopped")
	}
	s.logger.Sync()
	return err
}

// Close releases background resources without waiting for sessions.
func (s *Server) Close() error {
	var err error
	if s.watcher != nil {
		if cerr := s.watcher.Close(); cerr != nil {
			err = fmt.Errorf("close watcher: %w", cerr)
		}
	}
	s.tracer.Close()
	return err
}
