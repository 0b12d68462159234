// File: internal/server/server.go

// Package server exposes the engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/browser/pool"
	"github.com/xkilldash9x/voyant/internal/browser/session"
	"github.com/xkilldash9x/voyant/internal/config"
	"github.com/xkilldash9x/voyant/internal/health"
	"github.com/xkilldash9x/voyant/internal/instruction"
	"github.com/xkilldash9x/voyant/internal/intelligence"
	"github.com/xkilldash9x/voyant/internal/perception"
	"github.com/xkilldash9x/voyant/internal/semantic"
	"github.com/xkilldash9x/voyant/internal/workflow"
)

// Deps carries the wired engine components the server fronts.
type Deps struct {
	Config       config.ServerConfig
	Logger       *zap.Logger
	Pool         *pool.Pool
	Sessions     *session.Manager
	Perception   *perception.Engine
	Analyzer     *semantic.Analyzer
	Instructions *instruction.Pipeline
	Workflows    *workflow.Engine
	Intelligence *intelligence.Service
	Monitor      *health.Monitor
	Metrics      *health.Metrics
}

// Server is the HTTP front of the engine.
type Server struct {
	cfg          config.ServerConfig
	logger       *zap.Logger
	pool         *pool.Pool
	sessions     *session.Manager
	perception   *perception.Engine
	analyzer     *semantic.Analyzer
	instructions *instruction.Pipeline
	workflows    *workflow.Engine
	intelligence *intelligence.Service
	monitor      *health.Monitor
	metrics      *health.Metrics

	httpServer *http.Server
}

func New(deps Deps) *Server {
	s := &Server{
		cfg:          deps.Config,
		logger:       deps.Logger.Named("server"),
		pool:         deps.Pool,
		sessions:     deps.Sessions,
		perception:   deps.Perception,
		analyzer:     deps.Analyzer,
		instructions: deps.Instructions,
		workflows:    deps.Workflows,
		intelligence: deps.Intelligence,
		monitor:      deps.Monitor,
		metrics:      deps.Metrics,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", deps.Config.Host, deps.Config.Port),
		Handler:      s.Router(),
		ReadTimeout:  deps.Config.ReadTimeout,
		WriteTimeout: deps.Config.WriteTimeout,
	}
	return s
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.metricsMiddleware)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/perception", func(r chi.Router) {
			r.Post("/analyze", s.handlePerceptionAnalyze)
			r.Post("/mode", s.handlePerceptionMode)
			r.Post("/find_element", s.handleFindElement)
			r.Post("/command", s.handleCommand)
			r.Post("/form_analyze", s.handleFormAnalyze)
			r.Post("/form_autofill", s.handleFormAutofill)
		})
		r.Route("/intelligence", func(r chi.Router) {
			r.Post("/analyze", s.handleIntelligenceAnalyze)
			r.Post("/recommend", s.handleRecommend)
			r.Post("/feedback", s.handleFeedback)
		})
		r.Post("/workflow/run", s.handleWorkflowRun)
		r.Post("/instruction/execute", s.handleInstructionExecute)
		r.Route("/session", func(r chi.Router) {
			r.Post("/", s.handleSessionCreate)
			r.Get("/", s.handleSessionList)
			r.Get("/{id}", s.handleSessionGet)
			r.Delete("/{id}", s.handleSessionDelete)
		})
	})

	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests within the configured grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// withDriver runs fn against the named session's driver, or a pooled driver
// when no session id is given. Pool loans are marked failed on driver-level
// faults so unhealthy browsers rotate out.
func (s *Server) withDriver(ctx context.Context, sessionID string, fn func(schemas.Driver) error) error {
	if sessionID != "" {
		if !schemas.ValidSessionID(sessionID) {
			return schemas.NewError(schemas.KindValidation, "server.session", "invalid session_id")
		}
		sess := s.sessions.Get(sessionID)
		if sess == nil {
			return schemas.NewError(schemas.KindNotFound, "server.session",
				fmt.Sprintf("session %q not found", sessionID))
		}
		return fn(sess.Driver())
	}

	loan, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer loan.Release()

	err = fn(loan.Driver())
	if err != nil && isDriverFault(err) {
		loan.MarkFailed()
	}
	return err
}

func isDriverFault(err error) bool {
	switch schemas.KindOf(err) {
	case schemas.KindDriverUnavailable, schemas.KindProtocol, schemas.KindFatal:
		return true
	}
	return false
}
