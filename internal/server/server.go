package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/smartxdr/core/internal/alerts"
	"github.com/smartxdr/core/internal/cache"
	"github.com/smartxdr/core/internal/config"
	"github.com/smartxdr/core/internal/enrich"
	"github.com/smartxdr/core/internal/limits"
	"github.com/smartxdr/core/internal/rag"
	"github.com/smartxdr/core/internal/vectordb"
)

// QueryService answers knowledge-base questions. *rag.Pipeline satisfies it.
type QueryService interface {
	Query(ctx context.Context, text string, topK int, filters map[string]string, sessionID string) (*rag.Result, error)
}

// AlertService summarizes recent ML alerts. *alerts.Summarizer satisfies it.
type AlertService interface {
	Summarize(ctx context.Context, windowMinutes int, sourceIP, indexPattern string, includeAI bool) (*alerts.Result, error)
}

// EnrichService runs IOC enrichment. *enrich.Orchestrator satisfies it.
type EnrichService interface {
	EnrichIOC(ctx context.Context, caseID, iocID string, updateDescription bool) (*enrich.Result, error)
}

// Options wires the server's collaborators. Repo is required; any other
// collaborator may be nil, in which case the matching endpoints report
// the feature as unavailable.
type Options struct {
	Config  config.ServerConfig
	Repo    vectordb.Repository
	RAG     QueryService
	Alerts  AlertService
	Enrich  EnrichService
	Limiter *limits.Limiter
	Cache   *cache.ResponseCache
	Logger  *slog.Logger
}

// Server exposes the assistant core over HTTP.
type Server struct {
	cfg        config.ServerConfig
	repo       vectordb.Repository
	ragSvc     QueryService
	alertSvc   AlertService
	enrichSvc  EnrichService
	limiter    *limits.Limiter
	cache      *cache.ResponseCache
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a server with all routes registered.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		cfg:       opts.Config,
		repo:      opts.Repo,
		ragSvc:    opts.RAG,
		alertSvc:  opts.Alerts,
		enrichSvc: opts.Enrich,
		limiter:   opts.Limiter,
		cache:     opts.Cache,
		logger:    opts.Logger,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAllCORS {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/rag", func(r chi.Router) {
		r.Post("/documents", s.handleCreateDocument)
		r.Post("/documents/batch", s.handleBatchCreate)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Put("/documents/{id}", s.handleUpdateDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)
		r.Post("/query", s.handleQuery)
		r.Get("/stats", s.handleStats)
	})

	r.Post("/triage/summarize-alerts", s.handleSummarizeAlerts)
	r.Post("/enrich/explain_ioc", s.handleExplainIOC)

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port and blocks until the
// listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("smartxdr server listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
