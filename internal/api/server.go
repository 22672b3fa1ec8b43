package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/ecom-product-crawler/internal/browserpool"
	"github.com/JakeFAU/ecom-product-crawler/internal/config"
	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
	"github.com/JakeFAU/ecom-product-crawler/internal/metrics"
)

// maxBodyBytes bounds crawl request payloads.
const maxBodyBytes = 1 << 20

// Crawler is the application surface the server drives.
type Crawler interface {
	StartCrawl(ctx context.Context, domains []string) (crawler.Report, error)
	ActiveCrawls() int64
	Browsers() browserpool.Stats
}

// Server wires HTTP handlers to the crawl application.
type Server struct {
	router  chi.Router
	crawler Crawler
	logger  *zap.Logger
}

type crawlRequest struct {
	Domains []string `json:"domains"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(c Crawler, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{crawler: c, logger: logger}

	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	if cfg.Metrics.Enabled {
		metrics.Init()
		r.Use(metrics.Middleware)
	}

	r.Get("/healthz", s.healthz)
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(timeout))
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/v1/crawl", s.startCrawl)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"active_crawls": s.crawler.ActiveCrawls(),
		"browsers":      s.crawler.Browsers(),
	})
}

func (s *Server) startCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Domains) == 0 {
		s.writeError(w, http.StatusBadRequest, "domains required")
		return
	}

	report, err := s.crawler.StartCrawl(r.Context(), req.Domains)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, crawler.ErrInvalidSeed) {
			status = http.StatusBadRequest
		}
		s.logger.Warn("crawl request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
