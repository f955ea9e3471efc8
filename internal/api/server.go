package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/omarathon/riot-api-crawler/internal/config"
	"github.com/omarathon/riot-api-crawler/internal/crawler"
	"github.com/omarathon/riot-api-crawler/internal/metrics"
	"github.com/omarathon/riot-api-crawler/internal/platform/riot"
	"github.com/omarathon/riot-api-crawler/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const requestTimeout = 30 * time.Second

// Crawler is the operator view of an engine. *crawler.Engine satisfies it.
type Crawler interface {
	Name() string
	Snapshot() crawler.Result
	Halt(reason string) bool
}

// RateLimits reports the platform's latest rate-limit headers.
// *riot.Client satisfies it.
type RateLimits interface {
	RateLimitInfo() riot.RateLimitInfo
}

// Deps are the collaborators of a Server. Runs may be nil, in which case the
// run endpoints answer 503. RateLimits may be nil when the platform is not
// the Riot API.
type Deps struct {
	Crawlers   []Crawler
	Runs       store.RunRepository
	RateLimits RateLimits
	Auth       config.AuthConfig
	Logger     *zap.Logger
}

// Server wires HTTP handlers to the crawler fleet and run store.
type Server struct {
	router     chi.Router
	crawlers   map[string]Crawler
	names      []string
	rateLimits RateLimits
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	s := &Server{
		crawlers:   make(map[string]Crawler, len(deps.Crawlers)),
		rateLimits: deps.RateLimits,
		logger:     logger,
	}
	for _, c := range deps.Crawlers {
		if c == nil {
			continue
		}
		if _, dup := s.crawlers[c.Name()]; !dup {
			s.names = append(s.names, c.Name())
		}
		s.crawlers[c.Name()] = c
	}
	sort.Strings(s.names)

	runs := NewRunHandler(deps.Runs, logger)

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if deps.Auth.Enabled {
			r.Use(apiKeyMiddleware(deps.Auth.APIKey))
		}
		r.Route("/crawlers", func(r chi.Router) {
			r.Get("/", s.listCrawlers)
			r.Get("/{name}", s.getCrawler)
			r.Post("/{name}/halt", s.haltCrawler)
		})
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", runs.ListRuns)
			r.Get("/{run_id}", runs.GetRun)
		})
		r.Get("/platform/rate-limit", s.rateLimit)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if len(s.crawlers) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no crawlers configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listCrawlers(w http.ResponseWriter, _ *http.Request) {
	out := make([]crawler.Result, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.crawlers[name].Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]any{"crawlers": out})
}

func (s *Server) getCrawler(w http.ResponseWriter, r *http.Request) {
	c, ok := s.crawlers[chi.URLParam(r, "name")]
	if !ok {
		writeError(w, http.StatusNotFound, "crawler not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"crawler": c.Snapshot()})
}

func (s *Server) rateLimit(w http.ResponseWriter, _ *http.Request) {
	if s.rateLimits == nil {
		writeError(w, http.StatusNotFound, "platform does not report rate limits")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rate_limit": s.rateLimits.RateLimitInfo()})
}

type haltRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) haltCrawler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	c, ok := s.crawlers[name]
	if !ok {
		writeError(w, http.StatusNotFound, "crawler not found")
		return
	}
	var req haltRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "halted via API"
	}
	if !c.Halt(req.Reason) {
		writeError(w, http.StatusConflict, "crawler is not running")
		return
	}
	s.logger.Info("operator halt requested", zap.String("crawler", name), zap.String("reason", req.Reason))
	writeJSON(w, http.StatusAccepted, map[string]string{"crawler": name, "status": "halting"})
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request by the server, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
						panic(rec)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("request_id", RequestID(r.Context())),
						zap.Stack("stack"),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
