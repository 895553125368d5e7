// Package server provides the HTTP API of the sectional report service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/allstarteams/sectional-reports/internal/reports"
	"github.com/allstarteams/sectional-reports/internal/server/middleware"
	"github.com/allstarteams/sectional-reports/internal/server/ratelimit"
	"github.com/allstarteams/sectional-reports/internal/types"
)

// DefaultStreamInterval is how often the progress stream re-reads a snapshot.
const DefaultStreamInterval = 3 * time.Second

// Server represents the HTTP server
type Server struct {
	httpServer     *http.Server
	service        *reports.Service
	flags          *FeatureFlags
	rateLimiter    *ratelimit.Limiter
	tokens         middleware.TokenValidator
	streamInterval time.Duration
	onShutdown     []func(context.Context)
}

// Config holds server configuration
type Config struct {
	Addr           string
	StreamInterval time.Duration
}

// Deps are the collaborators of the server.
type Deps struct {
	Service *reports.Service
	Flags   *FeatureFlags
	Tokens  middleware.TokenValidator
	// Limiter may be nil to disable rate limiting.
	Limiter *ratelimit.Limiter
}

// New creates a new server instance
func New(cfg Config, deps Deps) *Server {
	if deps.Flags == nil {
		deps.Flags = NewFeatureFlags(false, nil)
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewLimiter(&ratelimit.Config{Enabled: false})
	}
	s := &Server{
		service:        deps.Service,
		flags:          deps.Flags,
		rateLimiter:    deps.Limiter,
		tokens:         deps.Tokens,
		streamInterval: cfg.StreamInterval,
	}
	if s.streamInterval <= 0 {
		s.streamInterval = DefaultStreamInterval
	}

	s.httpServer = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// section regeneration runs the content generator inside the request
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	auth := middleware.AuthMiddleware(s.tokens)
	authed := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.Handle("POST /generate/{userId}", authed(s.handleGenerate))
	mux.Handle("GET /progress/{userId}/{reportType}", authed(s.handleProgress))
	mux.Handle("GET /progress/{userId}/{reportType}/stream", authed(s.handleProgressStream))
	mux.Handle("GET /sections/{userId}/{reportType}", authed(s.handleListSections))
	mux.Handle("PUT /sections/{userId}/{reportType}/{sectionId}", authed(s.handleUpdateSection))
	mux.Handle("POST /sections/{userId}/{reportType}/{sectionId}/regenerate", authed(s.handleRegenerateSection))
	mux.Handle("GET /final/{userId}/{reportType}", authed(s.handleFinalReport))
	mux.Handle("GET /status/{userId}", authed(s.handleStatus))
	mux.Handle("DELETE /reports/{userId}/{reportType}", authed(s.handleDeleteReport))

	// Admin endpoints
	mux.Handle("GET /reports", authed(s.handleListReports))
	mux.Handle("PUT /admin/report-pipeline", authed(s.handleSetPipeline))

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

// OnShutdown registers fn to run after the HTTP server stopped accepting requests.
func (s *Server) OnShutdown(fn func(context.Context)) {
	s.onShutdown = append(s.onShutdown, fn)
}

// Start serves until SIGINT/SIGTERM or ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.rateLimiter.Stop()
	for _, fn := range s.onShutdown {
		fn(shutdownCtx)
	}

	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth reports server health and whether report generation is switched on.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	pipeline := types.PipelineAvailable
	if !s.flags.PipelineAvailable(r.Context()) {
		pipeline = types.PipelineUnavailable
	}
	s.jsonResponse(w, http.StatusOK, types.HealthStatus{Status: "ok", ReportPipeline: pipeline})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]any{"success": false, "error": message})
}

// writeError maps err to a status code and writes the error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[error] %s %s: %v", r.Method, r.URL.Path, err)
	}
	s.errorResponse(w, status, errorMessage(err, status))
}

// extractClientID extracts the client identifier (IP address) from the request.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	if info.RetryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds()+0.5)))
	}
	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))
	s.errorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}
