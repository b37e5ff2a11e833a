package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/region-metrics-etl/internal/domain"
)

// LatestReader looks up the most recently stored metrics of a region. It
// returns domain.ErrRegionNotFound when nothing is stored for fips.
type LatestReader interface {
	Latest(ctx context.Context, fips string) (domain.RegionMetrics, error)
}

// Server exposes health, readiness, and metrics HTTP endpoints, and the
// latest snapshot of a region when a LatestReader is configured.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, and /metrics
// routes. A non-nil latest adds GET /regions/{fips}/latest.
func NewServer(addr string, ready sharedobs.ReadinessChecker, latest LatestReader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if latest != nil {
		mux.HandleFunc("GET /regions/{fips}/latest", s.handleLatest(latest))
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleLatest(latest LatestReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fips := r.PathValue("fips")
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		result, err := latest.Latest(ctx, fips)
		switch {
		case errors.Is(err, domain.ErrRegionNotFound):
			sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no metrics for region " + fips})
		case err != nil:
			s.logger.Error("latest lookup failed", "region", fips, "error", err)
			sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		default:
			sharedobs.WriteJSON(w, http.StatusOK, latestResponse{
				Region:      result.Region,
				Latest:      result.Latest,
				KnownIssues: result.KnownIssues,
				ComputedAt:  result.ComputedAt,
				RunID:       result.RunID,
			})
		}
	}
}

type latestResponse struct {
	Region      domain.Region       `json:"region"`
	Latest      *domain.Snapshot    `json:"latest"`
	KnownIssues []domain.KnownIssue `json:"known_issues,omitempty"`
	ComputedAt  time.Time           `json:"computed_at"`
	RunID       string              `json:"run_id"`
}

// AllReady combines readiness checkers; the first failure wins.
type AllReady []sharedobs.ReadinessChecker

func (a AllReady) CheckReadiness(ctx context.Context) error {
	for _, c := range a {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
