// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/scout/internal/adapters/stream"
	"github.com/okian/scout/internal/config"
	"github.com/okian/scout/internal/domain/event"
	"github.com/okian/scout/internal/domain/regression"
	"github.com/okian/scout/internal/domain/reliability"
	"github.com/okian/scout/internal/domain/result"
	"github.com/okian/scout/internal/domain/snapshot"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Streaming admission and fan-out.
	AcquireStream() bool
	ReleaseStream()
	Search(ctx context.Context, modelName string, sources []string) <-chan event.Event
	Compare(ctx context.Context, modelNames, sources []string) <-chan event.Event
	StreamTo(ctx context.Context, events <-chan event.Event, sink stream.Sink) error

	// Catalog and stored results.
	Sources() []config.Source
	History(ctx context.Context, modelID string, limit int) ([]result.Result, error)
	CachedResults(ctx context.Context, modelID string) ([]result.Result, error)
	Models(ctx context.Context) ([]string, error)

	// Snapshot lifecycle.
	CreateSnapshot(ctx context.Context) (*snapshot.Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (*snapshot.Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]*snapshot.Snapshot, error)
	VerifySnapshot(ctx context.Context, id string) (bool, string, error)
	DiffLatest(ctx context.Context) (snapshot.Diff, error)

	// Regression and reliability engines.
	DetectRegressions(ctx context.Context, modelID string, thresholds regression.Thresholds) (regression.Report, error)
	RegressionHistory(ctx context.Context, modelID string, limit int) ([]regression.Report, error)
	ComputePRS(ctx context.Context, modelID string) (reliability.Components, string, error)
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

// Server wires HTTP routes for the business API.
type Server struct {
	streamHandler     *StreamHandler
	catalogHandler    *CatalogHandler
	snapshotHandler   *SnapshotHandler
	regressionHandler *RegressionHandler
	prsHandler        *PRSHandler
	statsHandler      *StatsHandler
	healthHandler     *HealthHandler

	searchLimiter   *RateLimiter
	compareLimiter  *RateLimiter
	standardLimiter *RateLimiter
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		streamHandler:     NewStreamHandler(deps),
		catalogHandler:    NewCatalogHandler(deps),
		snapshotHandler:   NewSnapshotHandler(deps),
		regressionHandler: NewRegressionHandler(deps),
		prsHandler:        NewPRSHandler(deps),
		statsHandler:      NewStatsHandler(statsProvider),
		healthHandler:     NewHealthHandler(),
		searchLimiter:     NewRateLimiter(SearchRatePerMinute),
		compareLimiter:    NewRateLimiter(CompareRatePerMinute),
		standardLimiter:   NewRateLimiter(StandardRatePerMinute),
	}
}

// Register attaches all HTTP routes to mux. The ops endpoints stay
// outside the rate limiter so scrapers and health checks never starve.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/search", s.route(s.searchLimiter, s.streamHandler.HandleSearch, "search"))
	mux.HandleFunc("/api/compare", s.route(s.compareLimiter, s.streamHandler.HandleCompare, "compare"))
	mux.HandleFunc("/api/sources", s.route(s.standardLimiter, s.catalogHandler.HandleSources, "sources"))
	mux.HandleFunc("/api/models", s.route(s.standardLimiter, s.catalogHandler.HandleModels, "models"))
	mux.HandleFunc("/api/history/", s.route(s.standardLimiter, s.catalogHandler.HandleHistory, "history"))
	mux.HandleFunc("/api/cached/", s.route(s.standardLimiter, s.catalogHandler.HandleCached, "cached"))
	mux.HandleFunc("/api/v2/snapshots", s.route(s.standardLimiter, s.snapshotHandler.HandleSnapshots, "snapshots"))
	mux.HandleFunc("/api/v2/snapshots/diff", s.route(s.standardLimiter, s.snapshotHandler.HandleDiff, "snapshots_diff"))
	mux.HandleFunc("/api/v2/snapshots/", s.route(s.standardLimiter, s.snapshotHandler.HandleSnapshotByID, "snapshot_detail"))
	mux.HandleFunc("/api/v2/regressions/detect/", s.route(s.standardLimiter, s.regressionHandler.HandleDetect, "regressions_detect"))
	mux.HandleFunc("/api/v2/regressions/history", s.route(s.standardLimiter, s.regressionHandler.HandleHistory, "regressions_history"))
	mux.HandleFunc("/api/v2/prs/", s.route(s.standardLimiter, s.prsHandler.HandlePRS, "prs"))
}

// route composes the shared middleware chain for one API endpoint.
// Rate limiting sits inside metrics so rejections are still counted.
func (s *Server) route(limiter *RateLimiter, handler http.HandlerFunc, endpoint string) http.HandlerFunc {
	return CORSMiddleware(MetricsMiddleware(limiter.Limit(handler), endpoint))
}
