// Package service provides the core business service that implements
// the dependencies required by the HTTP API: stream orchestration,
// snapshot lifecycle, regression detection, and PRS computation.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/scout/internal/adapters/agent"
	"github.com/okian/scout/internal/adapters/mq/dispatch"
	"github.com/okian/scout/internal/adapters/repository"
	"github.com/okian/scout/internal/adapters/stream"
	"github.com/okian/scout/internal/config"
	"github.com/okian/scout/internal/domain/event"
	"github.com/okian/scout/internal/domain/regression"
	"github.com/okian/scout/internal/domain/reliability"
	"github.com/okian/scout/internal/domain/result"
	"github.com/okian/scout/internal/domain/snapshot"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

// Service errors surfaced to the HTTP layer.
var (
	ErrNoSnapshots           = errors.New("no snapshot available")
	ErrInsufficientSnapshots = errors.New("need at least 2 snapshots")
	ErrModelNotInSnapshot    = errors.New("model not found in snapshot")
)

// Service wires the extraction pipeline to storage and streaming.
type Service struct {
	mu sync.RWMutex

	cfg   *config.Config
	store repository.Store
	agent dispatch.Agent
	pool  *dispatch.Pool
	gate  *stream.Gate
	agg   *stream.Aggregator

	started bool
	log     logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a pre-built store, mainly for tests.
func WithStore(s repository.Store) Option {
	return func(svc *Service) { svc.store = s }
}

// WithAgent injects a pre-built agent client, mainly for tests.
func WithAgent(a dispatch.Agent) Option {
	return func(svc *Service) { svc.agent = a }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.log = l
		}
	}
}

// New constructs a Service from configuration.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg: cfg,
		log: logger.Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the store, agent client, worker pool, and gate.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.log.Info(ctx, "starting benchmark aggregation service...")

	if s.store == nil {
		storeOpts := []repository.Option{repository.WithSyncWrites(true)}
		if s.cfg.DataDir == "" {
			storeOpts = append(storeOpts, repository.WithInMemory())
		} else {
			storeOpts = append(storeOpts, repository.WithPath(s.cfg.DataDir))
		}
		store, err := repository.NewBadgerStore(storeOpts...)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
	}

	if s.agent == nil {
		s.agent = agent.NewClient(s.cfg.AgentURL,
			agent.WithAPIKey(s.cfg.AgentAPIKey),
			agent.WithTimeout(time.Duration(s.cfg.RequestTimeoutSec)*time.Second),
		)
	}

	worker := dispatch.NewWorker(s.agent, s.store,
		dispatch.WithCacheMaxAge(time.Duration(s.cfg.CacheMaxAgeHours)*time.Hour),
	)
	s.pool = dispatch.NewPool(worker,
		dispatch.WithMaxWorkers(s.cfg.MaxWorkers),
		dispatch.WithBufferSize(s.cfg.StreamBufferSize),
	)
	s.gate = stream.NewGate(s.cfg.MaxConcurrentStreams)
	s.agg = stream.NewAggregator(
		stream.WithKeepalive(time.Duration(s.cfg.KeepaliveIntervalSec) * time.Second),
	)

	s.started = true
	s.log.Info(ctx, "benchmark aggregation service started",
		logger.Int("workers", s.cfg.MaxWorkers),
		logger.Int("maxStreams", s.cfg.MaxConcurrentStreams),
		logger.String("dataDir", s.cfg.DataDir),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.log.Info(context.Background(), "stopping benchmark aggregation service...")
	if s.store != nil {
		_ = s.store.Close()
	}
	s.started = false
	s.log.Info(context.Background(), "benchmark aggregation service stopped")
}

// AcquireStream claims a streaming slot; false means at capacity.
func (s *Service) AcquireStream() bool { return s.gate.Acquire() }

// ReleaseStream returns a slot claimed by AcquireStream.
func (s *Service) ReleaseStream() { s.gate.Release() }

// Search fans one model out over the requested sources.
func (s *Service) Search(ctx context.Context, modelName string, sources []string) <-chan event.Event {
	return s.pool.Dispatch(ctx, modelName, sources)
}

// Compare fans several models out over the requested sources on one
// stream.
func (s *Service) Compare(ctx context.Context, modelNames, sources []string) <-chan event.Event {
	return s.pool.DispatchCompare(ctx, modelNames, sources)
}

// StreamTo pumps an event channel into an SSE sink with keepalives.
func (s *Service) StreamTo(ctx context.Context, events <-chan event.Event, sink stream.Sink) error {
	return s.agg.Run(ctx, events, sink)
}

// Sources returns the benchmark source catalog.
func (s *Service) Sources() []config.Source { return config.Sources() }

// History returns a model's extraction history newest first.
func (s *Service) History(ctx context.Context, modelID string, limit int) ([]result.Result, error) {
	if limit <= 0 || limit > s.cfg.MaxHistoryLimit {
		limit = s.cfg.MaxHistoryLimit
	}
	return s.store.History(ctx, modelID, limit)
}

// CachedResults returns a model's newest result per source.
func (s *Service) CachedResults(ctx context.Context, modelID string) ([]result.Result, error) {
	return s.store.LatestResults(ctx, modelID)
}

// Models lists every model with stored results.
func (s *Service) Models(ctx context.Context) ([]string, error) {
	return s.store.ModelIDs(ctx)
}

// CreateSnapshot seals the store's current aggregated scores into an
// immutable snapshot and persists it. Identical content to an existing
// snapshot is rejected by the store.
func (s *Service) CreateSnapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	byModel, err := s.store.LatestByModel(ctx)
	if err != nil {
		return nil, err
	}
	if len(byModel) == 0 {
		return nil, snapshot.ErrEmpty
	}

	scores := make(map[string]map[string]float64, len(byModel))
	seenSources := make(map[string]struct{})
	for modelID, results := range byModel {
		merged := make(map[string]float64)
		for _, r := range results {
			seenSources[r.SourceID] = struct{}{}
			for metric, v := range r.Metrics {
				merged[metric] = v
			}
		}
		if len(merged) > 0 {
			scores[modelID] = merged
		}
	}
	if len(scores) == 0 {
		return nil, snapshot.ErrEmpty
	}

	versions := make([]snapshot.BenchmarkVersion, 0, len(seenSources))
	for key := range seenSources {
		src, ok := config.SourceByKey(key)
		if !ok {
			continue
		}
		versions = append(versions, snapshot.BenchmarkVersion{
			BenchmarkID: src.Key,
			Version:     src.Version,
			SourceURL:   src.URL,
		})
	}

	snap, err := snapshot.New(scores, versions, s.cfg.SnapshotWeights)
	if err != nil {
		return nil, err
	}

	if err := s.store.PutSnapshot(ctx, snap); err != nil {
		if errors.Is(err, repository.ErrDuplicateHash) {
			metrics.RecordSnapshotDuplicate()
		}
		return nil, err
	}
	metrics.RecordSnapshotCreated()
	s.log.Info(ctx, "snapshot created",
		logger.String("snapshotID", snap.SnapshotID),
		logger.Int("models", len(scores)),
	)
	return snap, nil
}

// GetSnapshot loads one snapshot by id.
func (s *Service) GetSnapshot(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	return s.store.Snapshot(ctx, id)
}

// ListSnapshots returns snapshots newest first.
func (s *Service) ListSnapshots(ctx context.Context, limit int) ([]*snapshot.Snapshot, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.ListSnapshots(ctx, limit)
}

// VerifySnapshot recomputes a snapshot's hash and reports the verdict.
func (s *Service) VerifySnapshot(ctx context.Context, id string) (bool, string, error) {
	snap, err := s.store.Snapshot(ctx, id)
	if err != nil {
		return false, "", err
	}
	ok, msg := snap.VerifyMessage()
	if !ok {
		metrics.RecordIntegrityFailure()
	}
	return ok, msg, nil
}

// DiffLatest compares the two newest snapshots.
func (s *Service) DiffLatest(ctx context.Context) (snapshot.Diff, error) {
	snaps, err := s.store.ListSnapshots(ctx, 2)
	if err != nil {
		return snapshot.Diff{}, err
	}
	switch len(snaps) {
	case 0:
		return snapshot.Diff{}, ErrNoSnapshots
	case 1:
		return snapshot.DiffSnapshots(snaps[0], nil), nil
	default:
		return snapshot.DiffSnapshots(snaps[0], snaps[1]), nil
	}
}

// DetectRegressions compares a model's scores between the two newest
// snapshots. Flagged events are appended to the audit trail.
func (s *Service) DetectRegressions(ctx context.Context, modelID string, thresholds regression.Thresholds) (regression.Report, error) {
	snaps, err := s.store.ListSnapshots(ctx, 2)
	if err != nil {
		return regression.Report{}, err
	}
	if len(snaps) < 2 {
		return regression.Report{}, ErrInsufficientSnapshots
	}

	current, ok := snaps[0].ModelScores[modelID]
	if !ok {
		return regression.Report{}, fmt.Errorf("%w: %s in %s", ErrModelNotInSnapshot, modelID, snaps[0].SnapshotID)
	}
	previous, ok := snaps[1].ModelScores[modelID]
	if !ok {
		return regression.Report{}, fmt.Errorf("%w: %s in %s", ErrModelNotInSnapshot, modelID, snaps[1].SnapshotID)
	}

	report := regression.Detect(modelID, current, previous,
		snaps[0].SnapshotID, snaps[1].SnapshotID, thresholds)

	for _, e := range report.Events {
		if e.IsRegression() {
			metrics.RecordRegression(string(e.Severity))
		}
	}
	if report.RegressionsFound > 0 {
		if err := s.store.AppendRegressionReport(ctx, report); err != nil {
			s.log.Error(ctx, "recording regression report failed",
				logger.String("model", modelID), logger.Error(err))
		}
	}
	return report, nil
}

// RegressionHistory returns a model's audit trail newest first.
func (s *Service) RegressionHistory(ctx context.Context, modelID string, limit int) ([]regression.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.RegressionHistory(ctx, modelID, limit)
}

// ComputePRS evaluates the reliability score for a model against the
// newest snapshot, with the one before it as temporal baseline.
func (s *Service) ComputePRS(ctx context.Context, modelID string) (reliability.Components, string, error) {
	snaps, err := s.store.ListSnapshots(ctx, 2)
	if err != nil {
		return reliability.Components{}, "", err
	}
	if len(snaps) == 0 {
		return reliability.Components{}, "", ErrNoSnapshots
	}

	current := snaps[0]
	currentScores, ok := current.ModelScores[modelID]
	if !ok {
		return reliability.Components{}, "", fmt.Errorf("%w: %s in %s", ErrModelNotInSnapshot, modelID, current.SnapshotID)
	}

	in := reliability.Input{
		ModelID:        modelID,
		CurrentScores:  currentScores,
		AllModelScores: current.ModelScores,
	}
	for b := range currentScores {
		in.ExpectedBenchmarks = append(in.ExpectedBenchmarks, b)
	}

	if history, err := s.store.History(ctx, modelID, reliability.StabilityWindow*len(config.SourceKeys())); err == nil {
		in.ExtractionHistory = mergeHistoryByRun(history)
	}

	if len(snaps) > 1 {
		if prev, ok := snaps[1].ModelScores[modelID]; ok {
			in.PreviousScores = prev
			for b := range prev {
				in.PreviousBenchmarks = append(in.PreviousBenchmarks, b)
			}
		}
	}

	metrics.RecordPRSComputation()
	return reliability.Compute(in), current.SnapshotID, nil
}

// mergeHistoryByRun groups per-source history rows into whole-run
// metric maps, newest first. Results scraped within the same hour are
// treated as one extraction run.
func mergeHistoryByRun(history []result.Result) []map[string]float64 {
	var runs []map[string]float64
	var runHour time.Time
	for _, r := range history {
		hour := r.ScrapedAt.UTC().Truncate(time.Hour)
		if len(runs) == 0 || !hour.Equal(runHour) {
			runs = append(runs, map[string]float64{})
			runHour = hour
		}
		current := runs[len(runs)-1]
		for metric, v := range r.Metrics {
			if _, exists := current[metric]; !exists {
				current[metric] = v
			}
		}
	}
	return runs
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":        s.started,
		"workers":        s.cfg.MaxWorkers,
		"max_streams":    s.cfg.MaxConcurrentStreams,
		"active_streams": int64(0),
	}
	if !s.started {
		return stats
	}

	stats["active_streams"] = s.gate.Active()
	if st, err := s.store.Stats(ctx); err == nil {
		stats["models"] = st.Models
		stats["results"] = st.Results
		stats["snapshots"] = st.Snapshots
		stats["regression_reports"] = st.Regressions
	}
	return stats
}
