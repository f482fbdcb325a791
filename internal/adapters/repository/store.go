// Package repository defines the benchmark data store interface and
// its embedded Badger implementation.
package repository

import (
	"context"
	"time"

	"github.com/okian/scout/internal/domain/regression"
	"github.com/okian/scout/internal/domain/result"
	"github.com/okian/scout/internal/domain/snapshot"
)

// Store provides read/write access to extraction results, snapshots,
// and regression reports.
type Store interface {
	// PutResult persists an extraction result as both the latest value
	// for its (model, source) pair and a history entry.
	PutResult(ctx context.Context, r result.Result) error

	// CachedResult returns the latest result for (model, source) when
	// it is younger than maxAge. A nil result with nil error means no
	// usable cache entry.
	CachedResult(ctx context.Context, modelID, sourceID string, maxAge time.Duration) (*result.Result, error)

	// LatestResults returns the newest result per source for a model.
	LatestResults(ctx context.Context, modelID string) ([]result.Result, error)

	// LatestByModel returns the newest result per source for every
	// model in the store.
	LatestByModel(ctx context.Context) (map[string][]result.Result, error)

	// History returns a model's results newest first, capped at limit.
	History(ctx context.Context, modelID string, limit int) ([]result.Result, error)

	// PutSnapshot persists a sealed snapshot. A snapshot whose content
	// hash is already stored is rejected with ErrDuplicateHash.
	PutSnapshot(ctx context.Context, s *snapshot.Snapshot) error

	// Snapshot loads one snapshot by id. Returns ErrNotFound when absent.
	Snapshot(ctx context.Context, id string) (*snapshot.Snapshot, error)

	// ListSnapshots returns snapshots newest first, capped at limit.
	ListSnapshots(ctx context.Context, limit int) ([]*snapshot.Snapshot, error)

	// AppendRegressionReport records a detection run for audit.
	AppendRegressionReport(ctx context.Context, r regression.Report) error

	// RegressionHistory returns audit reports, newest first per model.
	// An empty modelID spans all models.
	RegressionHistory(ctx context.Context, modelID string, limit int) ([]regression.Report, error)

	// ModelIDs lists every model with at least one stored result.
	ModelIDs(ctx context.Context) ([]string, error)

	// Stats summarizes store contents.
	Stats(ctx context.Context) (Stats, error)

	// Close flushes and closes the underlying database.
	Close() error
}

// Stats summarizes what the store holds.
type Stats struct {
	Models      int `json:"models"`
	Results     int `json:"results"`
	Snapshots   int `json:"snapshots"`
	Regressions int `json:"regression_reports"`
}
