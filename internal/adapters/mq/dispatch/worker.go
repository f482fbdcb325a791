package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/scout/internal/adapters/agent"
	"github.com/okian/scout/internal/config"
	"github.com/okian/scout/internal/domain/event"
	"github.com/okian/scout/internal/domain/result"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

// Agent runs one extraction against one source.
type Agent interface {
	Extract(ctx context.Context, src config.Source, modelName string, emit func(event.Event)) (agent.Outcome, error)
}

// Store is the slice of the repository the worker needs.
type Store interface {
	CachedResult(ctx context.Context, modelID, sourceID string, maxAge time.Duration) (*result.Result, error)
	PutResult(ctx context.Context, r result.Result) error
}

// Worker executes one extraction task end to end: cache probe, agent
// call, persistence, and event emission.
type Worker struct {
	agent       Agent
	store       Store
	useCache    bool
	cacheMaxAge time.Duration
	log         logger.Logger
}

// NewWorker builds a Worker. A nil store disables caching and
// persistence.
func NewWorker(a Agent, store Store, opts ...WorkerOption) *Worker {
	w := &Worker{
		agent:       a,
		store:       store,
		useCache:    store != nil,
		cacheMaxAge: 24 * time.Hour,
		log:         logger.Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.store == nil {
		w.useCache = false
	}
	return w
}

// WorkerOption applies a configuration option to the Worker.
type WorkerOption func(*Worker)

// WithCacheMaxAge sets the recency window for cached results.
func WithCacheMaxAge(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.cacheMaxAge = d
		}
	}
}

// WithCache toggles the cache probe.
func WithCache(enabled bool) WorkerOption {
	return func(w *Worker) {
		w.useCache = enabled
	}
}

// WithWorkerLogger replaces the worker logger.
func WithWorkerLogger(l logger.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.log = l
		}
	}
}

// Run executes one task. It never returns an error: every terminal
// state becomes an event on the stream.
func (w *Worker) Run(ctx context.Context, src config.Source, modelName string, emit func(event.Event)) {
	emit(event.Now(event.Event{
		Kind: event.KindStatus, Source: src.Key, Model: modelName,
		Status: event.StatusRunning, Benchmark: src.Name,
		Message: fmt.Sprintf("Starting extraction from %s", src.Name),
	}))

	modelID := result.CanonicalModelID(modelName)

	if w.useCache {
		cached, err := w.store.CachedResult(ctx, modelID, src.Key, w.cacheMaxAge)
		if err != nil {
			w.log.Warn(ctx, "cache probe failed",
				logger.String("source", src.Key), logger.Error(err))
		}
		if cached != nil {
			metrics.RecordCacheHit()
			fresh := cached.Clone()
			fresh.FromCache = true
			emit(event.Now(event.Event{
				Kind: event.KindCacheHit, Source: src.Key, Model: modelName,
				Status: event.StatusCompleted, Benchmark: src.Name,
				Message: fmt.Sprintf("Cache hit for %s on %s", modelName, src.Key),
			}))
			emit(event.Now(event.Event{
				Kind: event.KindResult, Source: src.Key, Model: modelName,
				Status: event.StatusCompleted, Benchmark: src.Name,
				Data: resultData(fresh),
			}))
			return
		}
		metrics.RecordCacheMiss()
	}

	outcome, err := w.agent.Extract(ctx, src, modelName, emit)
	if err != nil {
		emit(event.ErrorEvent(src.Key, modelName, agent.CodeConnectionError, err.Error()))
		return
	}

	switch o := outcome.(type) {
	case agent.Success:
		if w.store != nil {
			// Persist even if the client has gone away; the data is
			// valuable to later requests.
			if err := w.store.PutResult(context.WithoutCancel(ctx), o.Result); err != nil {
				w.log.Error(ctx, "persisting result failed",
					logger.String("source", src.Key),
					logger.String("model", o.Result.ModelID),
					logger.Error(err))
			}
		}
		emit(event.Now(event.Event{
			Kind: event.KindResult, Source: src.Key, Model: modelName,
			Status: event.StatusCompleted, Benchmark: src.Name,
			Data: resultData(o.Result),
		}))
		emit(event.Now(event.Event{
			Kind: event.KindStatus, Source: src.Key, Model: modelName,
			Status: event.StatusCompleted, Benchmark: src.Name,
			Message: fmt.Sprintf("Completed extraction from %s", src.Name),
		}))

	case agent.NotFound:
		emit(event.Now(event.Event{
			Kind: event.KindWarning, Source: src.Key, Model: modelName,
			Status: event.StatusCompleted, Benchmark: src.Name,
			Message: o.Message,
		}))

	case agent.Failure:
		emit(event.Now(event.Event{
			Kind: event.KindError, Source: src.Key, Model: modelName,
			Status: event.StatusFailed, Benchmark: src.Name,
			ErrorCode: o.Code, Message: o.Message,
		}))
	}
}

// resultData flattens a Result into the event payload shape.
func resultData(r result.Result) map[string]any {
	data := map[string]any{
		"model":             r.ModelID,
		"model_name":        r.ModelName,
		"source":            r.SourceID,
		"benchmark_metrics": r.Metrics,
		"scraped_at":        r.ScrapedAt.Format(time.RFC3339),
	}
	if r.Rank != nil {
		data["rank"] = *r.Rank
	}
	if r.AverageScore != nil {
		data["average_score"] = *r.AverageScore
	}
	if r.FromCache {
		data["from_cache"] = true
	}
	return data
}
