// Package dispatch fans extraction tasks out over a bounded worker
// pool and funnels their progress into a single event channel suitable
// for SSE delivery.
//
// One dispatch serves one stream. Tasks run independently: a failed or
// panicking extraction never cancels its siblings, it only contributes
// an error event.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/scout/internal/config"
	"github.com/okian/scout/internal/domain/event"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

// Default pool configuration constants.
const (
	defaultMaxWorkers = 5
	defaultBufferSize = 256
)

// Extractor runs one extraction and streams progress through emit.
// The dispatch layer never interprets outcomes beyond event emission,
// that is the worker's job.
type Extractor interface {
	Run(ctx context.Context, src config.Source, modelName string, emit func(event.Event))
}

// Pool dispatches extraction tasks with bounded concurrency.
type Pool struct {
	extractor  Extractor
	maxWorkers int
	bufferSize int
	log        logger.Logger
}

// NewPool creates a Pool around an Extractor.
func NewPool(extractor Extractor, opts ...Option) *Pool {
	p := &Pool{
		extractor:  extractor,
		maxWorkers: defaultMaxWorkers,
		bufferSize: defaultBufferSize,
		log:        logger.Named("dispatch"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dispatch runs one model against the given sources and returns the
// event channel for the stream. Each task's terminal event is followed
// by a done frame carrying its source id; a bare done terminates the
// stream and the channel closes after it. Consumers own draining it.
func (p *Pool) Dispatch(ctx context.Context, modelName string, sourceKeys []string) <-chan event.Event {
	return p.run(ctx, []string{modelName}, sourceKeys)
}

// DispatchCompare runs several models against the given sources on one
// stream. The first event is an init frame naming the full workload.
func (p *Pool) DispatchCompare(ctx context.Context, modelNames, sourceKeys []string) <-chan event.Event {
	return p.run(ctx, modelNames, sourceKeys)
}

type task struct {
	src   config.Source
	model string
}

func (p *Pool) run(ctx context.Context, modelNames, sourceKeys []string) <-chan event.Event {
	out := make(chan event.Event, p.bufferSize)

	keys := config.ValidSources(sourceKeys)
	tasks := make([]task, 0, len(modelNames)*len(keys))
	for _, model := range modelNames {
		for _, key := range keys {
			src, ok := config.SourceByKey(key)
			if !ok {
				continue
			}
			tasks = append(tasks, task{src: src, model: model})
		}
	}

	go func() {
		defer close(out)

		start := time.Now()
		emit := func(e event.Event) {
			metrics.RecordStreamEvent(string(e.Kind))
			select {
			case out <- e:
			case <-ctx.Done():
			}
		}

		if len(modelNames) > 1 {
			emit(event.Now(event.Event{
				Kind:    event.KindInit,
				Models:  modelNames,
				Sources: keys,
				Message: fmt.Sprintf("Comparing %d models across %d sources", len(modelNames), len(keys)),
			}))
		}

		emit(event.Now(event.Event{
			Kind:    event.KindSystem,
			Sources: keys,
			Message: fmt.Sprintf("Dispatching %d extraction task(s) with %d workers", len(tasks), p.maxWorkers),
		}))

		// Plain Group, not WithContext: one task's failure must not
		// cancel its siblings.
		var g errgroup.Group
		g.SetLimit(p.maxWorkers)

		for _, t := range tasks {
			g.Go(func() error {
				// The deferred done frame closes the source's sub-stream
				// on every path, panics included.
				defer func() {
					if r := recover(); r != nil {
						p.log.Error(ctx, "extraction task panicked",
							logger.String("source", t.src.Key),
							logger.String("model", t.model),
							logger.Any("panic", r))
						emit(event.ErrorEvent(t.src.Key, t.model, "INTERNAL_ERROR",
							fmt.Sprintf("extraction crashed: %v", r)))
					}
					emit(event.DoneFor(t.src.Key, t.model))
				}()
				p.extractor.Run(ctx, t.src, t.model, emit)
				return nil
			})
		}
		_ = g.Wait()

		metrics.RecordDispatchDuration(time.Since(start).Seconds())
		emit(event.Now(event.Event{
			Kind:    event.KindComplete,
			Sources: keys,
			Models:  modelNames,
			Message: fmt.Sprintf("All extractions settled in %s", time.Since(start).Round(time.Millisecond)),
		}))
		emit(event.Done())
	}()

	return out
}
