package stream

import (
	"context"
	"time"

	"github.com/okian/scout/internal/domain/event"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

const defaultKeepalive = 10 * time.Second

// Aggregator copies one event channel to one sink, injecting keepalive
// comments during idle gaps.
type Aggregator struct {
	keepalive time.Duration
	log       logger.Logger
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithKeepalive sets the idle interval before a keepalive comment.
func WithKeepalive(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.keepalive = d
		}
	}
}

// WithLogger replaces the aggregator logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// NewAggregator builds an Aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		keepalive: defaultKeepalive,
		log:       logger.Named("stream"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run pumps events into the sink until the channel closes, the context
// ends, or a write fails. In the latter two cases the channel is
// drained in the background so producers never block on a dead client.
func (a *Aggregator) Run(ctx context.Context, events <-chan event.Event, sink Sink) error {
	ticker := time.NewTicker(a.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Debug(ctx, "client disconnected, draining stream")
			go discard(events)
			return ctx.Err()

		case e, ok := <-events:
			if !ok {
				return nil
			}
			if err := sink.WriteEvent(e); err != nil {
				a.log.Debug(ctx, "sink write failed, draining stream", logger.Error(err))
				go discard(events)
				return err
			}
			ticker.Reset(a.keepalive)

		case <-ticker.C:
			metrics.RecordKeepalive()
			ts := time.Now().UTC().Format(time.RFC3339)
			if err := sink.WriteComment("keepalive " + ts); err != nil {
				go discard(events)
				return err
			}
		}
	}
}

// discard drains a producer channel to completion.
func discard(events <-chan event.Event) {
	for range events {
	}
}
