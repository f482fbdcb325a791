package stream

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/okian/scout/pkg/metrics"
)

const defaultCapacity = 20

// Gate bounds concurrent streams server-wide. Admission is
// non-blocking: a full gate rejects immediately rather than queueing
// the client.
type Gate struct {
	sem    *semaphore.Weighted
	active atomic.Int64
}

// NewGate builds a Gate with the given capacity. Non-positive values
// fall back to the default.
func NewGate(capacity int) *Gate {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Gate{sem: semaphore.NewWeighted(int64(capacity))}
}

// Acquire claims one stream slot. It reports false when the server is
// at capacity.
func (g *Gate) Acquire() bool {
	if !g.sem.TryAcquire(1) {
		metrics.RecordStreamRejected()
		return false
	}
	metrics.RecordStreamStarted()
	metrics.UpdateActiveStreams(g.active.Add(1))
	return true
}

// Release returns a slot claimed by Acquire.
func (g *Gate) Release() {
	g.sem.Release(1)
	metrics.UpdateActiveStreams(g.active.Add(-1))
}

// Active reports the current number of open streams.
func (g *Gate) Active() int64 {
	return g.active.Load()
}
