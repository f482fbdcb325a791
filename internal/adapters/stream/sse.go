// Package stream delivers extraction event channels to SSE clients.
// It owns the wire format, the keepalive cadence, and the server-wide
// admission gate.
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okian/scout/internal/domain/event"
)

// Sink is where the aggregator writes frames. Implementations must be
// safe for a single writer.
type Sink interface {
	// WriteEvent writes one data frame and flushes it.
	WriteEvent(e event.Event) error
	// WriteComment writes an SSE comment line, used for keepalives.
	WriteComment(text string) error
}

// SSESink writes SSE frames to an http.ResponseWriter.
type SSESink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSESink prepares the response for event streaming and returns the
// sink. It fails when the writer cannot flush incrementally.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSESink{w: w, flusher: flusher}, nil
}

// WriteEvent marshals the event as one `data:` frame.
func (s *SSESink) WriteEvent(e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkClosed, err)
	}
	s.flusher.Flush()
	return nil
}

// WriteComment writes `: text` which clients ignore but proxies see.
func (s *SSESink) WriteComment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkClosed, err)
	}
	s.flusher.Flush()
	return nil
}
