// Package event contains the stream event model passed between the
// extraction workers and the SSE layer.
package event

import "time"

// Kind discriminates stream events.
type Kind string

const (
	// KindInit opens a comparison stream and lists what will run.
	KindInit Kind = "init"
	// KindStatus reports extraction lifecycle transitions.
	KindStatus Kind = "status"
	// KindLog carries free-form progress text.
	KindLog Kind = "log"
	// KindCacheHit reports a result served from the store.
	KindCacheHit Kind = "cache_hit"
	// KindResult carries one finished extraction payload.
	KindResult Kind = "result"
	// KindWarning reports a recoverable anomaly.
	KindWarning Kind = "warning"
	// KindError reports a failed extraction or a rejected request.
	KindError Kind = "error"
	// KindSystem carries orchestration notices that concern the whole run.
	KindSystem Kind = "system"
	// KindComplete summarizes the run after every task has settled.
	KindComplete Kind = "complete"
	// KindDone terminates the stream.
	KindDone Kind = "done"
)

// Status values carried by KindStatus events.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Event is one SSE frame's payload. Fields mirror the wire schema;
// zero values are elided on marshal.
type Event struct {
	Kind      Kind           `json:"type"`
	Source    string         `json:"source,omitempty"`
	Model     string         `json:"model,omitempty"`
	Benchmark string         `json:"benchmark,omitempty"`
	Status    string         `json:"status,omitempty"`
	Message   string         `json:"message,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	Sources   []string       `json:"sources,omitempty"`
	Models    []string       `json:"models,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Now stamps an event with the current time and returns it.
func Now(e Event) Event {
	e.Timestamp = time.Now().UTC()
	return e
}

// StatusEvent builds a lifecycle transition event for one source.
func StatusEvent(source, model, status string) Event {
	return Now(Event{Kind: KindStatus, Source: source, Model: model, Status: status})
}

// ErrorEvent builds a failure event for one source.
func ErrorEvent(source, model, code, message string) Event {
	return Now(Event{Kind: KindError, Source: source, Model: model, ErrorCode: code, Message: message})
}

// Done builds the stream terminator. Its Source is empty, which is
// what distinguishes it from per-source done frames.
func Done() Event {
	return Now(Event{Kind: KindDone})
}

// DoneFor marks one source's task as settled after its terminal event.
func DoneFor(source, model string) Event {
	return Now(Event{Kind: KindDone, Source: source, Model: model})
}
