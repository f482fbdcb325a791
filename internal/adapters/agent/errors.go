package agent

import "errors"

var (
	// ErrRequestFailed indicates the agent endpoint could not be reached.
	ErrRequestFailed = errors.New("agent request failed")
	// ErrBadStatus indicates a non-2xx response from the agent endpoint.
	ErrBadStatus = errors.New("agent returned unexpected status")
	// ErrStreamCorrupt indicates the SSE stream could not be read.
	ErrStreamCorrupt = errors.New("agent stream corrupted")
)
