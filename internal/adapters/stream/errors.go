package stream

import "errors"

var (
	// ErrStreamingUnsupported indicates the ResponseWriter cannot flush.
	ErrStreamingUnsupported = errors.New("response writer does not support streaming")
	// ErrSinkClosed indicates the client connection went away mid-stream.
	ErrSinkClosed = errors.New("stream sink closed")
	// ErrCapacity indicates the server is at its concurrent stream limit.
	ErrCapacity = errors.New("too many active streams")
)
