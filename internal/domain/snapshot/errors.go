package snapshot

import "errors"

var (
	// ErrHashFailed indicates the canonical form could not be serialized.
	ErrHashFailed = errors.New("snapshot hash computation failed")
	// ErrEmpty indicates a snapshot was requested over no data.
	ErrEmpty = errors.New("no scores to snapshot")
)
