package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateHash = errors.New("snapshot with identical content hash already stored")
	ErrInvalidLimit  = errors.New("invalid history limit")
	ErrClosed        = errors.New("store is closed")
)
