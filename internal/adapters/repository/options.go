package repository

import "github.com/okian/scout/pkg/logger"

// Option applies a configuration option to the BadgerStore.
type Option func(*BadgerStore)

// WithPath stores data on disk under dir.
func WithPath(dir string) Option {
	return func(s *BadgerStore) {
		if dir != "" {
			s.path = dir
			s.inMemory = false
		}
	}
}

// WithInMemory keeps all data in memory, for tests and ephemeral runs.
func WithInMemory() Option {
	return func(s *BadgerStore) {
		s.inMemory = true
		s.path = ""
	}
}

// WithSyncWrites toggles synchronous writes for durability.
func WithSyncWrites(sync bool) Option {
	return func(s *BadgerStore) {
		s.syncWrites = sync
	}
}

// WithLogger replaces the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *BadgerStore) {
		if l != nil {
			s.log = l
		}
	}
}
