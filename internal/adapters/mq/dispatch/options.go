package dispatch

import "github.com/okian/scout/pkg/logger"

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithMaxWorkers bounds concurrent extraction tasks.
func WithMaxWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxWorkers = n
		}
	}
}

// WithBufferSize sets the event channel capacity.
func WithBufferSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.bufferSize = n
		}
	}
}

// WithLogger replaces the pool logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}
