package fastfair

import (
	"time"

	"go.uber.org/zap"
)

type options struct {
	poolSize     int64
	logger       *zap.Logger
	rebalance    bool
	writeLatency time.Duration
}

func defaultOptions() options {
	return options{
		poolSize: DefaultPoolSize,
		logger:   zap.NewNop(),
	}
}

// Option configures Open.
type Option func(*options)

// WithPoolSize sets the pool file size for newly created pools. Ignored
// when the pool already exists.
func WithPoolSize(size int64) Option {
	return func(o *options) { o.poolSize = size }
}

// WithLogger attaches a structured logger. The tree logs only pool
// lifecycle events and rare structural failures; hot paths stay silent.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRebalance enables merge/redistribution on under-occupied nodes
// during delete. Off by default: leaving nodes under-occupied avoids
// extra persistent writes and is usually the better trade on PM.
func WithRebalance(enabled bool) Option {
	return func(o *options) { o.rebalance = enabled }
}

// WithWriteLatency applies an artificial per-cache-line write latency to
// every flush, emulating persistent memory slower than DRAM. Process
// wide; see SetWriteLatency.
func WithWriteLatency(d time.Duration) Option {
	return func(o *options) { o.writeLatency = d }
}

func errField(err error) zap.Field {
	return zap.Error(err)
}
