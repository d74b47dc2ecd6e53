package tcp

import "time"

// Options holds the configured flags named in spec §3.3: nodelay, keepalive
// and read timeout. Stored values are reported back verbatim by the
// accessors regardless of whether the underlying OS socket option round-trip
// succeeded, matching spec §4.4 ("their stored values are reported
// verbatim").
type Options struct {
	NoDelay     bool
	KeepAlive   bool
	ReadTimeout time.Duration

	// RingInitialSize/RingCeiling override the ring buffer's default
	// capacity (64KiB) and growth ceiling; zero selects the defaults.
	RingInitialSize int
	RingCeiling     int
}

// Option configures Options in the functional-options idiom (spec_full
// §3.8).
type Option func(*Options)

func WithNoDelay(v bool) Option { return func(o *Options) { o.NoDelay = v } }

func WithKeepAlive(v bool) Option { return func(o *Options) { o.KeepAlive = v } }

func WithReadTimeout(d time.Duration) Option { return func(o *Options) { o.ReadTimeout = d } }

func WithRingSize(initial, ceiling int) Option {
	return func(o *Options) {
		o.RingInitialSize = initial
		o.RingCeiling = ceiling
	}
}

func buildOptions(opts ...Option) Options {
	var o Options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
