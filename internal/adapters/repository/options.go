package repository

import "time"

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	metricsUpdateInterval time.Duration
	profile               Profile
}

func defaultOptions() options {
	return options{
		metricsUpdateInterval: 5 * time.Second,
		profile:               ProfileLedger,
	}
}

// WithMetricsUpdateInterval sets the interval for background record-count metrics.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.metricsUpdateInterval = interval
		}
	}
}

// WithProfile selects the SQLite durability profile. The memory store ignores it.
func WithProfile(p Profile) Option {
	return func(o *options) {
		o.profile = p
	}
}
