package remoteregistry

import (
	"log/slog"
	"time"
)

// Option configures a Registry.
type Option func(*Registry)

// WithTTL sets how long a fetched template is served from cache. Default is 5 minutes.
// TTL <= 0 keeps entries until evicted.
func WithTTL(d time.Duration) Option {
	return func(r *Registry) {
		r.ttl = d
	}
}

// WithLogger sets the logger used to report fetches.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}
