package resilience

import (
	"context"

	"golang.org/x/time/rate"
)

// LimiterConfig configures a token-bucket rate limiter.
type LimiterConfig struct {
	// RequestsPerSecond is the sustained rate. 0 disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	// Burst is the bucket size. Defaults to 1.
	Burst int `yaml:"burst" mapstructure:"burst"`
}

// Limiter blocks callers to keep a request rate.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter. A zero rate yields a limiter that never blocks.
func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)}
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed now without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
