// Package ratelimit implements the scheduling gate in front of the provider:
// a concurrency ceiling plus a minimum start-to-start spacing between calls.
// Calls that would violate either constraint block until eligible; the limiter
// never drops or reorders requests.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for limiter behavior.
var (
	otaLimiterWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ota_limiter_wait_seconds",
		Help:    "Time spent waiting for a provider call permit",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	otaLimiterInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ota_limiter_in_flight",
		Help: "Provider calls currently holding a permit",
	})
)

// Config holds limiter configuration. The provider tolerates low concurrency;
// observed safe spacing is ~2000ms when serialized and ~1000ms under moderate
// concurrency. Both are policy, not protocol constants.
type Config struct {
	// MaxConcurrency is the permit pool size. Must be >= 1.
	MaxConcurrency int

	// MinInterval is the minimum elapsed time between the start of
	// consecutive provider calls.
	MinInterval time.Duration
}

// DefaultConfig returns a serialized limiter with 2s spacing.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 1,
		MinInterval:    2 * time.Second,
	}
}

// Limiter gates provider calls. All provider traffic passes through one
// Limiter instance; its internal clock is the only cross-request shared state.
type Limiter struct {
	spacing *rate.Limiter
	sem     chan struct{}
	logger  zerolog.Logger
}

// New creates a Limiter from the given configuration.
func New(cfg Config, logger zerolog.Logger) (*Limiter, error) {
	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("max concurrency must be >= 1 (got %d)", cfg.MaxConcurrency)
	}
	if cfg.MinInterval < 0 {
		return nil, fmt.Errorf("min interval must not be negative (got %v)", cfg.MinInterval)
	}

	var spacing *rate.Limiter
	if cfg.MinInterval > 0 {
		spacing = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}

	return &Limiter{
		spacing: spacing,
		sem:     make(chan struct{}, cfg.MaxConcurrency),
		logger:  logger,
	}, nil
}

// Acquire blocks until a permit is available and the spacing floor has
// elapsed, then returns a release function. The release function must be
// called exactly once. Acquire returns early if ctx is cancelled.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	start := time.Now()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Permit held; now honor the spacing floor. On cancellation the permit
	// must be returned or the pool leaks.
	if l.spacing != nil {
		if err := l.spacing.Wait(ctx); err != nil {
			<-l.sem
			return nil, err
		}
	}

	waited := time.Since(start)
	otaLimiterWaitSeconds.Observe(waited.Seconds())
	otaLimiterInFlight.Inc()

	if waited > 50*time.Millisecond {
		l.logger.Debug().
			Dur("waited", waited).
			Msg("Limiter delayed provider call")
	}

	return func() {
		otaLimiterInFlight.Dec()
		<-l.sem
	}, nil
}
