package provider

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	otaRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ota_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	otaRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ota_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	otaRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ota_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryPolicy decides whether and how a failed provider call is repeated.
// The intended upstream retry behavior is unspecified, so the default is
// NoRetry: failures surface immediately as provider errors.
type RetryPolicy interface {
	// Execute runs fn, repeating it according to the policy. classify maps a
	// returned error to its class; non-retriable classes end execution early.
	Execute(ctx context.Context, fn func() error, classify func(error) ErrorClass) error
}

// NoRetry runs the call exactly once.
type NoRetry struct{}

// Execute implements RetryPolicy.
func (NoRetry) Execute(_ context.Context, fn func() error, _ func(error) ErrorClass) error {
	return fn()
}

// Backoff retries retriable failures with exponential backoff and jitter.
type Backoff struct {
	// MaxAttempts is the maximum number of attempts (including the initial call).
	MaxAttempts int

	// InitialBackoff is the first backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration.
	MaxBackoff time.Duration

	// Multiplier is the exponential growth factor.
	Multiplier float64
}

// DefaultBackoff returns a conservative backoff policy for callers that opt
// in to retries.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// Execute implements RetryPolicy. It respects context cancellation and adds
// jitter to prevent thundering herd.
func (b Backoff) Execute(ctx context.Context, fn func() error, classify func(error) ErrorClass) error {
	var lastErr error
	backoff := b.InitialBackoff

	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		class := classify(err)

		if !shouldRetry(class) {
			return lastErr
		}

		if attempt >= b.MaxAttempts {
			break
		}

		otaRetriesTotal.WithLabelValues(string(class)).Inc()

		// ±20% jitter
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		otaRetryBackoffSeconds.WithLabelValues(string(class)).Observe(jitter.Seconds())

		log.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			log.Warn().
				Str("error_class", string(class)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * b.Multiplier)
		if backoff > b.MaxBackoff {
			backoff = b.MaxBackoff
		}
	}

	class := classify(lastErr)
	otaRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
	log.Warn().
		Str("error_class", string(class)).
		Int("max_attempts", b.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, b.MaxAttempts, lastErr)
}
