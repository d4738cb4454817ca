package dynamics

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetrySettings controls exponential backoff for transient request failures.
type RetrySettings struct {
	MaxAttempts      int     `yaml:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier"`
	// JitterFraction adds ±fraction of the computed delay. Zero disables jitter.
	JitterFraction float64 `yaml:"jitter_fraction"`
}

func (s RetrySettings) withDefaults() RetrySettings {
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 5
	}
	if s.InitialBackoffMs <= 0 {
		s.InitialBackoffMs = 1000
	}
	if s.MaxBackoffMs <= 0 {
		s.MaxBackoffMs = 30000
	}
	if s.Multiplier <= 0 {
		s.Multiplier = 2
	}
	if s.JitterFraction < 0 {
		s.JitterFraction = 0
	}
	return s
}

// backoff returns the delay before retry number attempt (0 based).
func (s RetrySettings) backoff(attempt int) time.Duration {
	delay := float64(s.InitialBackoffMs) * float64(time.Millisecond) * math.Pow(s.Multiplier, float64(attempt))
	if ceiling := float64(s.MaxBackoffMs) * float64(time.Millisecond); delay > ceiling {
		delay = ceiling
	}
	if s.JitterFraction > 0 {
		jitter := delay * s.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// retryVal runs fn until it succeeds, returns a non-transient error, the
// attempts run out or ctx is done.
func retryVal[T any](ctx context.Context, settings RetrySettings, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	settings = settings.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < settings.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) {
			return zero, lastErr
		}
		if attempt >= settings.MaxAttempts-1 {
			break
		}

		zap.L().Warn("retrying request",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(settings.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}
