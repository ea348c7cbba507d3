package retry

import (
	"context"
	"fmt"
	"time"
)

// Config holds retry configuration
type Config struct {
	MaxRetries     int           // Maximum number of retry attempts
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	Multiplier     float64       // Backoff multiplier (exponential)
}

// DefaultConfig returns sensible defaults for retries
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// Do executes fn with exponential backoff retries
func Do(ctx context.Context, config Config, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt == config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * config.Multiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", config.MaxRetries, lastErr)
}

// Backoff produces an exponential backoff sequence for open-ended restart
// loops, where the caller decides when to stop or reset.
type Backoff struct {
	config  Config
	current time.Duration
}

// NewBackoff creates a backoff sequence from config
func NewBackoff(config Config) *Backoff {
	return &Backoff{config: config, current: config.InitialBackoff}
}

// Next returns the current backoff duration and advances the sequence
func (b *Backoff) Next() time.Duration {
	d := b.current
	b.current = time.Duration(float64(b.current) * b.config.Multiplier)
	if b.current > b.config.MaxBackoff {
		b.current = b.config.MaxBackoff
	}
	return d
}

// Reset restarts the sequence from the initial backoff. Call after a period
// of stable operation so an old crash streak does not penalize new failures.
func (b *Backoff) Reset() {
	b.current = b.config.InitialBackoff
}
