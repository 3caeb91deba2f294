// Package retry выполняет операцию с ограниченным числом попыток.
package retry

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Backoff задаёт рост задержки между попытками.
type Backoff int

const (
	// Linear: delay = InitialDelay * attempt.
	Linear Backoff = iota
	// Exponential: delay = InitialDelay * BackoffFactor^(attempt-1).
	Exponential
)

// Config конфигурация повторов.
type Config struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Backoff       Backoff
	BackoffFactor float64
}

// DefaultConfig — три попытки с линейной задержкой; используется для
// конфликтов optimistic locking.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     time.Second,
		Backoff:      Linear,
	}
}

// Delay возвращает паузу после неудачной попытки attempt (с единицы).
func (c Config) Delay(attempt int) time.Duration {
	if c.InitialDelay <= 0 || attempt < 1 {
		return 0
	}

	delay := c.InitialDelay
	switch c.Backoff {
	case Exponential:
		factor := c.BackoffFactor
		if factor < 1 {
			factor = 2
		}
		for i := 1; i < attempt; i++ {
			delay = time.Duration(float64(delay) * factor)
			if c.MaxDelay > 0 && delay >= c.MaxDelay {
				return c.MaxDelay
			}
		}
	default:
		delay = c.InitialDelay * time.Duration(attempt)
	}

	if c.MaxDelay > 0 && delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

// Do вызывает fn, пока она не вернёт nil, shouldRetry не откажет или не
// кончатся попытки. Возвращается последняя ошибка fn.
func Do(ctx context.Context, cfg Config, logger *log.Entry, shouldRetry func(error) bool, fn func(ctx context.Context, attempt int) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = log.New().WithField("component", "retry")
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				logger.WithField("attempt", attempt).Debug("operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Delay(attempt)
		logger.WithError(err).WithFields(log.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Debug("operation failed, retrying")

		if delay <= 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
