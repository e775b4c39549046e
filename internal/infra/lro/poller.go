package lro

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/genmedia/server/internal/shared/errors"
)

// Config contains poller scheduling configuration.
type Config struct {
	// InitialDelay is the wait before the first status query.
	InitialDelay time.Duration
	// Multiplier grows the delay after each query.
	Multiplier float64
	// MaxDelay caps the per-poll delay.
	MaxDelay time.Duration
	// MaxAttempts bounds the total number of status queries.
	MaxAttempts int
}

// DefaultConfig returns the default polling schedule (~30 minutes worst case).
func DefaultConfig() Config {
	return Config{
		InitialDelay: 5 * time.Second,
		Multiplier:   1.5,
		MaxDelay:     60 * time.Second,
		MaxAttempts:  120,
	}
}

// Clock abstracts time for tests. Sleep must return early with the context
// error when ctx is cancelled.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PollFunc issues one status query for an operation. Semantics:
//   - done=true, err=nil: terminal success, result is valid
//   - done=true, err!=nil: terminal vendor failure
//   - done=false, err=nil: still running
//   - done=false, err!=nil: transient query failure, retried against the budget
type PollFunc[T any] func(ctx context.Context) (result T, done bool, err error)

// Poller drives operations through the Submitted -> Polling -> terminal
// state machine with exponential backoff between queries.
type Poller struct {
	cfg   Config
	clock Clock
	log   *zap.Logger
}

// NewPoller creates a poller. A nil logger disables logging.
func NewPoller(cfg Config, log *zap.Logger) *Poller {
	if cfg.InitialDelay <= 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{cfg: cfg, clock: realClock{}, log: log.Named("lro")}
}

// WithClock replaces the clock. Used by tests to simulate time.
func (p *Poller) WithClock(c Clock) *Poller {
	p.clock = c
	return p
}

// Drive polls op until it reaches a terminal state and returns the result.
//
// The delay before poll i is min(InitialDelay * Multiplier^(i-1), MaxDelay).
// Transient query failures are absorbed; only an exhausted attempt budget or
// an explicit terminal report from the vendor ends the operation abnormally.
// Cancelling ctx abandons the operation locally without a remote cancel call.
func Drive[T any](ctx context.Context, p *Poller, op *Operation, poll PollFunc[T]) (T, error) {
	var zero T

	delay := p.cfg.InitialDelay
	op.state = StatePolling

	for op.attempts < p.cfg.MaxAttempts {
		if err := p.clock.Sleep(ctx, delay); err != nil {
			// Local abandonment: the remote job keeps running.
			return zero, err
		}
		op.totalDelay += delay
		op.attempts++
		op.lastPollAt = time.Now()

		result, done, err := poll(ctx)
		switch {
		case done && err == nil:
			op.state = StateSucceeded
			p.log.Info("operation succeeded",
				zap.String("operation", op.Name),
				zap.Int("attempts", op.attempts))
			return result, nil

		case done:
			op.state = StateFailed
			p.log.Warn("operation failed",
				zap.String("operation", op.Name),
				zap.Int("attempts", op.attempts),
				zap.Error(err))
			return zero, err

		case err != nil:
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			p.log.Warn("poll query failed, retrying",
				zap.String("operation", op.Name),
				zap.Int("attempt", op.attempts),
				zap.Error(err))
		}

		delay = time.Duration(float64(delay) * p.cfg.Multiplier)
		if delay > p.cfg.MaxDelay {
			delay = p.cfg.MaxDelay
		}
	}

	op.state = StateTimedOut
	p.log.Warn("operation timed out",
		zap.String("operation", op.Name),
		zap.Int("attempts", op.attempts),
		zap.Duration("total_delay", op.totalDelay))
	return zero, &apperrors.TimeoutError{Attempts: op.attempts, Elapsed: op.totalDelay}
}
