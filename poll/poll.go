// Package poll implements the generic submit-then-poll state machine shared
// by every remote job kind: drive a status fetch on a fixed cadence until a
// terminal state is observed or the attempt budget runs out.
package poll

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/roboforge/types"
)

// State is the lifecycle state of a remote job.
type State string

const (
	StatePending    State = "PENDING"
	StateInProgress State = "IN_PROGRESS"
	StateSucceeded  State = "SUCCEEDED"
	StateFailed     State = "FAILED"
	StateCanceled   State = "CANCELED"
)

// Terminal reports whether no further polling is meaningful.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCanceled:
		return true
	}
	return false
}

// Status is one observation of a remote job. Result is only meaningful when
// State is StateSucceeded; Message carries the remote failure message when
// State is StateFailed or StateCanceled.
type Status[T any] struct {
	State    State
	Progress int // 0-100, meaningful on non-terminal observations
	Result   T
	Message  string
}

// FetchFunc performs a single status check against the remote service.
// Transient failures (transport errors, 5xx responses) must be returned as
// a *types.Error marked retryable; everything else aborts the loop.
type FetchFunc[T any] func(ctx context.Context) (Status[T], error)

// Config bounds one poll loop.
type Config struct {
	Kind        string        // job kind, used in logs and timeout errors
	Handle      string        // remote job identifier
	Interval    time.Duration // fixed delay between status checks
	MaxAttempts int           // total fetch budget, transient failures included
}

// Wait polls fetch until a terminal status or the attempt budget is
// exhausted. Each non-terminal observation invokes onProgress with the
// current percentage. A transient fetch error is logged and retried, and
// still consumes an attempt: a service that is unreachable for the whole
// window yields the same TIMEOUT outcome as one that never finishes.
//
// On StateSucceeded the embedded result is returned exactly once and no
// further fetches are performed. On StateFailed/StateCanceled the remote
// message is returned (or a synthesized one if the service sent none).
func Wait[T any](ctx context.Context, cfg Config, logger *zap.Logger, fetch FetchFunc[T], onProgress func(int)) (T, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		return zero, types.Errorf(types.ErrInternal, "poll %s: max attempts must be positive", cfg.Kind)
	}
	log := logger.With(
		zap.String("component", "poll"),
		zap.String("job_kind", cfg.Kind),
		zap.String("handle", cfg.Handle),
	)

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		status, err := fetch(ctx)
		switch {
		case err != nil && types.IsRetryable(err):
			log.Warn("transient poll failure, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", cfg.MaxAttempts),
				zap.Error(err),
			)
		case err != nil:
			return zero, err
		case status.State == StateSucceeded:
			log.Debug("job succeeded", zap.Int("attempts", attempt))
			return status.Result, nil
		case status.State == StateFailed || status.State == StateCanceled:
			msg := status.Message
			if msg == "" {
				msg = fmt.Sprintf("%s job %s reported %s", cfg.Kind, cfg.Handle, strings.ToLower(string(status.State)))
			}
			return zero, types.NewError(types.ErrTerminalFailure, msg)
		default:
			if onProgress != nil {
				onProgress(status.Progress)
			}
		}

		if attempt == cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(cfg.Interval):
		}
	}

	return zero, types.Errorf(types.ErrTimeout,
		"timed out waiting for %s job %s after %d attempts", cfg.Kind, cfg.Handle, cfg.MaxAttempts)
}
