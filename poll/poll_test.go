package poll

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/roboforge/types"
)

func testConfig(maxAttempts int) Config {
	return Config{
		Kind:        "mesh",
		Handle:      "task-123",
		Interval:    time.Millisecond,
		MaxAttempts: maxAttempts,
	}
}

// scripted returns a FetchFunc that replays the given observations in order
// and counts how many fetches were performed.
func scripted(calls *int, seq ...func() (Status[string], error)) FetchFunc[string] {
	return func(ctx context.Context) (Status[string], error) {
		step := seq[*calls] // panics when the script is exhausted, failing the test
		*calls++
		return step()
	}
}

func succeeded(result string) func() (Status[string], error) {
	return func() (Status[string], error) {
		return Status[string]{State: StateSucceeded, Result: result}, nil
	}
}

func inProgress(progress int) func() (Status[string], error) {
	return func() (Status[string], error) {
		return Status[string]{State: StateInProgress, Progress: progress}, nil
	}
}

func transient() func() (Status[string], error) {
	return func() (Status[string], error) {
		return Status[string]{}, types.NewError(types.ErrTransientFetch, "connection reset").WithRetryable(true)
	}
}

func TestWait_SucceededReturnsResultOnce(t *testing.T) {
	calls := 0
	fetch := scripted(&calls, succeeded("https://x/y.glb"))

	result, err := Wait(context.Background(), testConfig(120), zap.NewNop(), fetch, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://x/y.glb", result)
	assert.Equal(t, 1, calls)
}

func TestWait_ProgressNotifications(t *testing.T) {
	// PENDING(0) is the submit-time state; the loop then observes 40%, 90%
	// and the terminal success in exactly three fetches.
	calls := 0
	fetch := scripted(&calls, inProgress(40), inProgress(90), succeeded("https://x/y.glb"))

	var seen []int
	result, err := Wait(context.Background(), testConfig(120), zap.NewNop(), fetch, func(p int) {
		seen = append(seen, p)
	})
	require.NoError(t, err)
	assert.Equal(t, "https://x/y.glb", result)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{40, 90}, seen)
}

func TestWait_TransientErrorsAreRetried(t *testing.T) {
	calls := 0
	fetch := scripted(&calls, transient(), transient(), succeeded("done"))

	result, err := Wait(context.Background(), testConfig(120), zap.NewNop(), fetch, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 3, calls)
}

func TestWait_TimeoutPerformsExactlyMaxAttemptsFetches(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) (Status[string], error) {
		calls++
		return Status[string]{}, types.NewError(types.ErrTransientFetch, "unreachable").WithRetryable(true)
	}

	_, err := Wait(context.Background(), testConfig(5), zap.NewNop(), fetch, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrTimeout, types.GetCode(err))
	assert.Contains(t, err.Error(), "mesh")
	assert.Contains(t, err.Error(), "task-123")
	assert.Equal(t, 5, calls)
}

func TestWait_NeverFinishingJobTimesOut(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) (Status[string], error) {
		calls++
		return Status[string]{State: StateInProgress, Progress: 10}, nil
	}

	_, err := Wait(context.Background(), testConfig(4), zap.NewNop(), fetch, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrTimeout, types.GetCode(err))
	assert.Equal(t, 4, calls)
}

func TestWait_FailedIsTerminal(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) (Status[string], error) {
		calls++
		return Status[string]{State: StateFailed, Message: "input mesh invalid"}, nil
	}

	_, err := Wait(context.Background(), testConfig(120), zap.NewNop(), fetch, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrTerminalFailure, types.GetCode(err))
	assert.Contains(t, err.Error(), "input mesh invalid")
	assert.Equal(t, 1, calls, "no further polling after a terminal status")
}

func TestWait_CanceledWithoutMessageSynthesizesOne(t *testing.T) {
	fetch := func(ctx context.Context) (Status[string], error) {
		return Status[string]{State: StateCanceled}, nil
	}

	_, err := Wait(context.Background(), testConfig(120), zap.NewNop(), fetch, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrTerminalFailure, types.GetCode(err))
	assert.Contains(t, err.Error(), "mesh job task-123 reported canceled")
}

func TestWait_DecodeErrorIsNotRetried(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) (Status[string], error) {
		calls++
		return Status[string]{}, types.NewError(types.ErrDecodeFailed, "succeeded but glb url missing")
	}

	_, err := Wait(context.Background(), testConfig(120), zap.NewNop(), fetch, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrDecodeFailed, types.GetCode(err))
	assert.Equal(t, 1, calls, "malformed terminal output must not be retried")
}

func TestWait_ContextCancellationAbortsBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fetch := func(ctx context.Context) (Status[string], error) {
		calls++
		cancel()
		return Status[string]{State: StateInProgress}, nil
	}

	cfg := testConfig(120)
	cfg.Interval = time.Hour // the cancel must fire inside the sleep select
	_, err := Wait(ctx, cfg, zap.NewNop(), fetch, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
