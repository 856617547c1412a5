package meshy

import (
	"context"

	"github.com/BaSui01/roboforge/poll"
	"github.com/BaSui01/roboforge/types"
)

type createRiggingRequest struct {
	InputTaskID string `json:"input_task_id"`
}

// CreateRiggingTask submits a rigging job for a finished mesh task.
func (c *Client) CreateRiggingTask(ctx context.Context, meshTaskID string) (string, error) {
	return c.submit(ctx, "/rigging", createRiggingRequest{InputTaskID: meshTaskID})
}

func (c *Client) fetchRigStatus(ctx context.Context, taskID string) (poll.Status[struct{}], error) {
	var resp meshStatusResponse
	if err := c.getStatus(ctx, "/rigging/"+taskID, &resp); err != nil {
		return poll.Status[struct{}]{}, err
	}

	state, ok := parseState(resp.Status)
	if !ok {
		return poll.Status[struct{}]{}, types.Errorf(types.ErrDecodeFailed, "unknown rigging task status %q", resp.Status)
	}

	switch state {
	case poll.StateFailed, poll.StateCanceled:
		return poll.Status[struct{}]{State: state, Message: errorMessage(resp.TaskError)}, nil
	default:
		return poll.Status[struct{}]{State: state, Progress: resp.Progress}, nil
	}
}

// WaitForRigging polls the rigging job until it finishes. Success carries
// no payload; downstream animation jobs reference the rig task id itself.
func (c *Client) WaitForRigging(ctx context.Context, taskID string, onProgress func(int)) error {
	cfg := poll.Config{
		Kind:        "rigging",
		Handle:      taskID,
		Interval:    c.cfg.RigPollInterval,
		MaxAttempts: c.cfg.MaxPollAttempts,
	}
	_, err := poll.Wait(ctx, cfg, c.logger, func(ctx context.Context) (poll.Status[struct{}], error) {
		return c.fetchRigStatus(ctx, taskID)
	}, onProgress)
	return err
}
