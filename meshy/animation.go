package meshy

import (
	"context"

	"github.com/BaSui01/roboforge/poll"
	"github.com/BaSui01/roboforge/types"
)

type createAnimationRequest struct {
	RigTaskID string `json:"rig_task_id"`
	ActionID  int    `json:"action_id"`
}

type animationResult struct {
	AnimationGLBURL string `json:"animation_glb_url"`
}

type animationStatusResponse struct {
	Status    string           `json:"status"`
	Progress  *int             `json:"progress"`
	Result    *animationResult `json:"result"`
	TaskError *taskError       `json:"task_error"`
}

// CreateAnimationTask submits an animation job for a rigged model. The
// action id selects the motion from the remote animation library.
func (c *Client) CreateAnimationTask(ctx context.Context, rigTaskID string, actionID int) (string, error) {
	return c.submit(ctx, "/animations", createAnimationRequest{RigTaskID: rigTaskID, ActionID: actionID})
}

func (c *Client) fetchAnimationStatus(ctx context.Context, taskID string) (poll.Status[string], error) {
	var resp animationStatusResponse
	if err := c.getStatus(ctx, "/animations/"+taskID, &resp); err != nil {
		return poll.Status[string]{}, err
	}

	state, ok := parseState(resp.Status)
	if !ok {
		return poll.Status[string]{}, types.Errorf(types.ErrDecodeFailed, "unknown animation task status %q", resp.Status)
	}

	switch state {
	case poll.StateSucceeded:
		if resp.Result == nil || resp.Result.AnimationGLBURL == "" {
			return poll.Status[string]{}, types.NewError(types.ErrDecodeFailed,
				"animation task succeeded but animation_glb_url is missing")
		}
		return poll.Status[string]{State: state, Result: resp.Result.AnimationGLBURL}, nil
	case poll.StateFailed, poll.StateCanceled:
		return poll.Status[string]{State: state, Message: errorMessage(resp.TaskError)}, nil
	default:
		progress := 0
		if resp.Progress != nil {
			progress = *resp.Progress
		}
		return poll.Status[string]{State: state, Progress: progress}, nil
	}
}

// WaitForAnimation polls the animation job until it finishes and returns
// the animated-GLB download URL.
func (c *Client) WaitForAnimation(ctx context.Context, taskID string, onProgress func(int)) (string, error) {
	cfg := poll.Config{
		Kind:        "animation",
		Handle:      taskID,
		Interval:    c.cfg.AnimationPollInterval,
		MaxAttempts: c.cfg.MaxPollAttempts,
	}
	return poll.Wait(ctx, cfg, c.logger, func(ctx context.Context) (poll.Status[string], error) {
		return c.fetchAnimationStatus(ctx, taskID)
	}, onProgress)
}
