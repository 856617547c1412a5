package meshy

import (
	"context"
	"strings"

	"github.com/BaSui01/roboforge/poll"
	"github.com/BaSui01/roboforge/types"
)

type createImageTo3DRequest struct {
	ImageURL  string `json:"image_url"`
	EnablePBR bool   `json:"enable_pbr"`
}

type modelURLs struct {
	GLB string `json:"glb"`
	FBX string `json:"fbx"`
	OBJ string `json:"obj"`
}

type meshStatusResponse struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Progress  int        `json:"progress"`
	ModelURLs *modelURLs `json:"model_urls"`
	TaskError *taskError `json:"task_error"`
}

// CreateImageTo3DTask submits an image-to-3D job with PBR enabled. The
// image may be raw base64, a data URI, or an http(s) URL.
func (c *Client) CreateImageTo3DTask(ctx context.Context, image string) (string, error) {
	imageURL := image
	if !strings.HasPrefix(image, "data:") && !strings.HasPrefix(image, "http") {
		imageURL = "data:image/png;base64," + image
	}
	return c.submit(ctx, "/image-to-3d", createImageTo3DRequest{ImageURL: imageURL, EnablePBR: true})
}

func (c *Client) fetchMeshStatus(ctx context.Context, taskID string) (poll.Status[string], error) {
	var resp meshStatusResponse
	if err := c.getStatus(ctx, "/image-to-3d/"+taskID, &resp); err != nil {
		return poll.Status[string]{}, err
	}

	state, ok := parseState(resp.Status)
	if !ok {
		return poll.Status[string]{}, types.Errorf(types.ErrDecodeFailed, "unknown mesh task status %q", resp.Status)
	}

	switch state {
	case poll.StateSucceeded:
		if resp.ModelURLs == nil || resp.ModelURLs.GLB == "" {
			return poll.Status[string]{}, types.NewError(types.ErrDecodeFailed,
				"mesh task succeeded but no GLB URL found in response")
		}
		return poll.Status[string]{State: state, Result: resp.ModelURLs.GLB}, nil
	case poll.StateFailed, poll.StateCanceled:
		return poll.Status[string]{State: state, Message: errorMessage(resp.TaskError)}, nil
	default:
		return poll.Status[string]{State: state, Progress: resp.Progress}, nil
	}
}

// WaitForModelURL polls the mesh job until it finishes and returns the GLB
// download URL of the generated model.
func (c *Client) WaitForModelURL(ctx context.Context, taskID string, onProgress func(int)) (string, error) {
	cfg := poll.Config{
		Kind:        "mesh",
		Handle:      taskID,
		Interval:    c.cfg.MeshPollInterval,
		MaxAttempts: c.cfg.MaxPollAttempts,
	}
	return poll.Wait(ctx, cfg, c.logger, func(ctx context.Context) (poll.Status[string], error) {
		return c.fetchMeshStatus(ctx, taskID)
	}, onProgress)
}

func errorMessage(te *taskError) string {
	if te == nil {
		return ""
	}
	return te.Message
}
