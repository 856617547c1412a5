package meshy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/roboforge/types"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:                "test-key",
		BaseURL:               srv.URL,
		MeshPollInterval:      time.Millisecond,
		RigPollInterval:       time.Millisecond,
		AnimationPollInterval: time.Millisecond,
		MaxPollAttempts:       10,
		SubmitRate:            rate.Inf,
	}, zap.NewNop())
}

func TestCreateImageTo3DTask(t *testing.T) {
	var gotAuth string
	var gotBody createImageTo3DRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/image-to-3d", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(createTaskResponse{Result: "task-abc"})
	}))

	id, err := client.CreateImageTo3DTask(context.Background(), "cGl4ZWxz")
	require.NoError(t, err)
	assert.Equal(t, "task-abc", id)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "data:image/png;base64,cGl4ZWxz", gotBody.ImageURL)
	assert.True(t, gotBody.EnablePBR)
}

func TestCreateImageTo3DTask_DataURIPassedThrough(t *testing.T) {
	var gotBody createImageTo3DRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(createTaskResponse{Result: "task-abc"})
	}))

	_, err := client.CreateImageTo3DTask(context.Background(), "data:image/jpeg;base64,cGl4ZWxz")
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,cGl4ZWxz", gotBody.ImageURL)
}

func TestSubmit_ServiceErrorIsNotRetried(t *testing.T) {
	posts := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
		http.Error(w, `{"message":"image too small"}`, http.StatusBadRequest)
	}))

	_, err := client.CreateImageTo3DTask(context.Background(), "cGl4ZWxz")
	require.Error(t, err)
	assert.Equal(t, types.ErrSubmitFailed, types.GetCode(err))
	assert.Contains(t, err.Error(), "image too small")
	assert.Equal(t, 1, posts)
}

// Mesh job lifecycle: IN_PROGRESS(40) -> IN_PROGRESS(90) -> SUCCEEDED with a
// GLB URL must resolve in exactly three status fetches with two progress
// notifications.
func TestWaitForModelURL_Lifecycle(t *testing.T) {
	fetches := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/image-to-3d/task-abc", r.URL.Path)
		fetches++
		switch fetches {
		case 1:
			json.NewEncoder(w).Encode(meshStatusResponse{Status: "IN_PROGRESS", Progress: 40})
		case 2:
			json.NewEncoder(w).Encode(meshStatusResponse{Status: "IN_PROGRESS", Progress: 90})
		default:
			json.NewEncoder(w).Encode(meshStatusResponse{
				Status:    "SUCCEEDED",
				Progress:  100,
				ModelURLs: &modelURLs{GLB: "https://x/y.glb"},
			})
		}
	}))

	var seen []int
	url, err := client.WaitForModelURL(context.Background(), "task-abc", func(p int) {
		seen = append(seen, p)
	})
	require.NoError(t, err)
	assert.Equal(t, "https://x/y.glb", url)
	assert.Equal(t, 3, fetches)
	assert.Equal(t, []int{40, 90}, seen)
}

func TestWaitForModelURL_SucceededWithoutGLBFailsHard(t *testing.T) {
	fetches := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		json.NewEncoder(w).Encode(meshStatusResponse{Status: "SUCCEEDED"})
	}))

	_, err := client.WaitForModelURL(context.Background(), "task-abc", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrDecodeFailed, types.GetCode(err))
	assert.Equal(t, 1, fetches, "malformed terminal output must not be re-polled")
}

func TestWaitForModelURL_TransientServerErrorsAreRetried(t *testing.T) {
	fetches := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		if fetches < 3 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(meshStatusResponse{
			Status:    "SUCCEEDED",
			ModelURLs: &modelURLs{GLB: "https://x/y.glb"},
		})
	}))

	url, err := client.WaitForModelURL(context.Background(), "task-abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://x/y.glb", url)
	assert.Equal(t, 3, fetches)
}

func TestWaitForModelURL_UnreachableServiceTimesOut(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))

	_, err := client.WaitForModelURL(context.Background(), "task-abc", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrTimeout, types.GetCode(err))
}

func TestWaitForRigging_FailureMessageSurfacesVerbatim(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rigging/rig-1", r.URL.Path)
		json.NewEncoder(w).Encode(meshStatusResponse{
			Status:    "FAILED",
			TaskError: &taskError{Message: "input mesh invalid"},
		})
	}))

	err := client.WaitForRigging(context.Background(), "rig-1", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrTerminalFailure, types.GetCode(err))
	assert.Contains(t, err.Error(), "input mesh invalid")
}

func TestCreateAnimationTask(t *testing.T) {
	var gotBody createAnimationRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/animations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(createTaskResponse{Result: "anim-1"})
	}))

	id, err := client.CreateAnimationTask(context.Background(), "rig-1", 92)
	require.NoError(t, err)
	assert.Equal(t, "anim-1", id)
	assert.Equal(t, "rig-1", gotBody.RigTaskID)
	assert.Equal(t, 92, gotBody.ActionID)
}

func TestWaitForAnimation_Lifecycle(t *testing.T) {
	fetches := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/animations/anim-1", r.URL.Path)
		fetches++
		if fetches == 1 {
			// The animation endpoint may omit progress entirely.
			json.NewEncoder(w).Encode(animationStatusResponse{Status: "PENDING"})
			return
		}
		json.NewEncoder(w).Encode(animationStatusResponse{
			Status: "SUCCEEDED",
			Result: &animationResult{AnimationGLBURL: "https://x/idle.glb"},
		})
	}))

	var seen []int
	url, err := client.WaitForAnimation(context.Background(), "anim-1", func(p int) {
		seen = append(seen, p)
	})
	require.NoError(t, err)
	assert.Equal(t, "https://x/idle.glb", url)
	assert.Equal(t, []int{0}, seen)
}

func TestWaitForAnimation_MissingResultURLFailsHard(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(animationStatusResponse{Status: "SUCCEEDED"})
	}))

	_, err := client.WaitForAnimation(context.Background(), "anim-1", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrDecodeFailed, types.GetCode(err))
	assert.Contains(t, err.Error(), "animation_glb_url is missing")
}

func TestDownloadAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"), "asset URLs are pre-signed")
		w.Write([]byte("glTF-binary-bytes"))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{APIKey: "test-key"}, zap.NewNop())
	data, err := client.DownloadAsset(context.Background(), srv.URL+"/m.glb")
	require.NoError(t, err)
	assert.Equal(t, []byte("glTF-binary-bytes"), data)
}

func TestDownloadAsset_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{APIKey: "test-key"}, zap.NewNop())
	_, err := client.DownloadAsset(context.Background(), srv.URL+"/gone.glb")
	require.Error(t, err)
	assert.Equal(t, types.ErrFetchFailed, types.GetCode(err))
}
