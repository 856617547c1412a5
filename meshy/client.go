// Package meshy implements the 3D asset service stage adapters: image-to-3D
// mesh generation, rigging, and skeletal animation. Every job kind follows
// the same submit-then-poll lifecycle driven by the poll package.
package meshy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/roboforge/internal/tlsutil"
	"github.com/BaSui01/roboforge/poll"
	"github.com/BaSui01/roboforge/types"
)

// Config configures the Meshy client. The poll cadences mirror the relative
// weight of the jobs: mesh generation is checked every 5s, rigging and
// animation every 10s, all with the same 120-attempt budget (roughly 10 and
// 20 minutes of total wait respectively).
type Config struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`

	MeshPollInterval      time.Duration `yaml:"mesh_poll_interval"`
	RigPollInterval       time.Duration `yaml:"rig_poll_interval"`
	AnimationPollInterval time.Duration `yaml:"animation_poll_interval"`
	MaxPollAttempts       int           `yaml:"max_poll_attempts"`

	// SubmitRate caps job creations per second. Submissions are never
	// retried, so pacing them is the only protection against rate limits.
	SubmitRate rate.Limit `yaml:"submit_rate"`
}

// Client calls the Meshy API.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a new Meshy client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.meshy.ai/openapi/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MeshPollInterval == 0 {
		cfg.MeshPollInterval = 5 * time.Second
	}
	if cfg.RigPollInterval == 0 {
		cfg.RigPollInterval = 10 * time.Second
	}
	if cfg.AnimationPollInterval == 0 {
		cfg.AnimationPollInterval = 10 * time.Second
	}
	if cfg.MaxPollAttempts == 0 {
		cfg.MaxPollAttempts = 120
	}
	if cfg.SubmitRate == 0 {
		cfg.SubmitRate = rate.Limit(1)
	}
	return &Client{
		cfg:     cfg,
		client:  tlsutil.SecureHTTPClient(cfg.Timeout),
		limiter: rate.NewLimiter(cfg.SubmitRate, 1),
		logger:  logger.With(zap.String("component", "meshy")),
	}
}

type createTaskResponse struct {
	Result string `json:"result"`
}

type taskError struct {
	Message string `json:"message"`
}

// submit posts a job creation request and returns the remote task id.
// Creation is not assumed idempotent, so failures surface immediately
// instead of being retried.
func (c *Client) submit(ctx context.Context, path string, body any) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", types.Errorf(types.ErrSubmitFailed, "meshy request to %s failed", path).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return "", types.Errorf(types.ErrSubmitFailed, "meshy error on %s: status=%d body=%s",
			path, resp.StatusCode, string(errBody)).WithHTTPStatus(resp.StatusCode)
	}

	var cResp createTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", types.Errorf(types.ErrDecodeFailed, "failed to decode meshy response for %s", path).WithCause(err)
	}
	if cResp.Result == "" {
		return "", types.Errorf(types.ErrDecodeFailed, "meshy response for %s carried no task id", path)
	}

	c.logger.Info("task created", zap.String("path", path), zap.String("task_id", cResp.Result))
	return cResp.Result, nil
}

// getStatus performs one status check, classifying failures for the poll
// loop: transport errors and 5xx responses are retryable, a 4xx is not, and
// an unparseable body is treated as a service hiccup worth another attempt.
func (c *Client) getStatus(ctx context.Context, path string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.endpoint(path), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return types.Errorf(types.ErrTransientFetch, "meshy status request to %s failed", path).
			WithRetryable(true).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		errBody, _ := io.ReadAll(resp.Body)
		return types.Errorf(types.ErrTransientFetch, "meshy status error on %s: status=%d body=%s",
			path, resp.StatusCode, string(errBody)).WithRetryable(true).WithHTTPStatus(resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return types.Errorf(types.ErrFetchFailed, "meshy status error on %s: status=%d body=%s",
			path, resp.StatusCode, string(errBody)).WithHTTPStatus(resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.Errorf(types.ErrTransientFetch, "garbled meshy status body on %s", path).
			WithRetryable(true).WithCause(err)
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

// parseState maps the remote status string onto the shared poll state.
func parseState(status string) (poll.State, bool) {
	switch status {
	case "PENDING":
		return poll.StatePending, true
	case "IN_PROGRESS":
		return poll.StateInProgress, true
	case "SUCCEEDED":
		return poll.StateSucceeded, true
	case "FAILED":
		return poll.StateFailed, true
	case "CANCELED":
		return poll.StateCanceled, true
	}
	return "", false
}
