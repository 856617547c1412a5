package meshy

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/roboforge/types"
)

// DownloadAsset fetches a terminal asset URL as raw bytes. Asset URLs are
// pre-signed by the service; no auth header is attached.
func (c *Client) DownloadAsset(ctx context.Context, url string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, types.Errorf(types.ErrFetchFailed, "asset download failed for %s", url).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.Errorf(types.ErrFetchFailed, "asset download for %s returned status %d",
			url, resp.StatusCode).WithHTTPStatus(resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.Errorf(types.ErrFetchFailed, "failed to read asset body for %s", url).WithCause(err)
	}

	c.logger.Debug("asset downloaded", zap.String("url", url), zap.Int("bytes", len(data)))
	return data, nil
}
