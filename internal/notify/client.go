// Package notify reports high-scoring discoveries to the API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/twin-miner/internal/errors"
	"github.com/twin-miner/internal/models"
)

// DiscoveryPath is appended to the API base URL
const DiscoveryPath = "/mining/discovery"

// Client posts discoveries to the API
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		endpoint: baseURL + DiscoveryPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Endpoint returns the full discovery URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Send posts one discovery. Any non-2xx response is an error.
func (c *Client) Send(ctx context.Context, d *models.Discovery) error {
	body, err := json.Marshal(d)
	if err != nil {
		return apperrors.NewNotifyError(d.TargetID, 0, fmt.Errorf("encode discovery: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewNotifyError(d.TargetID, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", d.EventID.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewNotifyError(d.TargetID, 0, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.NewNotifyError(d.TargetID, resp.StatusCode, nil)
	}
	return nil
}
