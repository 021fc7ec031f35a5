// Package controlplane implements the HTTP/JSON client the agent uses to
// coordinate with its control plane: pushing inventory status, announcing
// and reporting on backups, learning where to upload them, and reporting
// restore outcomes.
package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config validates and constructs a Client.
type Config struct {
	BaseURL string
	AgentID string
	Timeout time.Duration
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("controlplane: BaseURL is required")
	}
	if c.AgentID == "" {
		return fmt.Errorf("controlplane: AgentID is required")
	}
	return nil
}

// Client talks to the control plane's agent-facing API.
type Client struct {
	cfg    Config
	client *http.Client
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// doJSON issues method against path with no request body, decoding the
// response body into out if it is non-empty.
func (c *Client) doJSON(ctx context.Context, method, path string, out any) error {
	return c.doJSONBody(ctx, method, path, nil, out)
}

// doJSONBody issues method against <base>/api<path>, marshaling body as the
// request payload (if non-nil) and unmarshaling the response into out (if
// non-nil and the response body is non-empty).
func (c *Client) doJSONBody(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("controlplane: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+"/api"+path, reqBody)
	if err != nil {
		return fmt.Errorf("controlplane: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("controlplane: request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("controlplane: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("controlplane: %s %s: unexpected status %d: %s", method, path, resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("controlplane: decode response: %w", err)
		}
	}
	return nil
}

// Status pushes the agent's current database inventory and learns what
// each database's backup/restore directives and storages are.
func (c *Client) Status(ctx context.Context, req StatusRequest) (*StatusResponse, error) {
	var resp StatusResponse
	path := fmt.Sprintf("/agent/%s/status", c.cfg.AgentID)
	if err := c.doJSONBody(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BackupCreate announces that a backup attempt has started.
func (c *Client) BackupCreate(ctx context.Context, req BackupCreateRequest) (*BackupCreateResponse, error) {
	var resp BackupCreateResponse
	path := fmt.Sprintf("/agent/%s/backup", c.cfg.AgentID)
	if err := c.doJSONBody(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BackupUpdate reports a backup's terminal state.
func (c *Client) BackupUpdate(ctx context.Context, req BackupUpdateRequest) error {
	path := fmt.Sprintf("/agent/%s/backup", c.cfg.AgentID)
	return c.doJSONBody(ctx, http.MethodPatch, path, req, nil)
}

// UploadInit asks the control plane for a backup-storage id to report
// against for one storage channel.
func (c *Client) UploadInit(ctx context.Context, req UploadInitRequest) (*UploadInitResponse, error) {
	path := fmt.Sprintf("/agent/%s/backup/upload/init", c.cfg.AgentID)
	var resp UploadInitResponse
	if err := c.doJSONBody(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadStatus reports one storage's upload outcome.
func (c *Client) UploadStatus(ctx context.Context, req UploadStatusRequest) error {
	path := fmt.Sprintf("/agent/%s/backup/upload/status", c.cfg.AgentID)
	return c.doJSONBody(ctx, http.MethodPatch, path, req, nil)
}

// RestoreResult reports the outcome of a restore order.
func (c *Client) RestoreResult(ctx context.Context, req RestoreResultRequest) error {
	path := fmt.Sprintf("/agent/%s/restore", c.cfg.AgentID)
	return c.doJSONBody(ctx, http.MethodPost, path, req, nil)
}
