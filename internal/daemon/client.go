package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wethinkt/go-sentinel/internal/audit"
	"github.com/wethinkt/go-sentinel/internal/config"
)

// Client talks to a running daemon's control API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client for the configured control address.
func NewClient(cfg config.ServerConfig) *Client {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = config.DefaultPort
	}
	return &Client{
		BaseURL: fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Status fetches the daemon status.
func (c *Client) Status() (StatusResponse, error) {
	var out StatusResponse
	err := c.get("/v1/status", &out)
	return out, err
}

// Pause asks the daemon to stop acting on classifications.
func (c *Client) Pause() (string, error) {
	var out TransitionResponse
	err := c.post("/v1/pause", nil, &out)
	return out.State, err
}

// Resume returns the daemon to active monitoring.
func (c *Client) Resume() (string, error) {
	var out TransitionResponse
	err := c.post("/v1/resume", nil, &out)
	return out.State, err
}

// Rearm clears crash loop suspension for a session. It reports whether
// the session was suspended.
func (c *Client) Rearm(sessionKey string) (bool, error) {
	var out struct {
		WasSuspended bool `json:"was_suspended"`
	}
	err := c.post("/v1/rearm", RearmRequest{Session: sessionKey}, &out)
	return out.WasSuspended, err
}

// ForceNew asks the daemon to continue a session in a fresh session file.
func (c *Client) ForceNew(sessionKey string) (string, error) {
	var out struct {
		Outcome string `json:"outcome"`
	}
	err := c.post("/v1/sessions/force-new", ForceNewRequest{Session: sessionKey}, &out)
	return out.Outcome, err
}

// Audit fetches the last n audit entries.
func (c *Client) Audit(n int) ([]audit.Entry, error) {
	var out []audit.Entry
	err := c.get(fmt.Sprintf("/v1/audit?n=%d", n), &out)
	return out, err
}

func (c *Client) get(path string, out any) error {
	resp, err := c.HTTP.Get(c.BaseURL + path)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.BaseURL, err)
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func (c *Client) post(path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	resp, err := c.HTTP.Post(c.BaseURL+path, "application/json", &buf)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.BaseURL, err)
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Message)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
