package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/letscooee/cooee-go/internal/device"
)

// SDK identification sent with every request.
const (
	SDKVersion     = "0.4.1"
	SDKVersionCode = "401"
)

// Credentials is the short-lived token pair obtained from device
// validation.
type Credentials struct {
	AppID       string
	AccessToken string
	UserID      string
}

// Client talks to the Cooee backend. It is safe for use from multiple
// goroutines; credentials are swapped atomically when authentication
// succeeds.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	creds Credentials
}

// NewClient creates a client against baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetCredentials installs the token pair attached to subsequent calls.
func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
}

// Credentials returns the currently installed token pair.
func (c *Client) Credentials() Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

// DeviceAuthRequest is the body of POST /v1/device/validate.
type DeviceAuthRequest struct {
	AppID string            `json:"appID"`
	UUID  string            `json:"uuid"`
	Props device.Properties `json:"props"`
}

// DeviceAuthResponse is the backend's answer to device validation. Any
// server-pushed config rides along in Config.
type DeviceAuthResponse struct {
	UserID   string         `json:"userID"`
	SDKToken string         `json:"sdkToken"`
	Config   map[string]any `json:"config,omitempty"`
}

// ValidateDevice authenticates the device and returns the issued token
// pair. Unlike the other calls it runs before credentials exist, so no
// token header is attached.
func (c *Client) ValidateDevice(ctx context.Context, req DeviceAuthRequest) (*DeviceAuthResponse, error) {
	var resp DeviceAuthResponse
	if err := c.post(ctx, "/v1/device/validate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TrackEvent submits one event.
func (c *Client) TrackEvent(ctx context.Context, event *Event) error {
	return c.post(ctx, "/v1/event/track", event, nil)
}

// ProfileUpdateRequest is the body of POST /v1/user/update.
type ProfileUpdateRequest struct {
	UserData       map[string]any `json:"userData,omitempty"`
	UserProperties map[string]any `json:"userProperties,omitempty"`
}

// UpdateProfile pushes a profile change.
func (c *Client) UpdateProfile(ctx context.Context, req ProfileUpdateRequest) error {
	return c.post(ctx, "/v1/user/update", req, nil)
}

// ConcludeRequest is the body of POST /v1/session/conclude.
type ConcludeRequest struct {
	SessionID string    `json:"sessionID"`
	Occurred  time.Time `json:"occurred"`
	Duration  int64     `json:"duration"` // seconds
}

// ConcludeSession ends a session server-side.
func (c *Client) ConcludeSession(ctx context.Context, req ConcludeRequest) error {
	return c.post(ctx, "/v1/session/conclude", req, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("sdk-version", SDKVersion)
	req.Header.Set("sdk-version-code", SDKVersionCode)

	creds := c.Credentials()
	if creds.AccessToken != "" {
		req.Header.Set("x-sdk-token", creds.AccessToken)
	}
	if creds.UserID != "" {
		req.Header.Set("user-id", creds.UserID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
