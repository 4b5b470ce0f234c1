// Package inbox polls the admin backend for unread notifications.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the admin backend address.
	DefaultBaseURL = "http://localhost:3000"
	// DefaultTimeout bounds each request.
	DefaultTimeout = 30 * time.Second
)

// ErrNoToken is returned when no user is signed in.
var ErrNoToken = errors.New("no auth token")

// Notification is an inbox entry.
type Notification struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
}

type countResponse struct {
	Data struct {
		Total  int `json:"total"`
		Unread int `json:"unread"`
	} `json:"data"`
}

type listResponse struct {
	Data []struct {
		Notification Notification `json:"notification"`
		Dismissed    bool         `json:"dismissed"`
	} `json:"data"`
}

// Client talks to the notifications endpoints of the admin backend.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for baseURL. An empty baseURL selects
// DefaultBaseURL and a non-positive timeout selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// ClearToken forgets the bearer token.
func (c *Client) ClearToken() {
	c.SetToken("")
}

// HasToken reports whether a token is set.
func (c *Client) HasToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// Count returns the number of unread notifications.
func (c *Client) Count(ctx context.Context) (int, error) {
	var resp countResponse
	if err := c.get(ctx, "/notifications/count", &resp); err != nil {
		return 0, fmt.Errorf("fetch notification count: %w", err)
	}
	return resp.Data.Unread, nil
}

// List returns the notifications that have not been dismissed, newest first.
func (c *Client) List(ctx context.Context) ([]Notification, error) {
	var resp listResponse
	if err := c.get(ctx, "/notifications?include_dismissed=false", &resp); err != nil {
		return nil, fmt.Errorf("fetch notifications: %w", err)
	}
	out := make([]Notification, 0, len(resp.Data))
	for _, d := range resp.Data {
		out = append(out, d.Notification)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token == "" {
		return ErrNoToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
