package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultNtfyTimeout = 10 * time.Second

// NtfyClient publishes items to an ntfy server.
type NtfyClient struct {
	server     string
	topic      string
	httpClient *http.Client
}

type ntfyMessage struct {
	Topic   string   `json:"topic"`
	Title   string   `json:"title"`
	Message string   `json:"message"`
	Tags    []string `json:"tags,omitempty"`
	Icon    string   `json:"icon,omitempty"`
}

// NewNtfyClient creates a client for topic on server.
func NewNtfyClient(server, topic string) *NtfyClient {
	return &NtfyClient{
		server:     strings.TrimRight(server, "/"),
		topic:      topic,
		httpClient: &http.Client{Timeout: defaultNtfyTimeout},
	}
}

// Send publishes item as a JSON message.
func (c *NtfyClient) Send(ctx context.Context, item Item) error {
	body, err := json.Marshal(ntfyMessage{
		Topic:   c.topic,
		Title:   item.Title,
		Message: item.Body,
		Tags:    []string{"bell"},
		Icon:    item.Icon,
	})
	if err != nil {
		return fmt.Errorf("marshal ntfy message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+"/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create ntfy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ntfy returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// NtfyPermission grants delivery when the topic is configured and the
// server accepts the topic's credentials.
type NtfyPermission struct {
	server     string
	topic      string
	httpClient *http.Client
}

// NewNtfyPermission creates a permission probe for topic on server.
func NewNtfyPermission(server, topic string) *NtfyPermission {
	return &NtfyPermission{
		server:     strings.TrimRight(server, "/"),
		topic:      topic,
		httpClient: &http.Client{Timeout: defaultNtfyTimeout},
	}
}

// Granted reports whether the probe succeeds.
func (p *NtfyPermission) Granted(ctx context.Context) bool {
	ok, _ := p.Request(ctx)
	return ok
}

// Request probes GET {server}/{topic}/auth.
func (p *NtfyPermission) Request(ctx context.Context) (bool, error) {
	if p.topic == "" {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.server+"/"+p.topic+"/auth", nil)
	if err != nil {
		return false, fmt.Errorf("create ntfy auth request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("ntfy auth request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}
