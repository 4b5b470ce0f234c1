package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNtfyClient_Send(t *testing.T) {
	tests := []struct {
		name        string
		item        Item
		status      int
		body        string
		wantErr     bool
		errContains string
	}{
		{
			name:   "successful send",
			item:   Item{Title: "Session locked", Body: "Locked after 30 minutes", Icon: "https://example.com/lock.png"},
			status: http.StatusOK,
			body:   `{"id":"test123"}`,
		},
		{
			name:        "server error",
			item:        Item{Title: "Test", Body: "Test"},
			status:      http.StatusInternalServerError,
			body:        "Internal Server Error",
			wantErr:     true,
			errContains: "ntfy returned status 500: Internal Server Error",
		},
		{
			name:        "rate limit error",
			item:        Item{Title: "Test", Body: "Test"},
			status:      http.StatusTooManyRequests,
			body:        "Rate limited",
			wantErr:     true,
			errContains: "ntfy returned status 429",
		},
		{
			name:        "authentication error",
			item:        Item{Title: "Test", Body: "Test"},
			status:      http.StatusUnauthorized,
			body:        "Unauthorized",
			wantErr:     true,
			errContains: "ntfy returned status 401",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payloads := make(chan map[string]any, 1)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var payload map[string]any
				body, _ := io.ReadAll(r.Body)
				assert.NoError(t, json.Unmarshal(body, &payload))
				payloads <- payload

				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := NewNtfyClient(server.URL+"/", "test-topic")
			err := client.Send(context.Background(), tt.item)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			payload := <-payloads
			assert.Equal(t, "test-topic", payload["topic"])
			assert.Equal(t, tt.item.Title, payload["title"])
			assert.Equal(t, tt.item.Body, payload["message"])
			assert.Equal(t, tt.item.Icon, payload["icon"])
			assert.Equal(t, []any{"bell"}, payload["tags"])
		})
	}
}

func TestNtfyClient_SendNetworkError(t *testing.T) {
	client := NewNtfyClient("http://localhost:0", "test-topic")
	assert.Error(t, client.Send(context.Background(), Item{Title: "Test"}))
}

func TestNtfyClient_SendInvalidURL(t *testing.T) {
	client := NewNtfyClient("://invalid-url", "test-topic")
	assert.Error(t, client.Send(context.Background(), Item{Title: "Test"}))
}

func TestNtfyClient_SendHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewNtfyClient(server.URL, "t").Send(ctx, Item{Title: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNtfyPermission(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/open/auth":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer server.Close()

	tests := []struct {
		name  string
		topic string
		want  bool
	}{
		{name: "allowed topic", topic: "open", want: true},
		{name: "forbidden topic", topic: "closed", want: false},
		{name: "no topic", topic: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewNtfyPermission(server.URL, tt.topic)
			assert.Equal(t, tt.want, p.Granted(context.Background()))

			ok, err := p.Request(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestNtfyPermission_Unreachable(t *testing.T) {
	p := NewNtfyPermission("http://localhost:0", "topic")
	ok, err := p.Request(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, p.Granted(context.Background()))
}

func TestImplementations(t *testing.T) {
	var _ Sender = (*NtfyClient)(nil)
	var _ Sender = (*StdoutSender)(nil)
	var _ Sender = (*GatedSender)(nil)
	var _ Permission = (*NtfyPermission)(nil)
}
