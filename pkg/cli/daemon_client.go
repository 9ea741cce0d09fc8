// Package cli is the gateway's HTTP+WebSocket client, used by
// cmd/tmuxgate's attach/sessions subcommands to talk to a running daemon.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client talks to a tmuxgate daemon's gateway over HTTP and WebSocket.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewDaemonClient creates a new daemon client for baseURL (e.g.
// "http://localhost:7337").
func NewDaemonClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetDefaultURL returns the default daemon URL.
func GetDefaultURL() string {
	return fmt.Sprintf("http://localhost:%d", 7337)
}

// IsRunning reports whether the daemon answers GET /api/healthz.
func (c *Client) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// SetViewport reports a client's terminal size to the daemon (POST
// /api/sessions/{name}/viewport), for reconnect flows that can't carry it
// over the WebSocket handshake query string.
func (c *Client) SetViewport(ctx context.Context, sessionName, clientID string, cols, rows int) error {
	payload, err := json.Marshal(map[string]any{
		"client_id": clientID,
		"cols":      cols,
		"rows":      rows,
	})
	if err != nil {
		return fmt.Errorf("cli: failed to encode viewport: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/sessions/"+url.PathEscape(sessionName)+"/viewport", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("cli: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cli: failed to connect to daemon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cli: daemon returned status %d", resp.StatusCode)
	}
	return nil
}

// Session is a WebSocket connection to one tmux session's gateway
// endpoint, streaming Frame values and accepting Command submissions.
type Session struct {
	conn  *websocket.Conn
	Name  string
	Cols  int
	Rows  int
}

// Frame is one decoded northbound message (connection_info, keybindings,
// state_update, or error). State and Delta are kept as raw JSON; callers
// unmarshal them into mirror types themselves to avoid this package
// importing internal/mirror.
type Frame struct {
	Type         string          `json:"type"`
	ConnectionID string          `json:"connection_id,omitempty"`
	SessionToken string          `json:"session_token,omitempty"`
	DefaultShell string          `json:"default_shell,omitempty"`
	Full         bool            `json:"full,omitempty"`
	State        json.RawMessage `json:"state,omitempty"`
	Delta        json.RawMessage `json:"delta,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// Command is the inbound envelope a Session writes back to the gateway.
type Command struct {
	Cmd  string            `json:"cmd"`
	Args map[string]string `json:"args,omitempty"`
}

// Attach opens a WebSocket to GET /ws/session/{name} and returns a Session
// ready to stream frames.
func (c *Client) Attach(ctx context.Context, sessionName string, cols, rows int) (*Session, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("cli: invalid base URL %q: %w", c.baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws/session/" + url.PathEscape(sessionName)
	q := u.Query()
	q.Set("cols", fmt.Sprintf("%d", cols))
	q.Set("rows", fmt.Sprintf("%d", rows))
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("cli: failed to dial %s: %w", u.String(), err)
	}
	return &Session{conn: conn, Name: sessionName, Cols: cols, Rows: rows}, nil
}

// ReadFrame blocks for the next frame from the gateway.
func (s *Session) ReadFrame() (Frame, error) {
	var f Frame
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return f, fmt.Errorf("cli: read failed: %w", err)
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("cli: failed to decode frame: %w", err)
	}
	return f, nil
}

// SendCommand writes a command envelope to the gateway.
func (s *Session) SendCommand(cmd Command) error {
	if err := s.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("cli: failed to send command: %w", err)
	}
	return nil
}

// Close closes the underlying WebSocket connection.
func (s *Session) Close() error {
	return s.conn.Close()
}
