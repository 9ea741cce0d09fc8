package gateway

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sergeknystautas/tmuxgate/internal/emitter"
	"github.com/sergeknystautas/tmuxgate/internal/registry"
)

// newSessionToken mints an opaque per-connection token, the same
// crypto/rand-then-base64 idiom the teacher used for its persisted session
// secret, applied here to a one-shot per-connection value instead.
func newSessionToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is broken;
		// the token is then empty, and the connection_id still identifies
		// the connection.
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// upgrader matches dashboard/websocket.go's permissive-origin-check shape;
// origin enforcement for the WebSocket path happens one layer up, in
// handleSessionWS, against the same allowlist withCORS uses.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn wraps a *websocket.Conn with a write mutex, grounded on
// dashboard/websocket.go's wsConn: gorilla/websocket only guarantees safety
// for one concurrent reader and one concurrent writer, and this server has
// two goroutines (the command reader and the update writer) that can both
// want to write (the writer sends state_update/error frames; the reader's
// goroutine never writes back directly, but the mutex keeps future
// additions safe by construction).
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

// connectionInfoFrame and keybindingsFrame are sent once, immediately after
// upgrade, matching spec.md §6's frame shapes.
type connectionInfoFrame struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
	SessionToken string `json:"session_token"`
	DefaultShell string `json:"default_shell"`
}

type keybindingsFrame struct {
	Type           string   `json:"type"`
	PrefixKey      string   `json:"prefix_key"`
	PrefixBindings []string `json:"prefix_bindings"`
	RootBindings   []string `json:"root_bindings"`
}

type stateUpdateFrame struct {
	Type  string `json:"type"`
	Full  bool   `json:"full"`
	State any    `json:"state,omitempty"`
	Delta any    `json:"delta,omitempty"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// scrollbackFrame replies to a fetch_scrollback_cells command with the
// captured lines for one pane.
type scrollbackFrame struct {
	Type   string   `json:"type"`
	PaneID string   `json:"pane_id"`
	Lines  []string `json:"lines,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// commandEnvelope is the inbound {"cmd":..., "args":...} shape a client
// sends to mutate a session. Cmd is either one of the commands
// Registry.Dispatch answers itself or a named command Rewrite accepts;
// there is no raw tmux-command passthrough.
type commandEnvelope struct {
	Cmd  string            `json:"cmd"`
	Args map[string]string `json:"args"`
}

// handleSessionWS serves GET /ws/session/{name}.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionName := strings.TrimPrefix(r.URL.Path, "/ws/session/")
	if sessionName == "" {
		http.NotFound(w, r)
		return
	}

	// Browsers do not apply CORS to WebSocket upgrades, so a non-empty
	// allowlist is checked here rather than left to withCORS's headers.
	if origin := r.Header.Get("Origin"); origin != "" && len(s.allowedOrigins) > 0 && !s.allowedOrigins[origin] {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] upgrade failed for session %s: %v", sessionName, err)
		return
	}
	wc := &wsConn{conn: conn}
	defer conn.Close()

	clientID := registry.NewClientID()
	cols, rows := queryInt(r, "cols", 80), queryInt(r, "rows", 24)

	ctx := r.Context()
	subID, updates, err := s.reg.Subscribe(ctx, sessionName, clientID, cols, rows)
	if err != nil {
		_ = wc.writeJSON(errorFrame{Type: "error", Message: err.Error()})
		return
	}
	defer s.reg.Unsubscribe(context.Background(), sessionName, clientID, subID)

	if err := wc.writeJSON(connectionInfoFrame{
		Type:         "connection_info",
		ConnectionID: clientID,
		SessionToken: newSessionToken(),
		DefaultShell: s.defaultShell,
	}); err != nil {
		return
	}
	if err := wc.writeJSON(keybindingsFrame{
		Type:           "keybindings",
		PrefixKey:      "C-b",
		PrefixBindings: []string{"c", "n", "p", "%", "\""},
		RootBindings:   []string{},
	}); err != nil {
		return
	}

	done := make(chan struct{})
	go s.writeUpdates(wc, updates, done)
	s.readCommands(conn, sessionName, clientID, done)
}

// writeUpdates drains the Registry's per-client update channel and forwards
// each as a state_update/error frame until the channel closes (Unsubscribe)
// or done fires (the read side observed a disconnect).
func (s *Server) writeUpdates(wc *wsConn, updates <-chan emitter.Message, done <-chan struct{}) {
	for {
		select {
		case msg, ok := <-updates:
			if !ok {
				return
			}
			if msg.Scrollback != nil {
				sf := scrollbackFrame{Type: "scrollback_cells", PaneID: msg.Scrollback.PaneID, Lines: msg.Scrollback.Lines, Error: msg.Scrollback.Err}
				if err := wc.writeJSON(sf); err != nil {
					return
				}
				continue
			}
			if msg.Error != "" {
				if err := wc.writeJSON(errorFrame{Type: "error", Message: msg.Error}); err != nil {
					return
				}
				continue
			}
			frame := stateUpdateFrame{Type: "state_update", Full: msg.Update.Full}
			if msg.Update.Full {
				frame.State = msg.Update.Snapshot
			} else {
				frame.Delta = msg.Update.Delta
			}
			if err := wc.writeJSON(frame); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readCommands reads command envelopes from the client until the
// connection closes, handing each to Registry.Dispatch.
func (s *Server) readCommands(conn *websocket.Conn, sessionName, clientID string, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env commandEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.reg.Dispatch(ctx, sessionName, clientID, env.Cmd, env.Args); err != nil {
			log.Printf("[gateway] dispatch %s failed for session %s: %v", env.Cmd, sessionName, err)
		}
		cancel()
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}
