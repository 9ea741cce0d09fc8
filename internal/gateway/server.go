// Package gateway is the northbound HTTP/WebSocket transport named in
// spec.md §1's "HTTP/SSE transport" non-goal — it exists only so the core
// packages are runnable and testable end to end, grounded on
// dashboard/server.go's Server struct and handler wiring. It gets lighter
// testing than the core (contract/shape only, per SPEC_FULL.md §4.9).
package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sergeknystautas/tmuxgate/internal/registry"
)

// Server is the gateway's HTTP server, wrapping a Registry.
type Server struct {
	reg            *registry.Registry
	mux            *http.ServeMux
	allowedOrigins map[string]bool
	defaultShell   string
}

// Config configures the gateway's own behavior (not the session tunables,
// which live in internal/config and are threaded through to the Registry's
// Monitors separately).
type Config struct {
	AllowedOrigins []string
	DefaultShell   string
}

// New builds a Server backed by reg, wiring routes the same way
// dashboard/server.go's constructor does.
func New(reg *registry.Registry, cfg Config) *Server {
	s := &Server{
		reg:            reg,
		mux:            http.NewServeMux(),
		allowedOrigins: make(map[string]bool, len(cfg.AllowedOrigins)),
		defaultShell:   cfg.DefaultShell,
	}
	for _, o := range cfg.AllowedOrigins {
		s.allowedOrigins[o] = true
	}
	if s.defaultShell == "" {
		s.defaultShell = "/bin/sh"
	}

	s.mux.HandleFunc("/ws/session/", s.withCORS(s.handleSessionWS))
	s.mux.HandleFunc("/api/sessions/", s.withCORS(s.handleSessionAPI))
	s.mux.HandleFunc("/api/healthz", s.withCORS(s.handleHealthz))
	return s
}

// ServeHTTP satisfies http.Handler so a Server can be passed straight to
// http.Server.Handler or httptest.NewServer.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// withCORS applies the teacher's origin-allowlist pattern: an empty
// allowlist permits any origin (local/dev use), a non-empty one is
// enforced strictly.
func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if len(s.allowedOrigins) == 0 || s.allowedOrigins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSessionAPI serves POST /api/sessions/{name}/viewport.
func (s *Server) handleSessionAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[1] != "viewport" {
		http.NotFound(w, r)
		return
	}
	sessionName := parts[0]

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		ClientID string `json:"client_id"`
		Cols     int    `json:"cols"`
		Rows     int    `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
		return
	}
	if body.ClientID == "" {
		http.Error(w, "client_id is required", http.StatusBadRequest)
		return
	}

	s.reg.SetClientViewport(sessionName, body.ClientID, body.Cols, body.Rows)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
