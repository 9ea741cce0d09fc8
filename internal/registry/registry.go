// Package registry is the Session Registry (C7): the process-wide map from
// session name to running Monitor, subscriber viewport tracking, and the
// single chokepoint command envelopes pass through before reaching a
// Monitor.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sergeknystautas/tmuxgate/internal/emitter"
	"github.com/sergeknystautas/tmuxgate/internal/monitor"
	"github.com/sergeknystautas/tmuxgate/internal/tmuxver"
)

// minViewportCols/Rows are the floor a session is created at; Subscribe
// requests with a viewport smaller than the floor do not shrink it.
const (
	minViewportCols = 80
	minViewportRows = 24
)

// sessionRecord tracks one live Monitor plus the viewports of its current
// subscribers, grounded on session/manager.go's
// trackers map[string]*SessionTracker pattern.
type sessionRecord struct {
	mon        *monitor.Monitor
	bus        *emitter.BusEmitter
	viewports  map[string]viewport // clientID -> reported viewport
	clientSubs map[string]uint64   // clientID -> bus subscription id
	lastResize viewport            // last dimensions actually sent to the Monitor
}

type viewport struct {
	cols, rows int
}

// Opener spawns a Monitor for a brand-new or re-attached session, wiring
// emit as the Monitor's emitter.Emitter. Supplied by the caller (daemon
// wiring) so Registry stays independent of how a Channel is actually
// opened.
type Opener func(ctx context.Context, sessionName string, cols, rows int, emit emitter.Emitter) (*monitor.Monitor, error)

// Registry is the process-wide session map.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionRecord
	open     Opener
	tmuxVer  *tmuxver.Version
}

// New creates a Registry. tmuxVer may be nil in tests that don't exercise
// the capability gate.
func New(open Opener, tmuxVer *tmuxver.Version) *Registry {
	return &Registry{
		sessions: make(map[string]*sessionRecord),
		open:     open,
		tmuxVer:  tmuxVer,
	}
}

// Subscribe attaches a client to a session, spawning the Monitor on first
// use. Returns the client's subscription id and the channel to read
// emitter.Message from. The session's effective viewport is the minimum
// cols/rows over every currently-subscribed client, floored at the session
// minimum (min-viewport-over-clients policy).
func (r *Registry) Subscribe(ctx context.Context, sessionName, clientID string, cols, rows int) (uint64, <-chan emitter.Message, error) {
	if r.tmuxVer != nil && !r.tmuxVer.SupportsPauseAfter() {
		return 0, nil, tmuxver.ErrUnsupported
	}

	r.mu.Lock()

	rec, ok := r.sessions[sessionName]
	if !ok {
		vpCols, vpRows := clampViewport(cols, rows)
		bus := emitter.NewBusEmitter()
		mon, err := r.open(ctx, sessionName, vpCols, vpRows, bus)
		if err != nil {
			r.mu.Unlock()
			return 0, nil, fmt.Errorf("registry: failed to open session %s: %w", sessionName, err)
		}
		rec = &sessionRecord{
			mon:        mon,
			bus:        bus,
			viewports:  make(map[string]viewport),
			clientSubs: make(map[string]uint64),
			lastResize: viewport{cols: vpCols, rows: vpRows},
		}
		r.sessions[sessionName] = rec
		go mon.Run()
	}

	rec.viewports[clientID] = viewport{cols: cols, rows: rows}
	id, ch := rec.bus.Subscribe()
	rec.clientSubs[clientID] = id
	resize, newCols, newRows := r.noteViewportChangeLocked(rec)
	r.mu.Unlock()

	if resize {
		r.dispatchResize(rec, newCols, newRows)
	}
	return id, ch, nil
}

// Unsubscribe detaches a client. If it was the last subscriber, the
// session's Monitor is shut down (spawn-on-first-use's mirror image).
func (r *Registry) Unsubscribe(ctx context.Context, sessionName, clientID string, subID uint64) {
	r.mu.Lock()
	rec, ok := r.sessions[sessionName]
	if !ok {
		r.mu.Unlock()
		return
	}
	rec.bus.Unsubscribe(subID)
	delete(rec.viewports, clientID)
	delete(rec.clientSubs, clientID)
	last := len(rec.viewports) == 0
	var resize bool
	var newCols, newRows int
	if last {
		delete(r.sessions, sessionName)
	} else {
		resize, newCols, newRows = r.noteViewportChangeLocked(rec)
	}
	r.mu.Unlock()

	if last {
		_ = rec.mon.Shutdown(ctx)
		return
	}
	if resize {
		r.dispatchResize(rec, newCols, newRows)
	}
}

// Dispatch routes a command envelope to the named session. get_initial_state,
// set_client_size, and fetch_scrollback_cells are intercepted here rather
// than reaching Rewrite: none of the three produce tmux command text
// (set_client_size mutates registry-side viewport bookkeeping,
// get_initial_state and fetch_scrollback_cells reply to one client
// directly rather than mutating session state). Every other command is
// rewritten and submitted to the session's Monitor; this is the one place
// in the system allowed to build compound command strings (see
// rewrite.go), and the Monitor/Channel never special-case command text.
func (r *Registry) Dispatch(ctx context.Context, sessionName, clientID, cmd string, args map[string]string) error {
	r.mu.RLock()
	rec, ok := r.sessions[sessionName]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("registry: %w: %s", monitor.ErrSessionMissing, sessionName)
	}

	switch cmd {
	case "get_initial_state":
		return r.dispatchInitialState(rec, clientID)
	case "set_client_size":
		return r.dispatchSetClientSize(sessionName, clientID, args)
	case "fetch_scrollback_cells":
		return r.dispatchFetchScrollback(rec, clientID, args)
	}

	lines, err := Rewrite(cmd, args)
	if err != nil {
		return err
	}
	return rec.mon.Submit(ctx, lines)
}

// dispatchInitialState sends the session's current full snapshot to exactly
// the requesting client, rather than waiting for the next scheduled flush
// to reach every subscriber on the shared bus.
func (r *Registry) dispatchInitialState(rec *sessionRecord, clientID string) error {
	r.mu.RLock()
	subID, known := rec.clientSubs[clientID]
	r.mu.RUnlock()
	if !known {
		return fmt.Errorf("registry: get_initial_state: unknown client %s", clientID)
	}
	snap := rec.mon.Snapshot()
	rec.bus.SendTo(subID, emitter.Message{Update: emitter.StateUpdate{Full: true, Snapshot: snap}})
	return nil
}

// dispatchSetClientSize parses set_client_size's cols/rows args and folds
// them into the usual viewport-recompute-and-resize path.
func (r *Registry) dispatchSetClientSize(sessionName, clientID string, args map[string]string) error {
	cols, err := strconv.Atoi(args["cols"])
	if err != nil {
		return fmt.Errorf("registry: set_client_size requires numeric cols: %w", err)
	}
	rows, err := strconv.Atoi(args["rows"])
	if err != nil {
		return fmt.Errorf("registry: set_client_size requires numeric rows: %w", err)
	}
	r.SetClientViewport(sessionName, clientID, cols, rows)
	return nil
}

// dispatchFetchScrollback issues a capture-pane query via the Monitor and
// delivers the result to exactly the requesting client, once it completes,
// without blocking the caller's command loop.
func (r *Registry) dispatchFetchScrollback(rec *sessionRecord, clientID string, args map[string]string) error {
	paneID, ok := args["pane_id"]
	if !ok {
		return fmt.Errorf("registry: fetch_scrollback_cells requires pane_id")
	}
	r.mu.RLock()
	subID, known := rec.clientSubs[clientID]
	r.mu.RUnlock()
	if !known {
		return fmt.Errorf("registry: fetch_scrollback_cells: unknown client %s", clientID)
	}

	go func() {
		capCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		lines, err := rec.mon.Capture(capCtx, paneID, 5*time.Second)
		result := &emitter.ScrollbackResult{PaneID: paneID, Lines: lines}
		if err != nil {
			result.Err = err.Error()
		}
		rec.bus.SendTo(subID, emitter.Message{Scrollback: result})
	}()
	return nil
}

// SetClientViewport updates one client's reported viewport without
// resubscribing, for clients (e.g. the gateway's POST
// /api/sessions/{name}/viewport) that can't carry it over the initial
// handshake.
func (r *Registry) SetClientViewport(sessionName, clientID string, cols, rows int) {
	r.mu.Lock()
	rec, ok := r.sessions[sessionName]
	if !ok {
		r.mu.Unlock()
		return
	}
	rec.viewports[clientID] = viewport{cols: cols, rows: rows}
	resize, newCols, newRows := r.noteViewportChangeLocked(rec)
	r.mu.Unlock()

	if resize {
		r.dispatchResize(rec, newCols, newRows)
	}
}

// noteViewportChangeLocked recomputes rec's effective viewport as the
// min-over-clients of every currently-subscribed client's reported size
// (spec.md §4.7: the multiplexer can only show a view as large as its
// smallest attached client), floored at the session minimum. Callers must
// hold r.mu. It returns whether the effective viewport changed since the
// last dispatched resize, updating rec.lastResize immediately so concurrent
// callers don't double-dispatch the same resize.
func (r *Registry) noteViewportChangeLocked(rec *sessionRecord) (changed bool, cols, rows int) {
	cols, rows = minViewportOverClients(rec.viewports)
	if cols == rec.lastResize.cols && rows == rec.lastResize.rows {
		return false, cols, rows
	}
	rec.lastResize = viewport{cols: cols, rows: rows}
	return true, cols, rows
}

// dispatchResize submits the Resize command asynchronously so Subscribe/
// Unsubscribe/SetClientViewport never block their caller on the Monitor's
// command queue.
func (r *Registry) dispatchResize(rec *sessionRecord, cols, rows int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rec.mon.Resize(ctx, cols, rows); err != nil {
			fmt.Printf("[registry] resize dispatch failed: %v\n", err)
		}
	}()
}

// minViewportOverClients returns the smallest reported cols/rows across
// every client, floored at the session minimum. An empty viewports map
// (e.g. between session creation and the first Subscribe completing)
// returns the floor.
func minViewportOverClients(viewports map[string]viewport) (int, int) {
	cols, rows := minViewportCols, minViewportRows
	first := true
	for _, vp := range viewports {
		c, r := clampViewport(vp.cols, vp.rows)
		if first {
			cols, rows = c, r
			first = false
			continue
		}
		if c < cols {
			cols = c
		}
		if r < rows {
			rows = r
		}
	}
	return cols, rows
}

// NewClientID mints an opaque subscriber identity, grounded on the
// teacher's google/uuid usage for client/session ids.
func NewClientID() string {
	return uuid.NewString()
}

func clampViewport(cols, rows int) (int, int) {
	if cols < minViewportCols {
		cols = minViewportCols
	}
	if rows < minViewportRows {
		rows = minViewportRows
	}
	return cols, rows
}
