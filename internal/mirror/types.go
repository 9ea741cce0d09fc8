// Package mirror implements the Aggregator: the authoritative in-memory
// mirror of one tmux session's panes, windows, and popup, plus the deltas
// computed between successive flushes.
package mirror

import (
	"time"

	"github.com/sergeknystautas/tmuxgate/internal/grid"
)

// Pane is one tmux pane's mirrored state.
type Pane struct {
	ID       string
	WindowID string
	Left     int
	Top      int
	Width    int
	Height   int
	Title    string
	Cells    [][]grid.Cell
	CursorRow int
	CursorCol int
	CursorVisible bool
	Dead     bool
	Paused   bool
}

// Window is one tmux window's mirrored state.
type Window struct {
	ID      string
	Name    string
	Layout  string
	PaneIDs []string
}

// Popup mirrors a tmux display-popup. Stock tmux emits no popup
// notification and nothing polls for one, so a snapshot's Popup is only set
// through Aggregator.SetPopup, which has no caller (see DESIGN.md Open
// Question #4).
type Popup struct {
	Visible bool
	Width   int
	Height  int
}

// StateSnapshot is a full point-in-time copy of a session's mirrored state.
type StateSnapshot struct {
	Seq            uint64
	SessionName    string
	Windows        map[string]*Window
	Panes          map[string]*Pane
	ActiveWindowID string
	ActivePaneID   string
	Popup          *Popup
	StatusLine     string
}

// StateDelta is the set of changes between StateSnapshot Seq-1 and Seq.
// Applying a StateDelta to snapshot Seq-1 must reproduce snapshot Seq
// exactly (the delta-faithfulness property, see aggregator_test.go).
type StateDelta struct {
	Seq              uint64
	ChangedWindows   map[string]*Window
	RemovedWindowIDs []string
	ChangedPanes     map[string]*Pane
	RemovedPaneIDs   []string
	ActiveWindowID   *string
	ActivePaneID     *string
	Popup            *Popup
	StatusLine       *string
}

// captureRequest is one pending one-shot query (capture-pane,
// display-message, etc.) issued outside the mutating control-mode path.
// Kept as a FIFO slice, matching controlmode/client.go's
// pendingQueue []chan CommandResponse idiom.
type captureRequest struct {
	seq      int
	paneID   string
	deadline time.Time
	resultCh chan CaptureResult
}

// CaptureResult is the outcome of a one-shot capture request: either the
// captured lines, or the error a matching %error/capture-mismatch produced.
// Exported so callers outside package mirror (the Monitor) can consume it.
type CaptureResult struct {
	Lines []string
	Err   error
}
