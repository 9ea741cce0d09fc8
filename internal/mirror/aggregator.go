package mirror

import (
	"sync"
	"time"

	"github.com/sergeknystautas/tmuxgate/internal/controlmode"
	"github.com/sergeknystautas/tmuxgate/internal/grid"
)

// Aggregator holds the authoritative mirror for one session: panes,
// windows, the active pane/window, the popup, and the status line. It never
// calls back into the Monitor; the Monitor pulls state via Flush on its own
// schedule (spec.md §9's "don't use callbacks" guidance).
type Aggregator struct {
	mu sync.Mutex

	sessionName    string
	seq            uint64
	windows        map[string]*Window
	panes          map[string]*Pane
	grids          map[string]*grid.Grid
	activeWindowID string
	activePaneID   string
	popup          *Popup
	statusLine     string
	dirty          bool

	prev *StateSnapshot

	// settlingUntil is the zero value when not settling. The Monitor Loop
	// polls Settling() on its settle timer tick rather than the Aggregator
	// pushing a notification when settling ends.
	settlingUntil time.Time

	captureQueue []*captureRequest
	nextCaptureSeq int
}

// NewAggregator creates an empty mirror for sessionName.
func NewAggregator(sessionName string) *Aggregator {
	return &Aggregator{
		sessionName: sessionName,
		windows:     make(map[string]*Window),
		panes:       make(map[string]*Pane),
		grids:       make(map[string]*grid.Grid),
	}
}

// Ingest applies one decoded control-mode event to the mirror. It never
// returns an error: unrecognized or inapplicable events are no-ops, per
// spec.md's "unlinked window close is a no-op" guidance generalized to the
// whole Ingest surface.
func (a *Aggregator) Ingest(ev controlmode.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev.Kind {
	case controlmode.KindOutput, controlmode.KindExtendedOutput:
		a.ingestOutput(ev)
	case controlmode.KindLayoutChange:
		a.ingestLayoutChange(ev)
	case controlmode.KindWindowAdd:
		a.ensureWindow(ev.WindowID)
		a.dirty = true
	case controlmode.KindWindowRenamed:
		if w, ok := a.windows[ev.WindowID]; ok {
			w.Name = ev.WindowName
			a.dirty = true
		}
	case controlmode.KindWindowClose:
		a.removeWindow(ev.WindowID)
		a.dirty = true
	case controlmode.KindUnlinkedWindowClose:
		// No-op: an unlinked window isn't part of this session's mirror.
	case controlmode.KindSessionRenamed:
		a.sessionName = ev.SessionName
		a.dirty = true
	case controlmode.KindSessionWindowChanged:
		a.activeWindowID = ev.WindowID
		a.dirty = true
	case controlmode.KindWindowPaneChanged:
		a.activeWindowID = ev.WindowID
		// Active-pane preservation: a transient notification with no pane
		// id must not clear the previously known active pane.
		if ev.PaneID != "" {
			a.activePaneID = ev.PaneID
		}
		a.dirty = true
	case controlmode.KindPause:
		p, ok := a.panes[ev.PausedPaneID]
		if !ok {
			p = &Pane{ID: ev.PausedPaneID}
			a.panes[ev.PausedPaneID] = p
		}
		if !p.Paused {
			p.Paused = true
			a.dirty = true
		}
	case controlmode.KindContinue:
		if p, ok := a.panes[ev.PausedPaneID]; ok && p.Paused {
			p.Paused = false
			a.dirty = true
		}
	}
}

func (a *Aggregator) ingestOutput(ev controlmode.Event) {
	p, ok := a.panes[ev.PaneID]
	if !ok {
		p = &Pane{ID: ev.PaneID}
		a.panes[ev.PaneID] = p
	}
	g, ok := a.grids[ev.PaneID]
	if !ok {
		g = grid.New(p.Width, p.Height)
		if p.Width == 0 || p.Height == 0 {
			g = grid.New(80, 24)
		}
		a.grids[ev.PaneID] = g
	}
	g.Write(ev.Data)
	p.Cells = g.Cells()
	p.CursorRow, p.CursorCol, p.CursorVisible = g.Cursor()
	a.dirty = true
}

func (a *Aggregator) ingestLayoutChange(ev controlmode.Event) {
	w := a.ensureWindow(ev.WindowID)
	w.Layout = ev.Layout
	rects := parseLayout(ev.Layout)
	w.PaneIDs = w.PaneIDs[:0]
	for _, r := range rects {
		p, ok := a.panes[r.paneID]
		if !ok {
			p = &Pane{ID: r.paneID}
			a.panes[r.paneID] = p
		}
		p.WindowID = ev.WindowID
		p.Left, p.Top, p.Width, p.Height = r.left, r.top, r.width, r.height
		if g, ok := a.grids[r.paneID]; ok {
			gc, gr := g.Size()
			if gc != r.width || gr != r.height {
				g.Resize(r.width, r.height)
			}
		}
		w.PaneIDs = append(w.PaneIDs, r.paneID)
	}
	a.dirty = true
}

func (a *Aggregator) ensureWindow(id string) *Window {
	w, ok := a.windows[id]
	if !ok {
		w = &Window{ID: id}
		a.windows[id] = w
	}
	return w
}

func (a *Aggregator) removeWindow(id string) {
	w, ok := a.windows[id]
	if !ok {
		return
	}
	for _, paneID := range w.PaneIDs {
		delete(a.panes, paneID)
		delete(a.grids, paneID)
	}
	delete(a.windows, id)
	if a.activeWindowID == id {
		a.activeWindowID = ""
		// Active-pane preservation: if the removed window wasn't the
		// active one, activePaneID is left untouched.
	}
}

// SetPopup replaces the mirrored popup state. Nothing in the Monitor calls
// it; no popup notification or poll feeds it.
func (a *Aggregator) SetPopup(p *Popup) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.popup = p
	a.dirty = true
}

// SetStatusLine updates the mirrored status line text.
func (a *Aggregator) SetStatusLine(line string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.statusLine != line {
		a.statusLine = line
		a.dirty = true
	}
}

// MarkSettling starts (or extends) a settling window of duration d.
func (a *Aggregator) MarkSettling(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settlingUntil = time.Now().Add(d)
}

// Settling reports whether the mirror is still within a settling window.
func (a *Aggregator) Settling() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.settlingUntil.IsZero() && time.Now().Before(a.settlingUntil)
}

// PausedPanes returns the ids of panes currently flagged paused, for the
// Monitor's catch-up-ack bookkeeping.
func (a *Aggregator) PausedPanes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var ids []string
	for id, p := range a.panes {
		if p.Paused {
			ids = append(ids, id)
		}
	}
	return ids
}

// Snapshot returns the current full mirror state without advancing the
// flush sequence or touching dirty/prev, for one-shot "get initial state"
// requests that must not disturb the regular flush cadence.
func (a *Aggregator) Snapshot() *StateSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Dirty reports whether any Ingest call has changed state since the last
// Flush.
func (a *Aggregator) Dirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dirty
}

// Flush produces the current full snapshot and, if a previous snapshot
// exists, the delta from it. The first Flush of a session always returns a
// nil delta (there is nothing to diff against) and the caller must send a
// full state_update.
func (a *Aggregator) Flush() (*StateSnapshot, *StateDelta) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	snap := a.snapshotLocked()

	var delta *StateDelta
	if a.prev != nil {
		delta = diff(a.prev, snap)
	}
	a.prev = snap
	a.dirty = false
	return snap, delta
}

func (a *Aggregator) snapshotLocked() *StateSnapshot {
	windows := make(map[string]*Window, len(a.windows))
	for id, w := range a.windows {
		cp := *w
		cp.PaneIDs = append([]string(nil), w.PaneIDs...)
		windows[id] = &cp
	}
	panes := make(map[string]*Pane, len(a.panes))
	for id, p := range a.panes {
		cp := *p
		cp.Cells = p.Cells // cell matrices are replaced wholesale on each output, never mutated in place
		panes[id] = &cp
	}
	var popup *Popup
	if a.popup != nil {
		cp := *a.popup
		popup = &cp
	}
	return &StateSnapshot{
		Seq:            a.seq,
		SessionName:    a.sessionName,
		Windows:        windows,
		Panes:          panes,
		ActiveWindowID: a.activeWindowID,
		ActivePaneID:   a.activePaneID,
		Popup:          popup,
		StatusLine:     a.statusLine,
	}
}

// RequestCapture enqueues a one-shot capture-pane (or similar) query and
// returns the sequence number the caller must send to tmux as the command's
// correlation id, plus a channel that receives the result once ApplyCapture
// is called with a matching response.
func (a *Aggregator) RequestCapture(paneID string, timeout time.Duration) (seq int, result <-chan CaptureResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextCaptureSeq++
	req := &captureRequest{
		seq:      a.nextCaptureSeq,
		paneID:   paneID,
		deadline: time.Now().Add(timeout),
		resultCh: make(chan CaptureResult, 1),
	}
	a.captureQueue = append(a.captureQueue, req)
	return req.seq, req.resultCh
}

// ApplyCapture resolves a pending capture request by its tmux-assigned
// sequence number. If the response is not for the head of the queue, this
// is a capture mismatch (spec.md §9): the head is failed with
// ErrCaptureMismatch and the queue is retried against the next entry, since
// an out-of-order response usually means the head's own response was lost.
func (a *Aggregator) ApplyCapture(seq int, lines []string, cmdErr string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for len(a.captureQueue) > 0 {
		head := a.captureQueue[0]
		a.captureQueue = a.captureQueue[1:]
		if head.seq != seq {
			head.resultCh <- CaptureResult{Err: ErrCaptureMismatch}
			close(head.resultCh)
			continue
		}
		if cmdErr != "" {
			head.resultCh <- CaptureResult{Err: &CommandFailed{Seq: seq, Message: cmdErr}}
		} else {
			head.resultCh <- CaptureResult{Lines: lines}
		}
		close(head.resultCh)
		return
	}
}
