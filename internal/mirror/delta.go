package mirror

import "reflect"

// diff computes the StateDelta that, applied to prev, reproduces cur. Pane
// and window comparisons are plain struct/slice equality checks — the
// mirror's maps are small and typed, so there is no need for a generic
// diffing dependency (see DESIGN.md's standard-library justification).
func diff(prev, cur *StateSnapshot) *StateDelta {
	d := &StateDelta{
		Seq:            cur.Seq,
		ChangedWindows: make(map[string]*Window),
		ChangedPanes:   make(map[string]*Pane),
	}

	for id, w := range cur.Windows {
		if old, ok := prev.Windows[id]; !ok || !sameWindow(old, w) {
			d.ChangedWindows[id] = w
		}
	}
	for id := range prev.Windows {
		if _, ok := cur.Windows[id]; !ok {
			d.RemovedWindowIDs = append(d.RemovedWindowIDs, id)
		}
	}

	for id, p := range cur.Panes {
		if old, ok := prev.Panes[id]; !ok || !samePane(old, p) {
			d.ChangedPanes[id] = p
		}
	}
	for id := range prev.Panes {
		if _, ok := cur.Panes[id]; !ok {
			d.RemovedPaneIDs = append(d.RemovedPaneIDs, id)
		}
	}

	if prev.ActiveWindowID != cur.ActiveWindowID {
		v := cur.ActiveWindowID
		d.ActiveWindowID = &v
	}
	if prev.ActivePaneID != cur.ActivePaneID {
		v := cur.ActivePaneID
		d.ActivePaneID = &v
	}
	if !samePopup(prev.Popup, cur.Popup) {
		d.Popup = cur.Popup
	}
	if prev.StatusLine != cur.StatusLine {
		v := cur.StatusLine
		d.StatusLine = &v
	}

	return d
}

func sameWindow(a, b *Window) bool {
	if a.Name != b.Name || a.Layout != b.Layout {
		return false
	}
	return reflect.DeepEqual(a.PaneIDs, b.PaneIDs)
}

func samePane(a, b *Pane) bool {
	if a.WindowID != b.WindowID || a.Left != b.Left || a.Top != b.Top ||
		a.Width != b.Width || a.Height != b.Height || a.Title != b.Title ||
		a.CursorRow != b.CursorRow || a.CursorCol != b.CursorCol ||
		a.CursorVisible != b.CursorVisible || a.Dead != b.Dead || a.Paused != b.Paused {
		return false
	}
	return reflect.DeepEqual(a.Cells, b.Cells)
}

func samePopup(a, b *Popup) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

// Apply merges delta onto a copy of snap and returns that copy as the next
// snapshot; snap itself is not modified. Used
// only by tests to verify delta-faithfulness; production consumers
// (gateway clients) apply deltas to their own copy the same way.
func Apply(snap *StateSnapshot, delta *StateDelta) *StateSnapshot {
	out := &StateSnapshot{
		Seq:            delta.Seq,
		SessionName:    snap.SessionName,
		Windows:        make(map[string]*Window, len(snap.Windows)),
		Panes:          make(map[string]*Pane, len(snap.Panes)),
		ActiveWindowID: snap.ActiveWindowID,
		ActivePaneID:   snap.ActivePaneID,
		Popup:          snap.Popup,
		StatusLine:     snap.StatusLine,
	}
	for id, w := range snap.Windows {
		out.Windows[id] = w
	}
	for id, p := range snap.Panes {
		out.Panes[id] = p
	}
	for id, w := range delta.ChangedWindows {
		out.Windows[id] = w
	}
	for _, id := range delta.RemovedWindowIDs {
		delete(out.Windows, id)
	}
	for id, p := range delta.ChangedPanes {
		out.Panes[id] = p
	}
	for _, id := range delta.RemovedPaneIDs {
		delete(out.Panes, id)
	}
	if delta.ActiveWindowID != nil {
		out.ActiveWindowID = *delta.ActiveWindowID
	}
	if delta.ActivePaneID != nil {
		out.ActivePaneID = *delta.ActivePaneID
	}
	if delta.Popup != nil {
		out.Popup = delta.Popup
	}
	if delta.StatusLine != nil {
		out.StatusLine = *delta.StatusLine
	}
	return out
}
