package mirror

import (
	"reflect"
	"testing"
	"time"

	"github.com/sergeknystautas/tmuxgate/internal/controlmode"
)

func TestDeltaFaithfulness(t *testing.T) {
	a := NewAggregator("main")
	a.Ingest(controlmode.Event{Kind: controlmode.KindWindowAdd, WindowID: "@1"})
	a.Ingest(controlmode.Event{Kind: controlmode.KindLayoutChange, WindowID: "@1", Layout: "abcd,80x24,0,0,1"})
	a.Ingest(controlmode.Event{Kind: controlmode.KindOutput, PaneID: "%1", Data: []byte("hello")})
	snap1, _ := a.Flush()

	a.Ingest(controlmode.Event{Kind: controlmode.KindOutput, PaneID: "%1", Data: []byte(" world")})
	a.Ingest(controlmode.Event{Kind: controlmode.KindSessionWindowChanged, SessionID: "$0", WindowID: "@1"})
	snap2, delta2 := a.Flush()

	if delta2 == nil {
		t.Fatalf("expected a delta on the second flush")
	}
	applied := Apply(snap1, delta2)
	if !reflect.DeepEqual(applied, snap2) {
		t.Fatalf("applying delta did not reproduce full snapshot:\napplied=%+v\nwant=%+v", applied, snap2)
	}
}

func TestUnlinkedWindowCloseIsNoOp(t *testing.T) {
	a := NewAggregator("main")
	a.Ingest(controlmode.Event{Kind: controlmode.KindWindowAdd, WindowID: "@1"})
	a.Flush()

	a.Ingest(controlmode.Event{Kind: controlmode.KindUnlinkedWindowClose, WindowID: "@9"})
	if a.Dirty() {
		t.Fatalf("unlinked-window-close for an untracked window must not mark the mirror dirty")
	}
	if _, ok := a.windows["@1"]; !ok {
		t.Fatalf("unrelated window @1 must survive an unlinked-window-close for @9")
	}
}

func TestWindowPaneChangedSetsActivePane(t *testing.T) {
	a := NewAggregator("main")
	a.Ingest(controlmode.Event{Kind: controlmode.KindWindowAdd, WindowID: "@1"})
	a.Ingest(controlmode.Event{Kind: controlmode.KindWindowPaneChanged, WindowID: "@1", PaneID: "%1"})

	snap, _ := a.Flush()
	if snap.ActivePaneID != "%1" || snap.ActiveWindowID != "@1" {
		t.Fatalf("expected %%window-pane-changed to set the active pane/window, got pane=%q window=%q", snap.ActivePaneID, snap.ActiveWindowID)
	}
}

func TestActivePaneIDPreservedWhenNotificationOmitsIt(t *testing.T) {
	a := NewAggregator("main")
	a.Ingest(controlmode.Event{Kind: controlmode.KindWindowAdd, WindowID: "@1"})
	a.Ingest(controlmode.Event{Kind: controlmode.KindWindowPaneChanged, WindowID: "@1", PaneID: "%1"})
	a.Ingest(controlmode.Event{Kind: controlmode.KindWindowPaneChanged, WindowID: "@1", PaneID: ""})

	snap, _ := a.Flush()
	if snap.ActivePaneID != "%1" {
		t.Fatalf("expected active pane to be preserved when a notification reports no pane, got %q", snap.ActivePaneID)
	}
}

func TestActivePanePreservedOnUnrelatedWindowClose(t *testing.T) {
	a := NewAggregator("main")
	a.Ingest(controlmode.Event{Kind: controlmode.KindWindowAdd, WindowID: "@1"})
	a.Ingest(controlmode.Event{Kind: controlmode.KindWindowAdd, WindowID: "@2"})
	a.Ingest(controlmode.Event{Kind: controlmode.KindWindowPaneChanged, WindowID: "@1", PaneID: "%1"})

	a.Ingest(controlmode.Event{Kind: controlmode.KindWindowClose, WindowID: "@2"})

	snap, _ := a.Flush()
	if snap.ActivePaneID != "%1" || snap.ActiveWindowID != "@1" {
		t.Fatalf("closing an inactive window must not disturb the active pane/window")
	}
}

func TestPauseContinueFlipsPausedFlag(t *testing.T) {
	a := NewAggregator("main")
	a.Ingest(controlmode.Event{Kind: controlmode.KindOutput, PaneID: "%1", Data: []byte("x")})
	a.Ingest(controlmode.Event{Kind: controlmode.KindPause, PausedPaneID: "%1"})

	snap, _ := a.Flush()
	if !snap.Panes["%1"].Paused {
		t.Fatalf("expected pane %%1 to be paused after %%pause")
	}

	a.Ingest(controlmode.Event{Kind: controlmode.KindContinue, PausedPaneID: "%1"})
	snap2, _ := a.Flush()
	if snap2.Panes["%1"].Paused {
		t.Fatalf("expected pane %%1 to be unpaused after %%continue")
	}
}

func TestSettlingWindow(t *testing.T) {
	a := NewAggregator("main")
	if a.Settling() {
		t.Fatalf("new aggregator must not be settling")
	}
	a.MarkSettling(10 * time.Millisecond)
	if !a.Settling() {
		t.Fatalf("expected settling immediately after MarkSettling")
	}
	time.Sleep(20 * time.Millisecond)
	if a.Settling() {
		t.Fatalf("expected settling window to have elapsed")
	}
}

func TestCaptureMismatchRetriesNextHead(t *testing.T) {
	a := NewAggregator("main")
	seq1, ch1 := a.RequestCapture("%1", time.Second)
	seq2, ch2 := a.RequestCapture("%2", time.Second)
	_ = seq1

	// Response arrives for seq2 first (e.g. seq1's own response was lost).
	a.ApplyCapture(seq2, []string{"line"}, "")

	res1 := <-ch1
	if res1.Err == nil {
		t.Fatalf("expected capture mismatch error for the stale head")
	}
	res2 := <-ch2
	if res2.Err != nil {
		t.Fatalf("unexpected error for seq2: %v", res2.Err)
	}
	if len(res2.Lines) != 1 || res2.Lines[0] != "line" {
		t.Fatalf("unexpected capture lines: %v", res2.Lines)
	}
}
