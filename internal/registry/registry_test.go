package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sergeknystautas/tmuxgate/internal/emitter"
	"github.com/sergeknystautas/tmuxgate/internal/monitor"
)

// fakeConn is an in-process stand-in for controlmode.Conn, letting Monitor's
// real select loop run to completion without a tmux child or pty.
type fakeConn struct {
	mu     sync.Mutex
	closed bool
	done   chan struct{}
	sent   [][]string
}

func newFakeConn() *fakeConn {
	return &fakeConn{done: make(chan struct{})}
}

var errFakeClosed = errors.New("fake conn closed")

func (f *fakeConn) ReadLine() (string, error) {
	<-f.done
	return "", errFakeClosed
}

func (f *fakeConn) Send(line string) error {
	return f.SendBatch([]string{line})
}

func (f *fakeConn) SendBatch(lines []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, lines)
	return nil
}

func (f *fakeConn) GracefulClose() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

func (f *fakeConn) Kill() error { return f.GracefulClose() }

type openCall struct {
	mon  *monitor.Monitor
	conn *fakeConn
}

// newSpyOpener returns an Opener that records one openCall per session name
// the first time it is spawned, matching Registry's spawn-on-first-use
// contract.
func newSpyOpener(record map[string]*openCall) Opener {
	return func(ctx context.Context, sessionName string, cols, rows int, emit emitter.Emitter) (*monitor.Monitor, error) {
		conn := newFakeConn()
		mon := monitor.New(sessionName, conn, emit, monitor.DefaultConfig())
		record[sessionName] = &openCall{mon: mon, conn: conn}
		return mon, nil
	}
}

func TestSubscribeSpawnsOnFirstUse(t *testing.T) {
	opened := map[string]*openCall{}
	r := New(newSpyOpener(opened), nil)
	ctx := context.Background()

	if _, _, err := r.Subscribe(ctx, "proj", "client-a", 100, 40); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, ok := opened["proj"]; !ok {
		t.Fatalf("expected session proj to be opened on first subscribe")
	}

	if _, _, err := r.Subscribe(ctx, "proj", "client-b", 100, 40); err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}
	if len(opened) != 1 {
		t.Fatalf("expected exactly one open call across two subscribers, got %d", len(opened))
	}
}

func TestViewportFloorAppliedBelowMinimum(t *testing.T) {
	opened := map[string]*openCall{}
	gotCols, gotRows := 0, 0
	openFn := func(ctx context.Context, sessionName string, cols, rows int, emit emitter.Emitter) (*monitor.Monitor, error) {
		gotCols, gotRows = cols, rows
		conn := newFakeConn()
		mon := monitor.New(sessionName, conn, emit, monitor.DefaultConfig())
		opened[sessionName] = &openCall{mon: mon, conn: conn}
		return mon, nil
	}
	r := New(openFn, nil)

	if _, _, err := r.Subscribe(context.Background(), "proj", "client-a", 10, 5); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if gotCols != minViewportCols || gotRows != minViewportRows {
		t.Fatalf("expected viewport floor %dx%d, got %dx%d", minViewportCols, minViewportRows, gotCols, gotRows)
	}
}

func TestUnsubscribeLastClientShutsDownAndRemoves(t *testing.T) {
	opened := map[string]*openCall{}
	r := New(newSpyOpener(opened), nil)
	ctx := context.Background()

	id, _, err := r.Subscribe(ctx, "proj", "client-a", 100, 40)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	done := make(chan struct{})
	go func() {
		r.Unsubscribe(ctx, "proj", "client-a", id)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Unsubscribe did not return within deadline")
	}

	r.mu.RLock()
	_, present := r.sessions["proj"]
	r.mu.RUnlock()
	if present {
		t.Fatalf("expected session removed after last unsubscribe")
	}
	if !opened["proj"].conn.closed {
		t.Fatalf("expected underlying conn to be gracefully closed")
	}
}

func TestUnsubscribeNotLastClientKeepsSession(t *testing.T) {
	opened := map[string]*openCall{}
	r := New(newSpyOpener(opened), nil)
	ctx := context.Background()

	idA, _, err := r.Subscribe(ctx, "proj", "client-a", 100, 40)
	if err != nil {
		t.Fatalf("Subscribe a: %v", err)
	}
	if _, _, err := r.Subscribe(ctx, "proj", "client-b", 100, 40); err != nil {
		t.Fatalf("Subscribe b: %v", err)
	}

	r.Unsubscribe(ctx, "proj", "client-a", idA)

	r.mu.RLock()
	_, present := r.sessions["proj"]
	r.mu.RUnlock()
	if !present {
		t.Fatalf("expected session to remain while client-b is still subscribed")
	}
	if opened["proj"].conn.closed {
		t.Fatalf("expected underlying conn to stay open while a subscriber remains")
	}
}

func TestDispatchUnknownSession(t *testing.T) {
	opened := map[string]*openCall{}
	r := New(newSpyOpener(opened), nil)
	err := r.Dispatch(context.Background(), "nope", "client-a", "select-pane", map[string]string{"pane_id": "%1"})
	if err == nil {
		t.Fatalf("expected error dispatching to unknown session")
	}
}

func TestDispatchSubmitsRewrittenLines(t *testing.T) {
	opened := map[string]*openCall{}
	r := New(newSpyOpener(opened), nil)
	ctx := context.Background()
	if _, _, err := r.Subscribe(ctx, "proj", "client-a", 100, 40); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := r.Dispatch(ctx, "proj", "client-a", "select-pane", map[string]string{"pane_id": "%2"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		opened["proj"].conn.mu.Lock()
		n := len(opened["proj"].conn.sent)
		opened["proj"].conn.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected the fake conn to observe a sent command")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRewriteNewWindowSplitsThenBreaks(t *testing.T) {
	lines, err := Rewrite("new-window", map[string]string{"target": "%3"})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 rewritten lines, got %d: %v", len(lines), lines)
	}
	if lines[1] != "break-pane" {
		t.Fatalf("expected second line to be break-pane, got %q", lines[1])
	}
}

func TestRewriteSendKeysQuotesEmbeddedQuote(t *testing.T) {
	lines, err := Rewrite("send-keys", map[string]string{"pane_id": "%1", "keys": "it's"})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	want := "send-keys -t '%1' -l -- 'it'\\''s'"
	if lines[0] != want {
		t.Fatalf("expected %q, got %q", want, lines[0])
	}
}

func TestRewriteUnknownCommand(t *testing.T) {
	if _, err := Rewrite("rm-rf", nil); err == nil {
		t.Fatalf("expected error for unsupported command")
	}
}

func TestRewriteMissingArgs(t *testing.T) {
	if _, err := Rewrite("select-pane", map[string]string{}); err == nil {
		t.Fatalf("expected error for missing pane_id")
	}
}
