// Package monitor runs the single-owner event-selector loop for one tmux
// session: one goroutine multiplexes the control channel, throttle/settle/
// sync timers, and the inbound command queue, exactly as spec.md §5
// prescribes ("exactly one operation proceeds per loop iteration").
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/sergeknystautas/tmuxgate/internal/controlmode"
	"github.com/sergeknystautas/tmuxgate/internal/emitter"
	"github.com/sergeknystautas/tmuxgate/internal/mirror"
)

// Config holds the tunables a Monitor's select loop runs on. It is copied
// at New; a running Monitor keeps those values, and a reload by
// internal/config's file watcher reaches only Monitors created afterwards.
type Config struct {
	ThrottleMs   int
	SettleMs     int
	SettleMaxMs  int
	SyncPollMs   int
	HeartbeatMs  int
	BurstEventsPerWindow int
	BurstWindowMs        int
}

// DefaultConfig matches internal/config's documented defaults.
func DefaultConfig() Config {
	return Config{
		ThrottleMs:           16,
		SettleMs:             100,
		SettleMaxMs:          500,
		SyncPollMs:           50,
		HeartbeatMs:          15000,
		BurstEventsPerWindow: 20,
		BurstWindowMs:        100,
	}
}

// isStructuralEvent reports whether ev.Kind is one of the structural
// notifications (window/session/popup topology changes) that start or
// extend the settle window. Pane-content output (%output/%extended-output)
// is deliberately excluded: a busy pane streaming output must not hold the
// settle window open forever.
func isStructuralEvent(k controlmode.Kind) bool {
	switch k {
	case controlmode.KindLayoutChange,
		controlmode.KindWindowAdd,
		controlmode.KindWindowClose,
		controlmode.KindWindowRenamed,
		controlmode.KindWindowPaneChanged,
		controlmode.KindSessionRenamed,
		controlmode.KindSessionWindowChanged,
		controlmode.KindPopupOpen,
		controlmode.KindPopupClose:
		return true
	default:
		return false
	}
}

// Command is one inbound request the Registry hands to a Monitor's queue.
// Lines is the already-rewritten command text (see internal/registry/rewrite.go).
type Command struct {
	Lines []string
	Reply chan error
}

// restartDelay mirrors session/tracker.go's trackerRestartDelay. Run has no
// restart loop (it returns once the channel closes), and nothing in this
// package reads this value.
const restartDelay = 500 * time.Millisecond

// Monitor owns one session's Channel, Parser, Aggregator, and Emitter. It
// is created by, and only ever driven by, internal/registry.
type Monitor struct {
	SessionName string

	channel    controlmode.Conn
	parser     *controlmode.Parser
	aggregator *mirror.Aggregator
	emit       emitter.Emitter
	cfg        Config

	commands chan Command
	stopCh   chan struct{}
	doneCh   chan struct{}

	// caughtUp tracks panes this Monitor has already sent a catch-up ack
	// for since their last %pause, so a still-paused pane doesn't get
	// re-acked on every flush.
	caughtUp map[string]bool
}

// New constructs a Monitor around an already-open Channel. The caller
// (Registry) owns opening the Channel so it can apply capability checks
// (internal/tmuxver) first.
func New(sessionName string, ch controlmode.Conn, emit emitter.Emitter, cfg Config) *Monitor {
	return &Monitor{
		SessionName: sessionName,
		channel:     ch,
		parser:      controlmode.NewParser(ch),
		aggregator:  mirror.NewAggregator(sessionName),
		emit:        emit,
		cfg:         cfg,
		commands:    make(chan Command, 64),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		caughtUp:    make(map[string]bool),
	}
}

// Resize translates a Resize request into the multiplexer's client-size
// command and submits it like any other command, per spec.md §5.
func (m *Monitor) Resize(ctx context.Context, cols, rows int) error {
	return m.Submit(ctx, []string{fmt.Sprintf("refresh-client -C %dx%d", cols, rows)})
}

// Snapshot returns the Monitor's current full mirror state without waiting
// for the next scheduled flush, for one-shot "get_initial_state" requests.
func (m *Monitor) Snapshot() *mirror.StateSnapshot {
	return m.aggregator.Snapshot()
}

// Capture issues a one-shot capture-pane query for paneID and blocks for its
// correlated result, per spec.md §6's "queries used as one-shot commands"
// southbound surface.
func (m *Monitor) Capture(ctx context.Context, paneID string, timeout time.Duration) ([]string, error) {
	_, resultCh := m.aggregator.RequestCapture(paneID, timeout)
	line := fmt.Sprintf("capture-pane -p -t %s -J -e", paneID)
	if err := m.Submit(ctx, []string{line}); err != nil {
		return nil, err
	}
	select {
	case res := <-resultCh:
		return res.Lines, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, fmt.Errorf("monitor: capture timed out for pane %s", paneID)
	}
}

// Submit enqueues a command for the Monitor's loop to send to tmux,
// returning once the send itself succeeds or fails (not once tmux's
// response arrives — that flows back as a state_update like any other
// mutation).
func (m *Monitor) Submit(ctx context.Context, lines []string) error {
	reply := make(chan error, 1)
	select {
	case m.commands <- Command{Lines: lines, Reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopCh:
		return ErrSessionMissing
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the select loop. It runs until Shutdown is called or the channel
// reports a fatal I/O error.
func (m *Monitor) Run() {
	defer close(m.doneCh)
	go func() {
		if err := m.parser.Run(); err != nil {
			// Channel closed or errored; the select loop below observes
			// this via the parser's closed channels and exits.
		}
	}()

	throttle := time.NewTicker(time.Duration(m.cfg.ThrottleMs) * time.Millisecond)
	defer throttle.Stop()
	settle := time.NewTicker(time.Duration(m.cfg.SettleMs) * time.Millisecond)
	defer settle.Stop()
	sync := time.NewTicker(time.Duration(m.cfg.SyncPollMs) * time.Millisecond)
	defer sync.Stop()

	settleDeadline := time.Time{}
	settleStartedAt := time.Time{}
	lastHeartbeat := time.Now()

	// copyModePanes is this Monitor's belief about which panes are
	// currently in copy-mode, toggled by %pane-mode-changed. tmux's
	// notification doesn't carry the new mode, only that it changed, so
	// this is a best-effort signal (matching the sync timer's "soft"
	// status in spec.md §5) rather than a verified state machine.
	copyModePanes := make(map[string]bool)

	for {
		select {
		case ev, ok := <-m.parser.Events():
			if !ok {
				return
			}
			m.aggregator.Ingest(ev)

			switch ev.Kind {
			case controlmode.KindContinue:
				delete(m.caughtUp, ev.PausedPaneID)
			case controlmode.KindPaneModeChanged:
				if copyModePanes[ev.PaneID] {
					delete(copyModePanes, ev.PaneID)
				} else {
					copyModePanes[ev.PaneID] = true
				}
			}

			if isStructuralEvent(ev.Kind) {
				now := time.Now()
				if settleStartedAt.IsZero() {
					settleStartedAt = now
					settleDeadline = now.Add(time.Duration(m.cfg.SettleMs) * time.Millisecond)
				} else {
					next := now.Add(time.Duration(m.cfg.SettleMs) * time.Millisecond)
					cap := settleStartedAt.Add(time.Duration(m.cfg.SettleMaxMs) * time.Millisecond)
					if next.After(cap) {
						next = cap
					}
					settleDeadline = next
				}
				m.aggregator.MarkSettling(time.Until(settleDeadline))
			}

		case resp, ok := <-m.parser.Responses():
			if !ok {
				return
			}
			m.aggregator.ApplyCapture(resp.Seq, resp.Lines, resp.Err)

		case w, ok := <-m.parser.Warnings():
			if !ok {
				return
			}
			fmt.Printf("[monitor %s] parse warning: %s: %q\n", m.SessionName, w.Reason, w.Line)

		case <-throttle.C:
			if m.aggregator.Dirty() && !m.aggregator.Settling() {
				m.flushAndEmit()
				settleDeadline = time.Time{}
				settleStartedAt = time.Time{}
			}

		case <-settle.C:
			if m.aggregator.Dirty() && !m.aggregator.Settling() {
				m.flushAndEmit()
				settleDeadline = time.Time{}
				settleStartedAt = time.Time{}
			}

		case <-sync.C:
			// The sync timer is soft (spec.md §5): a 50ms poll while any
			// pane is believed to be in copy-mode keeps cursor position and
			// visible grid in sync faster than the steady-state stream
			// alone, and a 15s idle heartbeat keeps the connection
			// observably alive when nothing else is happening.
			if len(copyModePanes) > 0 {
				for paneID := range copyModePanes {
					if err := m.channel.Send(fmt.Sprintf("capture-pane -p -t %s -e", paneID)); err != nil {
						m.emit.EmitError(fmt.Sprintf("copy-mode poll failed for pane %s: %v", paneID, err))
					}
				}
			} else if time.Since(lastHeartbeat) >= time.Duration(m.cfg.HeartbeatMs)*time.Millisecond {
				if err := m.channel.Send("refresh-client"); err != nil {
					m.emit.EmitError(fmt.Sprintf("heartbeat failed: %v", err))
				}
				lastHeartbeat = time.Now()
			}

		case cmd := <-m.commands:
			err := m.channel.SendBatch(cmd.Lines)
			cmd.Reply <- err
			if err != nil {
				m.emit.EmitError(fmt.Sprintf("command send failed: %v", err))
			}

		case <-m.stopCh:
			_ = m.channel.GracefulClose()
			return
		}
	}
}

func (m *Monitor) flushAndEmit() {
	snap, delta := m.aggregator.Flush()
	if delta == nil {
		m.emit.EmitUpdate(emitter.StateUpdate{Full: true, Snapshot: snap})
	} else {
		// Snapshot travels alongside the delta (not just on the full-update
		// branch) so a BusEmitter subscriber flagged needsFullSnapshot can
		// be upgraded to a full state_update without the Monitor having to
		// be asked for one out of band.
		m.emit.EmitUpdate(emitter.StateUpdate{Full: false, Snapshot: snap, Delta: delta})
	}
	m.sendCatchUpAcks()
}

// sendCatchUpAcks tells tmux a paused pane's reader has caught up, once per
// pause, by sending the control-mode's per-pane continue form of
// refresh-client. tmux itself already cleared the pause (we observed
// %continue) in the common case; this ack is for the flow-control handshake
// where the multiplexer is waiting on the client rather than the reverse.
func (m *Monitor) sendCatchUpAcks() {
	for _, paneID := range m.aggregator.PausedPanes() {
		if m.caughtUp[paneID] {
			continue
		}
		m.caughtUp[paneID] = true
		line := fmt.Sprintf("refresh-client -A '%s:continue'", paneID)
		if err := m.channel.Send(line); err != nil {
			m.emit.EmitError(fmt.Sprintf("catch-up ack failed for pane %s: %v", paneID, err))
		}
	}
}

// Shutdown requests cooperative shutdown: GracefulClose on the Channel,
// then waits for Run to observe the closed parser channels and return. It
// never sends SIGKILL to the multiplexer itself, matching
// session/tracker.go's Stop()/closePTY pattern.
func (m *Monitor) Shutdown(ctx context.Context) error {
	close(m.stopCh)
	select {
	case <-m.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Kill forcibly terminates the underlying tmux child. Used only when
// Shutdown does not return within the caller's own deadline.
func (m *Monitor) Kill() error {
	return m.channel.Kill()
}
