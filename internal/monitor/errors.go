package monitor

import (
	"errors"
	"fmt"

	"github.com/sergeknystautas/tmuxgate/internal/mirror"
)

// Sentinel errors for the fixed failure cases a Monitor can report to its
// Registry. ErrCaptureMismatch and CommandFailed are mirror-domain
// concepts (the capture queue lives in internal/mirror) re-exported here so
// the full taxonomy from spec.md §7 reads from one place. Anything not
// named here is wrapped into CommandFailed or ParseWarning instead of
// growing this list.
var (
	ErrSessionMissing     = errors.New("tmux session missing")
	ErrSpawnFailed        = errors.New("failed to spawn tmux control-mode process")
	ErrPtyFailed          = errors.New("failed to allocate pty")
	ErrChannelIO          = errors.New("control channel io error")
	ErrCaptureMismatch    = mirror.ErrCaptureMismatch
	ErrSubscriberOverflow = errors.New("subscriber buffer overflow")
	ErrBusClosed          = errors.New("emitter bus is closed")
)

// CommandFailed reports a tmux command that was rejected with %error.
type CommandFailed = mirror.CommandFailed

// ParseWarning reports a line the event parser could not classify. Parsing
// continues; the line is dropped.
type ParseWarning struct {
	Line   string
	Reason string
}

func (e *ParseWarning) Error() string {
	return fmt.Sprintf("parse warning: %s: %s", e.Reason, e.Line)
}
