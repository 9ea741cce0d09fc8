package mirror

import (
	"errors"
	"fmt"
)

// ErrCaptureMismatch is returned to a pending capture request when a
// command response arrives out of order relative to the capture queue's
// FIFO head (see ApplyCapture).
var ErrCaptureMismatch = errors.New("capture-pane response did not match pending request")

// CommandFailed reports a tmux command that was rejected with %error,
// surfaced here because capture requests resolve through ApplyCapture.
type CommandFailed struct {
	Seq     int
	Message string
}

func (e *CommandFailed) Error() string {
	return fmt.Sprintf("command %d failed: %s", e.Seq, e.Message)
}
