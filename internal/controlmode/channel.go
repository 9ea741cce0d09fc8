// Package controlmode owns the child `tmux -CC` process for one session and
// decodes its control-mode protocol into typed events.
package controlmode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// Conn is the subset of Channel a Monitor drives. Exported as an interface
// so tests can substitute an in-process fake instead of a real tmux child.
type Conn interface {
	LineSource
	Send(line string) error
	SendBatch(lines []string) error
	GracefulClose() error
	Kill() error
}

// Channel is the PTY-backed control-mode connection to one tmux session. It
// is a pure I/O primitive: spawn, ordered writes, line reads, graceful
// close. Command/response correlation is the Event Parser's job, not the
// Channel's.
type Channel struct {
	cmd    *exec.Cmd
	pty    *pty_File
	reader *bufio.Reader

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// pty_File narrows the creack/pty return type down to what Channel needs,
// so tests can substitute a plain *os.File pair.
type pty_File = io.ReadWriteCloser

// Winsize is the fixed control-mode PTY size. 200x50 gives tmux enough room
// that very few commands wrap, which keeps %output line framing predictable.
var Winsize = pty.Winsize{Cols: 200, Rows: 50}

// Open spawns `tmux -CC attach-session -t <session>` (or `new-session` when
// the session does not exist yet) on a PTY and returns a ready Channel.
func Open(ctx context.Context, tmuxPath, session string, create bool) (*Channel, error) {
	args := []string{"-CC"}
	if create {
		args = append(args, "new-session", "-A", "-s", session)
	} else {
		args = append(args, "attach-session", "-t", session)
	}

	cmd := exec.CommandContext(ctx, tmuxPath, args...)
	f, err := pty.StartWithSize(cmd, &Winsize)
	if err != nil {
		return nil, fmt.Errorf("controlmode: pty start failed: %w", err)
	}

	return &Channel{
		cmd:    cmd,
		pty:    f,
		reader: bufio.NewReaderSize(f, 64*1024),
	}, nil
}

// Send writes a single command line, appending the trailing newline tmux
// expects. Safe for concurrent use.
func (c *Channel) Send(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := io.WriteString(c.pty, line+"\n"); err != nil {
		return fmt.Errorf("controlmode: send failed: %w", err)
	}
	return nil
}

// SendBatch writes several command lines atomically with respect to other
// Send/SendBatch callers, so a caller building a compound command (see
// internal/registry/rewrite.go) never has another command interleaved
// between its lines.
func (c *Channel) SendBatch(lines []string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	for _, line := range lines {
		if _, err := io.WriteString(c.pty, line+"\n"); err != nil {
			return fmt.Errorf("controlmode: send_batch failed: %w", err)
		}
	}
	return nil
}

// ReadLine blocks for the next newline-terminated line from tmux, with the
// trailing newline stripped.
func (c *Channel) ReadLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if len(line) > 0 {
			return trimNewline(line), nil
		}
		return "", fmt.Errorf("controlmode: read failed: %w", err)
	}
	return trimNewline(line), nil
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	if n := len(s); n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}
	return s
}

// GracefulClose asks the multiplexer to detach cleanly (sends "detach"),
// then waits for the child to exit. It never sends SIGKILL to tmux itself;
// a wedged child is the caller's problem to resolve via Kill.
func (c *Channel) GracefulClose() error {
	c.closeOnce.Do(func() {
		_ = c.Send("detach")
		c.closeErr = c.cmd.Wait()
		_ = c.pty.Close()
	})
	return c.closeErr
}

// Kill forcibly terminates the child process. Used only when GracefulClose
// does not return within the caller's own deadline.
func (c *Channel) Kill() error {
	if c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Kill()
}
