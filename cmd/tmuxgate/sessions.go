package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sergeknystautas/tmuxgate/internal/clistyle"
	"github.com/sergeknystautas/tmuxgate/pkg/cli"
)

// runSessions checks that the daemon answers its health check and prints a
// hint pointing at attach. It does not connect to a session or print a
// state snapshot.
func runSessions(client *cli.Client, style *clistyle.Style) error {
	if !client.IsRunning() {
		return fmt.Errorf("daemon is not running (try: tmuxgate serve)")
	}
	style.Success("daemon is reachable")
	style.Info("Use `tmuxgate attach <session-name>` to stream a session's events.")
	return nil
}

// runAttach streams a session's frames to stdout until the connection
// closes or the user interrupts. It does not read stdin or send commands.
func runAttach(client *cli.Client, style *clistyle.Style, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tmuxgate attach <session-name>")
	}
	sessionName := args[0]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sess, err := client.Attach(ctx, sessionName, 200, 50)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	defer sess.Close()

	style.SubHeader(fmt.Sprintf("Attached to %s", sessionName))

	for {
		frame, err := sess.ReadFrame()
		if err != nil {
			style.Warn(fmt.Sprintf("disconnected: %v", err))
			return nil
		}

		switch frame.Type {
		case "connection_info":
			style.KeyValue("Connection", frame.ConnectionID)
		case "keybindings":
			// no interactive rendering in the CLI client; browsers own that.
		case "state_update":
			if frame.Full {
				style.Printf("%s\n", string(frame.State))
			} else {
				style.Printf("%s\n", string(frame.Delta))
			}
		case "error":
			style.Error(frame.Message)
		}
	}
}
