package main

import (
	"fmt"
	"os"

	"github.com/sergeknystautas/tmuxgate/internal/clistyle"
	"github.com/sergeknystautas/tmuxgate/internal/config"
	"github.com/sergeknystautas/tmuxgate/internal/daemon"
	"github.com/sergeknystautas/tmuxgate/internal/version"
	"github.com/sergeknystautas/tmuxgate/pkg/cli"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	style := clistyle.New()

	switch command {
	case "serve", "daemon-run":
		if !config.Exists() {
			if err := runSetup(style); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		if err := daemon.ValidateReadyToRun(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if command == "serve" {
			if err := daemon.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			style.Success("tmuxgate daemon started")
		} else { // daemon-run
			background := false
			for _, arg := range os.Args[2:] {
				if arg == "--background" {
					background = true
					break
				}
			}
			if err := daemon.Run(background); err != nil {
				fmt.Fprintf(os.Stderr, "Daemon error: %v\n", err)
				os.Exit(1)
			}
		}

	case "stop":
		if err := daemon.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		style.Success("tmuxgate daemon stopped")

	case "status":
		running, url, startedAt, err := daemon.Status()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if running {
			style.Success("tmuxgate daemon is running")
			style.KeyValue("Gateway", url)
			if startedAt != "" {
				style.KeyValue("Started", startedAt)
			}
		} else {
			style.Warn("tmuxgate daemon is not running")
			os.Exit(1)
		}

	case "sessions":
		client := cli.NewDaemonClient(cli.GetDefaultURL())
		if err := runSessions(client, style); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "attach":
		client := cli.NewDaemonClient(cli.GetDefaultURL())
		if err := runAttach(client, style, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	case "version", "-v", "--version":
		fmt.Println("tmuxgate " + version.Version)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("tmuxgate - multi-client web gateway for tmux control mode")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  tmuxgate <command>")
	fmt.Println()
	fmt.Println("Daemon Commands:")
	fmt.Println("  serve       Start the gateway daemon in background")
	fmt.Println("  stop        Stop the gateway daemon")
	fmt.Println("  status      Show daemon status and gateway URL")
	fmt.Println("  daemon-run  Run the daemon in foreground (for debugging)")
	fmt.Println()
	fmt.Println("Session Commands:")
	fmt.Println("  sessions          Check that the daemon is reachable")
	fmt.Println("  attach <name>     Attach to a session's live event stream")
	fmt.Println()
	fmt.Println("Help:")
	fmt.Println("  help        Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  tmuxgate serve              # Start the daemon")
	fmt.Println("  tmuxgate attach main        # Attach to session \"main\"")
	fmt.Println("  tmuxgate status             # Show daemon status")
}
