package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/sergeknystautas/tmuxgate/internal/clistyle"
	"github.com/sergeknystautas/tmuxgate/internal/config"
)

// runSetup prompts for bind address and port on first launch and writes
// them to the default config file, the same huh-form shape the teacher
// used for its dashboard-URL prompt.
func runSetup(style *clistyle.Style) error {
	style.SubHeader("First-time setup")
	style.Info("tmuxgate needs a bind address and port for its gateway.")

	path, err := config.DefaultPath()
	if err != nil {
		return err
	}

	cfg := config.CreateDefault(path)
	if config.Exists() {
		if existing, err := config.Load(path); err == nil {
			cfg = existing
		}
	}

	portStr := strconv.Itoa(cfg.Port)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bind address").
				Description("Interface the gateway listens on (e.g., 127.0.0.1 or 0.0.0.0)").
				Placeholder(config.DefaultBindAddress).
				Value(&cfg.BindAddress).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("bind address cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Port").
				Description("TCP port for the gateway's HTTP and WebSocket routes").
				Placeholder(portStr).
				Value(&portStr).
				Validate(validatePort),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("setup: form failed: %w", err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("setup: invalid port %q: %w", portStr, err)
	}
	cfg.Port = port

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("setup: failed to save config: %w", err)
	}

	style.Success(fmt.Sprintf("Config written to %s", path))
	return nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("port must be a number")
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}
