// Package daemon owns the background tmuxgate process lifecycle: pidfile
// management, background relaunch, signal handling, and wiring the
// Registry to the gateway's HTTP server. Grounded on the teacher's
// daemon.go pidfile + background-process pattern, rewired from
// session/state/workspace/dashboard onto registry/gateway.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sergeknystautas/tmuxgate/internal/config"
	"github.com/sergeknystautas/tmuxgate/internal/controlmode"
	"github.com/sergeknystautas/tmuxgate/internal/emitter"
	"github.com/sergeknystautas/tmuxgate/internal/gateway"
	"github.com/sergeknystautas/tmuxgate/internal/monitor"
	"github.com/sergeknystautas/tmuxgate/internal/registry"
	"github.com/sergeknystautas/tmuxgate/internal/tmuxver"
)

const pidFileName = "daemon.pid"

var (
	shutdownChan = make(chan struct{})
	shutdownCtx  context.Context
	cancelFunc   context.CancelFunc
)

func init() {
	shutdownCtx, cancelFunc = context.WithCancel(context.Background())
}

// tmuxgateDir returns ~/.tmuxgate, creating it if missing.
func tmuxgateDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("daemon: failed to get home directory: %w", err)
	}
	dir := filepath.Join(homeDir, ".tmuxgate")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("daemon: failed to create %s: %w", dir, err)
	}
	return dir, nil
}

// ValidateReadyToRun checks tmux is on PATH and supports pause-after, the
// tmuxgate directory exists, and no daemon is already running.
func ValidateReadyToRun() error {
	tmuxPath, err := exec.LookPath("tmux")
	if err != nil {
		return fmt.Errorf("daemon: tmux not found on PATH: %w", err)
	}
	ver, err := tmuxver.Detect(context.Background(), tmuxPath)
	if err != nil {
		return fmt.Errorf("daemon: tmux version check failed: %w", err)
	}
	if !ver.SupportsPauseAfter() {
		return fmt.Errorf("daemon: %s: %w", ver, tmuxver.ErrUnsupported)
	}

	dir, err := tmuxgateDir()
	if err != nil {
		return err
	}

	pidFile := filepath.Join(dir, pidFileName)
	if _, err := os.Stat(pidFile); err == nil {
		pidData, err := os.ReadFile(pidFile)
		if err != nil {
			return fmt.Errorf("daemon: failed to read PID file: %w", err)
		}
		var pid int
		if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("daemon: already running (PID %d)", pid)
				}
			}
		}
		os.Remove(pidFile)
	}
	return nil
}

// Start relaunches the current executable in "daemon-run --background" mode
// and returns once it has had a moment to come up.
func Start() error {
	dir, err := tmuxgateDir()
	if err != nil {
		return err
	}

	logFile := filepath.Join(dir, "daemon-startup.log")
	logF, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("daemon: failed to open log file: %w", err)
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("daemon: failed to get executable path: %w", err)
	}

	cmd := exec.Command(execPath, "daemon-run", "--background")
	cmd.Dir, _ = os.Getwd()
	cmd.Stdout = logF
	cmd.Stderr = logF

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("daemon: failed to start: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return fmt.Errorf("daemon: timeout waiting for daemon to start")
	}
	return nil
}

// Stop sends SIGTERM to the running daemon and waits for it to exit.
func Stop() error {
	dir, err := tmuxgateDir()
	if err != nil {
		return err
	}
	pidFile := filepath.Join(dir, pidFileName)

	pidData, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("daemon: not running")
		}
		return fmt.Errorf("daemon: failed to read PID file: %w", err)
	}

	var pid int
	if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err != nil {
		return fmt.Errorf("daemon: failed to parse PID: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("daemon: failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("daemon: failed to send SIGTERM: %w", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := process.Signal(syscall.Signal(0)); err != nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon: timeout waiting for daemon to stop")
}

// Status reports whether a daemon is running, and if so its base URL and
// start time.
func Status() (running bool, url string, startedAt string, err error) {
	dir, err := tmuxgateDir()
	if err != nil {
		return false, "", "", err
	}
	pidFile := filepath.Join(dir, pidFileName)
	startedFile := filepath.Join(dir, "daemon.started")

	pidData, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, "", "", nil
		}
		return false, "", "", fmt.Errorf("daemon: failed to read PID file: %w", err)
	}

	var pid int
	if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err != nil {
		return false, "", "", fmt.Errorf("daemon: failed to parse PID: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, "", "", fmt.Errorf("daemon: failed to find process: %w", err)
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return false, "", "", nil
	}

	cfgPath, _ := config.DefaultPath()
	port := config.DefaultPort
	if cfg, err := config.Load(cfgPath); err == nil {
		port = cfg.Port
	}
	url = fmt.Sprintf("http://localhost:%d", port)

	if startedData, err := os.ReadFile(startedFile); err == nil {
		startedAt = string(startedData)
	}
	return true, url, startedAt, nil
}

// Run is the daemon process entry point: loads config, builds a Registry
// wired to the real controlmode.Open/monitor.New path, starts the gateway
// HTTP server, and blocks until a shutdown signal or server error.
func Run(background bool) error {
	dir, err := tmuxgateDir()
	if err != nil {
		return err
	}

	pidFile := filepath.Join(dir, pidFileName)
	startedFile := filepath.Join(dir, "daemon.started")

	if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644); err != nil {
		return fmt.Errorf("daemon: failed to write PID file: %w", err)
	}
	defer os.Remove(pidFile)

	startedAt := time.Now().UTC().Format(time.RFC3339Nano)
	if err := os.WriteFile(startedFile, []byte(startedAt+"\n"), 0644); err != nil {
		return fmt.Errorf("daemon: failed to write start time: %w", err)
	}

	cfgPath, err := config.DefaultPath()
	if err != nil {
		return err
	}
	cfg, err := config.EnsureExists()
	if err != nil {
		return fmt.Errorf("daemon: failed to load config: %w", err)
	}

	tmuxPath, err := exec.LookPath("tmux")
	if err != nil {
		return fmt.Errorf("daemon: tmux not found on PATH: %w", err)
	}
	ver, err := tmuxver.Detect(shutdownCtx, tmuxPath)
	if err != nil {
		return fmt.Errorf("daemon: failed to detect tmux version: %w", err)
	}

	opener := func(ctx context.Context, sessionName string, cols, rows int, emit emitter.Emitter) (*monitor.Monitor, error) {
		ch, err := controlmode.Open(ctx, tmuxPath, sessionName, true)
		if err != nil {
			return nil, fmt.Errorf("daemon: failed to open session %s: %w", sessionName, err)
		}
		monCfg := monitor.Config{
			ThrottleMs:           cfg.ThrottleMs,
			SettleMs:             cfg.SettleMs,
			SettleMaxMs:          cfg.SettleMaxMs,
			SyncPollMs:           cfg.SyncPollMs,
			HeartbeatMs:          cfg.HeartbeatMs,
			BurstEventsPerWindow: cfg.BurstEventsPerWindow,
			BurstWindowMs:        cfg.BurstWindowMs,
		}
		return monitor.New(sessionName, ch, emit, monCfg), nil
	}

	reg := registry.New(opener, ver)

	watcher, err := config.WatchFile(cfgPath, func(updated *config.Config) {
		fmt.Printf("[daemon] config reloaded from %s\n", cfgPath)
		cfg = updated
	})
	if err != nil {
		fmt.Printf("[daemon] warning: config hot-reload disabled: %v\n", err)
	} else {
		defer watcher.Close()
	}

	srv := gateway.New(reg, gateway.Config{})
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port),
		Handler: srv,
	}

	sigChan := make(chan os.Signal, 1)
	if background {
		signal.Ignore(syscall.SIGINT, syscall.SIGQUIT)
		signal.Notify(sigChan, syscall.SIGTERM)
	} else {
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	}

	serverErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			serverErrChan <- err
		}
	}()
	fmt.Printf("[daemon] listening on %s\n", httpServer.Addr)

	select {
	case sig := <-sigChan:
		fmt.Printf("[daemon] received signal %v, shutting down\n", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("daemon: gateway server error: %w", err)
	case <-shutdownChan:
		fmt.Println("[daemon] shutdown requested")
	}

	shutdownTimeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownTimeoutCtx); err != nil {
		return fmt.Errorf("daemon: failed to stop gateway server: %w", err)
	}
	return nil
}

// Shutdown triggers a graceful shutdown of a running Run call.
func Shutdown() {
	close(shutdownChan)
	if cancelFunc != nil {
		cancelFunc()
	}
}
