package config

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of fsnotify events a single editor save
// typically produces (write + chmod, sometimes a rename-based atomic save)
// into one reload, grounded on workspace/git_watcher.go's debounce timer
// idiom.
const watchDebounce = 250 * time.Millisecond

// Watcher hot-reloads a Config's tunables from disk on every change,
// without restarting anything that already holds a reference to an older
// *Config: callers receive each reloaded Config through the onLoad callback
// passed to WatchFile rather than holding the struct directly.
type Watcher struct {
	path   string
	fsw    *fsnotify.Watcher
	onLoad func(*Config)
	stopCh chan struct{}
	doneCh chan struct{}
}

// WatchFile starts watching the directory containing path (fsnotify watches
// directories, not bare files, so renames-over-the-original from editors
// are still observed) and invokes onLoad with the freshly parsed Config
// each time the file settles after a change.
func WatchFile(path string, onLoad func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: failed to create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		path:   path,
		fsw:    fsw,
		onLoad: onLoad,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	defer w.fsw.Close()

	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
			} else {
				// debounceC is nil once the previous firing was received;
				// only drain a firing that is still pending.
				if !debounce.Stop() && debounceC != nil {
					<-debounceC
				}
				debounce.Reset(watchDebounce)
			}
			debounceC = debounce.C

		case <-debounceC:
			debounceC = nil
			cfg, err := Load(w.path)
			if err != nil {
				log.Printf("[config] reload of %s failed, keeping previous tunables: %v", w.path, err)
				continue
			}
			w.onLoad(cfg)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("[config] watch error: %v", err)

		case <-w.stopCh:
			return
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() {
	close(w.stopCh)
	<-w.doneCh
}
