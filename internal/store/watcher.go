package store

import (
	"path/filepath"
	"sync"
	"time"

	"floragent/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// ResetWatcher watches the data directory for out-of-band changes to the
// orders and bundles files and reloads the affected store. Deleting either
// file is a supported reset mechanism, so a removal reloads too (the store
// comes back empty).
type ResetWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	targets     map[string]func() error // absolute path -> reload
	timers      map[string]*time.Timer  // pending trailing-edge reloads
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewResetWatcher creates a watcher over the two store files. Both files
// must live in watchable directories; the directories are watched rather
// than the files so deletes and renames are observed.
func NewResetWatcher(orders *OrderStore, bundles *BundleStore) (*ResetWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ordersPath, err := filepath.Abs(orders.path)
	if err != nil {
		w.Close()
		return nil, err
	}
	bundlesPath, err := filepath.Abs(bundles.path)
	if err != nil {
		w.Close()
		return nil, err
	}

	return &ResetWatcher{
		watcher: w,
		targets: map[string]func() error{
			ordersPath:  orders.Reload,
			bundlesPath: bundles.Reload,
		},
		timers:      make(map[string]*time.Timer),
		debounceDur: 500 * time.Millisecond, // collapse editor save bursts
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; events are handled in a goroutine
// until Stop is called.
func (rw *ResetWatcher) Start() error {
	rw.mu.Lock()
	if rw.running {
		rw.mu.Unlock()
		return nil
	}
	rw.running = true
	rw.mu.Unlock()

	dirs := make(map[string]struct{})
	for path := range rw.targets {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := rw.watcher.Add(dir); err != nil {
			return err
		}
	}

	go rw.loop()
	logging.Store("Reset watcher started (%d files)", len(rw.targets))
	return nil
}

// Stop shuts the watcher down and waits for the event loop to exit.
func (rw *ResetWatcher) Stop() {
	rw.mu.Lock()
	if !rw.running {
		rw.mu.Unlock()
		return
	}
	rw.running = false
	rw.mu.Unlock()

	close(rw.stopCh)
	rw.watcher.Close()
	<-rw.doneCh

	rw.mu.Lock()
	for path, t := range rw.timers {
		t.Stop()
		delete(rw.timers, path)
	}
	rw.mu.Unlock()
}

func (rw *ResetWatcher) loop() {
	defer close(rw.doneCh)
	for {
		select {
		case <-rw.stopCh:
			return
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			rw.handleEvent(event)
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryStore).Warnf("Reset watcher error: %v", err)
		}
	}
}

func (rw *ResetWatcher) handleEvent(event fsnotify.Event) {
	path, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}
	reload, ok := rw.targets[path]
	if !ok {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// Trailing-edge debounce: reload once the burst goes quiet. A
	// non-atomic rewrite (truncate then write) delivers events while the
	// file is mid-write, so reloading on the first event would read a
	// partial file and dropping the rest would miss the final content.
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if !rw.running {
		return
	}
	if t, ok := rw.timers[path]; ok {
		t.Reset(rw.debounceDur)
		return
	}
	rw.timers[path] = time.AfterFunc(rw.debounceDur, func() {
		rw.mu.Lock()
		delete(rw.timers, path)
		stopped := !rw.running
		rw.mu.Unlock()
		if stopped {
			return
		}
		logging.Store("External change to %s settled, reloading", filepath.Base(path))
		if err := reload(); err != nil {
			logging.Get(logging.CategoryStore).Warnf("Reload after external change failed: %v", err)
		}
	})
}
