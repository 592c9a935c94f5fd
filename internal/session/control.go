package session

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// controlDirName is the subdirectory, relative to the project directory, an
// operator or companion tool drops stop/pause signal files into. Grounded
// on the teacher's internal/api/notifications.go NotificationManager, which
// watches a signals directory the same way for its kill/pause files.
const controlDirName = ".autocoder/control"

// controlWatcher watches controlDirName for "stop" and "pause" marker
// files so an external operator can request shutdown or a pause without
// sending OS signals to this process.
type controlWatcher struct {
	dir string

	mu     sync.RWMutex
	stop   bool
	pause  bool
	stopCh chan struct{}

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// newControlWatcher creates the control directory under projectDir (if
// missing) and starts watching it. If the watcher cannot be created (no
// inotify support, permission error), it degrades to stat-based polling
// via ShouldStop/ShouldPause rather than failing the session.
func newControlWatcher(projectDir string) *controlWatcher {
	dir := filepath.Join(projectDir, controlDirName)
	_ = os.MkdirAll(dir, 0o755)

	cw := &controlWatcher{
		dir:    dir,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		close(cw.done)
		return cw
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		close(cw.done)
		return cw
	}
	cw.watcher = w

	go cw.watch()
	return cw
}

func (cw *controlWatcher) watch() {
	defer close(cw.done)
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			base := filepath.Base(event.Name)
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			switch base {
			case "stop":
				cw.markStop()
			case "pause":
				cw.mu.Lock()
				cw.pause = true
				cw.mu.Unlock()
			}
		case _, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (cw *controlWatcher) markStop() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if !cw.stop {
		cw.stop = true
		close(cw.stopCh)
	}
}

// ShouldStop reports whether a stop file has been observed, either via the
// watcher or a direct stat fallback.
func (cw *controlWatcher) ShouldStop() bool {
	if _, err := os.Stat(filepath.Join(cw.dir, "stop")); err == nil {
		cw.markStop()
	}
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.stop
}

// ShouldPause reports whether a pause file is currently present; removing
// the file ends the pause.
func (cw *controlWatcher) ShouldPause() bool {
	_, err := os.Stat(filepath.Join(cw.dir, "pause"))
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.pause = err == nil
	return cw.pause
}

// StopSignal returns a channel that closes the moment a stop is observed.
func (cw *controlWatcher) StopSignal() <-chan struct{} { return cw.stopCh }

// Close stops the underlying fsnotify watcher.
func (cw *controlWatcher) Close() {
	if cw.watcher != nil {
		cw.watcher.Close()
	}
}
