package service

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow collapses editor write bursts into one reload.
const debounceWindow = 500 * time.Millisecond

// policyWatcher reloads the policy service when its document changes
// on disk. The parent directory is watched rather than the file itself
// because atomic-rename saves replace the inode.
type policyWatcher struct {
	watcher  *fsnotify.Watcher
	filename string
	reload   func() error
	logger   *slog.Logger
	done     chan struct{}
}

// Watch starts hot reload for the policy document. Call Close on the
// service to stop it.
func (s *PolicyService) Watch() error {
	if s.watcher != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(s.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("watch policy directory: %w", err)
	}

	w := &policyWatcher{
		watcher:  fsw,
		filename: filepath.Base(s.path),
		reload:   s.Reload,
		logger:   s.logger,
		done:     make(chan struct{}),
	}
	s.watcher = w
	go w.run()

	s.logger.Info("policy hot reload enabled", "path", s.path)
	return nil
}

func (w *policyWatcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *policyWatcher) run() {
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.shouldHandle(event) {
				debounce.Reset(debounceWindow)
				pending = true
			}

		case <-debounce.C:
			if !pending {
				continue
			}
			pending = false
			if err := w.reload(); err != nil {
				// Previous snapshot stays in force on a bad edit.
				w.logger.Error("policy reload failed, keeping previous policy", "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("policy watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *policyWatcher) shouldHandle(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	return filepath.Base(event.Name) == w.filename
}
