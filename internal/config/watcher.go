package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
)

// Watcher tails a single grammar file and invokes onChange whenever
// fsnotify reports it was written or renamed over (editors commonly
// replace a file by renaming a temp file onto it, so Write alone isn't
// enough). The engine only actually switches to the new grammar at its
// own between-utterance checkpoint; Watcher's job ends at delivering the
// notification.
type Watcher struct {
	path     string
	onChange func(path string)

	fs   *fsnotify.Watcher
	done chan struct{}
	stop sync.Once
}

// WatcherOption configures an optional Watcher field.
type WatcherOption func(*Watcher)

// WithOnChange sets the callback invoked on every observed change. If
// never set, NewWatcher still succeeds and observed changes are only
// logged.
func WithOnChange(fn func(path string)) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// NewWatcher starts watching path's containing directory (fsnotify
// watches directories, not files directly, so a rename-over-path is
// still visible) and returns a Watcher whose background goroutine is
// already running. Call Stop to release the underlying fsnotify handle.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, done: make(chan struct{})}
	for _, opt := range opts {
		opt(w)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(dirOf(path)); err != nil {
		fs.Close()
		return nil, err
	}
	w.fs = fs

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			glog.V(1).Infof("config: grammar file change observed: %s", ev)
			if w.onChange != nil {
				w.onChange(w.path)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			glog.Warningf("config: watcher error on %s: %v", w.path, err)
		case <-w.done:
			return
		}
	}
}

// Stop releases the underlying fsnotify watch. Safe to call more than
// once and from any goroutine.
func (w *Watcher) Stop() {
	w.stop.Do(func() {
		close(w.done)
		w.fs.Close()
	})
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
