package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events editors produce on save
const DefaultDebounce = 100 * time.Millisecond

// ReloadCallback is called after every reload attempt. f is nil when err is
// a load or watch failure.
type ReloadCallback func(f *File, err error)

// WatchOption configures a Watcher
type WatchOption func(*Watcher)

// WithDebounce sets how long the file must stay quiet before reloading
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithReloadCallback registers fn to observe reload results
func WithReloadCallback(fn ReloadCallback) WatchOption {
	return func(w *Watcher) {
		w.callback = fn
	}
}

// Watcher reloads a config file when it changes and applies it to a logger.
//
// The parent directory is watched rather than the file so that editors which
// replace the file by rename keep triggering reloads.
type Watcher struct {
	path     string
	target   Reconfigurable
	watcher  *fsnotify.Watcher
	callback ReloadCallback
	debounce time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// Watch starts watching path and applies each successful reload to target
func Watch(path string, target Reconfigurable, opts ...WatchOption) (*Watcher, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if _, err := detectFormat(path); err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     path,
		target:   target,
		debounce: DefaultDebounce,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: failed to create watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fsWatcher.Add(dir); err != nil {
		closeErr := fsWatcher.Close()
		return nil, errors.Join(
			fmt.Errorf("config: failed to watch directory %s: %w", dir, err),
			closeErr,
		)
	}
	w.watcher = fsWatcher

	go w.run()

	return w, nil
}

// Stop ends the watch and waits for the watcher goroutine. Safe to call twice.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.stopErr = w.watcher.Close()
		<-w.done
	})
	return w.stopErr
}

func (w *Watcher) run() {
	defer close(w.done)

	filename := filepath.Base(w.path)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event, filename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.report(nil, fmt.Errorf("config: watch error: %w", err))

		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

// relevant reports whether event touched the watched file's contents
func relevant(event fsnotify.Event, filename string) bool {
	if filepath.Base(event.Name) != filename {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *Watcher) reload() {
	f, err := Load(w.path)
	if err != nil {
		w.report(nil, err)
		return
	}
	w.report(f, f.Apply(w.target))
}

func (w *Watcher) report(f *File, err error) {
	if w.callback != nil {
		w.callback(f, err)
	}
}
