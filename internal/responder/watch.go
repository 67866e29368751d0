package responder

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Reload is delivered whenever the watched trigger file changes. Err is set
// when the new content could not be loaded; the previous table stays active.
type Reload struct {
	Table *Table
	Err   error
}

// Watcher reloads a trigger file when it is written, created or renamed into
// place.
type Watcher struct {
	path    string
	fs      *fsnotify.Watcher
	updates chan Reload
	done    chan struct{}
	once    sync.Once
}

// Watch starts watching path. The parent directory is watched so editors that
// replace the file atomically are still picked up.
func Watch(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("responder: resolve %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("responder: create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("responder: watch %s: %w", filepath.Dir(abs), err)
	}
	w := &Watcher{
		path:    abs,
		fs:      fw,
		updates: make(chan Reload, 1),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Updates yields reload results. Only the latest pending result is kept.
func (w *Watcher) Updates() <-chan Reload {
	return w.updates
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			table, err := LoadTable(w.path)
			w.publish(Reload{Table: table, Err: err})
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.publish(Reload{Err: fmt.Errorf("responder: watch: %w", err)})
		}
	}
}

func (w *Watcher) publish(r Reload) {
	for {
		select {
		case w.updates <- r:
			return
		default:
		}
		// drop the stale pending reload so the newest one wins
		select {
		case <-w.updates:
		default:
		}
	}
}
