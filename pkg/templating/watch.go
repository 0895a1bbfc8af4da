package templating

import (
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to template and data files so that a long running
// process can re-render or refresh without a restart.
type Watcher struct {
	watcher *fsnotify.Watcher
	changed chan string
	errors  chan error
	done    chan struct{}
	once    sync.Once
}

const watchOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// NewWatcher starts watching paths, which may be files or directories.
// Watching a directory reports changes to the files directly inside it.
func NewWatcher(paths ...string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if err = watcher.Add(path); err != nil {
			_ = watcher.Close()
			return nil, err
		}
	}

	w := &Watcher{
		watcher: watcher,
		changed: make(chan string),
		errors:  make(chan error),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&watchOps == 0 {
				continue
			}
			select {
			case w.changed <- event.Name:
			case <-w.done:
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		case <-w.done:
			return
		}
	}
}

// Changed returns a channel that receives the name of every changed file.
func (w *Watcher) Changed() <-chan string {
	return w.changed
}

// Errors returns a channel that receives errors from the underlying watcher.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
