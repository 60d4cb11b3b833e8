package history

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher re-indexes transcripts as the claude CLI writes them.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	debounce time.Duration

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// NewWatcher watches the store's projects directory and each project
// directory below it. The projects directory must exist.
func NewWatcher(store *Store) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	root := store.ProjectsDir()
	if err := w.Add(root); err != nil {
		w.Close()
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		w.Close()
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.Add(filepath.Join(root, e.Name())); err != nil {
				store.log.Warn().Err(err).Str("dir", e.Name()).Msg("cannot watch project directory")
			}
		}
	}

	store.log.Info().Str("dir", root).Msg("history watcher initialized")
	return &Watcher{
		store:    store,
		watcher:  w,
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// SetDebounce sets how long a file must be quiet before it is re-indexed.
// Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.store.log.Error().Err(err).Msg("history watcher error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	if ev.Op&fsnotify.Create != 0 && filepath.Dir(ev.Name) == filepath.Clean(w.store.ProjectsDir()) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(ev.Name); err != nil {
				w.store.log.Warn().Err(err).Str("dir", ev.Name).Msg("cannot watch project directory")
			}
			return
		}
	}
	if strings.HasSuffix(ev.Name, ".jsonl") {
		w.schedule(ev.Name)
	}
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.stopCh:
		return
	default:
	}
	if t, ok := w.pending[path]; ok {
		// A timer that already fired runs its callback again once re-armed.
		if !t.Reset(w.debounce) {
			w.wg.Add(1)
		}
		return
	}
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if _, err := w.store.SyncFile(context.Background(), path); err != nil {
			w.store.log.Warn().Err(err).Str("path", path).Msg("failed to re-index transcript")
		}
	})
}

// Stop stops the watcher and waits for in-flight re-indexing.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	started := w.started
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if started {
		<-w.doneCh
	}
	w.wg.Wait()
	return w.watcher.Close()
}
