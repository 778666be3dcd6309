package beads

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/beadify/beadify/internal/debug"
)

// Watcher observes events.jsonl and runs an incremental sync when the
// file changes underneath us, which is what happens after the
// version-control tool merges in another collaborator's lines. Events
// are debounced: a merge touches the file several times in quick
// succession and one replay covers all of it.
type Watcher struct {
	repo     *Repo
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	done    chan struct{}
	onError func(error)
}

// Watch starts watching the repo's log. onError receives sync failures
// (nil means drop them); Close stops the watcher. Watching the parent
// directory as well catches the rename-over pattern some merge tools use.
func (r *Repo) Watch(ctx context.Context, onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		repo:     r,
		watcher:  fsw,
		debounce: 500 * time.Millisecond,
		done:     make(chan struct{}),
		onError:  onError,
	}

	if err := fsw.Add(filepath.Dir(r.log.Path())); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	// The file itself may not survive renames; the directory watch is
	// the reliable one, this one just lowers latency.
	_ = fsw.Add(r.log.Path())

	go w.run(ctx)
	return w, nil
}

// Close stops the watcher and its pending debounce.
func (w *Watcher) Close() error {
	close(w.done)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	logName := filepath.Base(w.repo.log.Path())
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != logName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			debug.Logf("watcher: %v", err)
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		if _, err := w.repo.Sync(ctx, false); err != nil && w.onError != nil {
			w.onError(err)
		}
	})
}
