// Package watcher reports file changes under a set of paths, debounced into
// batches, so ingestion can re-run on edited documents.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/ragchat/internal/logger"
)

// DefaultDebounce is the quiet period before a batch is emitted.
const DefaultDebounce = 500 * time.Millisecond

// ChangeType classifies a file change.
type ChangeType int

// Change types.
const (
	ChangeCreated ChangeType = iota + 1
	ChangeUpdated
	ChangeDeleted
)

// String returns the string representation.
func (t ChangeType) String() string {
	switch t {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is one changed file.
type Change struct {
	Path string
	Type ChangeType
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a batch is emitted.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFilter keeps only files for which keep returns true.
func WithFilter(keep func(path string) bool) Option {
	return func(w *Watcher) {
		w.keep = keep
	}
}

// Watcher watches files and directory trees. Hidden files and directories
// are ignored.
type Watcher struct {
	roots    []string
	files    map[string]bool
	debounce time.Duration
	keep     func(path string) bool

	mu     sync.Mutex
	fsw    *fsnotify.Watcher
	closed bool
}

// New creates a watcher over roots, which may be files or directories.
func New(roots []string, opts ...Option) *Watcher {
	w := &Watcher{
		roots:    roots,
		files:    make(map[string]bool),
		debounce: DefaultDebounce,
		keep:     func(string) bool { return true },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch starts watching and returns a channel of change batches. The
// channel is closed when ctx is done or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan []Change, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, errors.New("watcher is closed")
	}
	if w.fsw != nil {
		return nil, errors.New("watcher already started")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	for _, root := range w.roots {
		if err := w.addRoot(fsw, root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	w.fsw = fsw

	out := make(chan []Change)
	go w.loop(ctx, fsw, out)
	return out, nil
}

func (w *Watcher) addRoot(fsw *fsnotify.Watcher, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	if !info.IsDir() {
		// Editors often replace files, so watch the directory and filter.
		w.files[abs] = true
		return fsw.Add(filepath.Dir(abs))
	}
	return w.addTree(fsw, abs)
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- []Change) {
	defer close(out)

	pending := make(map[string]Change)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				w.watchNewDir(fsw, ev.Name)
			}
			change := w.handleEvent(ev)
			if change == nil {
				continue
			}
			pending[change.Path] = merge(pending[change.Path], *change)
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("File watcher error: %v", err)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]Change, 0, len(pending))
			for _, c := range pending {
				batch = append(batch, c)
			}
			sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
			pending = make(map[string]Change)

			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}
		}
	}
}

// watchNewDir adds directories created under a watched tree.
func (w *Watcher) watchNewDir(fsw *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || isHidden(path) {
		return
	}
	if err := w.addTree(fsw, path); err != nil {
		logger.Warn("Could not watch new directory %s: %v", path, err)
	}
}

// handleEvent maps an fsnotify event to a change, or nil if it is ignored.
func (w *Watcher) handleEvent(ev fsnotify.Event) *Change {
	path := ev.Name
	if isHidden(path) {
		return nil
	}
	if len(w.files) > 0 && !w.files[path] && !w.underDirRoot(path) {
		return nil
	}

	var t ChangeType
	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		t = ChangeDeleted
	case ev.Has(fsnotify.Create):
		t = ChangeCreated
	case ev.Has(fsnotify.Write):
		t = ChangeUpdated
	default:
		return nil
	}

	if t != ChangeDeleted {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return nil
		}
	}
	if !w.keep(path) {
		return nil
	}
	return &Change{Path: path, Type: t}
}

// underDirRoot reports whether path lies in a watched directory root, as
// opposed to beside a watched file.
func (w *Watcher) underDirRoot(path string) bool {
	for _, root := range w.roots {
		abs, err := filepath.Abs(root)
		if err != nil || w.files[abs] {
			continue
		}
		if rel, err := filepath.Rel(abs, path); err == nil && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}

// Close stops the watcher. Watch fails afterwards.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

// merge folds a new change into a pending one: a file created and then
// written is still created, and anything followed by a delete is deleted.
func merge(prev, next Change) Change {
	if prev.Type == ChangeCreated && next.Type == ChangeUpdated {
		return prev
	}
	if prev.Type == ChangeDeleted && next.Type == ChangeCreated {
		next.Type = ChangeUpdated
	}
	return next
}

func isHidden(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
