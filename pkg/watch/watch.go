// Package watch monitors a store root for memory file changes and triggers
// scoped reindexes. It exists for operators who want index drift repaired
// continuously instead of on demand; correctness never depends on it, since
// an explicit reindex repairs the same drift.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/entrhq/keep/pkg/memstore"
	"github.com/entrhq/keep/pkg/memstore/storage"
)

// ReindexFunc rebuilds the indexes under one category scope.
type ReindexFunc func(ctx context.Context, scope string) error

// Logger is the minimal logging surface the watcher needs.
type Logger interface {
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{}) {}

const defaultDebounce = 500 * time.Millisecond

// Watcher debounces filesystem events per category and hands the affected
// scopes to a ReindexFunc.
type Watcher struct {
	root     string
	reindex  ReindexFunc
	debounce time.Duration
	log      Logger

	// dirs tracks every watched directory so events can be classified even
	// after the path is gone. Names alone cannot tell a removed directory
	// called "v1.0" from a removed file.
	dirs map[string]struct{}
}

// New creates a Watcher for a store root.
func New(root string, reindex ReindexFunc) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: abs root: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("watch: store root: %w", err)
	}
	return &Watcher{
		root:     abs,
		reindex:  reindex,
		debounce: defaultDebounce,
		log:      nopLogger{},
		dirs:     map[string]struct{}{},
	}, nil
}

// SetDebounce overrides the debounce window for change bursts.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// SetLogger replaces the watcher's logger.
func (w *Watcher) SetLogger(l Logger) {
	if l != nil {
		w.log = l
	}
}

// Run watches until the context is cancelled. Change bursts within the
// debounce window coalesce into the smallest set of covering category
// scopes before reindexing.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addRecursive(fw, w.root); err != nil {
		return err
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	dirty := map[string]struct{}{}
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			scope, relevant := w.scopeFor(event)
			if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
				w.forgetDir(event.Name)
			}
			if !relevant {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				// New directories need their own watch before anything
				// inside them produces events.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(fw, event.Name); err != nil {
						w.log.Warnf("watch: %v", err)
					}
				}
			}
			dirty[scope] = struct{}{}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			for _, scope := range collapseScopes(dirty) {
				w.log.Infof("watch: reindexing %q", scope)
				if err := w.reindex(ctx, scope); err != nil {
					w.log.Warnf("watch: reindex %q: %v", scope, err)
				}
			}
			dirty = map[string]struct{}{}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("watch: watcher error: %v", err)
		}
	}
}

// addRecursive watches dir and every non-dot directory beneath it.
func (w *Watcher) addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("watch: walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		w.dirs[path] = struct{}{}
		return nil
	})
}

// forgetDir drops a removed directory and its descendants from the tracked
// set.
func (w *Watcher) forgetDir(name string) {
	if _, ok := w.dirs[name]; !ok {
		return
	}
	prefix := name + string(filepath.Separator)
	for d := range w.dirs {
		if d == name || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
		}
	}
}

// isDir reports whether an event path is a directory, using the tracked set
// first so paths that no longer exist still classify correctly.
func (w *Watcher) isDir(name string) bool {
	if _, ok := w.dirs[name]; ok {
		return true
	}
	info, err := os.Stat(name)
	return err == nil && info.IsDir()
}

// scopeFor maps an event onto the category whose index it affects.
// Index files, temp files, and other dotfiles are ignored; reacting to the
// engine's own index writes would loop forever.
func (w *Watcher) scopeFor(event fsnotify.Event) (string, bool) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return memstore.RootPath, true
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", false
		}
	}

	if w.isDir(event.Name) {
		// A directory event: the category itself changed shape, so its
		// parent needs reindexing too for subcategory membership.
		if parent, ok := memstore.ParentPath(rel); ok {
			return parent, true
		}
		return memstore.RootPath, true
	}
	// A file: only memory files matter, and the scope is their category.
	if !strings.HasSuffix(rel, storage.MemoryFileExt) {
		return "", false
	}
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		return rel[:i], true
	}
	return memstore.RootPath, true
}

// collapseScopes reduces a dirty set to the shallowest scopes that cover
// every member.
func collapseScopes(dirty map[string]struct{}) []string {
	scopes := make([]string, 0, len(dirty))
	for s := range dirty {
		scopes = append(scopes, s)
	}
	sort.Strings(scopes)

	var out []string
	for _, s := range scopes {
		covered := false
		for _, kept := range out {
			if memstore.WithinScope(kept, s) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, s)
		}
	}
	return out
}
