// Package reindex rebuilds category indexes from the memory files on disk.
// Indexes are a derived cache; this package is the repair path that makes
// every other component's drift recoverable, so its safety rules are strict:
// path enumeration failures abort the whole run before anything is deleted,
// and only the concurrent-deletion race during stale cleanup is tolerated.
package reindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/entrhq/keep/pkg/memstore"
	"github.com/entrhq/keep/pkg/memstore/index"
	"github.com/entrhq/keep/pkg/memstore/storage"
)

// EntryReader turns a memory file into its index entry. The content store
// implements it; the engine stays ignorant of front-matter.
type EntryReader interface {
	EntryAt(ctx context.Context, relPath string) (memstore.MemoryEntry, error)
}

// Logger is the minimal logging surface the engine needs.
type Logger interface {
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{}) {}

// Engine rebuilds indexes under a scope. It operates entirely through the
// storage ports, so a non-filesystem index backend reuses it unchanged.
type Engine struct {
	indexes *index.Store
	backend storage.IndexStorage
	content storage.ContentStorage
	entries EntryReader
	log     Logger
}

// New creates an Engine. backend must be the same IndexStorage that indexes
// wraps; the engine needs the raw list/delete operations the store does not
// expose.
func New(indexes *index.Store, backend storage.IndexStorage, content storage.ContentStorage, entries EntryReader) *Engine {
	return &Engine{
		indexes: indexes,
		backend: backend,
		content: content,
		entries: entries,
		log:     nopLogger{},
	}
}

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(l Logger) {
	if l != nil {
		e.log = l
	}
}

// Result reports what a completed rebuild did.
type Result struct {
	Scope    string   // category subtree that was rebuilt
	Rebuilt  int      // index documents written
	Memories int      // memory entries indexed
	Removed  []string // stale index paths deleted
}

// CleanupError reports stale index files that could not be removed after an
// otherwise successful rebuild. The rebuilt indexes are valid; only the
// cleanup is incomplete, so callers must treat this differently from a
// total failure.
type CleanupError struct {
	Failures map[string]error // category path -> deletion error
}

func (e *CleanupError) Error() string {
	paths := make([]string, 0, len(e.Failures))
	for p := range e.Failures {
		paths = append(paths, fmt.Sprintf("%q", p))
	}
	sort.Strings(paths)
	return fmt.Sprintf("reindex: rebuild complete but %d stale index file(s) could not be removed: %s",
		len(e.Failures), strings.Join(paths, ", "))
}

// Run rebuilds every category index under scope from the memory files on
// disk, then removes index files for categories that no longer hold any
// content. The scope is explicit: pass memstore.RootPath to rebuild the
// whole store.
//
// The algorithm is collect-then-diff:
//
//  1. enumerate existing index files under scope (fail-fast),
//  2. walk memory files and derive the live categories, rebuilding their
//     indexes in memory,
//  3. carry subcategory descriptions over from the old indexes,
//  4. write every rebuilt index (idempotent, safe to retry),
//  5. delete indexes present before but absent from the rebuilt set.
//
// A concurrent deletion racing step 5 is benign and swallowed. Any other
// cleanup failure is returned as *CleanupError alongside a valid Result.
func (e *Engine) Run(ctx context.Context, scope string) (*Result, error) {
	if err := memstore.ValidateCategoryPath(scope); err != nil {
		return nil, err
	}

	// Step 1: the "before" set. Errors here abort the run: a path we fail
	// to enumerate could be a live category, and guessing would risk
	// deleting its index in step 5.
	before, err := e.backend.ListIndexes(ctx, scope)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", memstore.ErrCategoryNotFound, scope)
	}
	if err != nil {
		return nil, fmt.Errorf("reindex: collect existing indexes: %w", err)
	}

	// Step 2: rebuild from ground truth. Liveness is content-derived: a
	// category earns an index by holding memory files, directly or through
	// a descendant. Directories that no longer do are stale.
	rebuilt, memories, err := e.rebuild(ctx, scope)
	if err != nil {
		return nil, err
	}

	// Step 3: descriptions exist only in indexes, not in memory files, so a
	// rebuild must carry them over or lose them. Old indexes that fail to
	// decode are skipped here: rebuilding past corruption is the point.
	e.carryDescriptions(ctx, before, rebuilt)

	// Step 4: write the "after" set, in stable order.
	after := make([]string, 0, len(rebuilt))
	for p := range rebuilt {
		after = append(after, p)
	}
	sort.Strings(after)
	for _, p := range after {
		if err := e.indexes.Write(ctx, rebuilt[p]); err != nil {
			return nil, fmt.Errorf("reindex: write index for %q: %w", p, err)
		}
	}

	res := &Result{Scope: scope, Rebuilt: len(after), Memories: memories}

	// Step 5: stale cleanup. "Already gone" means a concurrent process beat
	// us to it, which is fine. Anything else is reported, but the rebuild
	// above already succeeded.
	failures := map[string]error{}
	for _, p := range before {
		if _, live := rebuilt[p]; live {
			continue
		}
		err := e.backend.DeleteIndex(ctx, p)
		switch {
		case err == nil:
			res.Removed = append(res.Removed, p)
		case errors.Is(err, storage.ErrNotExist):
			e.log.Infof("reindex: stale index %q removed concurrently", p)
		default:
			e.log.Warnf("reindex: failed to remove stale index %q: %v", p, err)
			failures[p] = err
		}
	}
	sort.Strings(res.Removed)
	if len(failures) > 0 {
		return res, &CleanupError{Failures: failures}
	}
	return res, nil
}

// rebuild walks the scope and reconstructs every category index in memory.
func (e *Engine) rebuild(ctx context.Context, scope string) (map[string]*memstore.CategoryIndex, int, error) {
	categories, err := e.content.ListCategories(ctx, scope)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, 0, fmt.Errorf("%w: %q", memstore.ErrCategoryNotFound, scope)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("reindex: enumerate categories: %w", err)
	}

	all := make(map[string]*memstore.CategoryIndex, len(categories))
	for _, cat := range categories {
		all[cat] = memstore.NewCategoryIndex(cat)
	}

	files, err := e.content.ListMemoryFiles(ctx, scope)
	if err != nil {
		return nil, 0, fmt.Errorf("reindex: enumerate memory files: %w", err)
	}
	for _, f := range files {
		entry, err := e.entries.EntryAt(ctx, f)
		if err != nil {
			// Malformed source is surfaced, never silently dropped from the
			// rebuilt index.
			return nil, 0, fmt.Errorf("reindex: %w", err)
		}
		cat := memstore.RootPath
		if i := strings.LastIndex(f, "/"); i >= 0 {
			cat = f[:i]
		}
		ci, ok := all[cat]
		if !ok {
			return nil, 0, fmt.Errorf("reindex: memory file %q outside any enumerated category", f)
		}
		ci.UpsertMemory(entry)
	}

	// A category is live when it holds memory files or a live subcategory
	// does; liveness propagates up to the scope. The scope itself always
	// keeps its index, as the root does in a store-wide run. A directory
	// that stopped holding content since the last run stays in the "before"
	// set but drops out of here, which is what makes step 5 fire.
	live := map[string]bool{scope: true}
	for cat, ci := range all {
		if len(ci.Memories) == 0 {
			continue
		}
		for p := cat; ; {
			live[p] = true
			parent, ok := memstore.ParentPath(p)
			if !ok || !memstore.WithinScope(scope, parent) {
				break
			}
			p = parent
		}
	}

	rebuilt := make(map[string]*memstore.CategoryIndex, len(live))
	for cat, ci := range all {
		if live[cat] {
			rebuilt[cat] = ci
		}
	}

	// Subcategory membership is inferred from path structure: a category's
	// subcategories are exactly its immediate children that are live.
	for cat, ci := range rebuilt {
		parent, ok := memstore.ParentPath(cat)
		if !ok || !memstore.WithinScope(scope, parent) {
			continue
		}
		if pci, ok := rebuilt[parent]; ok {
			pci.UpsertSubcategory(memstore.SubcategoryEntry{
				Path:        cat,
				MemoryCount: len(ci.Memories),
			})
		}
	}
	return rebuilt, len(files), nil
}

// carryDescriptions copies subcategory descriptions from the pre-rebuild
// indexes onto the rebuilt ones, for subcategories that still exist.
func (e *Engine) carryDescriptions(ctx context.Context, before []string, rebuilt map[string]*memstore.CategoryIndex) {
	for _, p := range before {
		target, live := rebuilt[p]
		if !live {
			continue
		}
		old, ok, err := e.indexes.Read(ctx, p)
		if err != nil {
			e.log.Warnf("reindex: dropping unreadable old index for %q: %v", p, err)
			continue
		}
		if !ok {
			continue
		}
		for i := range old.Subcategories {
			sub := old.Subcategories[i]
			if sub.Description == nil {
				continue
			}
			if cur := target.Subcategory(sub.Path); cur != nil {
				cur.Description = sub.Description
			}
		}
	}
}
