// Package prune removes expired memories. It walks indexes rather than
// files: indexes are trusted as accurate for expiry metadata, and a plain
// walk-and-filter is preferred over incremental machinery until a real
// bottleneck shows up.
package prune

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gobwas/glob"

	"github.com/entrhq/keep/pkg/memstore"
	"github.com/entrhq/keep/pkg/memstore/content"
	"github.com/entrhq/keep/pkg/memstore/index"
	"github.com/entrhq/keep/pkg/memstore/storage"
)

// Engine finds and removes expired memory entries and their backing files.
type Engine struct {
	indexes *index.Store
	backend storage.IndexStorage
	content *content.Store
}

// New creates an Engine. backend must be the IndexStorage that indexes
// wraps.
func New(indexes *index.Store, backend storage.IndexStorage, contentStore *content.Store) *Engine {
	return &Engine{indexes: indexes, backend: backend, content: contentStore}
}

// Options configures a prune run.
type Options struct {
	// DryRun reports candidates without deleting anything.
	DryRun bool

	// Match optionally restricts pruning to slugs matching this glob
	// pattern (e.g. "scratch-*").
	Match string

	// Now overrides the expiry reference time. Zero means time.Now.
	Now time.Time
}

// Candidate is one expired memory found during the walk.
type Candidate struct {
	SlugPath  string
	ExpiresAt time.Time
}

// Outcome is the per-item result of pruning one candidate. Err is nil when
// both the file deletion and the index update succeeded.
type Outcome struct {
	Candidate
	Err error
}

// Result reports a prune run. In dry-run mode Outcomes is empty and
// Candidates lists what would be pruned; otherwise both are populated.
type Result struct {
	Scope      string
	DryRun     bool
	Candidates []Candidate
	Outcomes   []Outcome
}

// Failed returns the outcomes that did not succeed.
func (r *Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Run walks every index under scope, collects entries whose expiry is at or
// before now, and (unless DryRun) deletes each candidate's file and index
// entry. One candidate failing never aborts the rest: pruning is per-item,
// and the per-item errors ride back in the Result rather than as a run
// error.
func (e *Engine) Run(ctx context.Context, scope string, opts Options) (*Result, error) {
	if err := memstore.ValidateCategoryPath(scope); err != nil {
		return nil, err
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	var matcher glob.Glob
	if opts.Match != "" {
		g, err := glob.Compile(opts.Match)
		if err != nil {
			return nil, fmt.Errorf("prune: invalid match pattern %q: %w", opts.Match, err)
		}
		matcher = g
	}

	paths, err := e.backend.ListIndexes(ctx, scope)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", memstore.ErrCategoryNotFound, scope)
	}
	if err != nil {
		return nil, fmt.Errorf("prune: enumerate indexes: %w", err)
	}
	sort.Strings(paths)

	res := &Result{Scope: scope, DryRun: opts.DryRun}
	for _, categoryPath := range paths {
		ci, ok, err := e.indexes.Read(ctx, categoryPath)
		if err != nil {
			// A corrupt index means the walk cannot be trusted; the caller
			// should reindex first.
			return nil, fmt.Errorf("prune: %w", err)
		}
		if !ok {
			continue
		}
		for _, entry := range ci.Memories {
			if !entry.Expired(now) {
				continue
			}
			if matcher != nil && !matcher.Match(entry.Slug) {
				continue
			}
			res.Candidates = append(res.Candidates, Candidate{
				SlugPath:  memstore.JoinSlugPath(categoryPath, entry.Slug),
				ExpiresAt: *entry.ExpiresAt,
			})
		}
	}
	sort.Slice(res.Candidates, func(i, j int) bool {
		return res.Candidates[i].SlugPath < res.Candidates[j].SlugPath
	})

	if opts.DryRun {
		return res, nil
	}

	for _, c := range res.Candidates {
		res.Outcomes = append(res.Outcomes, Outcome{Candidate: c, Err: e.pruneOne(ctx, c)})
	}
	return res, nil
}

// pruneOne deletes a candidate's backing file, then its index entry. A file
// that is already gone counts as deleted; the entry removal still runs so
// the index catches up with disk.
func (e *Engine) pruneOne(ctx context.Context, c Candidate) error {
	err := e.content.Delete(ctx, c.SlugPath)
	if err != nil && !errors.Is(err, memstore.ErrNotFound) {
		return fmt.Errorf("delete file: %w", err)
	}
	if err := e.indexes.RemoveEntry(ctx, c.SlugPath); err != nil {
		return fmt.Errorf("remove index entry: %w", err)
	}
	return nil
}
