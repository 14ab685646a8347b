// Package keeper is the high-level store facade: each memory or category
// operation composes content I/O with the surgical index update that keeps
// the category's derived index in step. CLI and server layers talk to this
// package; they never touch storage directly.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/keep/pkg/memstore"
	"github.com/entrhq/keep/pkg/memstore/content"
	"github.com/entrhq/keep/pkg/memstore/index"
	"github.com/entrhq/keep/pkg/memstore/prune"
	"github.com/entrhq/keep/pkg/memstore/reindex"
	"github.com/entrhq/keep/pkg/memstore/storage"
)

// ErrAlreadyExists is returned when a create or move would overwrite an
// existing memory.
var ErrAlreadyExists = errors.New("keeper: memory already exists")

var timeNow = time.Now // injected for testability

// Keeper operates one opened store root.
type Keeper struct {
	fs        *storage.FS
	indexes   *index.Store
	content   *content.Store
	reindexer *reindex.Engine
	pruner    *prune.Engine
}

// Open opens (creating if necessary) a store root directory.
func Open(root string) (*Keeper, error) {
	fs, err := storage.NewFS(root)
	if err != nil {
		return nil, err
	}
	idx := index.NewStore(fs)
	cs := content.NewStore(fs)
	return &Keeper{
		fs:        fs,
		indexes:   idx,
		content:   cs,
		reindexer: reindex.New(idx, fs, fs, cs),
		pruner:    prune.New(idx, fs, cs),
	}, nil
}

// Root returns the absolute store root.
func (k *Keeper) Root() string {
	return k.fs.Root()
}

// Indexes exposes the category index store.
func (k *Keeper) Indexes() *index.Store {
	return k.indexes
}

// SetLogger attaches a logger to the maintenance engines.
func (k *Keeper) SetLogger(l reindex.Logger) {
	k.reindexer.SetLogger(l)
}

// CreateParams holds the inputs for a new memory.
type CreateParams struct {
	Body           string
	Tags           []string
	ExpiresAt      *time.Time
	CreateCategory bool // create the owning category (and ancestors) if missing
}

// Create writes a new memory file and its index entry. The target category
// must already exist unless CreateCategory is set.
func (k *Keeper) Create(ctx context.Context, slugPath string, p CreateParams) error {
	categoryPath, _, err := memstore.SplitSlugPath(slugPath)
	if err != nil {
		return err
	}
	if _, err := k.content.Read(ctx, slugPath); err == nil {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, slugPath)
	} else if !errors.Is(err, memstore.ErrNotFound) {
		return err
	}
	if !p.CreateCategory {
		if _, ok, err := k.indexes.Read(ctx, categoryPath); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("%w: %q", memstore.ErrCategoryNotFound, categoryPath)
		}
	}

	now := timeNow().UTC()
	m := &content.MemoryFile{
		Meta: content.Metadata{CreatedAt: now, Tags: p.Tags, ExpiresAt: p.ExpiresAt},
		Body: p.Body,
	}
	if err := k.content.Write(ctx, slugPath, m); err != nil {
		return err
	}
	return k.indexes.UpdateAfterMemoryWrite(ctx, slugPath, memstore.MemoryEntry{
		CreatedAt: now,
		Tags:      p.Tags,
		ExpiresAt: p.ExpiresAt,
	}, index.UpdateOptions{CreateIfMissing: true})
}

// Get reads one memory.
func (k *Keeper) Get(ctx context.Context, slugPath string) (*content.MemoryFile, error) {
	return k.content.Read(ctx, slugPath)
}

// UpdateParams holds the mutable fields of a memory. Nil means unchanged.
type UpdateParams struct {
	Body        *string
	Tags        []string // nil leaves tags unchanged
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// Update rewrites an existing memory and refreshes its index entry,
// stamping the update time.
func (k *Keeper) Update(ctx context.Context, slugPath string, p UpdateParams) error {
	m, err := k.content.Read(ctx, slugPath)
	if err != nil {
		return err
	}
	if p.Body != nil {
		m.Body = *p.Body
	}
	if p.Tags != nil {
		m.Meta.Tags = p.Tags
	}
	if p.ClearExpiry {
		m.Meta.ExpiresAt = nil
	} else if p.ExpiresAt != nil {
		m.Meta.ExpiresAt = p.ExpiresAt
	}
	now := timeNow().UTC()
	m.Meta.UpdatedAt = &now

	if err := k.content.Write(ctx, slugPath, m); err != nil {
		return err
	}
	// The file exists, so its category exists; CreateIfMissing also lets the
	// update heal an index that drifted away.
	return k.indexes.UpdateAfterMemoryWrite(ctx, slugPath, entryFromMeta(slugPath, m.Meta),
		index.UpdateOptions{CreateIfMissing: true})
}

// Delete removes a memory file and its index entry.
func (k *Keeper) Delete(ctx context.Context, slugPath string) error {
	if err := k.content.Delete(ctx, slugPath); err != nil {
		return err
	}
	return k.indexes.RemoveEntry(ctx, slugPath)
}

// Move relocates a memory to another slug path: the destination is written
// and indexed before the source is removed, so a crash mid-move leaves a
// duplicate file (repaired by reindex) rather than a lost memory.
func (k *Keeper) Move(ctx context.Context, from, to string, createCategory bool) error {
	if from == to {
		return fmt.Errorf("keeper: move source and destination are identical: %q", from)
	}
	toCategory, _, err := memstore.SplitSlugPath(to)
	if err != nil {
		return err
	}
	m, err := k.content.Read(ctx, from)
	if err != nil {
		return err
	}
	if _, err := k.content.Read(ctx, to); err == nil {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, to)
	} else if !errors.Is(err, memstore.ErrNotFound) {
		return err
	}
	if !createCategory {
		if _, ok, err := k.indexes.Read(ctx, toCategory); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("%w: %q", memstore.ErrCategoryNotFound, toCategory)
		}
	}

	now := timeNow().UTC()
	m.Meta.UpdatedAt = &now
	if err := k.content.Write(ctx, to, m); err != nil {
		return err
	}
	if err := k.indexes.UpdateAfterMemoryWrite(ctx, to, entryFromMeta(to, m.Meta),
		index.UpdateOptions{CreateIfMissing: true}); err != nil {
		return err
	}
	if err := k.content.Delete(ctx, from); err != nil {
		return err
	}
	return k.indexes.RemoveEntry(ctx, from)
}

// List returns the index for a category. A category with no index reads as
// empty, never as an error.
func (k *Keeper) List(ctx context.Context, categoryPath string) (*memstore.CategoryIndex, error) {
	ci, ok, err := k.indexes.Read(ctx, categoryPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return memstore.NewCategoryIndex(categoryPath), nil
	}
	return ci, nil
}

// CreateCategory explicitly creates a category (and missing ancestors),
// each with an empty index and an entry in its parent.
func (k *Keeper) CreateCategory(ctx context.Context, categoryPath string) error {
	if categoryPath == memstore.RootPath {
		return nil // the root always exists
	}
	return k.indexes.EnsureCategory(ctx, categoryPath)
}

// DeleteCategory removes a non-root category with everything beneath it,
// and drops its entry from the parent index.
func (k *Keeper) DeleteCategory(ctx context.Context, categoryPath string) error {
	if categoryPath == memstore.RootPath {
		return memstore.ErrRootCategory
	}
	err := k.fs.DeleteCategory(ctx, categoryPath)
	if errors.Is(err, storage.ErrNotExist) {
		return fmt.Errorf("%w: %q", memstore.ErrCategoryNotFound, categoryPath)
	}
	if err != nil {
		return err
	}

	parentPath, _ := memstore.ParentPath(categoryPath)
	parent, ok, err := k.indexes.Read(ctx, parentPath)
	if err != nil || !ok {
		return err
	}
	if parent.RemoveSubcategory(categoryPath) {
		return k.indexes.Write(ctx, parent)
	}
	return nil
}

// SetCategoryDescription sets (or clears, with an empty string) the
// description recorded for a category in its parent's index.
func (k *Keeper) SetCategoryDescription(ctx context.Context, categoryPath, description string) error {
	parentPath, ok := memstore.ParentPath(categoryPath)
	if !ok {
		return fmt.Errorf("keeper: the root category carries no description")
	}
	return k.indexes.UpdateSubcategoryDescription(ctx, parentPath, categoryPath, description)
}

// Reindex rebuilds all indexes under scope from the files on disk.
func (k *Keeper) Reindex(ctx context.Context, scope string) (*reindex.Result, error) {
	return k.reindexer.Run(ctx, scope)
}

// Prune removes expired memories under scope.
func (k *Keeper) Prune(ctx context.Context, scope string, opts prune.Options) (*prune.Result, error) {
	return k.pruner.Run(ctx, scope, opts)
}

func entryFromMeta(slugPath string, meta content.Metadata) memstore.MemoryEntry {
	_, slug, _ := memstore.SplitSlugPath(slugPath)
	return memstore.MemoryEntry{
		Slug:      slug,
		CreatedAt: meta.CreatedAt,
		UpdatedAt: meta.UpdatedAt,
		Tags:      meta.Tags,
		ExpiresAt: meta.ExpiresAt,
	}
}
