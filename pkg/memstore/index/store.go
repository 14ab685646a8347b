package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/keep/pkg/memstore"
	"github.com/entrhq/keep/pkg/memstore/storage"
)

// Store performs single-category index operations through an IndexStorage
// backend. It is the hot path for memory writes: every operation touches at
// most the target category's index and its parent chain, never the rest of
// the tree.
type Store struct {
	backend storage.IndexStorage
}

// NewStore creates a Store on the given backend.
func NewStore(backend storage.IndexStorage) *Store {
	return &Store{backend: backend}
}

// Read loads one category's index. A category with no index file is not an
// error: Read returns ok=false and callers treat it as an empty index.
// A present but undecodable document returns an error wrapping ErrCorrupt.
func (s *Store) Read(ctx context.Context, categoryPath string) (*memstore.CategoryIndex, bool, error) {
	data, err := s.backend.ReadIndex(ctx, categoryPath)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	ci, err := Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("category %q: %w", categoryPath, err)
	}
	return ci, true, nil
}

// Write replaces the on-disk index for ci's category. The backend write is
// a single atomic replace, so no concurrent reader observes a partial
// document.
func (s *Store) Write(ctx context.Context, ci *memstore.CategoryIndex) error {
	data, err := Encode(ci)
	if err != nil {
		return err
	}
	return s.backend.WriteIndex(ctx, ci.Path, data)
}

// UpdateOptions configures UpdateAfterMemoryWrite.
type UpdateOptions struct {
	// CreateIfMissing creates the target category (and any missing
	// ancestors, registering each in its parent's subcategory list) before
	// the upsert. When false, a missing category is ErrCategoryNotFound.
	CreateIfMissing bool
}

// UpdateAfterMemoryWrite upserts the index entry for the memory at
// slugPath after its file has been written. The entry replaces any existing
// entry with the same slug. The parent's memory count for the category is
// kept in step.
func (s *Store) UpdateAfterMemoryWrite(ctx context.Context, slugPath string, entry memstore.MemoryEntry, opts UpdateOptions) error {
	categoryPath, slug, err := memstore.SplitSlugPath(slugPath)
	if err != nil {
		return err
	}
	entry.Slug = slug

	ci, ok, err := s.Read(ctx, categoryPath)
	if err != nil {
		return err
	}
	if !ok {
		if !opts.CreateIfMissing {
			return fmt.Errorf("%w: %q", memstore.ErrCategoryNotFound, categoryPath)
		}
		ci, err = s.ensureCategory(ctx, categoryPath)
		if err != nil {
			return err
		}
	}

	ci.UpsertMemory(entry)
	if err := s.Write(ctx, ci); err != nil {
		return err
	}
	return s.syncParentCount(ctx, categoryPath, len(ci.Memories))
}

// RemoveEntry deletes the index entry for the memory at slugPath. A missing
// category or entry is not an error; removal is idempotent. The category's
// own index survives even when its last memory entry goes away, so a
// subcategory description set on it or on its parent is never lost.
func (s *Store) RemoveEntry(ctx context.Context, slugPath string) error {
	categoryPath, slug, err := memstore.SplitSlugPath(slugPath)
	if err != nil {
		return err
	}
	ci, ok, err := s.Read(ctx, categoryPath)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if !ci.RemoveMemory(slug) {
		return nil
	}
	if err := s.Write(ctx, ci); err != nil {
		return err
	}
	return s.syncParentCount(ctx, categoryPath, len(ci.Memories))
}

// UpdateSubcategoryDescription upserts the description on parentPath's
// subcategory entry for childPath. An empty description clears the field
// but keeps the entry. The description is trimmed and length-checked.
func (s *Store) UpdateSubcategoryDescription(ctx context.Context, parentPath, childPath, description string) error {
	if err := memstore.ValidateCategoryPath(parentPath); err != nil {
		return err
	}
	if err := memstore.ValidateCategoryPath(childPath); err != nil {
		return err
	}
	if !memstore.IsImmediateChild(parentPath, childPath) {
		return fmt.Errorf("index: %q is not an immediate subcategory of %q", childPath, parentPath)
	}
	trimmed, err := memstore.ValidateDescription(description)
	if err != nil {
		return err
	}

	ci, ok, err := s.Read(ctx, parentPath)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", memstore.ErrCategoryNotFound, parentPath)
	}

	sub := ci.Subcategory(childPath)
	if sub == nil {
		ci.UpsertSubcategory(memstore.SubcategoryEntry{Path: childPath})
		sub = ci.Subcategory(childPath)
	}
	if trimmed == "" {
		sub.Description = nil
	} else {
		sub.Description = &trimmed
	}
	return s.Write(ctx, ci)
}

// EnsureCategory makes sure categoryPath exists as an indexed category,
// creating it and any missing ancestors. Existing indexes are untouched.
func (s *Store) EnsureCategory(ctx context.Context, categoryPath string) error {
	if err := memstore.ValidateCategoryPath(categoryPath); err != nil {
		return err
	}
	_, err := s.ensureCategory(ctx, categoryPath)
	return err
}

// ensureCategory creates an empty index for categoryPath if none exists,
// creating and linking missing ancestors on the way up. It returns the
// category's index, existing or fresh.
func (s *Store) ensureCategory(ctx context.Context, categoryPath string) (*memstore.CategoryIndex, error) {
	ci, ok, err := s.Read(ctx, categoryPath)
	if err != nil {
		return nil, err
	}
	if ok {
		return ci, nil
	}

	ci = memstore.NewCategoryIndex(categoryPath)
	if err := s.Write(ctx, ci); err != nil {
		return nil, err
	}

	parentPath, hasParent := memstore.ParentPath(categoryPath)
	if !hasParent {
		return ci, nil
	}
	parent, err := s.ensureCategory(ctx, parentPath)
	if err != nil {
		return nil, err
	}
	if parent.Subcategory(categoryPath) == nil {
		parent.UpsertSubcategory(memstore.SubcategoryEntry{Path: categoryPath})
		if err := s.Write(ctx, parent); err != nil {
			return nil, err
		}
	}
	return ci, nil
}

// syncParentCount refreshes the memory count on the parent's subcategory
// entry for categoryPath. A missing parent index is skipped rather than
// created; the next reindex reconciles it.
func (s *Store) syncParentCount(ctx context.Context, categoryPath string, count int) error {
	parentPath, hasParent := memstore.ParentPath(categoryPath)
	if !hasParent {
		return nil
	}
	parent, ok, err := s.Read(ctx, parentPath)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	sub := parent.Subcategory(categoryPath)
	if sub == nil {
		parent.UpsertSubcategory(memstore.SubcategoryEntry{Path: categoryPath, MemoryCount: count})
	} else {
		if sub.MemoryCount == count {
			return nil
		}
		sub.MemoryCount = count
	}
	return s.Write(ctx, parent)
}
