package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/entrhq/keep/pkg/memstore"
	"github.com/entrhq/keep/pkg/memstore/storage"
)

// Store reads and writes memory files through a ContentStorage backend,
// addressing them by slug path ("category/sub/slug").
type Store struct {
	backend storage.ContentStorage
}

// NewStore creates a Store on the given backend.
func NewStore(backend storage.ContentStorage) *Store {
	return &Store{backend: backend}
}

// FilePath returns the storage-relative file path for a slug path.
func FilePath(slugPath string) string {
	return slugPath + storage.MemoryFileExt
}

// SlugPath is the inverse of FilePath. It reports false for paths that are
// not memory files.
func SlugPath(relPath string) (string, bool) {
	if !strings.HasSuffix(relPath, storage.MemoryFileExt) {
		return "", false
	}
	return strings.TrimSuffix(relPath, storage.MemoryFileExt), true
}

// Read loads and parses the memory at slugPath. A missing file is
// memstore.ErrNotFound.
func (s *Store) Read(ctx context.Context, slugPath string) (*MemoryFile, error) {
	if _, _, err := memstore.SplitSlugPath(slugPath); err != nil {
		return nil, err
	}
	raw, err := s.backend.ReadFile(ctx, FilePath(slugPath))
	if errors.Is(err, storage.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", memstore.ErrNotFound, slugPath)
	}
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Write serializes and persists the memory at slugPath, creating its
// category directory if needed.
func (s *Store) Write(ctx context.Context, slugPath string, m *MemoryFile) error {
	if _, _, err := memstore.SplitSlugPath(slugPath); err != nil {
		return err
	}
	raw, err := Serialize(m)
	if err != nil {
		return err
	}
	return s.backend.WriteFile(ctx, FilePath(slugPath), raw)
}

// Delete removes the memory file at slugPath. A missing file is
// memstore.ErrNotFound.
func (s *Store) Delete(ctx context.Context, slugPath string) error {
	if _, _, err := memstore.SplitSlugPath(slugPath); err != nil {
		return err
	}
	err := s.backend.DeleteFile(ctx, FilePath(slugPath))
	if errors.Is(err, storage.ErrNotExist) {
		return fmt.Errorf("%w: %q", memstore.ErrNotFound, slugPath)
	}
	return err
}

// EntryAt parses the memory file at the storage-relative path and returns
// its index entry view. The reindex engine uses it to rebuild indexes from
// source files.
func (s *Store) EntryAt(ctx context.Context, relPath string) (memstore.MemoryEntry, error) {
	slugPath, ok := SlugPath(relPath)
	if !ok {
		return memstore.MemoryEntry{}, fmt.Errorf("content: %q is not a memory file", relPath)
	}
	_, slug, err := memstore.SplitSlugPath(slugPath)
	if err != nil {
		return memstore.MemoryEntry{}, err
	}
	raw, err := s.backend.ReadFile(ctx, relPath)
	if err != nil {
		return memstore.MemoryEntry{}, err
	}
	m, err := Parse(raw)
	if err != nil {
		return memstore.MemoryEntry{}, fmt.Errorf("memory %q: %w", slugPath, err)
	}
	return memstore.MemoryEntry{
		Slug:      slug,
		CreatedAt: m.Meta.CreatedAt,
		UpdatedAt: m.Meta.UpdatedAt,
		Tags:      m.Meta.Tags,
		ExpiresAt: m.Meta.ExpiresAt,
	}, nil
}
