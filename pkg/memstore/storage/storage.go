// Package storage defines the persistence ports for the index engine and a
// local filesystem implementation. The reindex and prune algorithms only see
// these interfaces, keeping them agnostic of a future non-filesystem index
// backend.
package storage

import (
	"context"
	"errors"
)

// IndexFileName is the name of the per-category index file. It is identical
// at every nesting depth; the root category's index lives directly under the
// store root.
const IndexFileName = ".index.yaml"

// MemoryFileExt is the filename extension of memory content files.
const MemoryFileExt = ".md"

// ErrNotExist is returned (wrapped) when a requested index, file, or
// category is not present in the backend. Callers check it with errors.Is.
var ErrNotExist = errors.New("storage: does not exist")

// IndexStorage is the port the index store and the reindex engine use to
// persist per-category index documents. Paths are slash-separated category
// paths; the empty string is the store root.
type IndexStorage interface {
	// ReadIndex returns the raw index document for a category, or an error
	// wrapping ErrNotExist when the category has no index file.
	ReadIndex(ctx context.Context, categoryPath string) ([]byte, error)

	// WriteIndex replaces the index document for a category in a single
	// atomic step, creating the category if needed; a concurrent reader
	// sees either the old or the new document, never a torn one.
	WriteIndex(ctx context.Context, categoryPath string, data []byte) error

	// DeleteIndex removes a category's index file. Deleting an index that is
	// already gone returns an error wrapping ErrNotExist.
	DeleteIndex(ctx context.Context, categoryPath string) error

	// ListIndexes returns the category paths under scope (inclusive) that
	// currently have an index file. Any enumeration failure is returned as
	// an error; no partial silent results.
	ListIndexes(ctx context.Context, scope string) ([]string, error)
}

// ContentStorage is the port for memory files and category directories.
// Relative paths are slash-separated and rooted at the store root.
type ContentStorage interface {
	// ReadFile returns the raw bytes of a memory file, or an error wrapping
	// ErrNotExist.
	ReadFile(ctx context.Context, relPath string) ([]byte, error)

	// WriteFile atomically replaces a memory file, creating parent
	// categories as needed.
	WriteFile(ctx context.Context, relPath string, data []byte) error

	// DeleteFile removes a memory file. A missing file returns an error
	// wrapping ErrNotExist.
	DeleteFile(ctx context.Context, relPath string) error

	// ListMemoryFiles returns the relative paths of all memory files under
	// scope (inclusive), skipping dotfiles and dot-directories.
	ListMemoryFiles(ctx context.Context, scope string) ([]string, error)

	// ListCategories returns every live category path under scope,
	// including scope itself. A category is live while its directory
	// exists, whether or not it currently holds memories.
	ListCategories(ctx context.Context, scope string) ([]string, error)

	// DeleteCategory removes a category directory and everything beneath
	// it. It is not valid for the root.
	DeleteCategory(ctx context.Context, categoryPath string) error
}
