package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/keep/pkg/memstore"
	"github.com/entrhq/keep/pkg/memstore/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.FS) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	return NewStore(fs), fs
}

func TestReadAbsentIsNotAnError(t *testing.T) {
	s, _ := newTestStore(t)
	ci, ok, err := s.Read(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, ci)
}

func TestReadCorruptSurfaced(t *testing.T) {
	s, fs := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, fs.WriteIndex(ctx, "bad", []byte("path: [unclosed")))
	_, _, err := s.Read(ctx, "bad")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestUpdateAfterMemoryWriteRequiresCategory(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.UpdateAfterMemoryWrite(context.Background(), "ghost/slug",
		memstore.MemoryEntry{CreatedAt: time.Now()}, UpdateOptions{})
	assert.ErrorIs(t, err, memstore.ErrCategoryNotFound)
}

func TestUpdateAfterMemoryWriteCreatesChain(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)

	err := s.UpdateAfterMemoryWrite(ctx, "a/b/note",
		memstore.MemoryEntry{CreatedAt: created}, UpdateOptions{CreateIfMissing: true})
	require.NoError(t, err)

	// Target index holds the entry.
	ci, ok, err := s.Read(ctx, "a/b")
	require.NoError(t, err)
	require.True(t, ok)
	entry := ci.Memory("note")
	require.NotNil(t, entry)
	assert.True(t, entry.CreatedAt.Equal(created))

	// Each ancestor was created and links its child with an accurate count.
	a, ok, err := s.Read(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	sub := a.Subcategory("a/b")
	require.NotNil(t, sub)
	assert.Equal(t, 1, sub.MemoryCount)

	root, ok, err := s.Read(ctx, memstore.RootPath)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, root.Subcategory("a"))
}

func TestUpdateAfterMemoryWriteReplacesByIdentity(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	opts := UpdateOptions{CreateIfMissing: true}
	require.NoError(t, s.UpdateAfterMemoryWrite(ctx, "notes/daily",
		memstore.MemoryEntry{CreatedAt: created}, opts))
	require.NoError(t, s.UpdateAfterMemoryWrite(ctx, "notes/daily",
		memstore.MemoryEntry{CreatedAt: created, UpdatedAt: &updated}, UpdateOptions{}))

	ci, _, err := s.Read(ctx, "notes")
	require.NoError(t, err)
	require.Len(t, ci.Memories, 1)
	require.NotNil(t, ci.Memories[0].UpdatedAt)
	assert.True(t, ci.Memories[0].UpdatedAt.Equal(updated))
}

func TestRemoveEntryIdempotentAndKeepsDescription(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateAfterMemoryWrite(ctx, "a/b/only",
		memstore.MemoryEntry{CreatedAt: time.Now()}, UpdateOptions{CreateIfMissing: true}))
	require.NoError(t, s.UpdateSubcategoryDescription(ctx, "a", "a/b", "working notes"))

	require.NoError(t, s.RemoveEntry(ctx, "a/b/only"))
	require.NoError(t, s.RemoveEntry(ctx, "a/b/only"), "second removal must be a no-op")
	require.NoError(t, s.RemoveEntry(ctx, "ghost/never"), "missing category must be a no-op")

	// The emptied category keeps its own index and its entry in the parent,
	// description included.
	ci, ok, err := s.Read(ctx, "a/b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, ci.Memories)

	parent, _, err := s.Read(ctx, "a")
	require.NoError(t, err)
	sub := parent.Subcategory("a/b")
	require.NotNil(t, sub)
	assert.Equal(t, 0, sub.MemoryCount)
	require.NotNil(t, sub.Description)
	assert.Equal(t, "working notes", *sub.Description)
}

func TestUpdateSubcategoryDescription(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateAfterMemoryWrite(ctx, "a/b/x",
		memstore.MemoryEntry{CreatedAt: time.Now()}, UpdateOptions{CreateIfMissing: true}))

	t.Run("upsert trims", func(t *testing.T) {
		require.NoError(t, s.UpdateSubcategoryDescription(ctx, "a", "a/b", "  padded  "))
		parent, _, err := s.Read(ctx, "a")
		require.NoError(t, err)
		require.NotNil(t, parent.Subcategory("a/b").Description)
		assert.Equal(t, "padded", *parent.Subcategory("a/b").Description)
	})

	t.Run("empty clears field not entry", func(t *testing.T) {
		require.NoError(t, s.UpdateSubcategoryDescription(ctx, "a", "a/b", ""))
		parent, _, err := s.Read(ctx, "a")
		require.NoError(t, err)
		sub := parent.Subcategory("a/b")
		require.NotNil(t, sub)
		assert.Nil(t, sub.Description)
	})

	t.Run("overlong rejected", func(t *testing.T) {
		err := s.UpdateSubcategoryDescription(ctx, "a", "a/b",
			strings.Repeat("d", memstore.MaxDescriptionLength+1))
		assert.Error(t, err)
	})

	t.Run("non-child rejected", func(t *testing.T) {
		err := s.UpdateSubcategoryDescription(ctx, "a", "c", "nope")
		assert.Error(t, err)
	})

	t.Run("missing parent", func(t *testing.T) {
		err := s.UpdateSubcategoryDescription(ctx, "ghost", "ghost/kid", "d")
		assert.ErrorIs(t, err, memstore.ErrCategoryNotFound)
	})
}

func TestWriteIsAtomicOnDisk(t *testing.T) {
	s, fs := newTestStore(t)
	ctx := context.Background()

	ci := memstore.NewCategoryIndex("cat")
	ci.UpsertMemory(memstore.MemoryEntry{Slug: "m", CreatedAt: time.Now()})
	require.NoError(t, s.Write(ctx, ci))

	entries, err := os.ReadDir(filepath.Join(fs.Root(), "cat"))
	require.NoError(t, err)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file visible after write: %s", e.Name())
		}
	}
}

func TestReadErrorsPropagate(t *testing.T) {
	s, _ := newTestStore(t)
	_, _, err := s.Read(context.Background(), "../escape")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCorrupt))
}
