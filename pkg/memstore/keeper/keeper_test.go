package keeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/entrhq/keep/pkg/memstore"
	"github.com/entrhq/keep/pkg/memstore/prune"
)

func newKeeper(t *testing.T) *Keeper {
	t.Helper()
	k, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return k
}

func TestCreateGetDelete(t *testing.T) {
	k := newKeeper(t)
	ctx := context.Background()

	err := k.Create(ctx, "notes/standup", CreateParams{
		Body:           "talked about the index engine",
		Tags:           []string{"meeting"},
		CreateCategory: true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := k.Create(ctx, "notes/standup", CreateParams{Body: "again"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	m, err := k.Get(ctx, "notes/standup")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if m.Body != "talked about the index engine" {
		t.Errorf("unexpected body %q", m.Body)
	}
	if m.Meta.UpdatedAt != nil {
		t.Errorf("fresh memory must not carry an update timestamp, got %v", m.Meta.UpdatedAt)
	}

	ci, err := k.List(ctx, "notes")
	if err != nil {
		t.Fatal(err)
	}
	if ci.Memory("standup") == nil {
		t.Error("index entry missing after create")
	}

	if err := k.Delete(ctx, "notes/standup"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := k.Get(ctx, "notes/standup"); !errors.Is(err, memstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	ci, err = k.List(ctx, "notes")
	if err != nil {
		t.Fatal(err)
	}
	if ci.Memory("standup") != nil {
		t.Error("index entry survived delete")
	}
}

func TestCreateRequiresCategory(t *testing.T) {
	k := newKeeper(t)
	err := k.Create(context.Background(), "nowhere/slug", CreateParams{Body: "x"})
	if !errors.Is(err, memstore.ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestUpdateStampsAndReindexesEntry(t *testing.T) {
	k := newKeeper(t)
	ctx := context.Background()

	fixed := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = time.Now }()

	if err := k.Create(ctx, "n/x", CreateParams{Body: "v1", CreateCategory: true}); err != nil {
		t.Fatal(err)
	}

	later := fixed.Add(time.Hour)
	timeNow = func() time.Time { return later }

	body := "v2"
	if err := k.Update(ctx, "n/x", UpdateParams{Body: &body, Tags: []string{"t"}}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	m, err := k.Get(ctx, "n/x")
	if err != nil {
		t.Fatal(err)
	}
	if m.Body != "v2" {
		t.Errorf("body not updated: %q", m.Body)
	}
	if m.Meta.UpdatedAt == nil || !m.Meta.UpdatedAt.Equal(later) {
		t.Errorf("update timestamp wrong: %v", m.Meta.UpdatedAt)
	}

	ci, err := k.List(ctx, "n")
	if err != nil {
		t.Fatal(err)
	}
	entry := ci.Memory("x")
	if entry == nil || entry.UpdatedAt == nil || !entry.UpdatedAt.Equal(later) {
		t.Errorf("index entry not refreshed: %+v", entry)
	}
	if len(ci.Memories) != 1 {
		t.Errorf("update duplicated the entry: %d", len(ci.Memories))
	}
}

func TestMoveTouchesExactlyTwoIndexes(t *testing.T) {
	k := newKeeper(t)
	ctx := context.Background()

	if err := k.Create(ctx, "a/note", CreateParams{Body: "x", CreateCategory: true}); err != nil {
		t.Fatal(err)
	}
	if err := k.CreateCategory(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	if err := k.Move(ctx, "a/note", "b/note", false); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	if _, err := k.Get(ctx, "a/note"); !errors.Is(err, memstore.ErrNotFound) {
		t.Error("source file survived move")
	}
	if _, err := k.Get(ctx, "b/note"); err != nil {
		t.Errorf("destination missing after move: %v", err)
	}

	src, err := k.List(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if src.Memory("note") != nil {
		t.Error("entry still present in source index")
	}
	dst, err := k.List(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if dst.Memory("note") == nil {
		t.Error("entry missing from destination index")
	}

	// Move into a category that does not exist.
	if err := k.Move(ctx, "b/note", "ghost/note", false); !errors.Is(err, memstore.ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
	// Move onto an existing memory.
	if err := k.Create(ctx, "a/other", CreateParams{Body: "y"}); err != nil {
		t.Fatal(err)
	}
	if err := k.Move(ctx, "a/other", "b/note", false); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCategoryLifecycle(t *testing.T) {
	k := newKeeper(t)
	ctx := context.Background()

	if err := k.CreateCategory(ctx, "proj/keep"); err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	if err := k.SetCategoryDescription(ctx, "proj/keep", "the index engine project"); err != nil {
		t.Fatalf("SetCategoryDescription failed: %v", err)
	}

	parent, err := k.List(ctx, "proj")
	if err != nil {
		t.Fatal(err)
	}
	sub := parent.Subcategory("proj/keep")
	if sub == nil || sub.Description == nil || *sub.Description != "the index engine project" {
		t.Fatalf("description not recorded: %+v", sub)
	}

	if err := k.SetCategoryDescription(ctx, memstore.RootPath, "nope"); err == nil {
		t.Error("expected root description to be rejected")
	}

	if err := k.DeleteCategory(ctx, "proj/keep"); err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}
	parent, err = k.List(ctx, "proj")
	if err != nil {
		t.Fatal(err)
	}
	if parent.Subcategory("proj/keep") != nil {
		t.Error("deleted category still listed in parent")
	}
	if err := k.DeleteCategory(ctx, "proj/keep"); !errors.Is(err, memstore.ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
	if err := k.DeleteCategory(ctx, memstore.RootPath); !errors.Is(err, memstore.ErrRootCategory) {
		t.Errorf("expected ErrRootCategory, got %v", err)
	}
}

func TestListAbsentCategoryReadsEmpty(t *testing.T) {
	k := newKeeper(t)
	ci, err := k.List(context.Background(), "never/indexed")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ci.Memories) != 0 || len(ci.Subcategories) != 0 {
		t.Errorf("expected empty index, got %+v", ci)
	}
}

func TestReindexAndPrunePassThrough(t *testing.T) {
	k := newKeeper(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour).UTC()
	if err := k.Create(ctx, "a/expired", CreateParams{Body: "x", ExpiresAt: &past, CreateCategory: true}); err != nil {
		t.Fatal(err)
	}

	res, err := k.Reindex(ctx, memstore.RootPath)
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if res.Memories != 1 {
		t.Errorf("unexpected reindex result %+v", res)
	}

	pres, err := k.Prune(ctx, memstore.RootPath, prune.Options{})
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(pres.Candidates) != 1 || len(pres.Failed()) != 0 {
		t.Errorf("unexpected prune result %+v", pres)
	}
	if _, err := k.Get(ctx, "a/expired"); !errors.Is(err, memstore.ErrNotFound) {
		t.Error("expired memory survived prune")
	}
}
