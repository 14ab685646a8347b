package prune

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/entrhq/keep/pkg/memstore"
	"github.com/entrhq/keep/pkg/memstore/content"
	"github.com/entrhq/keep/pkg/memstore/index"
	"github.com/entrhq/keep/pkg/memstore/reindex"
	"github.com/entrhq/keep/pkg/memstore/storage"
)

type fixture struct {
	fs      *storage.FS
	indexes *index.Store
	content *content.Store
	engine  *Engine
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	idx := index.NewStore(fs)
	cs := content.NewStore(fs)
	return &fixture{
		fs:      fs,
		indexes: idx,
		content: cs,
		engine:  New(idx, fs, cs),
		now:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// seed writes a memory file and its index entry; expired controls whether
// the expiry timestamp is in the past relative to the fixture clock.
func (f *fixture) seed(t *testing.T, slugPath string, expiresAt *time.Time) {
	t.Helper()
	ctx := context.Background()
	created := f.now.Add(-24 * time.Hour)
	if err := f.content.Write(ctx, slugPath, &content.MemoryFile{
		Meta: content.Metadata{CreatedAt: created, ExpiresAt: expiresAt},
		Body: "body",
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.indexes.UpdateAfterMemoryWrite(ctx, slugPath, memstore.MemoryEntry{
		CreatedAt: created,
		ExpiresAt: expiresAt,
	}, index.UpdateOptions{CreateIfMissing: true}); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) past() *time.Time {
	tm := f.now.Add(-time.Hour)
	return &tm
}

func (f *fixture) future() *time.Time {
	tm := f.now.Add(time.Hour)
	return &tm
}

func TestDryRunListsWithoutMutating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, "a/expired", f.past())
	f.seed(t, "a/fresh", f.future())
	f.seed(t, "a/forever", nil)

	res, err := f.engine.Run(ctx, memstore.RootPath, Options{DryRun: true, Now: f.now})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].SlugPath != "a/expired" {
		t.Fatalf("unexpected candidates %+v", res.Candidates)
	}
	if len(res.Outcomes) != 0 {
		t.Errorf("dry run produced outcomes: %+v", res.Outcomes)
	}

	// Nothing was deleted.
	if _, err := f.content.Read(ctx, "a/expired"); err != nil {
		t.Errorf("dry run deleted file: %v", err)
	}
	ci, _, err := f.indexes.Read(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if ci.Memory("expired") == nil {
		t.Error("dry run removed index entry")
	}
}

func TestRunPrunesExpiredOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, "a/expired", f.past())
	f.seed(t, "a/fresh", f.future())

	res, err := f.engine.Run(ctx, memstore.RootPath, Options{Now: f.now})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Failed()) != 0 {
		t.Fatalf("unexpected failures: %+v", res.Failed())
	}

	if _, err := f.content.Read(ctx, "a/expired"); !errors.Is(err, memstore.ErrNotFound) {
		t.Error("expired memory file survived prune")
	}
	if _, err := f.content.Read(ctx, "a/fresh"); err != nil {
		t.Errorf("unexpired memory was pruned: %v", err)
	}

	ci, _, err := f.indexes.Read(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if ci.Memory("expired") != nil {
		t.Error("expired index entry survived prune")
	}
	if ci.Memory("fresh") == nil {
		t.Error("unexpired index entry was removed")
	}
}

func TestRunScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, "A/b/x", f.past())
	f.seed(t, "A/c/y", f.past())

	res, err := f.engine.Run(ctx, "A/b", Options{Now: f.now})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].SlugPath != "A/b/x" {
		t.Fatalf("unexpected candidates %+v", res.Candidates)
	}

	if _, err := f.content.Read(ctx, "A/b/x"); !errors.Is(err, memstore.ErrNotFound) {
		t.Error("in-scope expired memory survived")
	}
	if _, err := f.content.Read(ctx, "A/c/y"); err != nil {
		t.Errorf("out-of-scope memory was pruned: %v", err)
	}
	ci, _, err := f.indexes.Read(ctx, "A/c")
	if err != nil {
		t.Fatal(err)
	}
	if ci.Memory("y") == nil {
		t.Error("out-of-scope index entry was removed")
	}
}

func TestRunMatchFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, "a/scratch-1", f.past())
	f.seed(t, "a/keeper", f.past())

	res, err := f.engine.Run(ctx, memstore.RootPath, Options{Now: f.now, Match: "scratch-*"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].SlugPath != "a/scratch-1" {
		t.Fatalf("unexpected candidates %+v", res.Candidates)
	}
	if _, err := f.content.Read(ctx, "a/keeper"); err != nil {
		t.Errorf("non-matching memory was pruned: %v", err)
	}

	if _, err := f.engine.Run(ctx, memstore.RootPath, Options{Match: "[bad"}); err == nil {
		t.Error("expected invalid pattern to be rejected")
	}
}

func TestRunContinuesPastPerItemFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, "a/first", f.past())
	f.seed(t, "a/second", f.past())

	// Simulate a concurrent process having deleted one backing file; prune
	// must treat the missing file as already pruned and fix the index.
	if err := f.content.Delete(ctx, "a/first"); err != nil {
		t.Fatal(err)
	}

	res, err := f.engine.Run(ctx, memstore.RootPath, Options{Now: f.now})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %+v", res.Outcomes)
	}
	for _, o := range res.Outcomes {
		if o.Err != nil {
			t.Errorf("outcome for %s failed: %v", o.SlugPath, o.Err)
		}
	}

	ci, _, err := f.indexes.Read(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(ci.Memories) != 0 {
		t.Errorf("index entries survived prune: %+v", ci.Memories)
	}
}

func TestRunSurfacesCorruptIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.fs.WriteIndex(ctx, "bad", []byte("path: [unclosed")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.Run(ctx, memstore.RootPath, Options{Now: f.now}); err == nil {
		t.Error("expected corrupt index to abort prune")
	}
}

func TestPruneThenReindexAgree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, "a/expired", f.past())
	f.seed(t, "a/fresh", f.future())

	if _, err := f.engine.Run(ctx, memstore.RootPath, Options{Now: f.now}); err != nil {
		t.Fatal(err)
	}

	// A full rebuild after pruning reproduces the same state: prune left
	// disk and indexes consistent.
	ri := reindex.New(f.indexes, f.fs, f.fs, f.content)
	if _, err := ri.Run(ctx, memstore.RootPath); err != nil {
		t.Fatalf("reindex after prune failed: %v", err)
	}
	ci, _, err := f.indexes.Read(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if ci.Memory("expired") != nil || ci.Memory("fresh") == nil {
		t.Errorf("post-prune reindex state wrong: %+v", ci.Memories)
	}
}
