// Package index implements the per-category index store: the YAML codec for
// index documents and the surgical read/update/remove operations the memory
// hot path uses. Full rebuilds live in the reindex package.
package index

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/keep/pkg/memstore"
)

// ErrCorrupt wraps any failure to decode a persisted index document.
// Callers surface it rather than coercing a broken index to empty; a
// reindex is the repair.
var ErrCorrupt = errors.New("index: corrupt index document")

// Encode renders an index to its canonical on-disk YAML form. Memories and
// subcategories are sorted so that semantically equal indexes produce
// byte-identical documents, which keeps reindex idempotent and diffs clean.
func Encode(ci *memstore.CategoryIndex) ([]byte, error) {
	ci.Normalize()
	b, err := yaml.Marshal(ci)
	if err != nil {
		return nil, fmt.Errorf("index: encode category %q: %w", ci.Path, err)
	}
	return b, nil
}

// Decode parses an on-disk index document. Optional fields absent from the
// document stay absent on the decoded value; that is how indexes written
// before a field existed self-heal on the next rebuild instead of failing.
func Decode(data []byte) (*memstore.CategoryIndex, error) {
	var ci memstore.CategoryIndex
	if err := yaml.Unmarshal(data, &ci); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &ci, nil
}
