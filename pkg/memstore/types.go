package memstore

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDescriptionLength is the maximum number of characters allowed in a
// subcategory description after trimming.
const MaxDescriptionLength = 500

// MemoryEntry is the indexed metadata for one memory file. It lives in the
// CategoryIndex of the category that owns the memory; the markdown file
// itself remains the source of truth.
type MemoryEntry struct {
	Slug      string     `yaml:"slug"`
	CreatedAt time.Time  `yaml:"created_at"`
	UpdatedAt *time.Time `yaml:"updated_at,omitempty"`
	Tags      []string   `yaml:"tags,omitempty"`
	ExpiresAt *time.Time `yaml:"expires_at,omitempty"`
}

// Expired reports whether the entry carries an expiration timestamp that is
// at or before now.
func (e *MemoryEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// SubcategoryEntry records one immediate child category in its parent's
// index. Description is nil when no description has been set; that is
// distinct from an empty description, which is never stored (clearing a
// description removes the field).
type SubcategoryEntry struct {
	Path        string  `yaml:"path"`
	MemoryCount int     `yaml:"memory_count"`
	Description *string `yaml:"description,omitempty"`
}

// CategoryIndex is the derived metadata cache for one category. Path is the
// slash-separated category path relative to the store root; the root
// category's path is the empty string. Memories and Subcategories are sets:
// element order carries no meaning, though serialization sorts them for
// stable diffs.
type CategoryIndex struct {
	Path          string             `yaml:"path"`
	Memories      []MemoryEntry      `yaml:"memories"`
	Subcategories []SubcategoryEntry `yaml:"subcategories"`
}

// NewCategoryIndex returns an empty index for the given category path.
func NewCategoryIndex(path string) *CategoryIndex {
	return &CategoryIndex{Path: path}
}

// Memory returns the entry for slug, or nil if the index has none.
func (ci *CategoryIndex) Memory(slug string) *MemoryEntry {
	for i := range ci.Memories {
		if ci.Memories[i].Slug == slug {
			return &ci.Memories[i]
		}
	}
	return nil
}

// UpsertMemory replaces the entry with the same slug, or appends the entry
// if the slug is new. Identity is the slug; there is never more than one
// entry per slug.
func (ci *CategoryIndex) UpsertMemory(e MemoryEntry) {
	for i := range ci.Memories {
		if ci.Memories[i].Slug == e.Slug {
			ci.Memories[i] = e
			return
		}
	}
	ci.Memories = append(ci.Memories, e)
}

// RemoveMemory deletes the entry for slug. It reports whether an entry was
// present; removing an absent entry is not an error.
func (ci *CategoryIndex) RemoveMemory(slug string) bool {
	for i := range ci.Memories {
		if ci.Memories[i].Slug == slug {
			ci.Memories = append(ci.Memories[:i], ci.Memories[i+1:]...)
			return true
		}
	}
	return false
}

// Subcategory returns the entry for the child category path, or nil.
func (ci *CategoryIndex) Subcategory(path string) *SubcategoryEntry {
	for i := range ci.Subcategories {
		if ci.Subcategories[i].Path == path {
			return &ci.Subcategories[i]
		}
	}
	return nil
}

// UpsertSubcategory replaces the entry with the same path, or appends it.
func (ci *CategoryIndex) UpsertSubcategory(e SubcategoryEntry) {
	for i := range ci.Subcategories {
		if ci.Subcategories[i].Path == e.Path {
			ci.Subcategories[i] = e
			return
		}
	}
	ci.Subcategories = append(ci.Subcategories, e)
}

// RemoveSubcategory deletes the entry for the child category path and
// reports whether it was present.
func (ci *CategoryIndex) RemoveSubcategory(path string) bool {
	for i := range ci.Subcategories {
		if ci.Subcategories[i].Path == path {
			ci.Subcategories = append(ci.Subcategories[:i], ci.Subcategories[i+1:]...)
			return true
		}
	}
	return false
}

// Normalize sorts memories by slug and subcategories by path so that two
// semantically equal indexes serialize identically.
func (ci *CategoryIndex) Normalize() {
	sort.Slice(ci.Memories, func(i, j int) bool {
		return ci.Memories[i].Slug < ci.Memories[j].Slug
	})
	sort.Slice(ci.Subcategories, func(i, j int) bool {
		return ci.Subcategories[i].Path < ci.Subcategories[j].Path
	})
	for i := range ci.Memories {
		sort.Strings(ci.Memories[i].Tags)
	}
}

// SortedByUpdated returns the memory entries ordered newest-first by their
// update timestamp. Entries without an update timestamp sort after every
// entry that has one; within each group the creation timestamp, then the
// slug, breaks ties. Entries written before the update timestamp existed
// stay listable until a reindex backfills them from source.
func (ci *CategoryIndex) SortedByUpdated() []MemoryEntry {
	out := make([]MemoryEntry, len(ci.Memories))
	copy(out, ci.Memories)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.UpdatedAt != nil && b.UpdatedAt == nil:
			return true
		case a.UpdatedAt == nil && b.UpdatedAt != nil:
			return false
		case a.UpdatedAt != nil && b.UpdatedAt != nil && !a.UpdatedAt.Equal(*b.UpdatedAt):
			return a.UpdatedAt.After(*b.UpdatedAt)
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.After(b.CreatedAt)
		default:
			return a.Slug < b.Slug
		}
	})
	return out
}

// ValidateDescription trims the given description and checks its length.
// It returns the trimmed value.
func ValidateDescription(description string) (string, error) {
	trimmed := strings.TrimSpace(description)
	if n := utf8.RuneCountInString(trimmed); n > MaxDescriptionLength {
		return "", fmt.Errorf(
			"memstore: description exceeds maximum length of %d characters (got %d)",
			MaxDescriptionLength, n,
		)
	}
	return trimmed, nil
}
