package memstore

import (
	"errors"
	"fmt"
	"strings"
)

// RootPath is the category path of the store root.
const RootPath = ""

// ErrNotFound is returned when a memory does not exist.
var ErrNotFound = errors.New("memstore: memory not found")

// ErrCategoryNotFound is returned when an operation targets a category that
// has no index and the operation was not asked to create one.
var ErrCategoryNotFound = errors.New("memstore: category not found")

// ErrRootCategory is returned by operations that are not permitted on the
// root category, such as deletion.
var ErrRootCategory = errors.New("memstore: operation not permitted on root category")

// ValidateCategoryPath checks a slash-separated category path. The empty
// string is the root and is always valid. Each segment must be non-empty,
// must not start with a dot (dotfiles are reserved for index and tool
// state), and must not contain path separators or traversal elements.
func ValidateCategoryPath(path string) error {
	if path == RootPath {
		return nil
	}
	if strings.Contains(path, "\\") {
		return fmt.Errorf("memstore: invalid category path %q (backslash)", path)
	}
	if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return fmt.Errorf("memstore: invalid category path %q (leading or trailing slash)", path)
	}
	for _, seg := range strings.Split(path, "/") {
		if err := validateSegment(seg); err != nil {
			return fmt.Errorf("memstore: invalid category path %q: %w", path, err)
		}
	}
	return nil
}

// ValidateSlug checks a memory slug: one path segment, no separators.
func ValidateSlug(slug string) error {
	if strings.ContainsAny(slug, "/\\") {
		return fmt.Errorf("memstore: invalid slug %q (contains path separator)", slug)
	}
	if err := validateSegment(slug); err != nil {
		return fmt.Errorf("memstore: invalid slug %q: %w", slug, err)
	}
	return nil
}

func validateSegment(seg string) error {
	switch {
	case seg == "":
		return errors.New("empty segment")
	case seg == "." || seg == "..":
		return errors.New("traversal segment")
	case strings.HasPrefix(seg, "."):
		return errors.New("segment starts with a dot")
	default:
		return nil
	}
}

// SplitSlugPath splits "parent/child/slug" into the owning category path
// ("parent/child") and the slug ("slug"). A bare slug belongs to the root
// category.
func SplitSlugPath(slugPath string) (categoryPath, slug string, err error) {
	if slugPath == "" {
		return "", "", errors.New("memstore: empty slug path")
	}
	i := strings.LastIndex(slugPath, "/")
	if i < 0 {
		categoryPath, slug = RootPath, slugPath
	} else {
		categoryPath, slug = slugPath[:i], slugPath[i+1:]
	}
	if err := ValidateCategoryPath(categoryPath); err != nil {
		return "", "", err
	}
	if err := ValidateSlug(slug); err != nil {
		return "", "", err
	}
	return categoryPath, slug, nil
}

// JoinSlugPath is the inverse of SplitSlugPath.
func JoinSlugPath(categoryPath, slug string) string {
	if categoryPath == RootPath {
		return slug
	}
	return categoryPath + "/" + slug
}

// ParentPath returns the immediate parent of a category path, and false if
// the path is the root (which has no parent).
func ParentPath(path string) (string, bool) {
	if path == RootPath {
		return "", false
	}
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return RootPath, true
	}
	return path[:i], true
}

// WithinScope reports whether path is the scope category itself or a
// descendant of it. The root scope contains every path.
func WithinScope(scope, path string) bool {
	if scope == RootPath {
		return true
	}
	return path == scope || strings.HasPrefix(path, scope+"/")
}

// IsImmediateChild reports whether child is a direct subcategory path of
// parent.
func IsImmediateChild(parent, child string) bool {
	rest, ok := relativeTo(parent, child)
	return ok && rest != "" && !strings.Contains(rest, "/")
}

func relativeTo(parent, child string) (string, bool) {
	if parent == RootPath {
		return child, true
	}
	if child == parent {
		return "", true
	}
	if strings.HasPrefix(child, parent+"/") {
		return child[len(parent)+1:], true
	}
	return "", false
}
