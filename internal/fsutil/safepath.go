// Package fsutil confines user-supplied paths to a location root.
package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrTraversal is returned when a resolved path escapes its root.
var ErrTraversal = errors.New("path escapes location root")

// Confine maps a client-provided path to a local filesystem path under
// root. It rejects any traversal outside root, including via existing
// symlinks. root must be absolute.
func Confine(root, userPath string) (string, error) {
	if root == "" {
		return "", errors.New("root is required")
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	rootAbs = filepath.Clean(rootAbs)

	// Treat every client path as relative to the root.
	rel := filepath.FromSlash(strings.TrimLeft(userPath, "/\\"))
	full := filepath.Clean(filepath.Join(rootAbs, rel))

	if !isWithin(rootAbs, full) {
		return "", ErrTraversal
	}
	if hasSymlinkComponent(rootAbs, full) {
		return "", ErrTraversal
	}

	// If an existing ancestor resolves outside the root, block it.
	if existing := nearestExisting(full); existing != "" {
		resolved, err := filepath.EvalSymlinks(existing)
		if err != nil {
			return "", err
		}
		if !isWithin(rootAbs, filepath.Clean(resolved)) {
			return "", ErrTraversal
		}
	}

	return full, nil
}

// isWithin compares normalized paths with a separator-aware prefix so a
// sibling like /srv/database is never treated as inside /srv/data.
func isWithin(root, candidate string) bool {
	root = filepath.Clean(root)
	candidate = filepath.Clean(candidate)
	if root == candidate {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(candidate, root)
}

// hasSymlinkComponent walks each existing path component under root and
// rejects the path when any of them is a symlink.
func hasSymlinkComponent(rootAbs, fullPath string) bool {
	rel, err := filepath.Rel(rootAbs, fullPath)
	if err != nil {
		return true
	}
	rel = filepath.Clean(rel)
	if rel == "." {
		return false
	}
	cur := rootAbs
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "" || part == "." {
			continue
		}
		cur = filepath.Join(cur, part)
		st, err := os.Lstat(cur)
		if err != nil {
			// Component doesn't exist yet: nothing to traverse.
			return false
		}
		if st.Mode()&os.ModeSymlink != 0 {
			return true
		}
	}
	return false
}

// nearestExisting returns the deepest existing ancestor of p, or ""
// when nothing on the path exists.
func nearestExisting(p string) string {
	cur := p
	for {
		if _, err := os.Lstat(cur); err == nil {
			return cur
		} else if !os.IsNotExist(err) {
			return ""
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return ""
		}
		cur = parent
	}
}
