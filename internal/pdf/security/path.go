// Package security confines caller-supplied document paths to the input
// directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator resolves document names against a root directory and
// rejects anything that escapes it, including through symlinks.
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator rooted at root. The directory does not
// have to exist yet.
func NewPathValidator(root string) (*PathValidator, error) {
	if root == "" {
		return nil, fmt.Errorf("root directory cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}
	return &PathValidator{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute root directory.
func (v *PathValidator) Root() string {
	return v.root
}

// Resolve turns name into an absolute path inside the root. Relative names
// are taken relative to the root; absolute names must already lie inside it.
func (v *PathValidator) Resolve(name string) (string, error) {
	name = strings.ReplaceAll(name, "\x00", "")
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	path = filepath.Clean(path)

	if !within(path, v.root) {
		return "", fmt.Errorf("path is outside input directory: %s", name)
	}

	// Symlinks are checked against the real location of the root.
	if real, err := filepath.EvalSymlinks(path); err == nil {
		realRoot := v.root
		if r, err := filepath.EvalSymlinks(v.root); err == nil {
			realRoot = r
		}
		if !within(real, realRoot) {
			return "", fmt.Errorf("path is outside input directory: %s", name)
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	return path, nil
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
