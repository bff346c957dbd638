// Package security confines document access to the configured directory.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for paths that leave the configured directory.
var ErrOutsideRoot = errors.New("path is outside configured directory")

// PathValidator resolves request paths against the configured directory
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator rooted at dir. The directory does
// not need to exist yet.
func NewPathValidator(dir string) (*PathValidator, error) {
	if dir == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	return &PathValidator{root: filepath.Clean(abs)}, nil
}

// Root returns the configured directory
func (v *PathValidator) Root() string {
	return v.root
}

// Resolve turns path into a clean absolute path inside the root. Relative
// paths are taken relative to the root; symlinks are followed before the
// containment check.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	clean := filepath.Clean(path)

	ok, err := v.within(clean)
	if err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return clean, nil
}

// ValidatePath checks that path resolves inside the root.
func (v *PathValidator) ValidatePath(path string) error {
	_, err := v.Resolve(path)
	return err
}

// ValidateDirectory checks that dir lies inside the root and, if it
// exists, is a directory.
func (v *PathValidator) ValidateDirectory(dir string) (string, error) {
	if dir == "" {
		return v.root, nil
	}
	resolved, err := v.Resolve(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return resolved, nil
		}
		return "", fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", dir)
	}
	return resolved, nil
}

func (v *PathValidator) within(path string) (bool, error) {
	// a root that does not exist yet cannot hold symlinks
	realRoot := v.root
	if resolved, err := filepath.EvalSymlinks(v.root); err == nil {
		realRoot = resolved
	}

	realPath := path
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		realPath = resolved
	} else if !os.IsNotExist(err) {
		return false, err
	}

	return isUnder(path, v.root, realRoot) && isUnder(realPath, v.root, realRoot), nil
}

func isUnder(path string, roots ...string) bool {
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
