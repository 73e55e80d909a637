// Package safepath validates archive member names and user-supplied
// paths before they touch the filesystem, guarding against path
// traversal out of a capsule's extraction directory.
package safepath

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	// MaxNameLength is the maximum allowed archive member name length.
	MaxNameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

var (
	ErrTraversal   = errors.New("path traversal detected")
	ErrInvalidName = errors.New("invalid name")
	ErrEmptyPath   = errors.New("path cannot be empty")
	ErrTooLong     = errors.New("path too long")
)

// Within cleans an archive member path and verifies that joining it to
// baseDir cannot escape baseDir. It returns the cleaned relative path.
func Within(baseDir, member string) (string, error) {
	if member == "" {
		return "", ErrEmptyPath
	}
	if len(member) > MaxPathLength {
		return "", ErrTooLong
	}

	clean := filepath.Clean(member)
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: absolute path", ErrTraversal)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", ErrTraversal
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolving base directory: %w", err)
	}
	rel, err := filepath.Rel(absBase, filepath.Join(absBase, clean))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrTraversal
	}
	return clean, nil
}

// IsWithin reports whether member stays inside baseDir when joined.
func IsWithin(baseDir, member string) bool {
	_, err := Within(baseDir, member)
	return err == nil
}

// CheckName rejects artifact names that carry separators, control
// characters, or reserved forms. Names become manifest keys and
// filenames, so they must be a single safe path element.
func CheckName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: reserved or empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxNameLength)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: path separator", ErrInvalidName)
	}
	if strings.Contains(name, "\x00") {
		return fmt.Errorf("%w: null byte", ErrInvalidName)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character", ErrInvalidName)
		}
	}
	return nil
}
