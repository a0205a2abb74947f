// Package security restricts which files a remotely requested source may
// open.
package security

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory reports an error wrapping fs.ErrPermission
// when filePath, after resolving symlinks, lies outside safeDir. Paths that
// do not exist yet are resolved through their nearest existing parent so a
// symlinked parent cannot be used to escape.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	abs, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	root, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory path: %w", err)
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(root, canonical(abs))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%s escapes %s: %w", filePath, safeDir, fs.ErrPermission)
	}
	return nil
}

// canonical resolves symlinks in the longest existing prefix of abs.
func canonical(abs string) string {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest)
		}
		if dir == filepath.Dir(dir) {
			return abs
		}
	}
}

// CheckSource validates a source string against the allowed roots. Only
// file sources are checked: synthetic: and udp:// sources open nothing on
// disk. A query suffix is ignored. An empty roots list allows everything.
func CheckSource(source string, roots []string) error {
	if len(roots) == 0 || strings.HasPrefix(source, "synthetic:") || strings.HasPrefix(source, "udp://") {
		return nil
	}
	file, _, _ := strings.Cut(source, "?")
	for _, root := range roots {
		if ValidatePathWithinDirectory(file, root) == nil {
			return nil
		}
	}
	return fmt.Errorf("source %s is outside %s: %w", file, strings.Join(roots, ", "), fs.ErrPermission)
}
