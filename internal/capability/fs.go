package capability

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hull/internal/logging"
)

// FS is the filesystem capability primitive. Every method is validated
// against baseDir before any syscall reaches the target path; the kernel
// sandbox (internal/sandbox) is the backstop that makes a validation bug
// non-fatal, not the primary defense.
type FS struct{}

// NewFS returns a filesystem capability primitive. It carries no state —
// every call is independently validated against the base directory it is
// given.
func NewFS() *FS { return &FS{} }

// validate implements the §4.2.1 algorithm. It never follows a path outside
// baseDir, rejects absolute paths and ".." segments outright (before any
// resolution happens, so a malicious path never even reaches filepath.Abs
// on its own), and resolves symlinks so a link planted inside baseDir
// cannot point outside it.
//
// Edge case: a write to a path whose terminal component does not exist yet
// resolves the parent directory and re-appends the final component, so
// validate succeeds for file creation, not just existing files.
func validate(path, baseDir string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalid)
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: absolute path %q", ErrDenied, path)
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: path traversal segment in %q", ErrDenied, path)
		}
	}

	baseAbs, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("%w: resolving base dir: %v", ErrInternal, err)
	}
	baseAbs, err = filepath.EvalSymlinks(baseAbs)
	if err != nil {
		return "", fmt.Errorf("%w: resolving base dir symlinks: %v", ErrInternal, err)
	}

	candidate := filepath.Join(baseAbs, path)
	resolved, err := resolveWithMissingTail(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDenied, err)
	}

	if !withinBase(resolved, baseAbs) {
		return "", fmt.Errorf("%w: %q escapes base %q", ErrDenied, resolved, baseAbs)
	}
	return resolved, nil
}

// resolveWithMissingTail resolves symlinks along candidate, tolerating a
// non-existent terminal component (the create-on-write case) but rejecting
// a broken symlink anywhere in the chain.
func resolveWithMissingTail(candidate string) (string, error) {
	resolved, err := filepath.EvalSymlinks(candidate)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	parent := filepath.Dir(candidate)
	tail := filepath.Base(candidate)
	resolvedParent, perr := filepath.EvalSymlinks(parent)
	if perr != nil {
		return "", perr
	}
	if fi, lerr := os.Lstat(filepath.Join(resolvedParent, tail)); lerr == nil && fi.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("broken symlink at %q", filepath.Join(resolvedParent, tail))
	}
	return filepath.Join(resolvedParent, tail), nil
}

// withinBase reports whether resolved is base itself, or a descendant of
// base at a path-component boundary (so "/srv/appx" is never treated as
// within "/srv/app").
func withinBase(resolved, base string) bool {
	if resolved == base {
		return true
	}
	return strings.HasPrefix(resolved, base+string(filepath.Separator))
}

// Read returns the bytes of path, which must validate against baseDir.
func (f *FS) Read(path, baseDir string) ([]byte, error) {
	abs, err := validate(path, baseDir)
	if err != nil {
		return nil, err
	}
	logging.CapabilityDebug("fs.read: path=%s", path)
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return data, nil
}

// Write creates or overwrites path with data, creating parent directories
// as needed. The parent-creation mkdir calls are themselves still bounded
// by validate's resolved abs path, so they cannot escape baseDir either.
func (f *FS) Write(path, baseDir string, data []byte) error {
	abs, err := validate(path, baseDir)
	if err != nil {
		return err
	}
	logging.CapabilityDebug("fs.write: path=%s size=%d", path, len(data))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return nil
}

// Exists reports whether path, resolved against baseDir, currently exists.
// A denial from validate is treated the same as "does not exist" rather
// than surfaced as an error — existence checks must not leak information
// about paths outside baseDir via their error value.
func (f *FS) Exists(path, baseDir string) bool {
	abs, err := validate(path, baseDir)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// Delete removes the file at path. Directories are refused; use a
// dedicated recursive-delete capability if one is ever added.
func (f *FS) Delete(path, baseDir string) error {
	abs, err := validate(path, baseDir)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalid, path)
	}
	logging.CapabilityDebug("fs.delete: path=%s", path)
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return nil
}

// List returns the sorted names of entries directly under path.
// Directories are suffixed with "/", matching the teacher's list_files tool.
func (f *FS) List(path, baseDir string) ([]string, error) {
	abs, err := validate(path, baseDir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
