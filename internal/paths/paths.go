// Package paths converts between workspace-relative and absolute file paths.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveFile returns the absolute, cleaned path of file inside workspace.
// Relative paths are joined onto the workspace; absolute paths are only cleaned.
// This is the FileID form used for cache keys and result entries.
func ResolveFile(workspace, file string) string {
	if filepath.IsAbs(file) {
		return filepath.Clean(file)
	}
	return filepath.Join(workspace, filepath.FromSlash(file))
}

// ResolveWorkspace returns the absolute, cleaned form of a workspace root.
func ResolveWorkspace(workspace string) (string, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// RelativeSlash returns path relative to workspace with forward slashes.
// ok is false when path lies outside the workspace.
func RelativeSlash(workspace, path string) (rel string, ok bool) {
	r, err := filepath.Rel(workspace, path)
	if err != nil {
		return "", false
	}
	r = filepath.ToSlash(r)
	if r == ".." || strings.HasPrefix(r, "../") {
		return "", false
	}
	return r, true
}

// CanonicalizePath converts an absolute path to a workspace-relative slash path,
// resolving symlinks on both sides first. Missing files are used as-is.
func CanonicalizePath(absolutePath string, workspace string) (string, error) {
	resolved, err := evalSymlinksIfExists(absolutePath)
	if err != nil {
		return "", err
	}
	root, err := evalSymlinksIfExists(workspace)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func evalSymlinksIfExists(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if os.IsNotExist(err) {
			return path, nil
		}
		return "", err
	}
	return resolved, nil
}
