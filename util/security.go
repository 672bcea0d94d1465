package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathTraversal indicates a path traversal attempt was detected
var ErrPathTraversal = errors.New("path traversal attempt detected")

// ErrSymlinkNotAllowed indicates a symlink was detected and is not allowed
var ErrSymlinkNotAllowed = errors.New("symlink not allowed")

// ValidateFilePath checks an operator-supplied path and returns it as an
// absolute path. Traversal sequences and null bytes are rejected before the
// path is cleaned; symlinks are rejected when checkSymlinks is set.
func ValidateFilePath(path string, checkSymlinks bool) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file path cannot be empty")
	}

	// Clean would hide the traversal
	if strings.Contains(path, "..") {
		return "", ErrPathTraversal
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "\x00") {
		return "", fmt.Errorf("null bytes not allowed in path")
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}

	if checkSymlinks {
		fi, err := os.Lstat(absPath)
		if err == nil && fi.Mode()&os.ModeSymlink != 0 {
			return "", ErrSymlinkNotAllowed
		}
	}

	return absPath, nil
}
