package source

import (
	"errors"
	"io/fs"
	"os"
)

// Cleanup removes a file or a directory tree. A missing path is not an error.
func Cleanup(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return newError(IOFailure, "cleanup", path, "cannot stat path", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return newError(IOFailure, "cleanup", path, "cannot remove path", err)
	}
	return nil
}
