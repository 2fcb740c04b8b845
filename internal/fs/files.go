// Package fs holds filesystem helpers for working with advisory checkouts.
package fs

import (
	"errors"
	"io/fs"
	"os"
)

// FSContainsFiles reports whether fsys contains any regular files. An advisory
// checkout that only has directories counts as empty.
func FSContainsFiles(fsys fs.FS) (bool, error) {
	// Sentinel to stop the walk at the first file.
	errFound := os.ErrExist

	err := fs.WalkDir(fsys, ".", func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return errFound
		}
		return nil
	})
	if err == errFound {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, err
}
