package manifest

import (
	"errors"
	"io/fs"
	"path/filepath"
)

var ErrNotFound = errors.New("Manifest not found")

// Locate walks the tree under root and returns the absolute path of the
// first file named name. WalkDir visits entries in lexical order, so the
// result is deterministic for a given tree.
func Locate(root string, name string) (string, error) {
	var found string

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.Type().IsRegular() && entry.Name() == name {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if found == "" {
		return "", ErrNotFound
	}

	return filepath.Abs(found)
}
