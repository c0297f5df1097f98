package utils

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// RemoveFileNoError will remove the file at the given path if it exists. Any
// errors will be suppressed.
func RemoveFileNoError(path string) {
	utils.UncheckedErrorFunc(func() error {
		if _, err := os.Stat(path); err == nil {
			return os.Remove(path)
		}
		return nil
	})
}

// SafeJoinDir performs a filepath.Join of 'parent' and 'name' but returns an error
// if the resulting path points outside of 'parent'.
func SafeJoinDir(parent, name string) (string, error) {
	res := filepath.Join(parent, name)
	rel, err := filepath.Rel(filepath.Clean(parent), res)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return res, errors.Errorf("unsafe path join: '%s' with '%s'", parent, name)
	}
	return res, nil
}

// EnsureDir creates dir, and any missing parents, if it does not exist.
func EnsureDir(dir string) error {
	if dir == "" {
		return nil
	}
	return errors.Wrapf(os.MkdirAll(dir, 0o750), "creating directory %q", dir)
}

// FileTimestampLayout is the layout of timestamps embedded in output file names.
const FileTimestampLayout = "20060102-150405"

// TimestampedName returns "<prefix>_<timestamp><ext>", e.g. screenshot_20240101-120000.png.
func TimestampedName(prefix, ext string, t time.Time) string {
	return prefix + "_" + t.Format(FileTimestampLayout) + ext
}
