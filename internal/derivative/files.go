package derivative

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// writeAtomic writes data to a temp file next to path and renames it into
// place, so readers never see a partial derivative.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	return nil
}

// Purge deletes every derivative of subjectID in dir, whatever its width or
// format. It is the delete hook for source images; the cache never calls it.
func Purge(dir, subjectID string) (int, error) {
	if subjectID == "" {
		return 0, fmt.Errorf("derivative.Purge: %w: empty subject id", ErrInvalidRequest)
	}
	return sweep(dir, escapeGlob(subjectID)+"_*")
}

// sweep removes every derivative matching prefix, along with temp files
// that writeAtomic left behind when a write was interrupted before rename.
func sweep(dir, prefix string) (int, error) {
	var (
		removed  int
		errs     []error
		patterns = []string{"." + prefix + ".*.tmp"}
	)
	for _, f := range Formats {
		patterns = append(patterns, prefix+"."+f.Ext())
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
