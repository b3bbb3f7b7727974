// Package atomicio provides the write-temp-then-rename primitive that every
// durable file in the store relies on for crash safety. A reader never
// observes a half-written file because rename only ever publishes a
// complete one.
package atomicio

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile writes data to path by first writing to a sibling temp file
// named path+".tmp."+pid, then renaming it into place. Rename is atomic
// within a single directory on the filesystems this store targets; callers
// must not use this across filesystems (e.g. path on a different mount
// than its directory).
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("atomicio: create temp in %s: %w", dir, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("atomicio: write temp %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("atomicio: sync temp %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("atomicio: close temp %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("atomicio: rename %s -> %s: %w", tmp, path, err)
	}
	return nil
}
