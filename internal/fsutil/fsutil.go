// Package fsutil implements the directory mirroring used to rebuild an
// app's working copy from its clone.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// CopyDirExcluding copies src into dst recursively, skipping top-level
// entries named in exclude.
func CopyDirExcluding(src, dst string, exclude []string) error {
	skip := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skip[name] = struct{}{}
	}
	return copyDir(src, dst, skip)
}

func copyDir(src, dst string, skip map[string]struct{}) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("failed to create dir %s: %w", dst, err)
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("failed to read dir %s: %w", src, err)
	}
	for _, entry := range entries {
		if _, excluded := skip[entry.Name()]; excluded {
			continue
		}
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath, nil); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

// DeleteExtraneous removes entries under dst that have no counterpart under
// src, making dst mirror src. Top-level entries named in keep survive even
// without a counterpart.
func DeleteExtraneous(dst, src string, keep []string) error {
	preserve := make(map[string]struct{}, len(keep))
	for _, name := range keep {
		preserve[name] = struct{}{}
	}

	var doomed []string
	err := filepath.WalkDir(dst, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dst {
			return nil
		}
		rel, err := filepath.Rel(dst, path)
		if err != nil {
			return err
		}
		if top := topComponent(rel); top != "" {
			if _, keepIt := preserve[top]; keepIt {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if _, statErr := os.Stat(filepath.Join(src, rel)); os.IsNotExist(statErr) {
			doomed = append(doomed, path)
			if d.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", dst, err)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(doomed)))
	for _, path := range doomed {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

func topComponent(rel string) string {
	for i := 0; i < len(rel); i++ {
		if os.IsPathSeparator(rel[i]) {
			return rel[:i]
		}
	}
	return rel
}
