// Package xfs provides the filesystem primitives used during model artifact
// resolution: directory classification, whole-file reads, and localization of
// directory trees into uniquely named temporary copies.
package xfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ListFiles returns the names of the regular files directly under dir.
// Hidden entries (leading dot) are skipped when skipHidden is set, so that
// editor and VCS metadata inside a model directory does not leak into the
// artifact set.
func ListFiles(dir string, skipHidden bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list files in %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if skipHidden && strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}

	return names, nil
}

// ListSubdirs returns the names of the immediate subdirectories of dir.
// Hidden subdirectories are always skipped.
func ListSubdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list subdirs in %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}

	return names, nil
}

// ReadFile reads the whole file at path into memory.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	return data, nil
}

// LocalizeTree deep-copies the directory tree rooted at src into a freshly
// created, uniquely named temporary directory and returns its root together
// with a release function that removes the whole copy. Each call gets its own
// private root, so concurrent localizations of the same source never collide.
// On failure nothing is left behind.
func LocalizeTree(src string) (string, func() error, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", nil, fmt.Errorf("localize %s: %w", src, err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("localize %s: not a directory", src)
	}

	root, err := os.MkdirTemp("", "ortserve-localize-")
	if err != nil {
		return "", nil, fmt.Errorf("localize %s: create temporary root: %w", src, err)
	}

	if err := CopyTree(src, root); err != nil {
		_ = os.RemoveAll(root)
		return "", nil, fmt.Errorf("localize %s: %w", src, err)
	}

	release := func() error {
		if err := os.RemoveAll(root); err != nil {
			return fmt.Errorf("release localized tree %s: %w", root, err)
		}
		return nil
	}

	return root, release, nil
}

// CopyTree copies every directory and regular file under src into dst,
// preserving the relative layout. Non-regular entries are ignored for
// portability. dst must already exist.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if entry.IsDir() {
			if rel == "." {
				return nil
			}
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", target, err)
			}
			return nil
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}

	return nil
}
