package artifact

import (
	"path/filepath"

	"github.com/vantorlabs/ortserve/internal/xfs"
)

// Resolver builds artifact maps from model directories.
type Resolver struct {
	// Localize materializes a subdirectory into a temporary local copy.
	// Defaults to xfs.LocalizeTree.
	Localize func(src string) (root string, release func() error, err error)
}

// NewResolver creates a resolver backed by the real filesystem.
func NewResolver() *Resolver {
	return &Resolver{Localize: xfs.LocalizeTree}
}

// Resolve scans dir and builds the normalized artifact map: every regular
// file becomes a file-content entry, every subdirectory is localized into a
// temporary copy and becomes a directory-path entry. Hidden entries are
// skipped. The returned TempSet owns the localized copies; the caller must
// call ReleaseAll when the map has been consumed. On error nothing acquired
// so far is leaked and no partial map is returned.
func (r *Resolver) Resolve(dir string) (Map, *TempSet, error) {
	files, err := xfs.ListFiles(dir, true)
	if err != nil {
		return nil, nil, err
	}

	subdirs, err := xfs.ListSubdirs(dir)
	if err != nil {
		return nil, nil, err
	}

	artifacts := make(Map, len(files)+len(subdirs))
	temps := NewTempSet()

	// Subdirectories are localized so that relative references made by the
	// main model definition resolve against a real local tree, even when the
	// original directory lives on a read-only or remote store.
	for _, name := range subdirs {
		root, release, err := r.Localize(filepath.Join(dir, name))
		if err != nil {
			_ = temps.ReleaseAll()
			return nil, nil, err
		}
		temps.Add(release)
		artifacts[name] = Entry{Kind: KindDirectoryPath, Path: root}
	}

	for _, name := range files {
		data, err := xfs.ReadFile(filepath.Join(dir, name))
		if err != nil {
			_ = temps.ReleaseAll()
			return nil, nil, err
		}
		artifacts[name] = Entry{Kind: KindFileContent, Bytes: data}
	}

	return artifacts, temps, nil
}
