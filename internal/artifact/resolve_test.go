package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestResolve_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "model.onnx"), []byte{1, 2, 3, 4})

	artifacts, temps, err := NewResolver().Resolve(dir)
	require.NoError(t, err)
	defer temps.ReleaseAll() //nolint:errcheck

	require.Len(t, artifacts, 1)
	entry := artifacts["model.onnx"]
	assert.Equal(t, KindFileContent, entry.Kind)
	assert.Equal(t, []byte{1, 2, 3, 4}, entry.Bytes)
	assert.Zero(t, temps.Len())
}

func TestResolve_FileAndSubdir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "model.bin"), []byte{1, 2, 3, 4})
	writeFile(t, filepath.Join(dir, "data", "weights.dat"), []byte{9, 9})

	artifacts, temps, err := NewResolver().Resolve(dir)
	require.NoError(t, err)
	defer temps.ReleaseAll() //nolint:errcheck

	require.Len(t, artifacts, 2)

	file := artifacts["model.bin"]
	assert.Equal(t, KindFileContent, file.Kind)
	assert.Equal(t, []byte{1, 2, 3, 4}, file.Bytes)

	sub := artifacts["data"]
	require.Equal(t, KindDirectoryPath, sub.Kind)
	assert.NotEqual(t, filepath.Join(dir, "data"), sub.Path)

	copied, err := os.ReadFile(filepath.Join(sub.Path, "weights.dat"))
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, copied)

	assert.Equal(t, 1, temps.Len())
	require.NoError(t, temps.ReleaseAll())
	_, err = os.Stat(sub.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestResolve_SkipsHiddenEntries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "model.onnx"), []byte("m"))
	writeFile(t, filepath.Join(dir, ".DS_Store"), []byte("junk"))
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), []byte("ref"))

	artifacts, temps, err := NewResolver().Resolve(dir)
	require.NoError(t, err)
	defer temps.ReleaseAll() //nolint:errcheck

	assert.Len(t, artifacts, 1)
	assert.Contains(t, artifacts, "model.onnx")
}

func TestResolve_MissingDir(t *testing.T) {
	artifacts, temps, err := NewResolver().Resolve(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
	assert.Nil(t, artifacts)
	assert.Nil(t, temps)
}

func TestResolve_LocalizationFailureReleasesEarlierResources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "x"), []byte("x"))
	writeFile(t, filepath.Join(dir, "b", "y"), []byte("y"))

	released := 0
	calls := 0
	resolver := &Resolver{
		Localize: func(string) (string, func() error, error) {
			calls++
			if calls > 1 {
				return "", nil, errors.New("disk full")
			}
			return t.TempDir(), func() error {
				released++
				return nil
			}, nil
		},
	}

	artifacts, temps, err := resolver.Resolve(dir)
	assert.ErrorContains(t, err, "disk full")
	assert.Nil(t, artifacts)
	assert.Nil(t, temps)
	assert.Equal(t, 1, released, "resources acquired before the failure must be released")
}

func TestTempSet_ReleaseAllIdempotent(t *testing.T) {
	temps := NewTempSet()

	released := 0
	temps.Add(func() error {
		released++
		return nil
	})
	temps.Add(func() error {
		released++
		return errors.New("unwritable")
	})

	err := temps.ReleaseAll()
	assert.ErrorContains(t, err, "unwritable")
	assert.Equal(t, 2, released)

	require.NoError(t, temps.ReleaseAll())
	assert.Equal(t, 2, released, "release must run exactly once per resource")
}
