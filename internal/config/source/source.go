// Package source acquires model directories from their configured origins
// and prepares the local models cache.
package source

import (
	"context"
	"fmt"
	"os"

	"github.com/vantorlabs/ortserve/internal/config"
)

// Downloader materializes a model into the local cache. It returns the model
// directory and whether a cached copy was reused.
type Downloader interface {
	Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (path string, cached bool, err error)
}

// GetDownloader returns the downloader for a source type.
func GetDownloader(_ context.Context, sourceType config.SourceType) (Downloader, error) {
	switch sourceType {
	case config.SourceTypeHuggingFace:
		return NewHuggingFaceDownloader(), nil
	case config.SourceTypeLocal:
		return LocalDownloader{}, nil
	default:
		return nil, fmt.Errorf("no downloader for source type %q", sourceType)
	}
}

// EnsureModelsDirectory creates the models cache directory if needed.
func EnsureModelsDirectory(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create models directory %s: %w", path, err)
	}

	return nil
}

// LocalDownloader serves models that are already present on disk. Nothing is
// copied; the configured directory is used in place.
type LocalDownloader struct{}

// Download validates the configured local path and returns it.
func (LocalDownloader) Download(_ context.Context, modelConfig *config.ModelConfig, _ string) (string, bool, error) {
	source, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get model source: %w", err)
	}

	localSource, ok := source.(config.LocalSource)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", source)
	}

	info, err := os.Stat(localSource.Path)
	if err != nil {
		return "", false, fmt.Errorf("local model path: %w", err)
	}
	if !info.IsDir() {
		return "", false, fmt.Errorf("local model path %s is not a directory", localSource.Path)
	}

	return localSource.Path, true, nil
}
