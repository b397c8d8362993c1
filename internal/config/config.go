package config

import (
	"errors"
)

// SourceType represents the type of model source.
type SourceType string

const (
	// SourceTypeHuggingFace represents a Hugging Face model repository source.
	SourceTypeHuggingFace SourceType = "huggingface"

	// SourceTypeLocal represents a model directory already present on disk.
	SourceTypeLocal SourceType = "local"
)

// Config holds the main configuration for the application.
type Config struct {
	Version string                 `json:"version"           yaml:"version"`
	Storage StorageConfig          `json:"storage,omitempty" yaml:"storage,omitempty"`
	Backend BackendConfig          `json:"backend,omitempty" yaml:"backend,omitempty"`
	Models  map[string]ModelConfig `json:"models"            yaml:"models"`
	Serving ServingConfig          `json:"serving"           yaml:"serving"`
}

// StorageConfig holds configuration for model caching and auto-download.
type StorageConfig struct {
	ModelsDir string `json:"models_dir,omitempty" yaml:"models_dir,omitempty"`
}

// BackendConfig holds the factory-wide backend settings. The snapshot is
// immutable for the lifetime of a factory.
type BackendConfig struct {
	// ORTLibraryPath points at the ONNX Runtime shared library. Empty means
	// auto-detect.
	ORTLibraryPath string `json:"ort_library_path,omitempty" yaml:"ort_library_path,omitempty"`

	// ORTAPIVersion pins the ORT C API version. Zero means default.
	ORTAPIVersion uint32 `json:"ort_api_version,omitempty" yaml:"ort_api_version,omitempty"`

	// DefaultInstances is the number of execution contexts provisioned per
	// model when the model does not override it.
	DefaultInstances int `json:"default_instances,omitempty" yaml:"default_instances,omitempty"`

	// DeviceCapability is the capability level of the serving device.
	DeviceCapability float64 `json:"device_capability,omitempty" yaml:"device_capability,omitempty"`

	// MinCapability is the minimum capability floor required of a device
	// before a model's execution contexts may be placed on it.
	MinCapability float64 `json:"min_capability,omitempty" yaml:"min_capability,omitempty"`
}

// ModelConfig holds configuration for a specific model.
type ModelConfig struct {
	Source     SourceConfig   `json:"source"               yaml:"source"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Instances  int            `json:"instances,omitempty"  yaml:"instances,omitempty"`
	Tags       []string       `json:"tags,omitempty"       yaml:"tags,omitempty"`
}

// SourceConfig wraps optional sources (only one should be set).
type SourceConfig struct {
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
	Local       *LocalSource       `json:"local,omitempty"       yaml:"local,omitempty"`
}

// ServingConfig holds the model assignments served by this process.
type ServingConfig struct {
	Models []string `json:"models" yaml:"models"` // List of model IDs
}

// Validate checks the backend settings a factory is about to snapshot.
func (b *BackendConfig) Validate() error {
	if b.DefaultInstances < 0 {
		return errors.New("backend config: default_instances must not be negative")
	}
	if b.DeviceCapability < 0 {
		return errors.New("backend config: device_capability must not be negative")
	}
	if b.MinCapability < 0 {
		return errors.New("backend config: min_capability must not be negative")
	}

	return nil
}

// -------------------------
// Source definitions
// -------------------------

// ModelSource represents a source for a model.
type ModelSource interface {
	Type() SourceType
}

// HuggingFaceSource represents a Hugging Face model repository source.
type HuggingFaceSource struct {
	Repo          string   `json:"repo"                     yaml:"repo"`
	Revision      string   `json:"revision,omitempty"       yaml:"revision,omitempty"`
	RepoType      string   `json:"repo_type,omitempty"      yaml:"repo_type,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"`
	Include       []string `json:"include,omitempty"        yaml:"include,omitempty"`
	Exclude       []string `json:"exclude,omitempty"        yaml:"exclude,omitempty"`
	MaxWorkers    int      `json:"max_workers,omitempty"    yaml:"max_workers,omitempty"`
	ForceDownload bool     `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// Type returns the Hugging Face source type.
func (h HuggingFaceSource) Type() SourceType {
	return SourceTypeHuggingFace
}

// LocalSource represents a model directory already present on disk.
type LocalSource struct {
	Path string `json:"path" yaml:"path"`
}

// Type returns the local source type.
func (l LocalSource) Type() SourceType {
	return SourceTypeLocal
}

// GetSource returns the active source for the model.
func (m *ModelConfig) GetSource() (ModelSource, error) {
	if m.Source.HuggingFace != nil {
		return *m.Source.HuggingFace, nil
	}
	if m.Source.Local != nil {
		return *m.Source.Local, nil
	}

	return nil, errors.New("no source configured for model")
}

// SetHuggingFaceSource sets the Hugging Face source.
func (m *ModelConfig) SetHuggingFaceSource(source HuggingFaceSource) {
	m.Source.HuggingFace = &source
}

// SetLocalSource sets the local source.
func (m *ModelConfig) SetLocalSource(source LocalSource) {
	m.Source.Local = &source
}
