package backend

import (
	"context"
	"io"
	"time"

	"github.com/vantorlabs/ortserve/internal/artifact"
	"github.com/vantorlabs/ortserve/internal/config"
)

// Provider is a string identifier for a backend provider.
type Provider string

const (
	ProviderONNXRuntime Provider = "onnxruntime"
)

// Platform identifiers passed to Backend.Init.
const (
	PlatformONNXRuntimeONNX = "onnxruntime_onnx"
)

// Backend defines the core interface for all inference backends. A backend is
// provisioned per model by a Factory: Init validates the model configuration,
// CreateExecutionContexts consumes a resolved artifact map and builds the
// parallel execution contexts that serve inference.
type Backend interface {
	// Provider returns the backend identifier.
	Provider() Provider

	// Init prepares the backend for the model rooted at root.
	Init(root string, cfg *config.ModelConfig, platform string) error

	// CreateExecutionContexts parses the model definition out of the
	// resolved artifact map and provisions the execution contexts. It must
	// not retain references to localized temporary paths beyond this call.
	CreateExecutionContexts(artifacts artifact.Map) error

	// Infer executes inference and returns the complete result.
	Infer(ctx context.Context, req *Request) (*Response, error)

	// Close releases the backend's execution contexts.
	Close() error
}

// Factory provisions backends for resolved model directories.
type Factory interface {
	// CreateBackend resolves the model directory at path and builds a fully
	// initialized backend honoring the minimum capability floor.
	CreateBackend(path string, cfg *config.ModelConfig, minCapability float64) (Backend, error)

	// Close tears down the factory's runtime session. Must be the last
	// factory call; errors are logged, never propagated.
	Close()
}

// Request encapsulates all parameters for an inference call.
type Request struct {
	// Input is the raw input data.
	Input io.Reader

	// Parameters contains backend-specific inference parameters.
	Parameters map[string]any
}

// Response contains the result of an inference operation.
type Response struct {
	// Output is the raw output data.
	Output io.Reader

	// Metadata contains backend-specific information.
	Metadata *ResponseMetadata
}

// ResponseMetadata contains metadata about the response.
type ResponseMetadata struct {
	Provider        Provider       `json:"provider"`
	Context         string         `json:"context"`
	Timestamp       time.Time      `json:"timestamp"`
	OutputBytes     int64          `json:"output_bytes"`
	BackendSpecific map[string]any `json:"backend_specific,omitempty"`
}
