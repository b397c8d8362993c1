// Package ort wraps the native ONNX Runtime library behind a process-wide
// session manager: an explicit Init/Stop lifecycle plus execution-context
// construction for backends. The binding is loaded at runtime through purego,
// so no cgo is involved.
package ort

import (
	"errors"
	"fmt"
	"os"

	"github.com/vantorlabs/ortserve/internal/envvar"
)

// defaultAPIVersion is the ORT C API version requested from the shared
// library when the configuration does not pin one.
const defaultAPIVersion = 23

// wellKnownLibraryPaths are probed when no explicit path is configured.
var wellKnownLibraryPaths = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/opt/homebrew/lib/libonnxruntime.dylib",
	"C:/onnxruntime/lib/onnxruntime.dll",
}

// DetectLibrary resolves the ONNX Runtime shared library path.
// Precedence: explicit argument, ORTSERVE_ORT_LIB, ORT_LIBRARY_PATH,
// well-known install locations.
func DetectLibrary(explicit string) (string, error) {
	path := explicit
	if path == "" {
		path = os.Getenv(envvar.OrtserveORTLib)
	}
	if path == "" {
		path = os.Getenv("ORT_LIBRARY_PATH")
	}
	if path == "" {
		for _, candidate := range wellKnownLibraryPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path == "" {
		return "", errors.New("unable to detect ONNX Runtime library path")
	}

	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("onnx runtime library path check failed: %w", err)
	}

	return path, nil
}
