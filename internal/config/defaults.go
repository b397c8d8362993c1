package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultConfigPath returns the default path for the ortserve config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "ortserve", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "ortserve")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "ortserve")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "ortserve")
		}
		return filepath.Join(home, ".config", "ortserve")
	}
}

// DefaultModelsPath returns the default path for the ortserve models directory.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "ortserve", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "ortserve", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "ortserve", "models")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "ortserve", "models")
		}
		return filepath.Join(home, ".cache", "ortserve", "models")
	}
}
