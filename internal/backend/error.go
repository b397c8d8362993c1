package backend

import "errors"

// Error definitions for the backend package.
var (
	ErrNotFound          = errors.New("backend not found in registry")
	ErrAlreadyRegistered = errors.New("backend is already registered in the registry")
	ErrInvalidModel      = errors.New("resolved artifacts do not form a valid model")
	ErrCapability        = errors.New("device capability below the required floor")
)
