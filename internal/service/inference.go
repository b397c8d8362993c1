// Package service exposes thin dispatch layers over provisioned backends.
package service

import (
	"context"

	"github.com/vantorlabs/ortserve/internal/backend"
	"github.com/vantorlabs/ortserve/internal/model"
)

// Inference dispatches inference requests to the backend provisioned for a
// model.
type Inference struct {
	backends *backend.Registry
	models   *model.Registry
}

// NewInference creates a new Inference service.
func NewInference(backends *backend.Registry, models *model.Registry) *Inference {
	return &Inference{
		backends: backends,
		models:   models,
	}
}

// Infer runs one request against the model's backend.
func (s *Inference) Infer(ctx context.Context, modelID string, req *backend.Request) (*backend.Response, error) {
	if _, ok := s.models.Get(modelID); !ok {
		return nil, model.ErrNotFound
	}

	b, ok := s.backends.Get(modelID)
	if !ok {
		return nil, backend.ErrNotFound
	}

	return b.Infer(ctx, req)
}
