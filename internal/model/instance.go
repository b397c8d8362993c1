package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/vantorlabs/ortserve/internal/config"
)

// Status is the current provisioning status of a model.
type Status string

const (
	// StatusUnloaded indicates that the model has no backend provisioned.
	StatusUnloaded Status = "unloaded"

	// StatusLoaded indicates that the model's backend is serving.
	StatusLoaded Status = "loaded"

	// StatusFailed indicates that provisioning failed.
	StatusFailed Status = "failed"
)

// Instance represents one model tracked by the registry.
type Instance struct {
	Config *config.ModelConfig `json:"config"`

	// ID is the model's configuration key.
	ID string `json:"id"`

	// ProvisionID correlates log lines across one provisioning attempt.
	ProvisionID string `json:"provision_id"`

	// Path is the local model directory handed to the backend factory.
	Path string `json:"-"`

	Status   Status     `json:"status"`
	Error    string     `json:"error,omitempty"`
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
}

// NewInstance creates a new model instance.
func NewInstance(cfg *config.ModelConfig, id, path string) *Instance {
	return &Instance{
		ID:          id,
		ProvisionID: uuid.NewString(),
		Path:        path,
		Config:      cfg,
		Status:      StatusUnloaded,
	}
}

// SetStatus sets the status of the model instance.
func (i *Instance) SetStatus(status Status) {
	i.Status = status
	if status == StatusLoaded {
		now := time.Now()
		i.LoadedAt = &now
	}
}

// SetError records a provisioning failure.
func (i *Instance) SetError(err error) {
	i.Status = StatusFailed
	i.Error = err.Error()
}
