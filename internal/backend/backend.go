// Package backend describes the generative capability the pipeline drives.
// Implementations live in subpackages: worker talks to the diffusers worker
// process, preview renders locally without a model.
package backend

import (
	"context"
	"image"
)

type Precision string

const Float32 Precision = "float32"

const SchedulerClassKey = "_class_name"

// LoadRequest describes how a pipeline should be loaded by the backend.
type LoadRequest struct {
	ModelID   string    `json:"model_id" msgpack:"model_id"`
	ModelPath string    `json:"model_path,omitempty" msgpack:"model_path,omitempty"`
	Device    string    `json:"device" msgpack:"device"`
	Precision Precision `json:"precision" msgpack:"precision"`

	SafetyChecker bool `json:"safety_checker" msgpack:"safety_checker"`

	// Scheduler replaces the pipeline's default scheduler. When
	// SchedulerConfig is nil the backend derives it from the pipeline's own
	// scheduler config.
	Scheduler       string         `json:"scheduler" msgpack:"scheduler"`
	SchedulerConfig map[string]any `json:"scheduler_config,omitempty" msgpack:"scheduler_config,omitempty"`
}

// Handle identifies a loaded pipeline inside a backend.
type Handle struct {
	ID        string
	ModelID   string
	Device    string
	Precision Precision
}

// SampleRequest is a single image-to-image invocation.
type SampleRequest struct {
	Prompt        string
	Image         image.Image
	Strength      float64
	GuidanceScale float64
	Seed          int64
	Steps         int
	Device        string
}

type Backend interface {
	Load(ctx context.Context, req LoadRequest) (*Handle, error)
	Sample(ctx context.Context, handle *Handle, req SampleRequest) ([]image.Image, error)
	Close() error
}
