package pipeline

import (
	"context"
	"image"

	"github.com/cozy-creator/img2img/internal/backend"
	"github.com/cozy-creator/img2img/internal/device"
	"github.com/cozy-creator/img2img/internal/types"
	"go.uber.org/zap"
)

// ModelResolver turns a model identifier into a local snapshot directory.
type ModelResolver interface {
	Resolve(ctx context.Context, modelID string) (string, error)
}

type Options struct {
	ModelID string
	Device  string

	// Resolver is optional. Without one the backend resolves the model id.
	Resolver      ModelResolver
	SafetyChecker bool
	Logger        *zap.Logger
}

// Pipeline is a loaded image-to-image model bound to a device. It is
// read-only after Initialize and safe for sequential reuse.
type Pipeline struct {
	backend backend.Backend
	handle  *backend.Handle
	device  device.Device
	logger  *zap.Logger
}

// Initialize loads opts.ModelID on opts.Device with float32 weights, the
// safety checker off by default and the LMS discrete scheduler.
func Initialize(ctx context.Context, b backend.Backend, opts Options) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("pipeline")

	dev, err := device.Parse(opts.Device)
	if err != nil {
		return nil, err
	}

	if opts.ModelID == "" {
		return nil, types.Errorf(types.ErrResourceResolution, "model id is required")
	}

	var snapshot string
	if opts.Resolver != nil {
		snapshot, err = opts.Resolver.Resolve(ctx, opts.ModelID)
		if err != nil {
			return nil, types.Wrap(types.ErrResourceResolution, err)
		}
	}

	schedulerConfig, err := deriveSchedulerConfig(snapshot)
	if err != nil {
		return nil, types.Wrap(types.ErrResourceResolution, err)
	}

	if !opts.SafetyChecker {
		logger.Warn("Safety checker is disabled", zap.String("model_id", opts.ModelID))
	}

	req := backend.LoadRequest{
		ModelID:         opts.ModelID,
		ModelPath:       snapshot,
		Device:          dev.String(),
		Precision:       backend.Float32,
		SafetyChecker:   opts.SafetyChecker,
		Scheduler:       LMSDiscreteScheduler,
		SchedulerConfig: schedulerConfig,
	}

	handle, err := b.Load(ctx, req)
	if err != nil {
		if types.Kind(err) == nil {
			err = types.Wrap(types.ErrResourceResolution, err)
		}
		return nil, err
	}

	logger.Info("Pipeline ready",
		zap.String("model_id", opts.ModelID),
		zap.String("device", dev.String()),
		zap.String("handle", handle.ID),
	)

	return &Pipeline{
		backend: b,
		handle:  handle,
		device:  dev,
		logger:  logger,
	}, nil
}

func (p *Pipeline) Device() device.Device {
	return p.device
}

func (p *Pipeline) ModelID() string {
	return p.handle.ModelID
}

// Sample runs one backend invocation. An empty req.Device defaults to the
// pipeline's device.
func (p *Pipeline) Sample(ctx context.Context, req backend.SampleRequest) ([]image.Image, error) {
	if req.Device == "" {
		req.Device = p.device.String()
	}

	images, err := p.backend.Sample(ctx, p.handle, req)
	if err != nil {
		if types.Kind(err) == nil {
			err = types.Wrap(types.ErrBackend, err)
		}
		return nil, err
	}

	return images, nil
}
