package generator

import (
	"context"
	"image"
	"math"
	"strings"

	"github.com/cozy-creator/img2img/internal/backend"
	"github.com/cozy-creator/img2img/internal/device"
	"github.com/cozy-creator/img2img/internal/source"
	"github.com/cozy-creator/img2img/internal/types"
	"github.com/cozy-creator/img2img/internal/utils/imageutil"
	"go.uber.org/zap"
)

const (
	DefaultStrength      = 0.75
	DefaultGuidanceScale = 7.5
	DefaultSeed          = int64(1024)
	InferenceSteps       = 5
)

// Sampler is the loaded pipeline the generator invokes.
type Sampler interface {
	Sample(ctx context.Context, req backend.SampleRequest) ([]image.Image, error)
	Device() device.Device
}

// Params are the inputs of one generation. Nil optional fields take the
// package defaults.
type Params struct {
	Source        string   `json:"source"`
	Prompt        string   `json:"prompt"`
	Device        string   `json:"device,omitempty"`
	Strength      *float64 `json:"strength,omitempty"`
	GuidanceScale *float64 `json:"guidance_scale,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
}

type Generator struct {
	sampler Sampler
	fetcher *source.Fetcher
	logger  *zap.Logger
}

type Option func(*Generator)

func WithFetcher(fetcher *source.Fetcher) Option {
	return func(g *Generator) {
		g.fetcher = fetcher
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		g.logger = logger.Named("generator")
	}
}

func New(sampler Sampler, opts ...Option) *Generator {
	g := &Generator{
		sampler: sampler,
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.fetcher == nil {
		g.fetcher = source.NewFetcher(source.WithLogger(g.logger))
	}

	return g
}

// Generate resolves the source image, normalises it and runs the pipeline
// once. The first image the backend produces is returned.
func (g *Generator) Generate(ctx context.Context, params Params) (image.Image, error) {
	req, err := g.buildRequest(params)
	if err != nil {
		return nil, err
	}

	data, err := g.fetcher.Fetch(ctx, params.Source)
	if err != nil {
		return nil, err
	}

	img, format, err := imageutil.Decode(data)
	if err != nil {
		return nil, err
	}

	req.Image = imageutil.Normalize(img)

	g.logger.Info("Generating image",
		zap.String("source", params.Source),
		zap.String("source_kind", source.Classify(params.Source).String()),
		zap.String("format", format),
		zap.Stringer("size", req.Image.Bounds().Size()),
		zap.Float64("strength", req.Strength),
		zap.Float64("guidance_scale", req.GuidanceScale),
		zap.Int64("seed", req.Seed),
	)

	images, err := g.sampler.Sample(ctx, req)
	if err != nil {
		return nil, types.Wrap(types.ErrBackend, err)
	}
	if len(images) == 0 {
		return nil, types.Errorf(types.ErrBackend, "backend returned no images")
	}

	return images[0], nil
}

// buildRequest validates params without touching the network or the backend.
func (g *Generator) buildRequest(params Params) (backend.SampleRequest, error) {
	if strings.TrimSpace(params.Source) == "" || strings.TrimSpace(params.Prompt) == "" {
		return backend.SampleRequest{}, types.Errorf(types.ErrArgument, "both source and prompt must be provided")
	}

	req := backend.SampleRequest{
		Prompt:        params.Prompt,
		Strength:      DefaultStrength,
		GuidanceScale: DefaultGuidanceScale,
		Seed:          DefaultSeed,
		Steps:         InferenceSteps,
		Device:        g.sampler.Device().String(),
	}

	if params.Strength != nil {
		req.Strength = *params.Strength
	}
	if math.IsNaN(req.Strength) || req.Strength < 0 || req.Strength > 1 {
		return backend.SampleRequest{}, types.Errorf(types.ErrArgument, "strength must be within [0, 1], got %v", req.Strength)
	}

	if params.GuidanceScale != nil {
		req.GuidanceScale = *params.GuidanceScale
	}
	if math.IsNaN(req.GuidanceScale) || math.IsInf(req.GuidanceScale, 0) {
		return backend.SampleRequest{}, types.Errorf(types.ErrArgument, "guidance scale must be finite")
	}

	if params.Seed != nil {
		req.Seed = *params.Seed
	}

	if params.Device != "" {
		dev, err := device.Parse(params.Device)
		if err != nil {
			return backend.SampleRequest{}, types.Errorf(types.ErrArgument, "invalid device %q", params.Device)
		}
		req.Device = dev.String()
	}

	return req, nil
}
