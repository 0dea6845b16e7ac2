// Package preview is a model-free backend for dry runs. It grades the source
// image with a palette picked from the seed, so results are reproducible and
// strength moves the output away from the source.
package preview

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"sync"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blend"
	"github.com/cozy-creator/img2img/internal/backend"
	"github.com/cozy-creator/img2img/internal/types"
	"go.uber.org/zap"
)

type Backend struct {
	mu      sync.Mutex
	handles map[string]backend.LoadRequest
	logger  *zap.Logger
}

func New(logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Backend{
		handles: make(map[string]backend.LoadRequest),
		logger:  logger.Named("preview"),
	}
}

func (b *Backend) Load(ctx context.Context, req backend.LoadRequest) (*backend.Handle, error) {
	if req.ModelID == "" {
		return nil, types.Errorf(types.ErrResourceResolution, "model id is required")
	}

	id := fmt.Sprintf("%s@%s", req.ModelID, req.Device)

	b.mu.Lock()
	b.handles[id] = req
	b.mu.Unlock()

	b.logger.Info("Loaded preview pipeline", zap.String("model_id", req.ModelID), zap.String("device", req.Device))

	return &backend.Handle{
		ID:        id,
		ModelID:   req.ModelID,
		Device:    req.Device,
		Precision: req.Precision,
	}, nil
}

func (b *Backend) Sample(ctx context.Context, handle *backend.Handle, req backend.SampleRequest) ([]image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.Wrap(types.ErrBackend, err)
	}

	b.mu.Lock()
	_, ok := b.handles[handleID(handle)]
	b.mu.Unlock()
	if !ok {
		return nil, types.Errorf(types.ErrBackend, "pipeline is not loaded")
	}

	if req.Image == nil {
		return nil, types.Errorf(types.ErrBackend, "no source image")
	}
	if req.Steps < 1 {
		return nil, types.Errorf(types.ErrBackend, "invalid step count %d", req.Steps)
	}

	rng := rand.New(rand.NewSource(req.Seed))
	tint := color.RGBA{
		R: uint8(64 + rng.Intn(192)),
		G: uint8(64 + rng.Intn(192)),
		B: uint8(64 + rng.Intn(192)),
		A: 0xff,
	}

	bounds := req.Image.Bounds()
	palette := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(palette, palette.Bounds(), image.NewUniform(tint), image.Point{}, draw.Src)

	graded := blend.Multiply(req.Image, palette)
	graded = adjust.Contrast(graded, clamp(req.GuidanceScale/50, -1, 1))

	return []image.Image{blend.Opacity(req.Image, graded, clamp(req.Strength, 0, 1))}, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handles = make(map[string]backend.LoadRequest)
	return nil
}

func handleID(h *backend.Handle) string {
	if h == nil {
		return ""
	}

	return h.ID
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}
