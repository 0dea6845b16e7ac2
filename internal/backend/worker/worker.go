package worker

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/cozy-creator/img2img/internal/backend"
	"github.com/cozy-creator/img2img/internal/types"
	"github.com/cozy-creator/img2img/internal/utils/imageutil"
	"github.com/cozy-creator/img2img/pkg/tcpclient"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Backend drives a diffusers worker process over the framed TCP protocol.
type Backend struct {
	client *tcpclient.TCPClient
	logger *zap.Logger
}

type Config struct {
	Address  string
	Timeout  time.Duration
	PoolSize int
}

func New(cfg Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("worker")

	client, err := tcpclient.NewTCPClient(cfg.Address, cfg.Timeout, cfg.PoolSize, tcpclient.WithLogger(logger))
	if err != nil {
		return nil, types.Wrap(types.ErrConfiguration, fmt.Errorf("failed to connect to worker at %s: %w", cfg.Address, err))
	}

	return &Backend{client: client, logger: logger}, nil
}

func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.call(ctx, &Request{Command: CommandPing})
	return err
}

func (b *Backend) Load(ctx context.Context, req backend.LoadRequest) (*backend.Handle, error) {
	b.logger.Info("Loading pipeline",
		zap.String("model_id", req.ModelID),
		zap.String("device", req.Device),
		zap.String("scheduler", req.Scheduler),
	)

	resp, err := b.call(ctx, &Request{Command: CommandLoad, Load: &req})
	if err != nil {
		return nil, err
	}

	if resp.HandleID == "" {
		return nil, types.Errorf(types.ErrBackend, "worker returned no handle for %s", req.ModelID)
	}

	return &backend.Handle{
		ID:        resp.HandleID,
		ModelID:   req.ModelID,
		Device:    req.Device,
		Precision: req.Precision,
	}, nil
}

func (b *Backend) Sample(ctx context.Context, handle *backend.Handle, req backend.SampleRequest) ([]image.Image, error) {
	if handle == nil {
		return nil, types.Errorf(types.ErrBackend, "pipeline is not loaded")
	}

	encoded, err := imageutil.Encode(req.Image, "png")
	if err != nil {
		return nil, types.Wrap(types.ErrBackend, fmt.Errorf("failed to encode source image: %w", err))
	}

	resp, err := b.call(ctx, &Request{
		Command: CommandSample,
		Sample: &SampleParams{
			HandleID:      handle.ID,
			Prompt:        req.Prompt,
			Image:         encoded,
			Strength:      req.Strength,
			GuidanceScale: req.GuidanceScale,
			Seed:          req.Seed,
			Steps:         req.Steps,
			Device:        req.Device,
		},
	})
	if err != nil {
		return nil, err
	}

	images := make([]image.Image, 0, len(resp.Images))
	for i, data := range resp.Images {
		img, _, err := imageutil.Decode(data)
		if err != nil {
			return nil, types.Wrap(types.ErrBackend, fmt.Errorf("worker output %d: %w", i, err))
		}
		images = append(images, img)
	}

	if len(images) == 0 {
		return nil, types.Errorf(types.ErrBackend, "worker returned no images")
	}

	return images, nil
}

func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) call(ctx context.Context, req *Request) (*Response, error) {
	data, err := msgpack.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := b.client.Do(ctx, data)
	if err != nil {
		return nil, types.Wrap(types.ErrBackend, fmt.Errorf("%s request failed: %w", req.Command, err))
	}

	var resp Response
	if err := msgpack.Unmarshal(raw, &resp); err != nil {
		return nil, types.Wrap(types.ErrBackend, fmt.Errorf("failed to unmarshal response: %w", err))
	}

	if !resp.Success {
		return nil, classify(req.Command, &resp)
	}

	return &resp, nil
}

func classify(cmd Command, resp *Response) error {
	switch resp.Code {
	case CodeModelNotFound:
		return types.Errorf(types.ErrResourceResolution, "%s: %s", cmd, resp.Error)
	case CodeInvalidDevice:
		return types.Errorf(types.ErrConfiguration, "%s: %s", cmd, resp.Error)
	default:
		return types.Errorf(types.ErrBackend, "%s: %s", cmd, resp.Error)
	}
}
