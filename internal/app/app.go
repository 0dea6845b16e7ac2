package app

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/cozy-creator/img2img/internal/backend"
	"github.com/cozy-creator/img2img/internal/backend/preview"
	"github.com/cozy-creator/img2img/internal/backend/worker"
	"github.com/cozy-creator/img2img/internal/config"
	"github.com/cozy-creator/img2img/internal/device"
	"github.com/cozy-creator/img2img/internal/generator"
	"github.com/cozy-creator/img2img/internal/models"
	"github.com/cozy-creator/img2img/internal/pipeline"
	"github.com/cozy-creator/img2img/internal/services/filestorage"
	"github.com/cozy-creator/img2img/internal/services/fileuploader"
	"github.com/cozy-creator/img2img/internal/source"
	"github.com/cozy-creator/img2img/internal/types"
	"github.com/cozy-creator/img2img/internal/utils/imageutil"
	"github.com/cozy-creator/img2img/internal/utils/pathutil"
	"github.com/cozy-creator/img2img/pkg/logger"
	"github.com/vbauerster/mpb/v7"
	"go.uber.org/zap"
)

type App struct {
	config     *config.Config
	ctx        context.Context
	cancelFunc context.CancelFunc

	backend     backend.Backend
	resolver    *models.Resolver
	pipeline    *pipeline.Pipeline
	generator   *generator.Generator
	filestorage filestorage.FileStorage
	uploader    *fileuploader.Uploader
	progress    *mpb.Progress

	Logger *zap.Logger
}

// OptionFunc configures the App. Options run in the order given, so
// WithPipeline must come after the backend and resolver options.
type OptionFunc func(app *App) error

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(app *App) error {
		app.Logger = logger
		return nil
	}
}

func WithBackend(b backend.Backend) OptionFunc {
	return func(app *App) error {
		app.backend = b
		return nil
	}
}

// WithConfiguredBackend connects the backend named by the backend config key.
func WithConfiguredBackend() OptionFunc {
	return func(app *App) error {
		switch app.config.Backend {
		case config.BackendPreview:
			app.backend = preview.New(app.Logger)
		case config.BackendWorker:
			if app.config.Worker == nil {
				return types.Errorf(types.ErrConfiguration, "worker backend requires worker settings")
			}
			b, err := worker.New(worker.Config{
				Address:  app.config.Worker.Address,
				Timeout:  time.Duration(app.config.Worker.Timeout) * time.Second,
				PoolSize: app.config.Worker.PoolSize,
			}, app.Logger)
			if err != nil {
				return err
			}
			app.backend = b
		default:
			return types.Errorf(types.ErrConfiguration, "unknown backend %q", app.config.Backend)
		}

		return nil
	}
}

// WithResolver resolves model ids to local snapshots through the HF cache.
func WithResolver() OptionFunc {
	return func(app *App) error {
		app.resolver = models.NewResolver(
			models.WithCacheDir(app.config.HFCacheDir),
			models.WithDownload(app.config.Download),
			models.WithLogger(app.Logger),
		)
		return nil
	}
}

// WithProgress renders download progress for URL sources.
func WithProgress(progress *mpb.Progress) OptionFunc {
	return func(app *App) error {
		app.progress = progress
		return nil
	}
}

func WithFileStorage(opts ...filestorage.Option) OptionFunc {
	return func(app *App) error {
		storage, err := filestorage.NewFileStorage(app.ctx, app.config, opts...)
		if err != nil {
			return err
		}
		app.filestorage = storage
		return nil
	}
}

func WithFileUploader(maxWorkers int) OptionFunc {
	return func(app *App) error {
		if app.filestorage == nil {
			return fmt.Errorf("file uploader requires file storage")
		}
		app.uploader = fileuploader.NewFileUploader(app.filestorage, maxWorkers)
		return nil
	}
}

// WithPipeline loads the configured model on the configured device, or on
// the detected one when none is pinned.
func WithPipeline() OptionFunc {
	return func(app *App) error {
		if app.backend == nil {
			return types.Errorf(types.ErrConfiguration, "no backend configured")
		}

		opts := pipeline.Options{
			ModelID:       app.config.ModelID,
			Device:        app.DeviceTag(),
			SafetyChecker: app.config.SafetyChecker,
			Logger:        app.Logger,
		}
		if app.resolver != nil {
			opts.Resolver = app.resolver
		}

		p, err := pipeline.Initialize(app.ctx, app.backend, opts)
		if err != nil {
			return err
		}

		fetcherOpts := []source.Option{source.WithLogger(app.Logger)}
		if app.progress != nil {
			fetcherOpts = append(fetcherOpts, source.WithProgress(app.progress))
		}

		app.pipeline = p
		app.generator = generator.New(p,
			generator.WithFetcher(source.NewFetcher(fetcherOpts...)),
			generator.WithLogger(app.Logger),
		)
		return nil
	}
}

// NewApp applies options in order and stops at the first failure.
func NewApp(cfg *config.Config, options ...OptionFunc) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		ctx:        ctx,
		config:     cfg,
		Logger:     logger.GetLogger(),
		cancelFunc: cancel,
	}

	for _, opt := range options {
		if err := opt(app); err != nil {
			app.Close()
			return nil, err
		}
	}

	return app, nil
}

func (app *App) DeviceTag() string {
	if app.config.Device != "" {
		return app.config.Device
	}

	return device.Detect().String()
}

func (app *App) Generate(ctx context.Context, params generator.Params) (image.Image, error) {
	if app.generator == nil {
		return nil, types.Errorf(types.ErrConfiguration, "pipeline is not initialized")
	}

	return app.generator.Generate(ctx, params)
}

// SaveImage encodes img in the format implied by filename's extension and
// stores it. The returned location is a path or URL depending on storage.
func (app *App) SaveImage(ctx context.Context, img image.Image, filename string) (string, error) {
	if app.filestorage == nil {
		return "", types.Errorf(types.ErrConfiguration, "file storage is not configured")
	}

	dir, name, ext := pathutil.SplitName(filename)
	if ext == "" {
		ext = ".png"
	}
	if dir != "." {
		name = filepath.Join(dir, name)
	}

	content, err := imageutil.Encode(img, ext)
	if err != nil {
		return "", err
	}

	return app.filestorage.Upload(ctx, filestorage.NewFileInfo(name, ext, content))
}

// GenerateToFile runs one generation and stores the result under filename.
// Nothing is written when generation fails.
func (app *App) GenerateToFile(ctx context.Context, params generator.Params, filename string) (string, error) {
	img, err := app.Generate(ctx, params)
	if err != nil {
		return "", err
	}

	return app.SaveImage(ctx, img, filename)
}

func (app *App) Close() {
	app.cancelFunc()

	if app.uploader != nil {
		app.uploader.Stop()
	}
	if app.progress != nil {
		app.progress.Wait()
	}
	if app.backend != nil {
		if err := app.backend.Close(); err != nil {
			app.Logger.Warn("Failed to close backend", zap.Error(err))
		}
	}
}

func (app *App) Config() *config.Config {
	return app.config
}

func (app *App) Context() context.Context {
	return app.ctx
}

func (app *App) Pipeline() *pipeline.Pipeline {
	return app.pipeline
}

func (app *App) Resolver() *models.Resolver {
	return app.resolver
}

func (app *App) Uploader() *fileuploader.Uploader {
	return app.uploader
}
