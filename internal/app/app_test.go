package app

import (
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cozy-creator/img2img/internal/config"
	"github.com/cozy-creator/img2img/internal/generator"
	"github.com/cozy-creator/img2img/internal/types"
	"github.com/cozy-creator/img2img/internal/utils/imageutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func previewConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ModelID:    config.DefaultModelID,
		Device:     "cpu",
		Backend:    config.BackendPreview,
		Filesystem: config.FilesystemLocal,
		AssetsDir:  t.TempDir(),
		Worker:     &config.WorkerConfig{Address: config.DefaultWorker, Timeout: 1, PoolSize: 1},
	}
}

func sourceImage(t *testing.T) string {
	t.Helper()
	data, err := imageutil.Encode(image.NewRGBA(image.Rect(0, 0, 32, 24)), "png")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sketch.png")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestApp_GenerateAndSave(t *testing.T) {
	cfg := previewConfig(t)
	app, err := NewApp(cfg,
		WithLogger(zap.NewNop()),
		WithConfiguredBackend(),
		WithFileStorage(),
		WithPipeline(),
	)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "cpu", app.Pipeline().Device().String())

	img, err := app.Generate(context.Background(), generator.Params{Source: sourceImage(t), Prompt: config.DefaultPrompt})
	require.NoError(t, err)

	dest, err := app.SaveImage(context.Background(), img, "output.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.AssetsDir, "output.png"), dest)

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(32, 24), decoded.Bounds().Size())
}

func TestApp_FailedInitLeavesNoOutput(t *testing.T) {
	cfg := previewConfig(t)
	cfg.Device = "tpu"

	_, err := NewApp(cfg, WithConfiguredBackend(), WithFileStorage(), WithPipeline())
	require.ErrorIs(t, err, types.ErrConfiguration)

	entries, err := os.ReadDir(cfg.AssetsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApp_UnreachableSourceLeavesNoOutput(t *testing.T) {
	cfg := previewConfig(t)
	app, err := NewApp(cfg, WithLogger(zap.NewNop()), WithConfiguredBackend(), WithFileStorage(), WithPipeline())
	require.NoError(t, err)
	defer app.Close()

	srv := httptest.NewServer(http.NotFoundHandler())
	sourceURL := srv.URL + "/sketch-mountains-input.jpg"
	srv.Close()

	_, err = app.GenerateToFile(context.Background(), generator.Params{Source: sourceURL, Prompt: config.DefaultPrompt}, config.DefaultOutput)
	require.ErrorIs(t, err, types.ErrTransport)

	entries, err := os.ReadDir(cfg.AssetsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApp_UnreachableWorker(t *testing.T) {
	cfg := previewConfig(t)
	cfg.Backend = config.BackendWorker
	cfg.Worker.Address = "127.0.0.1:1"

	_, err := NewApp(cfg, WithConfiguredBackend())
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestApp_GenerateWithoutPipeline(t *testing.T) {
	app, err := NewApp(previewConfig(t))
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Generate(context.Background(), generator.Params{Source: "x", Prompt: "y"})
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = app.SaveImage(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)), "out.png")
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestApp_DeviceTag(t *testing.T) {
	cfg := previewConfig(t)
	cfg.Device = "cuda:1"
	app, err := NewApp(cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "cuda:1", app.DeviceTag())
}
