package pipeline

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/cozy-creator/img2img/internal/backend"
	"github.com/cozy-creator/img2img/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	loads   []backend.LoadRequest
	samples []backend.SampleRequest
	loadErr error
}

func (f *fakeBackend) Load(_ context.Context, req backend.LoadRequest) (*backend.Handle, error) {
	f.loads = append(f.loads, req)
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return &backend.Handle{ID: "h", ModelID: req.ModelID, Device: req.Device, Precision: req.Precision}, nil
}

func (f *fakeBackend) Sample(_ context.Context, _ *backend.Handle, req backend.SampleRequest) ([]image.Image, error) {
	f.samples = append(f.samples, req)
	return []image.Image{req.Image}, nil
}

func (f *fakeBackend) Close() error { return nil }

type staticResolver struct {
	dir string
	err error
}

func (r staticResolver) Resolve(context.Context, string) (string, error) {
	return r.dir, r.err
}

func TestInitialize(t *testing.T) {
	snapshot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(snapshot, "scheduler"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(snapshot, schedulerConfigPath),
		[]byte(`{"_class_name":"PNDMScheduler","beta_start":0.00085,"beta_end":0.012,"num_train_timesteps":1000}`),
		0o644,
	))

	fb := &fakeBackend{}
	p, err := Initialize(context.Background(), fb, Options{
		ModelID:  "nitrosocke/Ghibli-Diffusion",
		Device:   "cpu",
		Resolver: staticResolver{dir: snapshot},
	})
	require.NoError(t, err)
	require.Len(t, fb.loads, 1)

	load := fb.loads[0]
	assert.Equal(t, backend.Float32, load.Precision)
	assert.False(t, load.SafetyChecker)
	assert.Equal(t, snapshot, load.ModelPath)
	assert.Equal(t, LMSDiscreteScheduler, load.Scheduler)
	assert.Equal(t, LMSDiscreteScheduler, load.SchedulerConfig[backend.SchedulerClassKey])
	assert.Equal(t, 0.00085, load.SchedulerConfig["beta_start"])
	assert.Equal(t, float64(1000), load.SchedulerConfig["num_train_timesteps"])

	assert.Equal(t, "cpu", p.Device().String())
	assert.Equal(t, "nitrosocke/Ghibli-Diffusion", p.ModelID())
}

func TestInitialize_WithoutSchedulerConfig(t *testing.T) {
	fb := &fakeBackend{}
	_, err := Initialize(context.Background(), fb, Options{ModelID: "a/b", Device: "cuda"})
	require.NoError(t, err)

	assert.Nil(t, fb.loads[0].SchedulerConfig)
	assert.Equal(t, LMSDiscreteScheduler, fb.loads[0].Scheduler)
	assert.Equal(t, "cuda", fb.loads[0].Device)
}

func TestInitialize_InvalidDevice(t *testing.T) {
	fb := &fakeBackend{}
	_, err := Initialize(context.Background(), fb, Options{ModelID: "a/b", Device: "quantum"})

	assert.ErrorIs(t, err, types.ErrConfiguration)
	assert.Empty(t, fb.loads)
}

func TestInitialize_ResolutionFailures(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		backend  *fakeBackend
		wantLoad bool
	}{
		{
			name:    "missing id",
			opts:    Options{Device: "cpu"},
			backend: &fakeBackend{},
		},
		{
			name:    "resolver",
			opts:    Options{ModelID: "a/b", Device: "cpu", Resolver: staticResolver{err: errors.New("404")}},
			backend: &fakeBackend{},
		},
		{
			name:     "backend untyped",
			opts:     Options{ModelID: "a/b", Device: "cpu"},
			backend:  &fakeBackend{loadErr: errors.New("repository not found")},
			wantLoad: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Initialize(context.Background(), tt.backend, tt.opts)
			assert.ErrorIs(t, err, types.ErrResourceResolution)
			assert.Equal(t, tt.wantLoad, len(tt.backend.loads) == 1)
		})
	}
}

func TestPipeline_SampleDefaultsDevice(t *testing.T) {
	fb := &fakeBackend{}
	p, err := Initialize(context.Background(), fb, Options{ModelID: "a/b", Device: "cuda:1"})
	require.NoError(t, err)

	_, err = p.Sample(context.Background(), backend.SampleRequest{Image: image.NewRGBA(image.Rect(0, 0, 1, 1))})
	require.NoError(t, err)

	assert.Equal(t, "cuda:1", fb.samples[0].Device)
}
