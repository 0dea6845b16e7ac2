package worker

import (
	"context"
	"image"
	"image/color"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cozy-creator/img2img/internal/backend"
	"github.com/cozy-creator/img2img/internal/types"
	"github.com/cozy-creator/img2img/internal/utils/imageutil"
	"github.com/cozy-creator/img2img/pkg/tcpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type fakeWorker struct {
	mu       sync.Mutex
	requests []Request
	respond  func(Request) Response
}

func (w *fakeWorker) start(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go w.serve(conn)
		}
	}()

	return ln.Addr().String()
}

func (w *fakeWorker) serve(conn net.Conn) {
	defer conn.Close()
	for {
		frame, err := tcpclient.ReadFrame(conn, 0)
		if err != nil {
			return
		}

		var req Request
		if err := msgpack.Unmarshal(frame, &req); err != nil {
			return
		}

		w.mu.Lock()
		w.requests = append(w.requests, req)
		w.mu.Unlock()

		out, _ := msgpack.Marshal(w.respond(req))
		if err := tcpclient.WriteFrame(conn, out); err != nil {
			return
		}
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	data, err := imageutil.Encode(img, "png")
	require.NoError(t, err)
	return data
}

func newBackend(t *testing.T, w *fakeWorker) *Backend {
	t.Helper()
	b, err := New(Config{Address: w.start(t), Timeout: 5 * time.Second, PoolSize: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBackend_LoadAndSample(t *testing.T) {
	out := pngBytes(t, 8, 6)
	w := &fakeWorker{respond: func(req Request) Response {
		switch req.Command {
		case CommandLoad:
			return Response{Success: true, HandleID: "h-1"}
		case CommandSample:
			return Response{Success: true, Images: [][]byte{out, out}}
		}
		return Response{Success: false, Error: "unknown command"}
	}}
	b := newBackend(t, w)

	handle, err := b.Load(context.Background(), backend.LoadRequest{
		ModelID:   "nitrosocke/Ghibli-Diffusion",
		Device:    "cpu",
		Precision: backend.Float32,
		Scheduler: "LMSDiscreteScheduler",
	})
	require.NoError(t, err)
	assert.Equal(t, "h-1", handle.ID)

	images, err := b.Sample(context.Background(), handle, backend.SampleRequest{
		Prompt:        "A painting in the style of van gogh.",
		Image:         image.NewRGBA(image.Rect(0, 0, 4, 4)),
		Strength:      0.75,
		GuidanceScale: 7.5,
		Seed:          1024,
		Steps:         5,
		Device:        "cpu",
	})
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, image.Pt(8, 6), images[0].Bounds().Size())

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.requests, 2)

	load := w.requests[0].Load
	require.NotNil(t, load)
	assert.False(t, load.SafetyChecker)
	assert.Equal(t, backend.Float32, load.Precision)

	sample := w.requests[1].Sample
	require.NotNil(t, sample)
	assert.Equal(t, "h-1", sample.HandleID)
	assert.Equal(t, int64(1024), sample.Seed)
	assert.Equal(t, 5, sample.Steps)
	assert.NotEmpty(t, sample.Image)
}

func TestBackend_ErrorCodes(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{CodeModelNotFound, types.ErrResourceResolution},
		{CodeInvalidDevice, types.ErrConfiguration},
		{CodeOutOfMemory, types.ErrBackend},
		{"", types.ErrBackend},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := &fakeWorker{respond: func(Request) Response {
				return Response{Success: false, Code: tt.code, Error: "boom"}
			}}
			b := newBackend(t, w)

			_, err := b.Load(context.Background(), backend.LoadRequest{ModelID: "x/y", Device: "cpu"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBackend_SampleWithoutImages(t *testing.T) {
	w := &fakeWorker{respond: func(Request) Response { return Response{Success: true} }}
	b := newBackend(t, w)

	_, err := b.Sample(context.Background(), &backend.Handle{ID: "h"}, backend.SampleRequest{
		Image: image.NewRGBA(image.Rect(0, 0, 1, 1)),
	})
	assert.ErrorIs(t, err, types.ErrBackend)
}

func TestNew_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = New(Config{Address: addr, Timeout: time.Second, PoolSize: 1}, nil)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
