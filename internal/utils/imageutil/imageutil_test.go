package imageutil

import (
	"image"
	"image/color"
	"testing"

	"github.com/cozy-creator/img2img/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	return img
}

func TestDecode_RoundTrip(t *testing.T) {
	data, err := Encode(solid(4, 3, color.NRGBA{R: 200, A: 255}), "png")
	require.NoError(t, err)

	img, format, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Pt(4, 3), img.Bounds().Size())
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("definitely not an image")},
		{"truncated png", []byte("\x89PNG\r\n\x1a\n\x00\x00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.data)
			assert.ErrorIs(t, err, types.ErrDecode)
		})
	}
}

func TestToRGB_DropsAlpha(t *testing.T) {
	src := solid(2, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 0x40})

	out := ToRGB(src)

	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 0xff}, out.RGBAAt(1, 1))
}

func TestThumbnailSize(t *testing.T) {
	tests := []struct {
		name string
		in   image.Point
		want image.Point
	}{
		{"landscape", image.Pt(1536, 1024), image.Pt(768, 512)},
		{"portrait", image.Pt(1000, 2000), image.Pt(384, 768)},
		{"within bounds", image.Pt(640, 480), image.Pt(640, 480)},
		{"exact bound", image.Pt(768, 768), image.Pt(768, 768)},
		{"sliver", image.Pt(4000, 2), image.Pt(768, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ThumbnailSize(tt.in, MaxDimension))
		})
	}
}

func TestNormalize(t *testing.T) {
	out := Normalize(solid(1600, 900, color.NRGBA{G: 255, A: 255}))

	size := out.Bounds().Size()
	assert.LessOrEqual(t, size.X, MaxDimension)
	assert.LessOrEqual(t, size.Y, MaxDimension)
	assert.InDelta(t, 1600.0/900.0, float64(size.X)/float64(size.Y), 0.01)
}

func TestEncode_UnknownFormat(t *testing.T) {
	_, err := Encode(solid(1, 1, color.Black), "svg")
	assert.Error(t, err)
}
