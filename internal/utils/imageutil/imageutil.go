package imageutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"github.com/cozy-creator/img2img/internal/types"
	"github.com/gabriel-vasile/mimetype"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxDimension bounds both sides of a source image before sampling.
const MaxDimension = 768

// Decode sniffs and decodes data as an image. Anything that is not a
// decodable image fails with types.ErrDecode.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", types.Errorf(types.ErrDecode, "empty image data")
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, "", types.Errorf(types.ErrDecode, "unsupported content type %s", mtype.String())
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", types.Wrap(types.ErrDecode, fmt.Errorf("failed to decode %s: %w", mtype.String(), err))
	}

	return img, format, nil
}

// ToRGB drops the alpha channel, keeping the straight (non-premultiplied)
// colour values.
func ToRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}

	return out
}

// ThumbnailSize returns the size img should be shrunk to so that neither side
// exceeds bound. Images already within bounds keep their size.
func ThumbnailSize(size image.Point, bound int) image.Point {
	if size.X <= bound && size.Y <= bound {
		return size
	}

	scale := math.Min(float64(bound)/float64(size.X), float64(bound)/float64(size.Y))
	w := clamp(int(math.Round(float64(size.X)*scale)), 1, bound)
	h := clamp(int(math.Round(float64(size.Y)*scale)), 1, bound)

	return image.Pt(w, h)
}

// Thumbnail shrinks img, preserving its aspect ratio, so it fits in bound x bound.
// It never upscales.
func Thumbnail(img image.Image, bound int) image.Image {
	size := img.Bounds().Size()
	target := ThumbnailSize(size, bound)
	if target == size {
		return img
	}

	return transform.Resize(img, target.X, target.Y, transform.CatmullRom)
}

// Normalize converts img to RGB and bounds it to MaxDimension.
func Normalize(img image.Image) *image.RGBA {
	rgb := ToRGB(img)
	if resized, ok := Thumbnail(rgb, MaxDimension).(*image.RGBA); ok {
		return resized
	}

	return rgb
}

// Encode writes img in the given format.
func Encode(img image.Image, format string) ([]byte, error) {
	var (
		output bytes.Buffer
		err    error
	)

	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "png":
		err = png.Encode(&output, img)
	case "jpg", "jpeg":
		err = jpeg.Encode(&output, img, &jpeg.Options{Quality: 90})
	case "gif":
		err = gif.Encode(&output, img, nil)
	default:
		return nil, fmt.Errorf("unsupported image format: %s", format)
	}

	if err != nil {
		return nil, err
	}

	return output.Bytes(), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}
