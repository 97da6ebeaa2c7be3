// Package pixel converts bitmaps into raw top-down RGBA buffers and back.
package pixel

import (
	"image"

	"golang.org/x/image/draw"

	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
)

// BytesPerPixel is the size of one premultiplied RGBA pixel.
const BytesPerPixel = 4

// MaxPixels caps the canvas size a single conversion may allocate.
const MaxPixels = 1 << 28

// ToRGBA renders img into a fresh row-major, premultiplied RGBA buffer of
// exactly w*h*4 bytes, top row first. The input is never modified.
func ToRGBA(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, apperrors.New(apperrors.CodeConvertFailed, "nil bitmap")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, apperrors.Newf(apperrors.CodeConvertFailed, "bitmap has no pixels (%dx%d)", w, h)
	}
	if w > MaxPixels/h {
		return nil, apperrors.Newf(apperrors.CodeConvertFailed, "bitmap too large (%dx%d)", w, h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst.Pix, nil
}

// Wrap exposes buf as a bitmap without copying.
func Wrap(buf []byte, w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid dimensions %dx%d", w, h)
	}
	if len(buf) != w*h*BytesPerPixel {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "buffer is %d bytes, want %d for %dx%d", len(buf), w*h*BytesPerPixel, w, h)
	}
	return &image.RGBA{Pix: buf, Stride: w * BytesPerPixel, Rect: image.Rect(0, 0, w, h)}, nil
}

// Row returns row y of a w-pixel-wide buffer.
func Row(buf []byte, w, y int) []byte {
	stride := w * BytesPerPixel
	return buf[y*stride : (y+1)*stride]
}
