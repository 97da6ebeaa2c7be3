// Package screen provides platform-agnostic region capture of a single display
package screen

import (
	"image"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/image/draw"

	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
)

// WindowID identifies an on-screen window. NoWindow disables exclusion.
type WindowID uint32

const NoWindow WindowID = 0

// Capturer grabs a pixel region of one display.
type Capturer interface {
	// Capture returns region (display pixel coordinates, origin at the
	// display's top-left) of display, omitting exclude where the platform can.
	Capture(display uint32, exclude WindowID, region image.Rectangle) (image.Image, error)
	Close()
}

// backend implements platform-specific full-display capture
type backend interface {
	captureDisplay(display uint32) (image.Image, error)
	cleanup()
}

// baseCapturer crops whatever the backend returns to the requested region
type baseCapturer struct {
	backend
	tempDir     string
	excludeOnce sync.Once
}

func newBase(b backend, tempDir string) *baseCapturer {
	return &baseCapturer{backend: b, tempDir: tempDir}
}

func (c *baseCapturer) Capture(display uint32, exclude WindowID, region image.Rectangle) (image.Image, error) {
	if exclude != NoWindow {
		c.excludeOnce.Do(func() {
			slog.Warn("window exclusion not supported by capture backend", "window", exclude)
		})
	}
	full, err := c.captureDisplay(display)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeCaptureFailed, "capture display %d", display)
	}
	return Crop(full, region)
}

func (c *baseCapturer) Close() {
	c.cleanup()
	if c.tempDir != "" {
		os.RemoveAll(c.tempDir)
	}
}

// Crop returns the part of img covered by region, where region is relative to
// img's top-left corner. The region is clipped to the image.
func Crop(img image.Image, region image.Rectangle) (image.Image, error) {
	if img == nil {
		return nil, apperrors.New(apperrors.CodeCaptureFailed, "no image")
	}
	b := img.Bounds()
	r := region.Add(b.Min).Intersect(b)
	if r.Empty() {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "region %v outside display %v", region, b.Size())
	}
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r), nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst, nil
}

func newTempDir() string {
	dir, err := os.MkdirTemp("", "scrollshot-screen-*")
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		return ""
	}
	return dir
}
