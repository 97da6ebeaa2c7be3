//go:build !darwin

package screen

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

type displayBackend struct{}

func (displayBackend) captureDisplay(display uint32) (image.Image, error) {
	n := screenshot.NumActiveDisplays()
	if int(display) >= n {
		return nil, fmt.Errorf("display %d not active (%d displays)", display, n)
	}
	return screenshot.CaptureDisplay(int(display))
}

func (displayBackend) cleanup() {}

// New creates a platform-specific screen capturer
func New() Capturer {
	return newBase(displayBackend{}, "")
}
