package screen

import (
	"image"

	"github.com/GriffinCanCode/scrollshot/internal/resilience"
)

type guarded struct {
	Capturer
	breaker *resilience.Breaker
}

// Guarded fails fast with resilience.ErrOpen once c keeps failing, so a
// revoked capture permission does not spawn a capture every tick.
func Guarded(c Capturer, b *resilience.Breaker) Capturer {
	return &guarded{Capturer: c, breaker: b}
}

func (g *guarded) Capture(display uint32, exclude WindowID, region image.Rectangle) (image.Image, error) {
	return resilience.ExecuteWithResult(g.breaker, func() (image.Image, error) {
		return g.Capturer.Capture(display, exclude, region)
	})
}
