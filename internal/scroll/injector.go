// Package scroll posts synthetic scroll-wheel input at a global screen point.
package scroll

import (
	"math"
	"sync"

	"github.com/go-vgo/robotgo"

	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
	"github.com/GriffinCanCode/scrollshot/internal/session"
)

// Injector moves the pointer over the target and scrolls vertically.
type Injector struct {
	mu     sync.Mutex
	move   func(x, y int)
	scroll func(dx, dy int)
}

// New returns an Injector backed by robotgo.
func New() *Injector {
	return &Injector{
		move:   func(x, y int) { robotgo.Move(x, y) },
		scroll: func(dx, dy int) { robotgo.Scroll(dx, dy) },
	}
}

// Scroll positions the pointer at at (global logical coordinates) and posts
// a vertical scroll of delta pixels. Negative delta moves the view down.
func (i *Injector) Scroll(at session.Point, delta int) error {
	if math.IsNaN(at.X) || math.IsNaN(at.Y) || math.IsInf(at.X, 0) || math.IsInf(at.Y, 0) {
		return apperrors.Newf(apperrors.CodeScrollFailed, "invalid scroll point %+v", at)
	}
	if delta == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.move(int(math.Round(at.X)), int(math.Round(at.Y)))
	i.scroll(0, delta)
	return nil
}

var _ session.Scroller = (*Injector)(nil)
