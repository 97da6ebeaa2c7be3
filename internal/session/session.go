package session

import (
	"image"
	"log/slog"
	"time"

	"github.com/corona10/goimagehash"

	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
	"github.com/GriffinCanCode/scrollshot/internal/overlap"
	"github.com/GriffinCanCode/scrollshot/internal/pixel"
	"github.com/GriffinCanCode/scrollshot/internal/screen"
)

// Point is a position in logical (UI) coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add translates p by q; used to move overlay points into global scroll coordinates.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Rect is an axis-aligned rectangle in logical coordinates, origin top-left.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of r.
func (r Rect) Center() Point { return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2} }

// Pixels scales r to device pixels, truncating each component.
func (r Rect) Pixels(scale float64) image.Rectangle {
	x, y := int(r.X*scale), int(r.Y*scale)
	return image.Rect(x, y, x+int(r.Width*scale), y+int(r.Height*scale))
}

// Capturer grabs a pixel region of a display.
type Capturer interface {
	Capture(display uint32, exclude screen.WindowID, region image.Rectangle) (image.Image, error)
}

// Scroller posts a synthetic scroll at a global point. Negative delta moves
// the view down the document.
type Scroller interface {
	Scroll(at Point, delta int) error
}

// Options configures a Session.
type Options struct {
	Selection    Rect
	ScaleFactor  float64
	ScreenOrigin Point
	DisplayID    uint32
	MaxSteps     int           // default DefaultMaxSteps
	SettleDelay  time.Duration // default DefaultSettleDelay
	Capturer     Capturer
	Scroller     Scroller
	OnEvent      func(Event)
	Logger       *slog.Logger
}

// Session is a tick-driven scroll/capture state machine. It is owned by a
// single caller and is not safe for concurrent use.
type Session struct {
	opts    Options
	region  image.Rectangle
	exclude screen.WindowID
	log     *slog.Logger

	frames []pixel.Frame
	phase  Phase
	steps  int
	done   bool
	reason StopReason
}

// Validate checks a selection, scale and step limit before any capture.
func Validate(sel Rect, scale float64, maxSteps int) error {
	if sel.Width <= 0 || sel.Height <= 0 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "selection must be non-empty, got %gx%g", sel.Width, sel.Height)
	}
	if scale <= 0 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "scale factor must be positive, got %g", scale)
	}
	if maxSteps < 0 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "max steps must not be negative, got %d", maxSteps)
	}
	if sel.Pixels(scale).Empty() {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "selection %+v is empty at scale %g", sel, scale)
	}
	return nil
}

// New validates opts and returns a session in the capture phase.
func New(opts Options) (*Session, error) {
	if err := Validate(opts.Selection, opts.ScaleFactor, opts.MaxSteps); err != nil {
		return nil, err
	}
	if opts.Capturer == nil || opts.Scroller == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "capturer and scroller are required")
	}
	if opts.MaxSteps == 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Session{
		opts:   opts,
		region: opts.Selection.Pixels(opts.ScaleFactor),
		log:    opts.Logger.With("display", opts.DisplayID),
		phase:  PhaseCapture,
	}, nil
}

// SetExclusionWindow names an overlay window to omit from captures.
func (s *Session) SetExclusionWindow(id screen.WindowID) { s.exclude = id }

// Tick performs one scroll or one capture. It returns false once the session
// has terminated; the caller then stops its timer and stitches Frames.
func (s *Session) Tick() bool {
	if s.done {
		return false
	}
	if s.phase == PhaseScroll {
		return s.scroll()
	}
	return s.capture()
}

// Cancel terminates the session on behalf of the host. Frames gathered so far
// are kept.
func (s *Session) Cancel() {
	if !s.done {
		s.stop(StopCancelled)
	}
}

// Frames returns the captured frames in capture order.
func (s *Session) Frames() []pixel.Frame {
	return append([]pixel.Frame(nil), s.frames...)
}

func (s *Session) Steps() int                 { return s.steps }
func (s *Session) Phase() Phase               { return s.phase }
func (s *Session) Done() bool                 { return s.done }
func (s *Session) StopReason() StopReason     { return s.reason }
func (s *Session) SettleDelay() time.Duration { return s.opts.SettleDelay }
func (s *Session) MaxSteps() int              { return s.opts.MaxSteps }

// Region is the device-pixel rectangle passed to the capturer.
func (s *Session) Region() image.Rectangle { return s.region }

func (s *Session) capture() bool {
	img, err := s.opts.Capturer.Capture(s.opts.DisplayID, s.exclude, s.region)
	if err == nil && img == nil {
		err = apperrors.New(apperrors.CodeCaptureFailed, "capture returned no image")
	}
	if err != nil {
		return s.retry(err)
	}
	f, err := pixel.NewFrame(img)
	if err != nil {
		return s.retry(err)
	}

	if len(s.frames) == 0 {
		s.store(f, overlap.Result{})
		s.phase = PhaseScroll
		return true
	}

	prev := s.frames[len(s.frames)-1]
	if !f.SameSize(prev) {
		return s.retry(apperrors.Newf(apperrors.CodeCaptureFailed, "frame is %dx%d, session frames are %dx%d",
			f.Width(), f.Height(), prev.Width(), prev.Height()))
	}

	h := f.Height()
	res := overlap.Detect(prev.Pixels(), f.Pixels(), f.Width(), h)
	switch {
	case res.Rows > 0 && res.Rows >= h*NoMovementNum/NoMovementDen:
		s.log.Debug("content did not move", "overlap", res.Rows, "height", h)
		return s.stop(StopNoMovement)
	case res.Rows > h*EndOfContentNum/EndOfContentDen:
		s.store(f, res)
		return s.stop(StopEndOfContent)
	}

	s.store(f, res)
	if res.Rows == 0 {
		s.noOverlap(prev, f)
	}
	s.phase = PhaseScroll
	return true
}

func (s *Session) scroll() bool {
	s.steps++
	if s.steps > s.opts.MaxSteps {
		return s.stop(StopMaxSteps)
	}

	at := s.opts.ScreenOrigin.Add(s.opts.Selection.Center())
	delta := -int(s.opts.Selection.Height * ScrollNum / ScrollDen)
	if err := s.opts.Scroller.Scroll(at, delta); err != nil {
		s.log.Warn("scroll failed", "step", s.steps, "error", err)
		s.emit(Event{Type: EventScrollFailed, Err: err})
	} else {
		s.emit(Event{Type: EventScrolled})
	}
	s.phase = PhaseCapture
	return true
}

// retry skips this capture without counting a step; the next tick scrolls again.
func (s *Session) retry(err error) bool {
	s.log.Debug("capture skipped", "step", s.steps, "error", err)
	s.emit(Event{Type: EventCaptureFailed, Err: err})
	s.phase = PhaseScroll
	return true
}

func (s *Session) store(f pixel.Frame, res overlap.Result) {
	s.frames = append(s.frames, f)
	ev := Event{Type: EventCaptured, Overlap: res.Rows}
	if res.Tier != overlap.TierNone {
		ev.Tier = res.Tier.String()
	}
	s.emit(ev)
}

// noOverlap reports a pair that will be stitched without deduplication. A small
// perceptual distance suggests a missed match rather than a scene change.
func (s *Session) noOverlap(prev, cur pixel.Frame) {
	d := hashDistance(prev, cur)
	s.log.Info("no overlap detected, keeping full frame", "frame", len(s.frames)-1, "distance", d)
	s.emit(Event{Type: EventNoOverlap, Distance: d})
}

func (s *Session) stop(reason StopReason) bool {
	s.done = true
	s.reason = reason
	s.log.Info("scroll capture stopped", "reason", reason.String(), "steps", s.steps, "frames", len(s.frames))
	s.emit(Event{Type: EventStopped, Reason: reason})
	return false
}

func (s *Session) emit(ev Event) {
	if s.opts.OnEvent == nil {
		return
	}
	ev.Step = s.steps
	ev.Frames = len(s.frames)
	s.opts.OnEvent(ev)
}

func hashDistance(a, b pixel.Frame) int {
	ha, err := goimagehash.DifferenceHash(a.Image())
	if err != nil {
		return -1
	}
	hb, err := goimagehash.DifferenceHash(b.Image())
	if err != nil {
		return -1
	}
	d, err := ha.Distance(hb)
	if err != nil {
		return -1
	}
	return d
}
