// Package stitch concatenates an ordered run of scroll captures into one tall
// bitmap, dropping the head rows each frame shares with its predecessor.
package stitch

import (
	"context"
	"image"

	"github.com/GriffinCanCode/scrollshot/internal/overlap"
	"github.com/GriffinCanCode/scrollshot/internal/pixel"
	"github.com/GriffinCanCode/scrollshot/internal/trace"
)

// Layout is the geometry of a stitched canvas. A zero Height means there is
// nothing to compose.
type Layout struct {
	Width       int
	FrameHeight int
	Height      int
	Overlaps    []int // Overlaps[i] is shared between frame i and frame i+1
}

// Plan measures every consecutive overlap on the frames' captured buffers and
// derives the canvas size. Frames must all match the first frame's size.
func Plan(frames []pixel.Frame) Layout {
	if len(frames) == 0 {
		return Layout{}
	}
	w, h := frames[0].Width(), frames[0].Height()
	overlaps := make([]int, 0, len(frames)-1)
	for i := 1; i < len(frames); i++ {
		if !frames[i].SameSize(frames[0]) {
			return Layout{}
		}
		overlaps = append(overlaps, overlap.Find(frames[i-1].Pixels(), frames[i].Pixels(), w, h))
	}
	return NewLayout(w, h, overlaps)
}

// NewLayout builds a layout from known overlaps, clamping each to [0, frameHeight].
func NewLayout(width, frameHeight int, overlaps []int) Layout {
	if width <= 0 || frameHeight <= 0 {
		return Layout{}
	}
	l := Layout{Width: width, FrameHeight: frameHeight, Height: frameHeight, Overlaps: make([]int, len(overlaps))}
	for i, ov := range overlaps {
		ov = min(max(ov, 0), frameHeight)
		l.Overlaps[i] = ov
		l.Height += frameHeight - ov
	}
	return l
}

// Compose copies frame 0 in full and then rows [Overlaps[i], h) of frame i+1
// directly below the previous content. Returns nil when the layout is empty or
// does not describe frames.
func Compose(frames []pixel.Frame, l Layout) *image.RGBA {
	if l.Height == 0 || l.Width == 0 || len(frames) != len(l.Overlaps)+1 {
		return nil
	}
	stride := l.Width * pixel.BytesPerPixel
	frameBytes := stride * l.FrameHeight
	for _, f := range frames {
		if f.Width() != l.Width || f.Height() != l.FrameHeight || len(f.Pixels()) < frameBytes {
			return nil
		}
	}

	out := make([]byte, stride*l.Height)
	n := copy(out, frames[0].Pixels()[:frameBytes])
	for i, ov := range l.Overlaps {
		n += copy(out[n:], frames[i+1].Pixels()[ov*stride:frameBytes])
	}

	img, err := pixel.Wrap(out, l.Width, l.Height)
	if err != nil {
		return nil
	}
	return img
}

// Stitch plans and composes in one call. Zero frames yield nil; a single frame
// yields a pixel-identical copy.
func Stitch(frames []pixel.Frame) *image.RGBA {
	return Compose(frames, Plan(frames))
}

// StitchContext is Stitch with a trace span logged at debug level.
func StitchContext(ctx context.Context, frames []pixel.Frame) (*image.RGBA, Layout) {
	ctx, span := trace.StartSpan(ctx, "stitch")
	defer func() {
		span.End()
		trace.Logger(ctx).Debug("stitch complete", "span", span)
	}()

	l := Plan(frames)
	span.SetAttr("frames", len(frames))
	span.SetAttr("overlaps", l.Overlaps)
	span.SetAttr("height", l.Height)
	return Compose(frames, l), l
}
