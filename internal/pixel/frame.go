package pixel

import "image"

// Frame is one captured, already-cropped bitmap together with the RGBA bytes
// rendered from it at capture time. Frames are immutable once created.
type Frame struct {
	source image.Image
	pix    []byte
	width  int
	height int
}

// NewFrame converts img immediately so later reads never see stale backing data.
func NewFrame(img image.Image) (Frame, error) {
	pix, err := ToRGBA(img)
	if err != nil {
		return Frame{}, err
	}
	b := img.Bounds()
	return Frame{source: img, pix: pix, width: b.Dx(), height: b.Dy()}, nil
}

// Width in pixels.
func (f Frame) Width() int { return f.width }

// Height in pixels.
func (f Frame) Height() int { return f.height }

// Pixels returns the RGBA buffer. Callers must not modify it.
func (f Frame) Pixels() []byte { return f.pix }

// Source returns the bitmap the frame was captured as.
func (f Frame) Source() image.Image { return f.source }

// Image returns the RGBA buffer as a bitmap sharing the frame's memory.
func (f Frame) Image() *image.RGBA {
	return &image.RGBA{Pix: f.pix, Stride: f.width * BytesPerPixel, Rect: image.Rect(0, 0, f.width, f.height)}
}

// SameSize reports whether two frames can be stitched together.
func (f Frame) SameSize(o Frame) bool {
	return f.width == o.width && f.height == o.height
}
