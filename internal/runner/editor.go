package runner

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
)

// Editor receives the stitched bitmap; it is the session's only output.
type Editor interface {
	Open(ctx context.Context, img *image.RGBA) (string, error)
}

// FileEditor saves results as lossless PNG files in Dir.
type FileEditor struct {
	Dir string
	Now func() time.Time
}

// Open writes img to <Dir>/scrollshot-<timestamp>.png and returns the path.
func (e FileEditor) Open(ctx context.Context, img *image.RGBA) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", apperrors.New(apperrors.CodeEmptyResult, "nothing captured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeStoreFailed, "create output directory")
	}

	path := filepath.Join(e.Dir, OutputPrefix+"-"+now().Format(OutputTimeLayout)+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeStoreFailed, "create output file")
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return "", apperrors.Wrap(err, apperrors.CodeStoreFailed, "encode png")
	}
	if err := f.Close(); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeStoreFailed, "close output file")
	}
	return path, nil
}
