//go:build darwin

package screen

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

type darwinBackend struct{ tempDir string }

// captureDisplay shells out to screencapture; -D is 1-based, display indices are 0-based.
func (d *darwinBackend) captureDisplay(display uint32) (image.Image, error) {
	dir := d.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	tmpFile := filepath.Join(dir, fmt.Sprintf("display-%d.png", display))
	defer os.Remove(tmpFile)

	cmd := exec.Command("screencapture", "-x", "-t", "png", "-D", strconv.FormatUint(uint64(display)+1, 10), tmpFile)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("screencapture: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	f, err := os.Open(tmpFile)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

func (d *darwinBackend) cleanup() {}

// New creates a platform-specific screen capturer
func New() Capturer {
	dir := newTempDir()
	return newBase(&darwinBackend{tempDir: dir}, dir)
}
