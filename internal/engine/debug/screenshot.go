// Package debug provides the viewer's debug overlay geometry and screenshots.
package debug

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// ScreenshotCapture writes frame grabs to dir as <prefix>_<timestamp>.png.
type ScreenshotCapture struct {
	dir    string
	prefix string
	now    func() time.Time
}

// NewScreenshotCapture returns a capture writing into dir. An empty dir
// means the working directory.
func NewScreenshotCapture(dir, prefix string) *ScreenshotCapture {
	return &ScreenshotCapture{dir: dir, prefix: prefix, now: time.Now}
}

// SetPrefix changes the file name prefix, usually to the model on screen.
func (sc *ScreenshotCapture) SetPrefix(prefix string) {
	sc.prefix = prefix
}

// CaptureFromPixels saves a frame read back from the GL framebuffer: tightly
// packed RGBA rows, bottom row first.
func (sc *ScreenshotCapture) CaptureFromPixels(pixels []byte, width, height int) (string, error) {
	if want := width * height * 4; len(pixels) != want {
		return "", errors.Errorf("pixel buffer size mismatch: %dx%d needs %d bytes, got %d",
			width, height, want, len(pixels))
	}
	return sc.CaptureFromImage(flipRows(pixels, width, height))
}

// flipRows converts bottom-up GL rows into a top-down image.
func flipRows(pixels []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	row := width * 4
	for y := 0; y < height; y++ {
		src := pixels[(height-1-y)*row:]
		copy(img.Pix[y*img.Stride:y*img.Stride+row], src[:row])
	}
	return img
}

// CaptureFromImage encodes img as PNG and returns the file written.
func (sc *ScreenshotCapture) CaptureFromImage(img image.Image) (string, error) {
	if sc.dir != "" {
		if err := os.MkdirAll(sc.dir, 0o755); err != nil {
			return "", errors.Wrap(err, "creating screenshot directory")
		}
	}
	name := sc.Filename()

	f, err := os.Create(name)
	if err != nil {
		return "", errors.Wrap(err, "creating screenshot")
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(name)
		return "", errors.Wrap(err, "encoding screenshot")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "writing screenshot")
	}
	return name, nil
}

// Filename returns the path the next capture will be written to.
func (sc *ScreenshotCapture) Filename() string {
	name := sc.prefix + "_" + sc.now().Format("2006-01-02_15-04-05.000") + ".png"
	return filepath.Join(sc.dir, name)
}
