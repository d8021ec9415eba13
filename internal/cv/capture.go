package cv

import (
	"context"
	"sync"
)

// Capturer produces the screen image a template is matched against.
// A nil region means the whole primary display.
type Capturer interface {
	CaptureFrame(ctx context.Context, region *Region) (*Image, error)
}

// CaptureMethod selects a capture backend by name.
type CaptureMethod string

const (
	CaptureMethodScreenshot CaptureMethod = "screenshot"
	CaptureMethodScrot      CaptureMethod = "scrot"
	CaptureMethodGnome      CaptureMethod = "gnome-screenshot"
	CaptureMethodKWin       CaptureMethod = "kwin"
)

// NewCapturer returns the backend registered for method.
func NewCapturer(method CaptureMethod) (Capturer, error) {
	switch method {
	case "", CaptureMethodScreenshot:
		return NewScreenCapturer(), nil
	case CaptureMethodScrot:
		return ScrotCapturer(), nil
	case CaptureMethodGnome:
		return GnomeScreenshotCapturer(), nil
	case CaptureMethodKWin:
		return KWinCapturer(), nil
	default:
		return nil, &ConfigError{Field: "captureBackend", Reason: "unknown method " + string(method)}
	}
}

// FileCapturer serves a fixed reference picture instead of the live screen.
// The picture is decoded once; errors are ImageLoadError, not CaptureError.
type FileCapturer struct {
	path string

	once sync.Once
	img  *Image
	err  error
}

// NewFileCapturer creates a capturer for the picture at path.
func NewFileCapturer(path string) *FileCapturer {
	return &FileCapturer{path: path}
}

// CaptureFrame returns the picture, cropped to region when given.
func (c *FileCapturer) CaptureFrame(_ context.Context, region *Region) (*Image, error) {
	c.once.Do(func() {
		c.img, c.err = Load(expandHome(c.path))
	})
	if c.err != nil {
		return nil, c.err
	}
	if region == nil {
		return c.img, nil
	}
	cropped, err := c.img.Crop(*region)
	if err != nil {
		return nil, &ImageLoadError{Path: c.path, Err: err}
	}
	return cropped, nil
}
