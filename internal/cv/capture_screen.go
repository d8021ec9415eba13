package cv

import (
	"context"
	"errors"

	"github.com/kbinani/screenshot"
)

const primaryDisplay = 0

var errNoDisplay = errors.New("no active displays found")

// ScreenCapturer grabs the primary display through the native platform API.
type ScreenCapturer struct{}

// NewScreenCapturer creates a capturer for display 0.
func NewScreenCapturer() *ScreenCapturer {
	return &ScreenCapturer{}
}

// CaptureFrame captures the primary display, or the region of it relative
// to its top-left corner.
func (c *ScreenCapturer) CaptureFrame(ctx context.Context, region *Region) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, &CaptureError{Backend: string(CaptureMethodScreenshot), Err: err}
	}
	if screenshot.NumActiveDisplays() == 0 {
		return nil, &CaptureError{Backend: string(CaptureMethodScreenshot), Err: errNoDisplay}
	}

	bounds := screenshot.GetDisplayBounds(primaryDisplay)
	rect := bounds
	if region != nil {
		if err := region.Validate(); err != nil {
			return nil, err
		}
		rect = region.Rect().Add(bounds.Min)
		if !rect.In(bounds) {
			return nil, &CaptureError{
				Backend: string(CaptureMethodScreenshot),
				Err:     errors.New("region " + region.String() + " outside primary display " + bounds.String()),
			}
		}
	}

	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, &CaptureError{Backend: string(CaptureMethodScreenshot), Err: err}
	}
	return FromImage(img), nil
}
