package cv

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

var (
	black = RGB{}
	red   = RGB{R: 255}
	green = RGB{G: 255}
	blue  = RGB{B: 255}
	white = RGB{R: 255, G: 255, B: 255}
)

func mustImage(t *testing.T, w, h int, pix []RGB) *Image {
	t.Helper()
	img, err := NewImage(w, h, pix)
	if err != nil {
		t.Fatalf("Failed to build %dx%d image: %v", w, h, err)
	}
	return img
}

func solid(t *testing.T, w, h int, c RGB) *Image {
	t.Helper()
	pix := make([]RGB, w*h)
	for i := range pix {
		pix[i] = c
	}
	return mustImage(t, w, h, pix)
}

// block is a 2x2 template with four distinct colors.
func block(t *testing.T) *Image {
	return mustImage(t, 2, 2, []RGB{red, green, blue, white})
}

// paint returns a copy of screen with tpl drawn with its top-left at (x, y).
func paint(t *testing.T, screen, tpl *Image, x, y int) *Image {
	t.Helper()
	pix := append([]RGB(nil), screen.pix...)
	for j := 0; j < tpl.Height(); j++ {
		for i := 0; i < tpl.Width(); i++ {
			pix[(y+j)*screen.Width()+x+i] = tpl.at(i, j)
		}
	}
	return mustImage(t, screen.Width(), screen.Height(), pix)
}

func writePNG(t *testing.T, dir, name string, img *Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := Save(img, path); err != nil {
		t.Fatalf("Failed to save %s: %v", path, err)
	}
	return path
}

// fakeCapturer serves screen (or frames in turn) and fails the calls
// whose errs entry is non-nil.
type fakeCapturer struct {
	screen *Image
	frames []*Image
	errs   []error
	calls  int
}

func (c *fakeCapturer) CaptureFrame(_ context.Context, region *Region) (*Image, error) {
	c.calls++
	if c.calls <= len(c.errs) && c.errs[c.calls-1] != nil {
		return nil, c.errs[c.calls-1]
	}
	img := c.screen
	if len(c.frames) > 0 {
		img = c.frames[(c.calls-1)%len(c.frames)]
	}
	if region != nil {
		return img.Crop(*region)
	}
	return img, nil
}

// fakeClock only moves when the service sleeps.
type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
}

type recordedSession struct {
	kind      string
	templates []string
	attempts  []Attempt
	outcome   string
}

type fakeRecorder struct {
	sessions []*recordedSession
}

func (r *fakeRecorder) BeginSession(kind string, templates []string) (int64, error) {
	r.sessions = append(r.sessions, &recordedSession{kind: kind, templates: templates})
	return int64(len(r.sessions)), nil
}

func (r *fakeRecorder) RecordAttempt(id int64, a Attempt) error {
	s := r.sessions[id-1]
	s.attempts = append(s.attempts, a)
	return nil
}

func (r *fakeRecorder) FinishSession(id int64, outcome string) error {
	r.sessions[id-1].outcome = outcome
	return nil
}

type failingLocator struct {
	err   error
	calls int
}

func (l *failingLocator) Locate(context.Context, MatchRequest) (MatchResult, error) {
	l.calls++
	return MatchResult{}, l.err
}
