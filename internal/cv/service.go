package cv

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"jordanella.com/imagecenter/internal/logging"
)

// Attempt outcomes stored by a Recorder.
const (
	OutcomeFound        = "found"
	OutcomeMiss         = "miss"
	OutcomeCaptureError = "capture_error"
	OutcomeError        = "error"
	OutcomeNotFound     = "not_found"
)

// Session kinds stored by a Recorder.
const (
	SessionFind   = "find"
	SessionDuring = "during"
)

// Attempt is one capture-and-match cycle as seen by a Recorder.
type Attempt struct {
	Template string
	Number   int // 1-based within the template
	Outcome  string
	Points   []Point
	Duration time.Duration
	Err      error
}

// Recorder keeps a history of polling sessions. internal/database
// provides the sqlite implementation.
type Recorder interface {
	BeginSession(kind string, templates []string) (int64, error)
	RecordAttempt(sessionID int64, a Attempt) error
	FinishSession(sessionID int64, outcome string) error
}

// Service captures screens and polls for templates
type Service struct {
	capturer  Capturer
	locator   Locator
	templates TemplateSource
	recorder  Recorder
	logger    *logging.Logger
	picPath   string

	defaults   PollingConfig
	frameLimit int

	now   func() time.Time
	sleep func(time.Duration)
}

// NewService creates a service matching locally against frames from capturer
func NewService(capturer Capturer) *Service {
	return &Service{
		capturer:   capturer,
		locator:    NewMatcher(nil),
		logger:     logging.NewLogger("cv"),
		defaults:   DefaultPollingConfig(),
		frameLimit: DefaultMaxFrames,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// WithLocator replaces the local matcher, e.g. with a remote client
func (s *Service) WithLocator(l Locator) *Service {
	s.locator = l
	return s
}

// WithTemplateRegistry resolves template names through src before
// treating them as file paths
func (s *Service) WithTemplateRegistry(src TemplateSource) *Service {
	s.templates = src
	return s
}

// WithPicPath sets the directory relative template paths are read from
func (s *Service) WithPicPath(dir string) *Service {
	s.picPath = dir
	return s
}

// WithRecorder stores every session and attempt
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// WithLogger sets the logger
func (s *Service) WithLogger(l *logging.Logger) *Service {
	s.logger = l
	return s
}

// WithDefaults sets the polling parameters used when a call does not override them
func (s *Service) WithDefaults(cfg PollingConfig) *Service {
	s.defaults = cfg
	return s
}

// WithFrameLimit sets the default GetDuring frame cap
func (s *Service) WithFrameLimit(n int) *Service {
	s.frameLimit = n
	return s
}

// WithClock replaces time.Now and time.Sleep
func (s *Service) WithClock(now func() time.Time, sleep func(time.Duration)) *Service {
	s.now = now
	s.sleep = sleep
	return s
}

// Defaults returns the configured polling parameters.
func (s *Service) Defaults() PollingConfig {
	return s.defaults
}

// Colors returns every pixel of a template picture, column by column.
func (s *Service) Colors(ref string) ([]RGB, error) {
	img, _, err := s.loadTemplate(ref)
	if err != nil {
		return nil, err
	}
	return img.ColorsXMajor(), nil
}

// Dimensions returns the size of a template picture.
func (s *Service) Dimensions(ref string) (width, height int, err error) {
	img, _, err := s.loadTemplate(ref)
	if err != nil {
		return 0, 0, err
	}
	return img.Width(), img.Height(), nil
}

// loadTemplate prefers a registry entry and falls back to ref as a path.
func (s *Service) loadTemplate(ref string) (*Image, Template, error) {
	if s.templates != nil {
		if t, ok := s.templates.Get(ref); ok {
			img, err := s.templates.LoadImage(ref)
			if err != nil {
				return nil, Template{}, err
			}
			return img, t, nil
		}
	}

	path := expandHome(ref)
	if s.picPath != "" && !filepath.IsAbs(path) {
		path = filepath.Join(expandHome(s.picPath), path)
	}
	path, err := ResolvePath(path)
	if err != nil {
		return nil, Template{}, err
	}
	img, err := Load(path)
	if err != nil {
		return nil, Template{}, err
	}
	return img, Template{Name: ref, Path: path}, nil
}

// frameSource returns the capturer for one call. A reference picture is
// decoded here so a bad path fails before the first attempt.
func (s *Service) frameSource(ctx context.Context, o findOptions) (Capturer, error) {
	if o.reference == "" {
		if s.capturer == nil {
			return nil, &ConfigError{Field: "capturer", Reason: "is not configured and no reference picture was given"}
		}
		return s.capturer, nil
	}
	fc := NewFileCapturer(o.reference)
	if _, err := fc.CaptureFrame(ctx, nil); err != nil {
		return nil, err
	}
	return fc, nil
}

func (s *Service) beginSession(kind string, refs []string) int64 {
	if s.recorder == nil {
		return 0
	}
	id, err := s.recorder.BeginSession(kind, refs)
	if err != nil {
		s.logger.Error("failed to record session start", err)
		return 0
	}
	return id
}

func (s *Service) recordAttempt(session int64, a Attempt) {
	if s.recorder == nil || session == 0 {
		return
	}
	if err := s.recorder.RecordAttempt(session, a); err != nil {
		s.logger.Error("failed to record attempt", err)
	}
}

func (s *Service) finishSession(session int64, outcome string) {
	if s.recorder == nil || session == 0 {
		return
	}
	if err := s.recorder.FinishSession(session, outcome); err != nil {
		s.logger.Error(fmt.Sprintf("failed to record session %d outcome", session), err)
	}
}
