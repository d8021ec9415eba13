package cv

import (
	"fmt"
	"time"
)

// Default polling parameters used when no configuration is loaded.
const (
	DefaultRate        = 0.9
	DefaultMaxAttempts = 100
	DefaultPause       = time.Second
	DefaultTimeout     = 5 * time.Second
	DefaultMaxFrames   = 10000
)

// PollingConfig bounds one polling session. MaxAttempts counts retries, so
// a session makes at most MaxAttempts+1 attempts per template.
type PollingConfig struct {
	MaxAttempts int
	Pause       time.Duration
	Timeout     time.Duration
	Rate        float64
}

// DefaultPollingConfig returns the built-in defaults.
func DefaultPollingConfig() PollingConfig {
	return PollingConfig{
		MaxAttempts: DefaultMaxAttempts,
		Pause:       DefaultPause,
		Timeout:     DefaultTimeout,
		Rate:        DefaultRate,
	}
}

// Validate rejects values no polling session can run with.
func (c PollingConfig) Validate() error {
	if c.MaxAttempts < 0 {
		return &ConfigError{Field: "maxAttempts", Reason: fmt.Sprintf("must not be negative, got %d", c.MaxAttempts)}
	}
	if !(c.Rate >= 0 && c.Rate <= 1) {
		return &ConfigError{Field: "rate", Reason: fmt.Sprintf("must be within [0,1], got %g", c.Rate)}
	}
	if c.Pause < 0 {
		return &ConfigError{Field: "pause", Reason: fmt.Sprintf("must not be negative, got %v", c.Pause)}
	}
	if c.Timeout < 0 {
		return &ConfigError{Field: "timeout", Reason: fmt.Sprintf("must not be negative, got %v", c.Timeout)}
	}
	return nil
}

// Option adjusts a single FindImage, ImageExists or GetDuring call.
type Option func(*findOptions)

type findOptions struct {
	rate        *float64
	maxAttempts *int
	pause       *time.Duration
	timeout     *time.Duration
	multiple    bool
	reference   string
	region      *Region
	maxFrames   int
	framePause  time.Duration
	frameDir    string
}

func collectOptions(opts []Option) findOptions {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// pollingConfig layers the call's overrides over base. A template's own
// rate sits between the two and only applies when the call sets no rate.
func (o findOptions) pollingConfig(base PollingConfig, templateRate float64) PollingConfig {
	cfg := base
	if templateRate > 0 {
		cfg.Rate = templateRate
	}
	if o.rate != nil {
		cfg.Rate = *o.rate
	}
	if o.maxAttempts != nil {
		cfg.MaxAttempts = *o.maxAttempts
	}
	if o.pause != nil {
		cfg.Pause = *o.pause
	}
	if o.timeout != nil {
		cfg.Timeout = *o.timeout
	}
	return cfg
}

// WithRate sets the required fraction of equal pixels
func WithRate(rate float64) Option {
	return func(o *findOptions) {
		o.rate = &rate
	}
}

// WithMaxAttempts sets the number of retries after the first attempt
func WithMaxAttempts(n int) Option {
	return func(o *findOptions) {
		o.maxAttempts = &n
	}
}

// WithPause sets the wait between attempts
func WithPause(d time.Duration) Option {
	return func(o *findOptions) {
		o.pause = &d
	}
}

// WithTimeout sets the per-template time budget
func WithTimeout(d time.Duration) Option {
	return func(o *findOptions) {
		o.timeout = &d
	}
}

// WithMultiple returns every accepted placement instead of the first
func WithMultiple() Option {
	return func(o *findOptions) {
		o.multiple = true
	}
}

// WithReference matches against the picture at path instead of capturing
func WithReference(path string) Option {
	return func(o *findOptions) {
		o.reference = path
	}
}

// WithRegion limits capture to a bounding box of the primary display
func WithRegion(r Region) Option {
	return func(o *findOptions) {
		o.region = &r
	}
}

// WithMaxFrames caps the frames GetDuring captures
func WithMaxFrames(n int) Option {
	return func(o *findOptions) {
		o.maxFrames = n
	}
}

// WithFramePause waits between GetDuring captures
func WithFramePause(d time.Duration) Option {
	return func(o *findOptions) {
		o.framePause = d
	}
}

// WithFrameDir keeps GetDuring frames as PNG files in dir
func WithFrameDir(dir string) Option {
	return func(o *findOptions) {
		o.frameDir = dir
	}
}
