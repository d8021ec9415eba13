package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"jordanella.com/imagecenter/internal/cv"
	"jordanella.com/imagecenter/internal/logging"
)

// Matcher kinds
const (
	MatcherLocal  = "local"
	MatcherRemote = "remote"
)

// Settings holds everything read from the [ImageCenter] section
type Settings struct {
	// Matching
	ImageRate      float64
	MaxMatchNumber int
	Pause          float64 // seconds
	Timeout        float64 // seconds
	Matcher        string

	// Remote matcher
	NetworkRetry int
	ServerIP     string
	Port         int

	// Inputs and outputs
	CaptureBackend  string
	PicPath         string
	TemplateCatalog string
	DatabasePath    string
	FrameDir        string
	MaxFrames       int

	LogLevel string
}

// NewDefaultSettings creates settings with default values
func NewDefaultSettings() *Settings {
	return &Settings{
		ImageRate:      cv.DefaultRate,
		MaxMatchNumber: cv.DefaultMaxAttempts,
		Pause:          cv.DefaultPause.Seconds(),
		Timeout:        cv.DefaultTimeout.Seconds(),
		Matcher:        MatcherLocal,
		NetworkRetry:   1,
		ServerIP:       "localhost",
		Port:           8889,
		CaptureBackend: string(cv.CaptureMethodScreenshot),
		MaxFrames:      cv.DefaultMaxFrames,
		LogLevel:       string(logging.LogLevelInfo),
	}
}

// Validate checks every field a session or the CLI depends on.
func (s *Settings) Validate() error {
	if err := s.PollingConfig().Validate(); err != nil {
		return err
	}
	if s.Matcher != MatcherLocal && s.Matcher != MatcherRemote {
		return &cv.ConfigError{Field: "matcher", Reason: fmt.Sprintf("must be %s or %s, got %q", MatcherLocal, MatcherRemote, s.Matcher)}
	}
	if s.NetworkRetry < 0 {
		return &cv.ConfigError{Field: "networkRetry", Reason: fmt.Sprintf("must not be negative, got %d", s.NetworkRetry)}
	}
	if s.Port <= 0 || s.Port > 65535 {
		return &cv.ConfigError{Field: "port", Reason: fmt.Sprintf("out of range: %d", s.Port)}
	}
	if s.MaxFrames <= 0 {
		return &cv.ConfigError{Field: "maxFrames", Reason: fmt.Sprintf("must be positive, got %d", s.MaxFrames)}
	}
	if _, err := cv.NewCapturer(cv.CaptureMethod(s.CaptureBackend)); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(s.LogLevel); err != nil {
		return &cv.ConfigError{Field: "logLevel", Reason: err.Error()}
	}
	return nil
}

// PollingConfig converts the matching settings for cv.Service
func (s *Settings) PollingConfig() cv.PollingConfig {
	return cv.PollingConfig{
		MaxAttempts: s.MaxMatchNumber,
		Pause:       seconds(s.Pause),
		Timeout:     seconds(s.Timeout),
		Rate:        s.ImageRate,
	}
}

// RemoteAddr returns host:port of the remote matcher
func (s *Settings) RemoteAddr() string {
	return net.JoinHostPort(s.ServerIP, strconv.Itoa(s.Port))
}

// Level returns the parsed log level, INFO when unparseable
func (s *Settings) Level() logging.LogLevel {
	level, _ := logging.ParseLevel(s.LogLevel)
	return level
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
