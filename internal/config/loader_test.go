package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jordanella.com/imagecenter/internal/cv"
	"jordanella.com/imagecenter/internal/logging"
)

func writeINI(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.ini")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write ini: %v", err)
	}
	return path
}

func TestDefaultSettings(t *testing.T) {
	s := NewDefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("Defaults invalid: %v", err)
	}

	cfg := s.PollingConfig()
	if cfg != cv.DefaultPollingConfig() {
		t.Errorf("Expected cv defaults, got %+v", cfg)
	}
	if s.RemoteAddr() != "localhost:8889" {
		t.Errorf("Expected localhost:8889, got %s", s.RemoteAddr())
	}
	if s.Level() != logging.LogLevelInfo {
		t.Errorf("Expected INFO, got %s", s.Level())
	}
}

func TestLoadFromINI(t *testing.T) {
	path := writeINI(t, `[ImageCenter]
imageRate = 0.8
maxMatchNumber = 3
pause = 0.5
timeout = 2
matcher = remote
serverIP = 10.0.0.7
port = 9000
networkRetry = 2
captureBackend = scrot
picPath = /srv/pics
frameDir = /tmp/frames
maxFrames = 50
logLevel = debug
`)

	s, err := LoadFromINI(path)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	want := cv.PollingConfig{MaxAttempts: 3, Pause: 500 * time.Millisecond, Timeout: 2 * time.Second, Rate: 0.8}
	if got := s.PollingConfig(); got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
	if s.Matcher != MatcherRemote || s.RemoteAddr() != "10.0.0.7:9000" || s.NetworkRetry != 2 {
		t.Errorf("Unexpected remote settings: %+v", s)
	}
	if s.CaptureBackend != "scrot" || s.PicPath != "/srv/pics" || s.FrameDir != "/tmp/frames" || s.MaxFrames != 50 {
		t.Errorf("Unexpected io settings: %+v", s)
	}
	if s.Level() != logging.LogLevelDebug {
		t.Errorf("Expected DEBUG, got %s", s.Level())
	}
}

func TestLoadFromINIKeepsDefaultsForMissingKeys(t *testing.T) {
	s, err := LoadFromINI(writeINI(t, "[ImageCenter]\nimageRate = 1\n"))
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}
	if s.ImageRate != 1 {
		t.Errorf("Expected rate 1, got %v", s.ImageRate)
	}
	if s.MaxMatchNumber != cv.DefaultMaxAttempts || s.Port != 8889 || s.Matcher != MatcherLocal {
		t.Errorf("Expected defaults for missing keys, got %+v", s)
	}
}

func TestLoadFromINIRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"negative attempts": "maxMatchNumber = -1",
		"rate above one":    "imageRate = 1.2",
		"rate NaN":          "imageRate = NaN",
		"negative pause":    "pause = -1",
		"unknown matcher":   "matcher = cloud",
		"unknown backend":   "captureBackend = vnc",
		"bad port":          "port = 70000",
		"bad level":         "logLevel = chatty",
		"no frames":         "maxFrames = 0",
	}
	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFromINI(writeINI(t, "[ImageCenter]\n"+line+"\n"))
			if !errors.Is(err, cv.ErrInvalidConfiguration) {
				t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadFromINI(filepath.Join(t.TempDir(), "none.ini")); err == nil {
		t.Error("Expected error for missing file")
	}

	s, err := Load("")
	if err != nil {
		t.Fatalf("Expected defaults for empty path, got %v", err)
	}
	if s.ImageRate != cv.DefaultRate {
		t.Errorf("Expected default rate, got %v", s.ImageRate)
	}
}

func TestSaveToINIRoundTrip(t *testing.T) {
	s := NewDefaultSettings()
	s.ImageRate = 0.75
	s.Pause = 0.25
	s.Matcher = MatcherRemote
	s.TemplateCatalog = "/etc/imagecenter/templates.yaml"
	s.DatabasePath = "history.db"

	path := filepath.Join(t.TempDir(), "out.ini")
	if err := SaveToINI(s, path); err != nil {
		t.Fatalf("Failed to save settings: %v", err)
	}
	loaded, err := LoadFromINI(path)
	if err != nil {
		t.Fatalf("Failed to reload settings: %v", err)
	}
	if *loaded != *s {
		t.Errorf("Expected %+v, got %+v", s, loaded)
	}
}
