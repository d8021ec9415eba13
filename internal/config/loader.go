package config

import (
	"fmt"
	"strconv"

	"gopkg.in/ini.v1"
)

// SectionName is the ini section holding all settings
const SectionName = "ImageCenter"

// Load returns defaults for an empty path, otherwise LoadFromINI.
func Load(path string) (*Settings, error) {
	if path == "" {
		return NewDefaultSettings(), nil
	}
	return LoadFromINI(path)
}

// LoadFromINI loads settings from an ini file. Missing keys keep their
// defaults; the result is validated.
func LoadFromINI(path string) (*Settings, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	section := cfg.Section(SectionName)
	d := NewDefaultSettings()

	settings := &Settings{
		// Matching
		ImageRate:      section.Key("imageRate").MustFloat64(d.ImageRate),
		MaxMatchNumber: section.Key("maxMatchNumber").MustInt(d.MaxMatchNumber),
		Pause:          section.Key("pause").MustFloat64(d.Pause),
		Timeout:        section.Key("timeout").MustFloat64(d.Timeout),
		Matcher:        section.Key("matcher").MustString(d.Matcher),

		// Remote matcher
		NetworkRetry: section.Key("networkRetry").MustInt(d.NetworkRetry),
		ServerIP:     section.Key("serverIP").MustString(d.ServerIP),
		Port:         section.Key("port").MustInt(d.Port),

		// Inputs and outputs
		CaptureBackend:  section.Key("captureBackend").MustString(d.CaptureBackend),
		PicPath:         section.Key("picPath").MustString(d.PicPath),
		TemplateCatalog: section.Key("templateCatalog").MustString(d.TemplateCatalog),
		DatabasePath:    section.Key("databasePath").MustString(d.DatabasePath),
		FrameDir:        section.Key("frameDir").MustString(d.FrameDir),
		MaxFrames:       section.Key("maxFrames").MustInt(d.MaxFrames),

		LogLevel: section.Key("logLevel").MustString(d.LogLevel),
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return settings, nil
}

// SaveToINI saves settings to an ini file
func SaveToINI(settings *Settings, path string) error {
	cfg := ini.Empty()
	section := cfg.Section(SectionName)

	// Matching
	section.Key("imageRate").SetValue(strconv.FormatFloat(settings.ImageRate, 'g', -1, 64))
	section.Key("maxMatchNumber").SetValue(fmt.Sprintf("%d", settings.MaxMatchNumber))
	section.Key("pause").SetValue(strconv.FormatFloat(settings.Pause, 'g', -1, 64))
	section.Key("timeout").SetValue(strconv.FormatFloat(settings.Timeout, 'g', -1, 64))
	section.Key("matcher").SetValue(settings.Matcher)

	// Remote matcher
	section.Key("networkRetry").SetValue(fmt.Sprintf("%d", settings.NetworkRetry))
	section.Key("serverIP").SetValue(settings.ServerIP)
	section.Key("port").SetValue(fmt.Sprintf("%d", settings.Port))

	// Inputs and outputs
	section.Key("captureBackend").SetValue(settings.CaptureBackend)
	section.Key("picPath").SetValue(settings.PicPath)
	section.Key("templateCatalog").SetValue(settings.TemplateCatalog)
	section.Key("databasePath").SetValue(settings.DatabasePath)
	section.Key("frameDir").SetValue(settings.FrameDir)
	section.Key("maxFrames").SetValue(fmt.Sprintf("%d", settings.MaxFrames))

	section.Key("logLevel").SetValue(settings.LogLevel)

	return cfg.SaveTo(path)
}
