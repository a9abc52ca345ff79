package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// Settings holds application-wide settings loaded from Settings.ini.
// Game-specific configuration lives in per-game YAML files, see GameConfig.
type Settings struct {
	// Logging
	LogLevel       string
	LoggingEnabled bool
	LogDir         string

	// OCR snapshots
	SnapshotsEnabled bool
	SnapshotDir      string
	MaxSnapshots     int

	// OCR preprocessing defaults
	OCRPreprocess string
	OCRInvert     bool
	OCRUpscale    int
	OCRBorder     int

	// Game loop
	PollIntervalMs  int
	ErrorCooldownMs int
	StatusEvery     int

	// Screen capture
	DisplayScale int

	// Freeze watchdog
	WatchdogEnabled    bool
	WatchdogIntervalMs int
	FreezeChecks       int
	FreezeDistance     int
}

// NewDefaultSettings creates settings with default values
func NewDefaultSettings() *Settings {
	return &Settings{
		LogLevel:           "INFO",
		LoggingEnabled:     true,
		LogDir:             "logs",
		SnapshotsEnabled:   true,
		SnapshotDir:        "debug_snapshots",
		MaxSnapshots:       50,
		OCRPreprocess:      "thresh",
		OCRInvert:          true,
		OCRUpscale:         2,
		OCRBorder:          10,
		PollIntervalMs:     1000,
		ErrorCooldownMs:    5000,
		StatusEvery:        10,
		DisplayScale:       0, // 0 means auto-detect
		WatchdogEnabled:    true,
		WatchdogIntervalMs: 2000,
		FreezeChecks:       5,
		FreezeDistance:     2,
	}
}

// LoadSettings loads application settings from an INI file
func LoadSettings(path string) (*Settings, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings file: %w", err)
	}

	settings := NewDefaultSettings()

	logging := cfg.Section("Logging")
	settings.LogLevel = logging.Key("logLevel").MustString(settings.LogLevel)
	settings.LoggingEnabled = logging.Key("loggingEnabled").MustBool(settings.LoggingEnabled)
	settings.LogDir = logging.Key("logDir").MustString(settings.LogDir)

	snapshots := cfg.Section("Snapshots")
	settings.SnapshotsEnabled = snapshots.Key("enabled").MustBool(settings.SnapshotsEnabled)
	settings.SnapshotDir = snapshots.Key("dir").MustString(settings.SnapshotDir)
	settings.MaxSnapshots = snapshots.Key("maxPerLabel").MustInt(settings.MaxSnapshots)

	ocr := cfg.Section("OCR")
	settings.OCRPreprocess = ocr.Key("preprocess").MustString(settings.OCRPreprocess)
	settings.OCRInvert = ocr.Key("invert").MustBool(settings.OCRInvert)
	settings.OCRUpscale = ocr.Key("upscale").MustInt(settings.OCRUpscale)
	settings.OCRBorder = ocr.Key("border").MustInt(settings.OCRBorder)

	loop := cfg.Section("Loop")
	settings.PollIntervalMs = loop.Key("pollIntervalMs").MustInt(settings.PollIntervalMs)
	settings.ErrorCooldownMs = loop.Key("errorCooldownMs").MustInt(settings.ErrorCooldownMs)
	settings.StatusEvery = loop.Key("statusEvery").MustInt(settings.StatusEvery)

	capture := cfg.Section("Capture")
	settings.DisplayScale = capture.Key("displayScale").MustInt(settings.DisplayScale)

	watchdog := cfg.Section("Watchdog")
	settings.WatchdogEnabled = watchdog.Key("enabled").MustBool(settings.WatchdogEnabled)
	settings.WatchdogIntervalMs = watchdog.Key("intervalMs").MustInt(settings.WatchdogIntervalMs)
	settings.FreezeChecks = watchdog.Key("freezeChecks").MustInt(settings.FreezeChecks)
	settings.FreezeDistance = watchdog.Key("freezeDistance").MustInt(settings.FreezeDistance)

	return settings, nil
}

// SaveSettings saves application settings to an INI file
func SaveSettings(settings *Settings, path string) error {
	cfg := ini.Empty()

	logging := cfg.Section("Logging")
	logging.Key("logLevel").SetValue(settings.LogLevel)
	logging.Key("loggingEnabled").SetValue(fmt.Sprintf("%t", settings.LoggingEnabled))
	logging.Key("logDir").SetValue(settings.LogDir)

	snapshots := cfg.Section("Snapshots")
	snapshots.Key("enabled").SetValue(fmt.Sprintf("%t", settings.SnapshotsEnabled))
	snapshots.Key("dir").SetValue(settings.SnapshotDir)
	snapshots.Key("maxPerLabel").SetValue(fmt.Sprintf("%d", settings.MaxSnapshots))

	ocr := cfg.Section("OCR")
	ocr.Key("preprocess").SetValue(settings.OCRPreprocess)
	ocr.Key("invert").SetValue(fmt.Sprintf("%t", settings.OCRInvert))
	ocr.Key("upscale").SetValue(fmt.Sprintf("%d", settings.OCRUpscale))
	ocr.Key("border").SetValue(fmt.Sprintf("%d", settings.OCRBorder))

	loop := cfg.Section("Loop")
	loop.Key("pollIntervalMs").SetValue(fmt.Sprintf("%d", settings.PollIntervalMs))
	loop.Key("errorCooldownMs").SetValue(fmt.Sprintf("%d", settings.ErrorCooldownMs))
	loop.Key("statusEvery").SetValue(fmt.Sprintf("%d", settings.StatusEvery))

	capture := cfg.Section("Capture")
	capture.Key("displayScale").SetValue(fmt.Sprintf("%d", settings.DisplayScale))

	watchdog := cfg.Section("Watchdog")
	watchdog.Key("enabled").SetValue(fmt.Sprintf("%t", settings.WatchdogEnabled))
	watchdog.Key("intervalMs").SetValue(fmt.Sprintf("%d", settings.WatchdogIntervalMs))
	watchdog.Key("freezeChecks").SetValue(fmt.Sprintf("%d", settings.FreezeChecks))
	watchdog.Key("freezeDistance").SetValue(fmt.Sprintf("%d", settings.FreezeDistance))

	return cfg.SaveTo(path)
}
