package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"feltworks.io/live-table-go/internal/actions"
	"feltworks.io/live-table-go/internal/bot"
	"feltworks.io/live-table-go/internal/config"
	"feltworks.io/live-table-go/internal/cv"
	"feltworks.io/live-table-go/internal/events"
	"feltworks.io/live-table-go/internal/games"
	"feltworks.io/live-table-go/internal/logging"
	"feltworks.io/live-table-go/internal/monitor"
	"feltworks.io/live-table-go/internal/ocr"
	"feltworks.io/live-table-go/internal/snapshot"
	"feltworks.io/live-table-go/pkg/templates"
)

func main() {
	configPath := flag.String("config", "", "Path to the game config YAML")
	settingsPath := flag.String("settings", "config/settings.ini", "Path to the settings INI file")
	gameKey := flag.String("game", "", "Game registry key (default: derived from the config's game name)")
	duration := flag.Float64("duration", 0, "Session length in minutes (overrides the config)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *configPath == "" {
		fmt.Println("Usage: table-bot -config <game.yaml> [-settings <settings.ini>] [-game <key>] [-duration <minutes>] [-verbose]")
		fmt.Println()
		fmt.Printf("Available games: %s\n", strings.Join(games.DefaultRegistry().Names(), ", "))
		os.Exit(1)
	}

	settings := loadSettings(*settingsPath)

	level := logging.LogLevelInfo
	if parsed, err := logging.ParseLevel(settings.LogLevel); err == nil {
		level = parsed
	}
	if *verbose {
		level = logging.LogLevelDebug
	}
	logger := logging.NewLogger("table-bot").SetMinLevel(level)

	gameCfg, err := config.LoadGameConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load game config: %v", err)
	}

	key := *gameKey
	if key == "" {
		key = gameCfg.Slug()
	}

	// Screen capture and template matching.
	scaler := buildScaler(settings, logger)
	source := cv.NewScreenSource(scaler)

	registry := templates.NewTemplateRegistry(gameCfg.AssetDir())
	if err := registerElements(registry, gameCfg); err != nil {
		log.Fatalf("Failed to register templates: %v", err)
	}
	logger.Infof("Registered %d templates from %s", registry.Count(), gameCfg.AssetDir())

	screen := cv.NewService(source, registry).
		WithPollInterval(time.Duration(settings.PollIntervalMs) * time.Millisecond)

	// OCR with snapshots for offline tuning.
	engine, err := ocr.NewTesseractEngine()
	if err != nil {
		log.Fatalf("Failed to start OCR engine: %v", err)
	}
	defer engine.Close()

	reader := ocr.NewReader(source, engine).
		WithPipeline(pipelineFromSettings(settings)).
		WithLogger(logging.NewLogger("ocr").SetMinLevel(level))
	if settings.SnapshotsEnabled {
		recorder := snapshot.NewRecorder(settings.SnapshotDir).
			WithMaxSnapshots(settings.MaxSnapshots)
		reader = reader.WithRecorder(recorder)
	}

	// Event bus with the file-backed event log.
	bus := events.NewEventBus(64)
	defer bus.Stop()
	if settings.LoggingEnabled {
		eventLogger, err := logging.NewEventLogger(bus, settings.LogDir)
		if err != nil {
			logger.Warnf("Event log disabled: %v", err)
		} else {
			defer eventLogger.Close()
		}
	}

	minDelay, maxDelay := gameCfg.DelayBounds()
	pointer := actions.NewClicker().
		WithDelayBounds(minDelay, maxDelay).
		WithLogger(logging.NewLogger("clicker").SetMinLevel(level))

	sessionDuration := gameCfg.SessionDuration()
	if *duration > 0 {
		sessionDuration = time.Duration(*duration * float64(time.Minute))
	}
	session := bot.NewSession(key, sessionDuration).
		WithEventBus(bus).
		WithStatusEvery(settings.StatusEvery).
		WithLogger(logging.NewLogger("session").SetMinLevel(level))
	if settings.LoggingEnabled {
		session = session.WithRoundLog(settings.LogDir)
	}

	behavior, err := games.DefaultRegistry().New(key, games.Deps{
		Screen:  screen,
		Reader:  reader,
		Pointer: pointer,
		Config:  gameCfg,
		Session: session,
		Logger:  logging.NewLogger(key).SetMinLevel(level),
	})
	if err != nil {
		log.Fatalf("Failed to build game: %v", err)
	}

	reporter := logging.NewErrorReporter()
	reporter.SetLogger(logging.NewLogger("errors").SetMinLevel(level))

	loop := bot.NewLoop(behavior, session).
		WithEventBus(bus).
		WithCooldown(time.Duration(settings.ErrorCooldownMs) * time.Millisecond).
		WithErrorReporter(reporter).
		WithLogger(logging.NewLogger("loop").SetMinLevel(level))

	if _, ok := gameCfg.Elements["reality_check"]; ok {
		loop.WithPreCheck(realityCheck(screen, pointer, gameCfg, logger))
	}

	if settings.WatchdogEnabled {
		watchdog := monitor.NewWatchdog(source).
			WithInterval(time.Duration(settings.WatchdogIntervalMs) * time.Millisecond).
			WithFreezeThreshold(settings.FreezeChecks, settings.FreezeDistance).
			WithEventBus(bus).
			WithLogger(logging.NewLogger("watchdog").SetMinLevel(level))
		watchdog.Start()
		defer watchdog.Stop()
	}

	// The loop never touches signals itself: translate SIGINT/SIGTERM into
	// a graceful stop, and force-quit on the second signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Interrupt received — finishing the current action")
		loop.Stop()
		<-sigCh
		logger.Warn("Second interrupt — exiting immediately")
		os.Exit(130)
	}()

	if err := loop.Run(context.Background()); err != nil {
		log.Fatalf("Session failed: %v", err)
	}
}

// loadSettings reads the INI file, falling back to defaults when it does
// not exist so a bare checkout still runs.
func loadSettings(path string) *config.Settings {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.NewDefaultSettings()
	}
	settings, err := config.LoadSettings(path)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	return settings
}

// buildScaler honors a configured display scale and auto-detects otherwise.
func buildScaler(settings *config.Settings, logger *logging.Logger) *cv.Scaler {
	if settings.DisplayScale > 0 {
		return cv.NewScaler(settings.DisplayScale)
	}
	scaler, err := cv.DetectScaler()
	if err != nil {
		logger.Warnf("Display scale detection failed (%v) — assuming 2x", err)
		return cv.NewScaler(2)
	}
	logger.Infof("Display scale: %s", scaler)
	return scaler
}

// registerElements turns the game config's elements into named templates.
// Grouped elements register as "group.member".
func registerElements(registry *templates.TemplateRegistry, gameCfg *config.GameConfig) error {
	threshold := gameCfg.Settings.Confidence

	for key := range gameCfg.Elements {
		if path, ok := gameCfg.ElementPath(key); ok {
			if err := registry.Register(cv.Template{Name: key, Path: path, Threshold: threshold}); err != nil {
				return err
			}
			continue
		}
		for member, path := range gameCfg.ElementGroup(key) {
			name := key + "." + member
			if err := registry.Register(cv.Template{Name: name, Path: path, Threshold: threshold}); err != nil {
				return err
			}
		}
	}
	return nil
}

// realityCheck dismisses the periodic "are you still playing" overlay
// before the loop hands control to the game.
func realityCheck(screen *cv.Service, pointer *actions.Clicker, gameCfg *config.GameConfig, logger *logging.Logger) bot.PreCheck {
	return func(ctx context.Context) (bool, error) {
		match, err := screen.FindTemplate("reality_check", cv.WithThreshold(gameCfg.Settings.Confidence))
		if err != nil {
			return false, err
		}
		if !match.Found {
			return false, nil
		}

		logger.Info("Reality check detected — dismissing")
		if click := gameCfg.Settings.RealityCheckClick; click != nil {
			pointer.ClickPoint(click.X, click.Y)
		} else {
			pointer.ClickMatch(match)
		}
		pointer.MoveAway()
		return true, nil
	}
}

// pipelineFromSettings maps the OCR section of the INI to a pipeline
// configuration.
func pipelineFromSettings(settings *config.Settings) ocr.PipelineConfig {
	pipeline := ocr.DefaultPipelineConfig()
	switch settings.OCRPreprocess {
	case "blur":
		pipeline.Mode = ocr.PreprocessBlur
	case "none":
		pipeline.Mode = ocr.PreprocessNone
	default:
		pipeline.Mode = ocr.PreprocessThreshold
	}
	pipeline.Invert = settings.OCRInvert
	if settings.OCRUpscale > 0 {
		pipeline.Upscale = settings.OCRUpscale
	}
	if settings.OCRBorder >= 0 {
		pipeline.Border = settings.OCRBorder
	}
	return pipeline
}
