package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"feltworks.io/live-table-go/internal/config"
	"feltworks.io/live-table-go/internal/cv"
	"feltworks.io/live-table-go/internal/logging"
	"feltworks.io/live-table-go/internal/ocr"
	"feltworks.io/live-table-go/internal/snapshot"
)

// ocr-probe reads one screen region through the full OCR pipeline and
// prints the result, leaving the snapshot triple on disk. Use it to tune
// region coordinates and preprocessing for a new game config.
func main() {
	settingsPath := flag.String("settings", "config/settings.ini", "Path to the settings INI file")
	regionSpec := flag.String("region", "", "Region to read as x,y,w,h (logical pixels)")
	pipelineMode := flag.String("pipeline", "", "Preprocess mode: thresh, blur, or none (default: settings)")
	upscale := flag.Int("upscale", 0, "Integer upscale factor (default: settings)")
	whitelist := flag.String("whitelist", "", "Characters the recognizer may emit (empty = unrestricted)")
	label := flag.String("label", "probe", "Snapshot label for this read")
	flag.Parse()

	if *regionSpec == "" {
		fmt.Println("Usage: ocr-probe -region x,y,w,h [-settings <settings.ini>] [-pipeline thresh|blur|none] [-upscale N] [-whitelist chars] [-label name]")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  ocr-probe -region 40,900,120,30 -whitelist '0123456789.,$' -label balance")
		fmt.Println("  ocr-probe -region 800,600,60,30 -pipeline blur -whitelist '0123456789/' -label player_total")
		os.Exit(1)
	}

	region, err := parseRegion(*regionSpec)
	if err != nil {
		log.Fatalf("Bad -region: %v", err)
	}

	settings := loadSettings(*settingsPath)

	pipeline := pipelineFromSettings(settings)
	switch *pipelineMode {
	case "":
	case "thresh":
		pipeline.Mode = ocr.PreprocessThreshold
	case "blur":
		pipeline.Mode = ocr.PreprocessBlur
	case "none":
		pipeline.Mode = ocr.PreprocessNone
	default:
		log.Fatalf("Bad -pipeline %q (want thresh, blur, or none)", *pipelineMode)
	}
	if *upscale > 0 {
		pipeline.Upscale = *upscale
	}

	scaler := buildScaler(settings)
	source := cv.NewScreenSource(scaler)

	engine, err := ocr.NewTesseractEngine()
	if err != nil {
		log.Fatalf("Failed to start OCR engine: %v", err)
	}
	defer engine.Close()

	recorder := snapshot.NewRecorder(settings.SnapshotDir).
		WithMaxSnapshots(settings.MaxSnapshots)

	reader := ocr.NewReader(source, engine).
		WithPipeline(pipeline).
		WithRecorder(recorder)

	var opts []ocr.ReadOption
	if *whitelist != "" {
		opts = append(opts, ocr.WithWhitelist(*whitelist))
	}

	reading, err := reader.ReadText(*label, region, opts...)
	if err != nil {
		log.Fatalf("Read failed: %v", err)
	}

	fmt.Printf("Label:     %s\n", reading.Label)
	fmt.Printf("Region:    %d,%d %dx%d\n", region.X, region.Y, region.W, region.H)
	fmt.Printf("Pipeline:  %s (invert=%t upscale=%d border=%d)\n", pipeline.Mode, pipeline.Invert, pipeline.Upscale, pipeline.Border)
	fmt.Printf("Raw text:  %q\n", reading.RawText)
	fmt.Printf("Success:   %t\n", reading.Success)

	if number, ok := ocr.ParseNumber(reading.RawText); ok {
		fmt.Printf("As number: %.2f\n", number)
	}
	if hand, ok := ocr.ParseHandTotal(reading.RawText); ok {
		soft := ""
		if hand.Soft {
			soft = " (soft)"
		}
		fmt.Printf("As hand:   %d%s\n", hand.Value(), soft)
	}

	fmt.Printf("\nSnapshot saved under %s/%s_*\n", settings.SnapshotDir, *label)
}

// parseRegion parses "x,y,w,h" into a validated region.
func parseRegion(spec string) (cv.Region, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return cv.Region{}, fmt.Errorf("want x,y,w,h, got %q", spec)
	}

	values := make([]int, 4)
	for i, part := range parts {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return cv.Region{}, fmt.Errorf("bad component %q: %w", part, err)
		}
		values[i] = value
	}

	region := cv.NewRegion(values[0], values[1], values[2], values[3])
	if err := region.Validate(); err != nil {
		return cv.Region{}, err
	}
	return region, nil
}

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

func buildScaler(settings *config.Settings) *cv.Scaler {
	if settings.DisplayScale > 0 {
		return cv.NewScaler(settings.DisplayScale)
	}
	scaler, err := cv.DetectScaler()
	if err != nil {
		logging.NewLogger("ocr-probe").Warnf("Display scale detection failed (%v) — assuming 2x", err)
		return cv.NewScaler(2)
	}
	return scaler
}

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
