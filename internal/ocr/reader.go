package ocr

import (
	"fmt"
	"image"
	"strings"
	"time"

	"feltworks.io/live-table-go/internal/cv"
	"feltworks.io/live-table-go/internal/logging"
	"feltworks.io/live-table-go/internal/snapshot"
)

// Whitelists for common read targets.
const (
	WhitelistDigits = "0123456789"
	WhitelistHand   = "0123456789/"
	WhitelistMoney  = "0123456789.,$"
)

// Reading is the outcome of one OCR read. Success reports whether the text
// parsed into the requested shape; a false Success is an expected value, not
// an error, and callers branch on it.
type Reading struct {
	Label   string
	Region  cv.Region
	RawText string
	Cleaned string
	Value   ParsedValue
	Success bool
	At      time.Time
}

// Reader captures a screen region, normalizes it, recognizes its text, and
// parses the result. Every read, successful or not, is handed to the
// snapshot recorder when one is attached; recorder failures are logged and
// never fail the read.
type Reader struct {
	source   cv.FrameSource
	engine   Engine
	recorder *snapshot.Recorder
	logger   *logging.Logger
	pipeline PipelineConfig
}

// NewReader creates a reader over a frame source and recognition engine.
func NewReader(source cv.FrameSource, engine Engine) *Reader {
	return &Reader{
		source:   source,
		engine:   engine,
		logger:   logging.NewLogger("ocr"),
		pipeline: DefaultPipelineConfig(),
	}
}

// WithRecorder attaches a snapshot recorder invoked on every read.
func (r *Reader) WithRecorder(recorder *snapshot.Recorder) *Reader {
	r.recorder = recorder
	return r
}

// WithPipeline replaces the default preprocessing configuration.
func (r *Reader) WithPipeline(config PipelineConfig) *Reader {
	r.pipeline = config
	return r
}

// WithLogger replaces the reader's logger.
func (r *Reader) WithLogger(logger *logging.Logger) *Reader {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// ReadOption adjusts a single read.
type ReadOption func(*readOptions)

type readOptions struct {
	whitelist string
	pipeline  PipelineConfig
}

// WithWhitelist restricts the characters the recognizer may emit for this
// read.
func WithWhitelist(chars string) ReadOption {
	return func(o *readOptions) {
		o.whitelist = chars
	}
}

// WithMode overrides the preprocessing mode for this read.
func WithMode(mode PreprocessMode) ReadOption {
	return func(o *readOptions) {
		o.pipeline.Mode = mode
	}
}

// WithPipelineConfig overrides the full preprocessing configuration for this
// read.
func WithPipelineConfig(config PipelineConfig) ReadOption {
	return func(o *readOptions) {
		o.pipeline = config
	}
}

// ReadText reads a region as free text. Success reports a non-empty result.
func (r *Reader) ReadText(label string, region cv.Region, opts ...ReadOption) (Reading, error) {
	return r.read(label, region, opts, func(text string) (ParsedValue, string, bool) {
		return ParsedValue{}, text, text != ""
	})
}

// ReadNumber reads a region as a numeric value such as a balance or bet
// amount. Digit corrections and currency stripping run before parsing.
func (r *Reader) ReadNumber(label string, region cv.Region, opts ...ReadOption) (Reading, error) {
	return r.read(label, region, opts, func(text string) (ParsedValue, string, bool) {
		cleaned := CleanNumeric(CorrectDigits(text))
		value, ok := ParseNumber(text)
		if !ok {
			return ParsedValue{}, cleaned, false
		}
		return ParsedValue{Kind: KindNumber, Number: value}, cleaned, true
	})
}

// ReadHand reads a region as a card-hand total, handling slash notation for
// soft hands.
func (r *Reader) ReadHand(label string, region cv.Region, opts ...ReadOption) (Reading, error) {
	return r.read(label, region, opts, func(text string) (ParsedValue, string, bool) {
		cleaned := CorrectDigits(strings.ReplaceAll(strings.TrimSpace(text), " ", ""))
		hand, ok := ParseHandTotal(text)
		if !ok {
			return ParsedValue{}, cleaned, false
		}
		return ParsedValue{Kind: KindHand, Hand: hand}, cleaned, true
	})
}

// read runs the full capture-preprocess-recognize-parse sequence. A capture
// failure propagates without a snapshot (there is nothing to save); an
// engine failure is snapshotted with empty text, then propagated.
func (r *Reader) read(label string, region cv.Region, opts []ReadOption, parse func(string) (ParsedValue, string, bool)) (Reading, error) {
	options := readOptions{pipeline: r.pipeline}
	for _, opt := range opts {
		opt(&options)
	}

	frame, err := r.source.Capture(&region)
	if err != nil {
		return Reading{}, err
	}

	processed := Preprocess(frame.RGBA, options.pipeline)

	text, recErr := r.engine.Recognize(processed, options.whitelist)
	text = strings.TrimSpace(text)

	reading := Reading{
		Label:   label,
		Region:  region,
		RawText: text,
		At:      frame.At,
	}
	if recErr == nil {
		value, cleaned, ok := parse(text)
		reading.Value = value
		reading.Cleaned = cleaned
		reading.Success = ok
	}

	r.record(frame.RGBA, processed, label, reading, options)

	if recErr != nil {
		return reading, fmt.Errorf("read %q: %w", label, recErr)
	}

	r.logger.DebugWithContext("OCR read", map[string]interface{}{
		"label":   label,
		"text":    reading.RawText,
		"success": reading.Success,
	})
	return reading, nil
}

func (r *Reader) record(raw *image.RGBA, processed *image.Gray, label string, reading Reading, options readOptions) {
	if r.recorder == nil {
		return
	}

	region := reading.Region
	meta := snapshot.Metadata{
		Region:   &region,
		Text:     reading.RawText,
		Parsed:   reading.Value.JSONValue(),
		Success:  reading.Success,
		Invert:   options.pipeline.Invert,
		Pipeline: string(options.pipeline.Mode),
	}

	if err := r.recorder.Record(raw, processed, label, meta); err != nil {
		r.logger.Warnf("Failed to save OCR snapshot for '%s': %v", label, err)
	}
}
