package snapshot

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"feltworks.io/live-table-go/internal/cv"
	"feltworks.io/live-table-go/internal/logging"
)

// DefaultMaxSnapshots is the per-label group cap before rotation kicks in.
const DefaultMaxSnapshots = 50

// Metadata is the JSON sidecar written next to each snapshot pair. Timestamp
// and Label are filled in by the recorder.
type Metadata struct {
	Timestamp string      `json:"timestamp"`
	Label     string      `json:"label"`
	Region    *cv.Region  `json:"region"`
	Text      string      `json:"ocr_text"`
	Parsed    interface{} `json:"parsed_value"`
	Success   bool        `json:"success"`
	Invert    bool        `json:"invert"`
	Pipeline  string      `json:"pipeline"`
}

// Recorder persists raw and processed OCR crops plus metadata, grouped by a
// shared timestamped base name, and rotates old groups per label so disk
// usage stays bounded. Every OCR read records a snapshot, success or not;
// the saved crops are the dataset for tuning the preprocessing pipeline.
type Recorder struct {
	dir          string
	maxSnapshots int
	logger       *logging.Logger
	clock        func() time.Time
}

// NewRecorder creates a recorder writing under dir.
func NewRecorder(dir string) *Recorder {
	return &Recorder{
		dir:          dir,
		maxSnapshots: DefaultMaxSnapshots,
		logger:       logging.NewLogger("snapshot"),
		clock:        time.Now,
	}
}

// WithMaxSnapshots sets the per-label rotation cap.
func (r *Recorder) WithMaxSnapshots(max int) *Recorder {
	if max > 0 {
		r.maxSnapshots = max
	}
	return r
}

// WithLogger replaces the recorder's logger.
func (r *Recorder) WithLogger(logger *logging.Logger) *Recorder {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Dir returns the snapshot directory.
func (r *Recorder) Dir() string {
	return r.dir
}

// Record writes the raw crop, processed crop, and metadata sidecar as one
// group named {label}_{timestamp}, then rotates old groups for the label.
// Rotation failures are logged and swallowed; only failures writing the new
// group are returned.
func (r *Recorder) Record(raw, processed image.Image, label string, meta Metadata) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}

	now := r.clock()
	timestamp := fmt.Sprintf("%s_%03d", now.Format("20060102_150405"), now.Nanosecond()/1e6)
	base := filepath.Join(r.dir, fmt.Sprintf("%s_%s", label, timestamp))

	if err := writePNG(base+"_raw.png", raw); err != nil {
		return err
	}
	if err := writePNG(base+"_processed.png", processed); err != nil {
		return err
	}

	meta.Timestamp = timestamp
	meta.Label = label
	encoded, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot metadata: %w", err)
	}
	if err := os.WriteFile(base+".json", append(encoded, '\n'), 0644); err != nil {
		return fmt.Errorf("snapshot metadata: %w", err)
	}

	r.rotate(label)
	return nil
}

// groupSuffix is the fixed-width timestamp tail of a snapshot group name.
var groupSuffix = regexp.MustCompile(`_\d{8}_\d{6}_\d{3}_raw\.png$`)

// rotate deletes the oldest snapshot groups for a label once the count
// exceeds the cap. Filenames embed a millisecond timestamp, so name order is
// age order. Best effort: deletion failures are logged, never propagated.
func (r *Recorder) rotate(label string) {
	pattern := filepath.Join(r.dir, label+"_*_raw.png")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		r.logger.Warnf("Snapshot rotation glob failed for '%s': %v", label, err)
		return
	}

	// The glob also catches labels this one is a prefix of ("bet" next to
	// "bet_amount"); keep only names where the timestamp starts right after
	// the label.
	rawFiles := matches[:0]
	for _, path := range matches {
		if loc := groupSuffix.FindStringIndex(filepath.Base(path)); loc != nil && loc[0] == len(label) {
			rawFiles = append(rawFiles, path)
		}
	}

	if len(rawFiles) <= r.maxSnapshots {
		return
	}

	sort.Strings(rawFiles)
	excess := len(rawFiles) - r.maxSnapshots

	for _, rawPath := range rawFiles[:excess] {
		base := strings.TrimSuffix(rawPath, "_raw.png")
		for _, path := range []string{base + "_raw.png", base + "_processed.png", base + ".json"} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				r.logger.Warnf("Snapshot rotation could not remove %s: %v", path, err)
			}
		}
	}

	r.logger.Debugf("Rotated %d old snapshot group(s) for '%s'", excess, label)
}

func writePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot image: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("snapshot image %s: %w", filepath.Base(path), err)
	}
	return nil
}
