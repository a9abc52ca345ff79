package cv

import (
	"image"
	"image/color"
	"testing"
	"time"
)

// Test fixtures are built pixel-by-pixel so matching runs against known
// content without touching a display.

func newTestFrame(w, h, scale int) *Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fillRect(img, 0, 0, w, h, color.RGBA{128, 128, 128, 255})
	return &Frame{RGBA: img, Scale: scale, At: time.Now()}
}

func fillRect(img *image.RGBA, x, y, w, h int, c color.RGBA) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			idx := yy*img.Stride + xx*4
			img.Pix[idx] = c.R
			img.Pix[idx+1] = c.G
			img.Pix[idx+2] = c.B
			img.Pix[idx+3] = c.A
		}
	}
}

// drawPattern paints a two-tone checker block. Flat color has zero variance
// and scores 0 under NCC, so targets need structure.
func drawPattern(img *image.RGBA, x, y, w, h int) {
	dark := color.RGBA{30, 30, 30, 255}
	light := color.RGBA{220, 220, 220, 255}
	for yy := 0; yy < h; yy++ {
		for xx := 0; xx < w; xx++ {
			c := dark
			if (xx/3+yy/3)%2 == 0 {
				c = light
			}
			idx := (y+yy)*img.Stride + (x+xx)*4
			img.Pix[idx] = c.R
			img.Pix[idx+1] = c.G
			img.Pix[idx+2] = c.B
			img.Pix[idx+3] = 255
		}
	}
}

// patternTemplate returns a standalone copy of the checker block.
func patternTemplate(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	drawPattern(img, 0, 0, w, h)
	return img
}

func TestFindBestLocatesTemplate(t *testing.T) {
	frame := newTestFrame(200, 150, 2)
	drawPattern(frame.RGBA, 40, 60, 20, 20)
	tmpl := patternTemplate(20, 20)

	config := &MatchConfig{Method: MatchMethodNCC, Threshold: 0.95}
	result := FindBest(frame, tmpl, config)

	if !result.Found {
		t.Fatalf("expected match, got confidence %.4f", result.Confidence)
	}

	// Physical center (50, 70) divided by scale 2.
	want := Point{X: 25, Y: 35}
	if result.Location != want {
		t.Errorf("location = %v, want %v", result.Location, want)
	}

	if result.Confidence < 0.99 {
		t.Errorf("identical pixels should score near 1.0, got %.4f", result.Confidence)
	}
}

func TestFindBestAddsRegionOffset(t *testing.T) {
	frame := newTestFrame(200, 150, 2)
	drawPattern(frame.RGBA, 60, 40, 20, 20)

	// Crop a logical region that contains the pattern: logical (20,10 40x40)
	// covers physical (40,20)-(120,100).
	region := NewRegion(20, 10, 40, 40)
	cropped, err := CropFrame(frame, region)
	if err != nil {
		t.Fatalf("crop failed: %v", err)
	}

	tmpl := patternTemplate(20, 20)
	result := FindBest(cropped, tmpl, &MatchConfig{Method: MatchMethodNCC, Threshold: 0.95})

	if !result.Found {
		t.Fatalf("expected match in cropped frame, got confidence %.4f", result.Confidence)
	}

	// Physical center (70, 50) regardless of the crop, so logical (35, 25).
	want := Point{X: 35, Y: 25}
	if result.Location != want {
		t.Errorf("location = %v, want %v", result.Location, want)
	}
}

func TestFindBestIsDeterministic(t *testing.T) {
	frame := newTestFrame(160, 120, 1)
	drawPattern(frame.RGBA, 30, 20, 16, 16)
	tmpl := patternTemplate(16, 16)
	config := &MatchConfig{Method: MatchMethodNCC, Threshold: 0.9}

	first := FindBest(frame, tmpl, config)
	for i := 0; i < 5; i++ {
		again := FindBest(frame, tmpl, config)
		if again != first {
			t.Fatalf("call %d returned %+v, first call returned %+v", i+2, again, first)
		}
	}
}

func TestFindBestBelowThreshold(t *testing.T) {
	frame := newTestFrame(100, 100, 1)
	tmpl := patternTemplate(16, 16)

	result := FindBest(frame, tmpl, &MatchConfig{Method: MatchMethodNCC, Threshold: 0.9})
	if result.Found {
		t.Errorf("flat frame should not match a patterned template, confidence %.4f", result.Confidence)
	}
}

func TestFindBestTemplateLargerThanFrame(t *testing.T) {
	frame := newTestFrame(30, 30, 1)
	tmpl := patternTemplate(64, 64)

	result := FindBest(frame, tmpl, nil)
	if result.Found {
		t.Error("oversized template must not match")
	}

	if all := FindAll(frame, tmpl, nil); all != nil {
		t.Errorf("FindAll with oversized template = %v, want nil", all)
	}
}

func TestFindAllSeparatedInstances(t *testing.T) {
	frame := newTestFrame(200, 200, 1)
	drawPattern(frame.RGBA, 10, 10, 12, 12)
	drawPattern(frame.RGBA, 80, 10, 12, 12)
	drawPattern(frame.RGBA, 10, 90, 12, 12)
	tmpl := patternTemplate(12, 12)

	config := &MatchConfig{Method: MatchMethodNCC, Threshold: 0.95, MinDistance: 20}
	results := FindAll(frame, tmpl, config)

	if len(results) != 3 {
		t.Fatalf("expected 3 matches, got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if r.Confidence < 0.95 {
			t.Errorf("kept match below threshold: %+v", r)
		}
	}
}

func TestFindAllSuppressesNearbyDuplicate(t *testing.T) {
	frame := newTestFrame(200, 100, 1)
	drawPattern(frame.RGBA, 10, 10, 12, 12)
	drawPattern(frame.RGBA, 24, 10, 12, 12) // centers 14px apart, inside the radius
	tmpl := patternTemplate(12, 12)

	config := &MatchConfig{Method: MatchMethodNCC, Threshold: 0.95, MinDistance: 20}
	results := FindAll(frame, tmpl, config)

	if len(results) != 1 {
		t.Fatalf("expected the pair to collapse to 1 match, got %d: %+v", len(results), results)
	}
}

func TestFindAllTieKeepsScanOrder(t *testing.T) {
	frame := newTestFrame(200, 100, 1)
	drawPattern(frame.RGBA, 10, 10, 12, 12)
	drawPattern(frame.RGBA, 60, 10, 12, 12)
	tmpl := patternTemplate(12, 12)

	// Both instances are pixel-identical, so scores tie; the earlier
	// (row-major) candidate must come out first every run.
	config := &MatchConfig{Method: MatchMethodNCC, Threshold: 0.95, MinDistance: 10}
	results := FindAll(frame, tmpl, config)

	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	if results[0].Location.X > results[1].Location.X {
		t.Errorf("tie order not row-major: %+v", results)
	}

	again := FindAll(frame, tmpl, config)
	for i := range results {
		if results[i] != again[i] {
			t.Fatalf("FindAll not deterministic: run1[%d]=%+v run2[%d]=%+v", i, results[i], i, again[i])
		}
	}
}

func TestFindAllMaxMatches(t *testing.T) {
	frame := newTestFrame(260, 80, 1)
	drawPattern(frame.RGBA, 10, 10, 12, 12)
	drawPattern(frame.RGBA, 80, 10, 12, 12)
	drawPattern(frame.RGBA, 150, 10, 12, 12)
	tmpl := patternTemplate(12, 12)

	config := &MatchConfig{Method: MatchMethodNCC, Threshold: 0.95, MinDistance: 10, MaxMatches: 2}
	results := FindAll(frame, tmpl, config)

	if len(results) != 2 {
		t.Fatalf("expected MaxMatches to cap results at 2, got %d", len(results))
	}
}

func TestScoringMethods(t *testing.T) {
	frame := newTestFrame(80, 80, 1)
	drawPattern(frame.RGBA, 20, 20, 12, 12)
	tmpl := patternTemplate(12, 12)

	tests := []struct {
		name   string
		method MatchMethod
	}{
		{"SAD", MatchMethodSAD},
		{"SSD", MatchMethodSSD},
		{"NCC", MatchMethodNCC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FindBest(frame, tmpl, &MatchConfig{Method: tt.method, Threshold: 0.9})
			if !result.Found {
				t.Fatalf("method %s did not find identical pixels, confidence %.4f", tt.name, result.Confidence)
			}
			want := Point{X: 26, Y: 26}
			if result.Location != want {
				t.Errorf("location = %v, want %v", result.Location, want)
			}
		})
	}
}

func BenchmarkFindBestNCC(b *testing.B) {
	frame := newTestFrame(320, 240, 1)
	drawPattern(frame.RGBA, 150, 100, 24, 24)
	tmpl := patternTemplate(24, 24)
	config := &MatchConfig{Method: MatchMethodNCC, Threshold: 0.9}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		FindBest(frame, tmpl, config)
	}
}
