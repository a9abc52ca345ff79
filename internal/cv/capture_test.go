package cv

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"
)

// stubSource returns a ScreenSource whose grab function serves a fixture
// instead of the live display.
func stubSource(scale, w, h int) *ScreenSource {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fillRect(img, 0, 0, w, h, color.RGBA{50, 100, 150, 255})

	source := NewScreenSource(NewScaler(scale))
	source.grab = func() (*image.RGBA, error) {
		return img, nil
	}
	return source
}

func TestScreenSourceFullCapture(t *testing.T) {
	source := stubSource(2, 200, 160)

	frame, err := source.Capture(nil)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	if frame.Region != nil {
		t.Error("full-screen frame should carry a nil region")
	}
	if frame.Scale != 2 {
		t.Errorf("frame scale = %d, want 2", frame.Scale)
	}
	if frame.Bounds().Dx() != 200 || frame.Bounds().Dy() != 160 {
		t.Errorf("frame bounds = %v", frame.Bounds())
	}
}

func TestScreenSourceRegionCapture(t *testing.T) {
	source := stubSource(2, 200, 160)
	region := NewRegion(10, 5, 20, 15)

	frame, err := source.Capture(&region)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	// Logical 20x15 at scale 2 crops a 40x30 physical image.
	if frame.Bounds().Dx() != 40 || frame.Bounds().Dy() != 30 {
		t.Errorf("cropped bounds = %v, want 40x30", frame.Bounds())
	}
	if frame.Region == nil || *frame.Region != region {
		t.Errorf("frame region = %v, want %v", frame.Region, region)
	}
}

func TestScreenSourceRegionOutOfBounds(t *testing.T) {
	source := stubSource(2, 200, 160)

	// Logical width 101 needs 202 physical pixels; capture is 200 wide.
	region := NewRegion(0, 0, 101, 10)
	_, err := source.Capture(&region)
	if err == nil {
		t.Fatal("expected out-of-bounds region to fail")
	}

	var capErr *CaptureError
	if !errors.As(err, &capErr) {
		t.Errorf("error type = %T, want *CaptureError", err)
	}
}

func TestScreenSourceCaptureFailure(t *testing.T) {
	source := NewScreenSource(NewScaler(1))
	cause := fmt.Errorf("display unavailable")
	source.grab = func() (*image.RGBA, error) {
		return nil, cause
	}

	_, err := source.Capture(nil)
	var capErr *CaptureError
	if !errors.As(err, &capErr) {
		t.Fatalf("error type = %T, want *CaptureError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("CaptureError should wrap the platform error")
	}
}

func TestCropFrameRejectsInvalidRegion(t *testing.T) {
	frame := newTestFrame(100, 100, 1)

	for _, region := range []Region{
		NewRegion(-1, 0, 10, 10),
		NewRegion(0, 0, 0, 10),
	} {
		if _, err := CropFrame(frame, region); err == nil {
			t.Errorf("CropFrame(%v) should fail", region)
		}
	}
}

func TestCropRegionIsACopy(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	fillRect(img, 0, 0, 40, 40, color.RGBA{10, 20, 30, 255})

	cropped := CropRegion(img, image.Rect(10, 10, 20, 20))
	if cropped.Bounds().Dx() != 10 || cropped.Bounds().Dy() != 10 {
		t.Fatalf("cropped bounds = %v", cropped.Bounds())
	}
	if got := cropped.RGBAAt(0, 0); got != (color.RGBA{10, 20, 30, 255}) {
		t.Fatalf("cropped pixel = %v", got)
	}

	// Mutating the crop must not touch the source frame.
	cropped.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	if got := img.RGBAAt(10, 10); got != (color.RGBA{10, 20, 30, 255}) {
		t.Errorf("source pixel changed to %v after crop mutation", got)
	}
}
