package cv

import (
	"fmt"
	"image"
	"time"

	"github.com/vova616/screenshot"
)

// Frame is one captured screen image in physical pixels, tagged with the
// logical region it covers (nil means full screen) and the scale it was
// captured at. Frames are never mutated after creation.
type Frame struct {
	RGBA   *image.RGBA
	Region *Region
	Scale  int
	At     time.Time
}

// Bounds returns the pixel bounds of the frame image.
func (f *Frame) Bounds() image.Rectangle {
	return f.RGBA.Bounds()
}

// CaptureError reports a failure of the live display capture or a region
// falling outside capture bounds. The polling loop recovers these with a
// cooldown rather than terminating.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("capture: %s", e.Op)
	}
	return fmt.Sprintf("capture: %s: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// FrameSource produces frames for matching and OCR. It is the only component
// allowed to perform a live display capture; everything else receives frames
// as parameters so it stays testable against fixtures.
type FrameSource interface {
	// Capture returns the full-screen frame when region is nil, otherwise
	// the frame cropped to the region (converted to physical pixels).
	Capture(region *Region) (*Frame, error)
}

// ScreenSource captures the desktop through the platform screenshot API.
type ScreenSource struct {
	scaler *Scaler

	// grab is swappable for tests that have no display.
	grab func() (*image.RGBA, error)
}

// NewScreenSource creates a screen source bound to a scaler.
func NewScreenSource(scaler *Scaler) *ScreenSource {
	return &ScreenSource{
		scaler: scaler,
		grab:   screenshot.CaptureScreen,
	}
}

// Capture grabs the full screen, then crops when a region is given. The
// region is validated against capture bounds at the logical scale.
func (s *ScreenSource) Capture(region *Region) (*Frame, error) {
	img, err := s.grab()
	if err != nil {
		return nil, &CaptureError{Op: "screen", Err: err}
	}

	frame := &Frame{
		RGBA:  img,
		Scale: s.scaler.Scale(),
		At:    time.Now(),
	}

	if region == nil {
		return frame, nil
	}
	return CropFrame(frame, *region)
}

// Scaler returns the scaler the source captures with.
func (s *ScreenSource) Scaler() *Scaler {
	return s.scaler
}

// CropFrame cuts a logical region out of a full-screen frame. The source
// frame is left untouched.
func (s *ScreenSource) CropFrame(frame *Frame, region Region) (*Frame, error) {
	return CropFrame(frame, region)
}

// CropFrame returns a new frame covering only the given logical region of a
// full-screen frame.
func CropFrame(frame *Frame, region Region) (*Frame, error) {
	if err := region.Validate(); err != nil {
		return nil, &CaptureError{Op: "crop", Err: err}
	}

	scaler := NewScaler(frame.Scale)
	physical := scaler.ToPhysicalRegion(region)

	bounds := frame.RGBA.Bounds()
	if !physical.FitsWithin(bounds.Dx(), bounds.Dy()) {
		return nil, &CaptureError{
			Op:  "crop",
			Err: fmt.Errorf("region %s exceeds capture bounds %dx%d at scale %d", region, bounds.Dx(), bounds.Dy(), frame.Scale),
		}
	}

	cropped := CropRegion(frame.RGBA, physical.ToRect())
	r := region
	return &Frame{
		RGBA:   cropped,
		Region: &r,
		Scale:  frame.Scale,
		At:     frame.At,
	}, nil
}

// CropRegion extracts a rectangular pixel region into a new origin-based image.
func CropRegion(img *image.RGBA, rect image.Rectangle) *image.RGBA {
	rect = rect.Intersect(img.Bounds())
	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))

	for y := 0; y < rect.Dy(); y++ {
		srcOff := (rect.Min.Y+y-img.Rect.Min.Y)*img.Stride + (rect.Min.X-img.Rect.Min.X)*4
		dstOff := y * cropped.Stride
		copy(cropped.Pix[dstOff:dstOff+rect.Dx()*4], img.Pix[srcOff:srcOff+rect.Dx()*4])
	}

	return cropped
}
