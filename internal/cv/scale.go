package cv

import (
	"fmt"

	"github.com/go-vgo/robotgo"
	"github.com/vova616/screenshot"
)

// DefaultScale is assumed when the display ratio cannot be measured. The
// target display class is high-DPI, where one logical pixel maps to two
// physical pixels.
const DefaultScale = 2

// Scaler converts between the logical coordinate space used for pointer
// control and the physical pixel space of captured frames. The ratio is
// measured once at startup and the Scaler is passed by handle to everything
// that needs it.
type Scaler struct {
	scale int
}

// NewScaler creates a scaler with a fixed ratio, clamped to a minimum of 1.
func NewScaler(scale int) *Scaler {
	if scale < 1 {
		scale = 1
	}
	return &Scaler{scale: scale}
}

// DetectScaler measures the ratio between the physical capture width and the
// logical screen width. Any failure querying either dimension falls back to
// DefaultScale; the returned error reports why detection fell back, and the
// returned Scaler is usable either way.
func DetectScaler() (*Scaler, error) {
	logicalW, _ := robotgo.GetScreenSize()
	if logicalW <= 0 {
		return NewScaler(DefaultScale), fmt.Errorf("logical screen width unavailable")
	}

	img, err := screenshot.CaptureScreen()
	if err != nil {
		return NewScaler(DefaultScale), &CaptureError{Op: "detect scale", Err: err}
	}

	physicalW := img.Bounds().Dx()
	if physicalW <= 0 {
		return NewScaler(DefaultScale), fmt.Errorf("capture returned empty frame")
	}

	return NewScaler(physicalW / logicalW), nil
}

// Scale returns the physical pixels per logical pixel.
func (s *Scaler) Scale() int {
	return s.scale
}

// ToPhysical converts a logical point to physical pixels.
func (s *Scaler) ToPhysical(p Point) Point {
	return Point{X: p.X * s.scale, Y: p.Y * s.scale}
}

// ToPhysicalRegion converts a logical region to physical pixels.
func (s *Scaler) ToPhysicalRegion(r Region) Region {
	return Region{
		X: r.X * s.scale,
		Y: r.Y * s.scale,
		W: r.W * s.scale,
		H: r.H * s.scale,
	}
}

// ToLogical converts a physical point to logical coordinates. Division
// floors, matching ToPhysical, so round trips are stable.
func (s *Scaler) ToLogical(p Point) Point {
	return Point{X: p.X / s.scale, Y: p.Y / s.scale}
}

func (s *Scaler) String() string {
	return fmt.Sprintf("Scaler(%dx)", s.scale)
}
