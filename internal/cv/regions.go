package cv

import (
	"fmt"
	"image"
)

// Region is a rectangular screen area in logical coordinates.
type Region struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
	W int `yaml:"w" json:"w"`
	H int `yaml:"h" json:"h"`
}

type Point struct {
	X, Y int
}

// NewRegion creates a new region
func NewRegion(x, y, w, h int) Region {
	return Region{X: x, Y: y, W: w, H: h}
}

// Contains checks if a point is within the region
func (r Region) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Center returns the midpoint of the region
func (r Region) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Right returns the exclusive right edge
func (r Region) Right() int {
	return r.X + r.W
}

// Bottom returns the exclusive bottom edge
func (r Region) Bottom() int {
	return r.Y + r.H
}

// ToRect converts the region to an image.Rectangle for image operations
func (r Region) ToRect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Validate checks the region invariants: non-negative origin, positive extent
func (r Region) Validate() error {
	if r.X < 0 || r.Y < 0 {
		return fmt.Errorf("region origin (%d,%d) must be non-negative", r.X, r.Y)
	}
	if r.W <= 0 || r.H <= 0 {
		return fmt.Errorf("region size %dx%d must be positive", r.W, r.H)
	}
	return nil
}

// FitsWithin reports whether the region lies entirely inside a width x height
// logical space.
func (r Region) FitsWithin(width, height int) bool {
	return r.X >= 0 && r.Y >= 0 && r.Right() <= width && r.Bottom() <= height
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}
