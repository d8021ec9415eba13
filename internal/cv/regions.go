package cv

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Region is a capture bounding box: top-left corner plus size.
type Region struct {
	X, Y, Width, Height int
}

// Point is a screen coordinate, usually the center of a match.
type Point struct {
	X, Y int
}

// NewRegion creates a new region
func NewRegion(x, y, width, height int) Region {
	return Region{X: x, Y: y, Width: width, Height: height}
}

// ParseRegion reads "x,y,w,h".
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("region %q: want x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	r := NewRegion(v[0], v[1], v[2], v[3])
	return r, r.Validate()
}

// Validate rejects negative origins and empty sizes.
func (r Region) Validate() error {
	if r.X < 0 || r.Y < 0 {
		return &ConfigError{Field: "region", Reason: fmt.Sprintf("origin (%d,%d) is negative", r.X, r.Y)}
	}
	if r.Width <= 0 || r.Height <= 0 {
		return &ConfigError{Field: "region", Reason: fmt.Sprintf("size %dx%d is empty", r.Width, r.Height)}
	}
	return nil
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}
