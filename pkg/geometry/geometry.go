// Package geometry contains the sensor geometry provider.
package geometry

import (
	"fmt"
)

// Geometry is the resolution of a sensor, in pixels.
// It is immutable after construction.
type Geometry struct {
	width  int
	height int
}

// New allocates a Geometry.
func New(width int, height int) (*Geometry, error) {
	if width <= 0 {
		return nil, fmt.Errorf("invalid width: %d", width)
	}
	if height <= 0 {
		return nil, fmt.Errorf("invalid height: %d", height)
	}

	return &Geometry{
		width:  width,
		height: height,
	}, nil
}

// Width returns the width of the sensor in pixels.
func (g *Geometry) Width() int {
	return g.width
}

// Height returns the height of the sensor in pixels.
func (g *Geometry) Height() int {
	return g.height
}

// String implements fmt.Stringer.
func (g *Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.width, g.height)
}
