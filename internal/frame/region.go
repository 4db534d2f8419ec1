package frame

import (
	"fmt"
	"image"
	"math"
)

// Region is a rectangle expressed as fractions of the frame size.
type Region struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// IsZero reports whether the region is unset.
func (r Region) IsZero() bool {
	return r == Region{}
}

// Validate checks that the region lies inside the unit square and has positive area.
func (r Region) Validate() error {
	for _, v := range []float64{r.X, r.Y, r.W, r.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("region %v has non-finite coordinate", r)
		}
	}
	if r.X < 0 || r.Y < 0 {
		return fmt.Errorf("region %v has negative origin", r)
	}
	if r.W <= 0 || r.H <= 0 {
		return fmt.Errorf("region %v has empty size", r)
	}
	if r.X+r.W > 1 || r.Y+r.H > 1 {
		return fmt.Errorf("region %v extends beyond frame", r)
	}
	return nil
}

// Pixels maps the region onto a frame of the given size. The result is at least 1x1.
func (r Region) Pixels(width, height int) image.Rectangle {
	x0 := int(r.X * float64(width))
	y0 := int(r.Y * float64(height))
	x1 := int((r.X + r.W) * float64(width))
	y1 := int((r.Y + r.H) * float64(height))
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, width, height))
}
