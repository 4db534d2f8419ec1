// Package ocr defines the text recognition boundary and its backends.
package ocr

import (
	"context"
	"image"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/frame"
)

// Point is a vertex of a bounding polygon in pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RecognizedText is one recognized text fragment.
type RecognizedText struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	BBox       [4]Point `json:"bbox"`
}

// Recognizer returns text fragments found in img, optionally restricted to region.
// Results are ordered by priority; callers typically take the first.
type Recognizer interface {
	Recognize(ctx context.Context, img *frame.Frame, region *image.Rectangle) ([]RecognizedText, error)
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(ctx context.Context, img *frame.Frame, region *image.Rectangle) ([]RecognizedText, error)

// Recognize calls fn.
func (fn RecognizerFunc) Recognize(ctx context.Context, img *frame.Frame, region *image.Rectangle) ([]RecognizedText, error) {
	return fn(ctx, img, region)
}
