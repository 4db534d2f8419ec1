package ocr

import (
	"context"
	"image"

	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/frame"
)

// Pool bounds concurrent access to a Recognizer that is not safely reentrant
// or that is expensive enough to warrant a fixed number of workers.
type Pool struct {
	next  Recognizer
	slots chan struct{}
}

// NewPool wraps next with size concurrent slots.
func NewPool(next Recognizer, size int) *Pool {
	if size <= 0 {
		size = DefaultWorkers
	}
	return &Pool{next: next, slots: make(chan struct{}, size)}
}

// Size returns the number of slots.
func (p *Pool) Size() int { return cap(p.slots) }

// Recognize waits for a free slot, honoring ctx, then delegates.
func (p *Pool) Recognize(ctx context.Context, img *frame.Frame, region *image.Rectangle) ([]RecognizedText, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, apperrors.Wrap(ctx.Err(), apperrors.Cancelled, "waiting for recognizer slot")
	}
	defer func() { <-p.slots }()
	return p.next.Recognize(ctx, img, region)
}
