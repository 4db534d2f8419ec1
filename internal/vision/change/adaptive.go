package change

import (
	"image"
	"math"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/frame"
)

// AdaptiveOptions tunes the rolling threshold. Zero values take the package defaults.
type AdaptiveOptions struct {
	HistorySize int
	MinSamples  int
	Multiplier  float64
	Minimum     float64
	Maximum     float64
}

func (o AdaptiveOptions) withDefaults() AdaptiveOptions {
	if o.HistorySize <= 0 {
		o.HistorySize = AdaptiveHistorySize
	}
	if o.MinSamples <= 0 {
		o.MinSamples = AdaptiveMinSamples
	}
	if o.Multiplier <= 0 {
		o.Multiplier = AdaptiveMultiplier
	}
	if o.Minimum <= 0 {
		o.Minimum = AdaptiveMinimum
	}
	if o.Maximum <= 0 || o.Maximum < o.Minimum {
		o.Maximum = AdaptiveMaximum
	}
	return o
}

// AdaptiveDetector recalibrates its threshold from the stream's own change history.
type AdaptiveDetector struct {
	*Detector
	adaptive  AdaptiveOptions
	history   []float64
	threshold float64
}

// NewAdaptiveDetector wraps a fresh Detector.
func NewAdaptiveDetector(opts Options, adaptive AdaptiveOptions) *AdaptiveDetector {
	d := NewDetector(opts)
	return &AdaptiveDetector{
		Detector:  d,
		adaptive:  adaptive.withDefaults(),
		threshold: d.opts.Threshold,
	}
}

// Detect runs the base comparison, records the change magnitude and re-evaluates
// HasChanged against the adaptive threshold once enough samples exist.
func (a *AdaptiveDetector) Detect(f *frame.Frame, regions map[string]image.Rectangle) Result {
	seeding := a.prev == nil
	res := a.Detector.Detect(f, regions)
	if seeding {
		// the seed result is a sentinel, not a measurement
		return res
	}

	a.history = append(a.history, res.ChangePercentage)
	if len(a.history) > a.adaptive.HistorySize {
		a.history = a.history[len(a.history)-a.adaptive.HistorySize:]
	}

	if len(a.history) > a.adaptive.MinSamples {
		mean, std := meanStd(a.history)
		a.threshold = clampFloat(mean+a.adaptive.Multiplier*std, a.adaptive.Minimum, a.adaptive.Maximum)
		res.HasChanged = res.ChangePercentage > a.threshold
	}
	return res
}

// Threshold returns the threshold currently in effect.
func (a *AdaptiveDetector) Threshold() float64 { return a.threshold }

// HistoryLen returns the number of recorded samples.
func (a *AdaptiveDetector) HistoryLen() int { return len(a.history) }

// Reset clears snapshots and history and restores the static threshold.
func (a *AdaptiveDetector) Reset() {
	a.Detector.Reset()
	a.history = nil
	a.threshold = a.opts.Threshold
}

func meanStd(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
