// Package change decides whether a frame differs enough from its predecessor to be worth recognizing.
package change

// Change detection defaults. These are tuning parameters, not invariants.
const (
	DefaultThreshold       = 0.05
	DefaultRegionThreshold = 0.10

	// Structural comparison
	DefaultBlockSize      = 16
	DefaultBlockThreshold = 10.0 // mean intensity units

	// Histogram comparison
	HistogramBins = 256

	// Perceptual comparison uses a 64-bit pHash
	PerceptualHashBits = 64

	// Adaptive threshold
	AdaptiveHistorySize = 100
	AdaptiveMinSamples  = 10
	AdaptiveMultiplier  = 1.5
	AdaptiveMinimum     = 0.02
	AdaptiveMaximum     = 0.20
)
