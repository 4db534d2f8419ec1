package config

import (
	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/vision/change"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/vision/preprocess"
)

// Pipeline holds per-stream extraction settings. It is fixed for the lifetime of a pipeline.
type Pipeline struct {
	UseGPU bool

	// Change detection
	ComparisonMethod         change.Method
	ChangeThreshold          float64
	RegionThreshold          float64
	StructuralBlockSize      int
	StructuralBlockThreshold float64
	AdaptiveDetection        bool
	AdaptiveMultiplier       float64
	AdaptiveMin              float64
	AdaptiveMax              float64

	// Validation
	MinConfidence   float64
	ValidConfidence float64
	MaxBalance      float64
	MaxBet          float64
	MaxMultiplier   float64
	OutlierZScore   float64
	HistoryWindow   int

	SkipUnchangedFrames bool
	MaxProcessingRate   float64 // frames per second, 0 disables throttling
	BigWinThreshold     float64

	Preprocess     preprocess.Options
	EnhanceNumbers bool // use the fixed numeric recipe instead of Preprocess
}

// DefaultPipeline returns the default settings.
func DefaultPipeline() Pipeline {
	return Pipeline{
		ComparisonMethod:         change.MethodPixel,
		ChangeThreshold:          change.DefaultThreshold,
		RegionThreshold:          change.DefaultRegionThreshold,
		StructuralBlockSize:      change.DefaultBlockSize,
		StructuralBlockThreshold: change.DefaultBlockThreshold,
		AdaptiveDetection:        true,
		AdaptiveMultiplier:       change.AdaptiveMultiplier,
		AdaptiveMin:              change.AdaptiveMinimum,
		AdaptiveMax:              change.AdaptiveMaximum,
		MinConfidence:            0.85,
		ValidConfidence:          0.7,
		MaxBalance:               10_000_000,
		MaxBet:                   100_000,
		MaxMultiplier:            100_000,
		OutlierZScore:            3.0,
		HistoryWindow:            50,
		SkipUnchangedFrames:      true,
		MaxProcessingRate:        0.2,
		BigWinThreshold:          100,
		Preprocess:               preprocess.DefaultOptions(),
	}
}

// LoadPipeline reads PIPELINE_* overrides on top of DefaultPipeline.
func LoadPipeline() Pipeline {
	d := DefaultPipeline()
	return Pipeline{
		UseGPU:                   getEnvBool("PIPELINE_USE_GPU", d.UseGPU),
		ComparisonMethod:         change.Method(getEnv("PIPELINE_COMPARISON_METHOD", string(d.ComparisonMethod))),
		ChangeThreshold:          getEnvFloat("PIPELINE_CHANGE_THRESHOLD", d.ChangeThreshold),
		RegionThreshold:          getEnvFloat("PIPELINE_REGION_THRESHOLD", d.RegionThreshold),
		StructuralBlockSize:      getEnvInt("PIPELINE_BLOCK_SIZE", d.StructuralBlockSize),
		StructuralBlockThreshold: getEnvFloat("PIPELINE_BLOCK_THRESHOLD", d.StructuralBlockThreshold),
		AdaptiveDetection:        getEnvBool("PIPELINE_ADAPTIVE_DETECTION", d.AdaptiveDetection),
		AdaptiveMultiplier:       getEnvFloat("PIPELINE_ADAPTIVE_MULTIPLIER", d.AdaptiveMultiplier),
		AdaptiveMin:              getEnvFloat("PIPELINE_ADAPTIVE_MIN", d.AdaptiveMin),
		AdaptiveMax:              getEnvFloat("PIPELINE_ADAPTIVE_MAX", d.AdaptiveMax),
		MinConfidence:            getEnvFloat("PIPELINE_MIN_CONFIDENCE", d.MinConfidence),
		ValidConfidence:          getEnvFloat("PIPELINE_VALID_CONFIDENCE", d.ValidConfidence),
		MaxBalance:               getEnvFloat("PIPELINE_MAX_BALANCE", d.MaxBalance),
		MaxBet:                   getEnvFloat("PIPELINE_MAX_BET", d.MaxBet),
		MaxMultiplier:            getEnvFloat("PIPELINE_MAX_MULTIPLIER", d.MaxMultiplier),
		OutlierZScore:            getEnvFloat("PIPELINE_OUTLIER_ZSCORE", d.OutlierZScore),
		HistoryWindow:            getEnvInt("PIPELINE_HISTORY_WINDOW", d.HistoryWindow),
		SkipUnchangedFrames:      getEnvBool("PIPELINE_SKIP_UNCHANGED", d.SkipUnchangedFrames),
		MaxProcessingRate:        getEnvFloat("PIPELINE_MAX_RATE", d.MaxProcessingRate),
		BigWinThreshold:          getEnvFloat("PIPELINE_BIG_WIN_THRESHOLD", d.BigWinThreshold),
		Preprocess: preprocess.Options{
			Grayscale:         getEnvBool("PREPROCESS_GRAYSCALE", d.Preprocess.Grayscale),
			Enhance:           getEnvBool("PREPROCESS_ENHANCE", d.Preprocess.Enhance),
			Contrast:          getEnvFloat("PREPROCESS_CONTRAST", d.Preprocess.Contrast),
			Brightness:        getEnvFloat("PREPROCESS_BRIGHTNESS", d.Preprocess.Brightness),
			Sharpen:           getEnvBool("PREPROCESS_SHARPEN", d.Preprocess.Sharpen),
			Denoise:           getEnvBool("PREPROCESS_DENOISE", d.Preprocess.Denoise),
			DenoiseSize:       d.Preprocess.DenoiseSize,
			Binarize:          getEnvBool("PREPROCESS_BINARIZE", d.Preprocess.Binarize),
			BinarizeThreshold: getEnvByte("PREPROCESS_BINARIZE_THRESHOLD", d.Preprocess.BinarizeThreshold),
			Invert:            getEnvBool("PREPROCESS_INVERT", d.Preprocess.Invert),
			ResizeWidth:       getEnvInt("PREPROCESS_RESIZE_WIDTH", 0),
			ResizeHeight:      getEnvInt("PREPROCESS_RESIZE_HEIGHT", 0),
		},
		EnhanceNumbers: getEnvBool("PIPELINE_ENHANCE_NUMBERS", d.EnhanceNumbers),
	}
}

// Validate rejects settings no pipeline can run with.
func (p Pipeline) Validate() error {
	if _, err := change.ParseMethod(string(p.ComparisonMethod)); err != nil {
		return apperrors.Wrap(err, apperrors.ConfigInvalid, "comparison method")
	}
	fractions := []struct {
		name string
		v    float64
	}{
		{"change threshold", p.ChangeThreshold},
		{"region threshold", p.RegionThreshold},
		{"adaptive minimum", p.AdaptiveMin},
		{"adaptive maximum", p.AdaptiveMax},
		{"min confidence", p.MinConfidence},
		{"valid confidence", p.ValidConfidence},
	}
	for _, f := range fractions {
		if f.v <= 0 || f.v > 1 {
			return apperrors.Newf(apperrors.ConfigInvalid, "%s must be in (0, 1], got %v", f.name, f.v)
		}
	}
	if p.AdaptiveMin > p.AdaptiveMax {
		return apperrors.Newf(apperrors.ConfigInvalid, "adaptive minimum %v exceeds maximum %v", p.AdaptiveMin, p.AdaptiveMax)
	}
	positives := []struct {
		name string
		v    float64
	}{
		{"adaptive multiplier", p.AdaptiveMultiplier},
		{"block threshold", p.StructuralBlockThreshold},
		{"max balance", p.MaxBalance},
		{"max bet", p.MaxBet},
		{"max multiplier", p.MaxMultiplier},
		{"outlier z-score", p.OutlierZScore},
		{"big win threshold", p.BigWinThreshold},
	}
	for _, f := range positives {
		if f.v <= 0 {
			return apperrors.Newf(apperrors.ConfigInvalid, "%s must be positive, got %v", f.name, f.v)
		}
	}
	if p.StructuralBlockSize <= 0 {
		return apperrors.Newf(apperrors.ConfigInvalid, "block size must be positive, got %d", p.StructuralBlockSize)
	}
	if p.HistoryWindow <= 0 {
		return apperrors.Newf(apperrors.ConfigInvalid, "history window must be positive, got %d", p.HistoryWindow)
	}
	if p.MaxProcessingRate < 0 {
		return apperrors.Newf(apperrors.ConfigInvalid, "max processing rate must not be negative, got %v", p.MaxProcessingRate)
	}
	return nil
}
