package change

import (
	"fmt"
	"math"

	"github.com/corona10/goimagehash"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/frame"
)

// Method selects the frame comparison strategy.
type Method string

const (
	MethodPixel      Method = "pixel"
	MethodHistogram  Method = "histogram"
	MethodStructural Method = "structural"
	MethodPerceptual Method = "perceptual"
)

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodPixel, MethodHistogram, MethodStructural, MethodPerceptual:
		return m, nil
	default:
		return "", fmt.Errorf("unknown comparison method %q", s)
	}
}

// comparer returns the change fraction in [0,1] between two frames of equal shape.
type comparer func(prev, cur *frame.Frame) float64

func (d *Detector) comparerFor(m Method) comparer {
	switch m {
	case MethodHistogram:
		return histogramChange
	case MethodStructural:
		return func(prev, cur *frame.Frame) float64 {
			return structuralChange(prev, cur, d.opts.BlockSize, d.opts.BlockThreshold)
		}
	case MethodPerceptual:
		return perceptualChange
	default:
		return pixelChange
	}
}

// compare handles shape mismatches before delegating to the strategy.
func (d *Detector) compare(prev, cur *frame.Frame) float64 {
	if prev == nil || !prev.SameShape(cur) {
		return 1.0
	}
	return d.cmp(prev, cur)
}

// pixelChange is the mean absolute per-channel difference normalized by 255.
func pixelChange(prev, cur *frame.Frame) float64 {
	if len(cur.Pix) == 0 {
		return 0
	}
	var sum uint64
	for i, v := range cur.Pix {
		p := prev.Pix[i]
		if v > p {
			sum += uint64(v - p)
		} else {
			sum += uint64(p - v)
		}
	}
	return float64(sum) / (float64(len(cur.Pix)) * 255)
}

// histogramChange correlates grayscale histograms; degenerate histograms count as full change.
func histogramChange(prev, cur *frame.Frame) float64 {
	corr := correlation(histogram(prev), histogram(cur))
	if math.IsNaN(corr) {
		return 1.0
	}
	return 1 - math.Max(0, corr)
}

func histogram(f *frame.Frame) [HistogramBins]float64 {
	var h [HistogramBins]float64
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			h[f.Luma(x, y)]++
		}
	}
	return h
}

// correlation is the Pearson correlation of two histograms. Returns NaN when either has zero variance.
func correlation(a, b [HistogramBins]float64) float64 {
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= HistogramBins
	meanB /= HistogramBins

	var num, varA, varB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		num += da * db
		varA += da * da
		varB += db * db
	}
	den := math.Sqrt(varA * varB)
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// structuralChange compares block mean intensities and returns the fraction of changed blocks.
// Frames smaller than one block are compared as a single block.
func structuralChange(prev, cur *frame.Frame, blockSize int, blockThreshold float64) float64 {
	bw, bh := blockSize, blockSize
	cols, rows := cur.Width/bw, cur.Height/bh
	if cols == 0 || rows == 0 {
		cols, rows, bw, bh = 1, 1, cur.Width, cur.Height
	}

	changed := 0
	for by := 0; by < rows; by++ {
		for bx := 0; bx < cols; bx++ {
			mp := blockMean(prev, bx*bw, by*bh, bw, bh)
			mc := blockMean(cur, bx*bw, by*bh, bw, bh)
			if math.Abs(mp-mc) > blockThreshold {
				changed++
			}
		}
	}
	return float64(changed) / float64(cols*rows)
}

func blockMean(f *frame.Frame, x0, y0, w, h int) float64 {
	var sum int
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			sum += int(f.Luma(x, y))
		}
	}
	return float64(sum) / float64(w*h)
}

// perceptualChange is the normalized Hamming distance of the two frames' pHashes.
func perceptualChange(prev, cur *frame.Frame) float64 {
	hp, err := goimagehash.PerceptionHash(prev.ToImage())
	if err != nil {
		return 1.0
	}
	hc, err := goimagehash.PerceptionHash(cur.ToImage())
	if err != nil {
		return 1.0
	}
	dist, err := hp.Distance(hc)
	if err != nil {
		return 1.0
	}
	return float64(dist) / PerceptualHashBits
}
