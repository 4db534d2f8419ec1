// Package preprocess normalizes frames before text recognition.
package preprocess

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/frame"
)

// Preprocessing defaults
const (
	DefaultContrast          = 1.5
	DefaultBrightness        = 0.0
	DefaultDenoiseSize       = 3
	DefaultBinarizeThreshold = 127

	// EnhanceForNumbers recipe
	NumberContrast       = 2.0
	NumberThresholdRatio = 0.8
)

// Options toggles the individual steps. Steps run in a fixed order regardless of field order.
type Options struct {
	ResizeWidth       int // 0 keeps the original size
	ResizeHeight      int
	Grayscale         bool
	Enhance           bool
	Contrast          float64
	Brightness        float64
	Sharpen           bool
	Denoise           bool
	DenoiseSize       int
	Binarize          bool
	BinarizeThreshold uint8
	Invert            bool
}

// DefaultOptions returns grayscale + contrast enhancement, the baseline for UI overlays.
func DefaultOptions() Options {
	return Options{
		Grayscale:         true,
		Enhance:           true,
		Contrast:          DefaultContrast,
		Brightness:        DefaultBrightness,
		DenoiseSize:       DefaultDenoiseSize,
		BinarizeThreshold: DefaultBinarizeThreshold,
	}
}

// Processor applies Options to frames. It is stateless and safe for concurrent use.
type Processor struct {
	opts Options
}

// New creates a processor.
func New(opts Options) *Processor {
	if opts.Contrast == 0 {
		opts.Contrast = 1
	}
	if opts.DenoiseSize < 3 || opts.DenoiseSize%2 == 0 {
		opts.DenoiseSize = DefaultDenoiseSize
	}
	if opts.BinarizeThreshold == 0 {
		opts.BinarizeThreshold = DefaultBinarizeThreshold
	}
	return &Processor{opts: opts}
}

// Process runs resize, grayscale, contrast/brightness, sharpen, denoise, binarize and invert,
// each only when enabled. The input frame is never modified.
func (p *Processor) Process(f *frame.Frame) *frame.Frame {
	out := f.Clone()
	if p.opts.ResizeWidth > 0 && p.opts.ResizeHeight > 0 {
		out = Resize(out, p.opts.ResizeWidth, p.opts.ResizeHeight)
	}
	if p.opts.Grayscale {
		out = grayscale(out)
	}
	if p.opts.Enhance {
		out = adjust(out, p.opts.Contrast, p.opts.Brightness)
	}
	if p.opts.Sharpen {
		out = sharpen(out)
	}
	if p.opts.Denoise {
		out = median(out, p.opts.DenoiseSize)
	}
	if p.opts.Binarize {
		out = threshold(out.ToGray(), float64(p.opts.BinarizeThreshold))
	}
	if p.opts.Invert {
		out = invert(out)
	}
	return out
}

// EnhanceForNumbers applies a fixed recipe tuned for small numeric overlays:
// grayscale, contrast boost, two sharpen passes, then a threshold at 0.8x the mean intensity.
func EnhanceForNumbers(f *frame.Frame) *frame.Frame {
	out := adjust(grayscale(f), NumberContrast, 0)
	out = sharpen(sharpen(out))

	var sum float64
	for _, v := range out.Pix {
		sum += float64(v)
	}
	mean := sum / float64(len(out.Pix))
	return threshold(out, NumberThresholdRatio*mean)
}

// Resize scales a frame with Catmull-Rom interpolation.
func Resize(f *frame.Frame, width, height int) *frame.Frame {
	return toFrame(imaging.Resize(nrgba(f), width, height, imaging.CatmullRom), f.Channels)
}

// grayscale reduces a frame to one channel using imaging's luma weights.
func grayscale(f *frame.Frame) *frame.Frame {
	if f.Channels == frame.Gray {
		return f.Clone()
	}
	return toFrame(imaging.Grayscale(nrgba(f)), frame.Gray)
}

// adjust applies v' = |alpha*v + beta| saturated to [0,255] to every color channel.
func adjust(f *frame.Frame, alpha, beta float64) *frame.Frame {
	var lut [256]uint8
	for i := range lut {
		lut[i] = saturate(math.Abs(alpha*float64(i) + beta))
	}
	out := imaging.AdjustFunc(nrgba(f), func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})
	return toFrame(out, f.Channels)
}

var sharpenKernel = [9]float64{
	-1, -1, -1,
	-1, 9, -1,
	-1, -1, -1,
}

// sharpen convolves each color channel with a 3x3 kernel; borders replicate edge pixels.
func sharpen(f *frame.Frame) *frame.Frame {
	return toFrame(imaging.Convolve3x3(nrgba(f), sharpenKernel, nil), f.Channels)
}

func invert(f *frame.Frame) *frame.Frame {
	return toFrame(imaging.Invert(nrgba(f)), f.Channels)
}

// nrgba exposes a frame as straight-alpha RGBA so imaging works on the raw values.
func nrgba(f *frame.Frame) *image.NRGBA {
	img := image.NewNRGBA(f.Bounds())
	for i, j := 0, 0; i < len(f.Pix); i, j = i+f.Channels, j+4 {
		switch f.Channels {
		case frame.Gray:
			img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = f.Pix[i], f.Pix[i], f.Pix[i], 0xFF
		case frame.RGB:
			img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = f.Pix[i], f.Pix[i+1], f.Pix[i+2], 0xFF
		default:
			copy(img.Pix[j:j+4], f.Pix[i:i+4])
		}
	}
	return img
}

// toFrame copies an imaging result back into a frame with the given channel count.
// Gray frames keep the red channel.
func toFrame(img *image.NRGBA, channels int) *frame.Frame {
	b := img.Bounds()
	out := frame.New(b.Dx(), b.Dy(), channels)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			s := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			copy(out.Pix[out.Offset(x, y):out.Offset(x, y)+channels], img.Pix[s:s+channels])
		}
	}
	return out
}

// median applies a size x size median filter per channel, replicating border pixels.
func median(f *frame.Frame, size int) *frame.Frame {
	out := frame.New(f.Width, f.Height, f.Channels)
	r := size / 2
	window := make([]byte, 0, size*size)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			for c := 0; c < f.Channels; c++ {
				window = window[:0]
				for ky := -r; ky <= r; ky++ {
					for kx := -r; kx <= r; kx++ {
						sx := clampInt(x+kx, 0, f.Width-1)
						sy := clampInt(y+ky, 0, f.Height-1)
						window = append(window, f.Pix[f.Offset(sx, sy)+c])
					}
				}
				sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
				out.Pix[out.Offset(x, y)+c] = window[len(window)/2]
			}
		}
	}
	return out
}

// threshold maps values strictly above t to 255 and the rest to 0.
func threshold(f *frame.Frame, t float64) *frame.Frame {
	for i, v := range f.Pix {
		if float64(v) > t {
			f.Pix[i] = 255
		} else {
			f.Pix[i] = 0
		}
	}
	return f
}

func saturate(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(math.Round(v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
