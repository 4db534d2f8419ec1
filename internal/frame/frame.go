// Package frame defines the decoded pixel buffer passed through the extraction pipeline.
package frame

import (
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"io"

	"golang.org/x/image/draw"
)

// Supported channel layouts.
const (
	Gray = 1
	RGB  = 3
	RGBA = 4
)

// Frame is a row-major 8-bit pixel buffer with explicit dimensions.
type Frame struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// New allocates a zeroed frame.
func New(width, height, channels int) *Frame {
	return &Frame{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

// Validate checks that the metadata matches the buffer.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("nil frame")
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if f.Channels != Gray && f.Channels != RGB && f.Channels != RGBA {
		return fmt.Errorf("unsupported channel count %d", f.Channels)
	}
	if len(f.Pix) != f.Width*f.Height*f.Channels {
		return fmt.Errorf("pixel buffer length %d, want %d", len(f.Pix), f.Width*f.Height*f.Channels)
	}
	return nil
}

// Bounds returns the frame rectangle anchored at the origin.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Offset returns the index of channel 0 of pixel (x, y).
func (f *Frame) Offset(x, y int) int {
	return (y*f.Width + x) * f.Channels
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Width: f.Width, Height: f.Height, Channels: f.Channels, Pix: pix}
}

// SameShape reports whether two frames have identical dimensions and layout.
func (f *Frame) SameShape(o *Frame) bool {
	return o != nil && f.Width == o.Width && f.Height == o.Height && f.Channels == o.Channels
}

// Luma returns the grayscale intensity of pixel (x, y).
func (f *Frame) Luma(x, y int) uint8 {
	i := f.Offset(x, y)
	if f.Channels == Gray {
		return f.Pix[i]
	}
	return luma(f.Pix[i], f.Pix[i+1], f.Pix[i+2])
}

// ToGray returns a single-channel copy. Gray frames are cloned.
func (f *Frame) ToGray() *Frame {
	if f.Channels == Gray {
		return f.Clone()
	}
	out := New(f.Width, f.Height, Gray)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			out.Pix[y*f.Width+x] = f.Luma(x, y)
		}
	}
	return out
}

// Crop copies the part of the frame inside r. The rectangle is clamped to the frame;
// an empty intersection yields a 1x1 frame at the nearest corner.
func (f *Frame) Crop(r image.Rectangle) *Frame {
	r = r.Intersect(f.Bounds())
	if r.Empty() {
		x := clamp(r.Min.X, 0, f.Width-1)
		y := clamp(r.Min.Y, 0, f.Height-1)
		r = image.Rect(x, y, x+1, y+1)
	}
	out := New(r.Dx(), r.Dy(), f.Channels)
	rowLen := r.Dx() * f.Channels
	for y := 0; y < r.Dy(); y++ {
		src := f.Offset(r.Min.X, r.Min.Y+y)
		copy(out.Pix[y*rowLen:(y+1)*rowLen], f.Pix[src:src+rowLen])
	}
	return out
}

// ToImage returns an image.Gray for single-channel frames and image.RGBA otherwise.
func (f *Frame) ToImage() image.Image {
	if f.Channels == Gray {
		img := image.NewGray(f.Bounds())
		copy(img.Pix, f.Pix)
		return img
	}
	img := image.NewRGBA(f.Bounds())
	for i, j := 0, 0; i < len(f.Pix); i, j = i+f.Channels, j+4 {
		img.Pix[j] = f.Pix[i]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+2]
		if f.Channels == RGBA {
			img.Pix[j+3] = f.Pix[i+3]
		} else {
			img.Pix[j+3] = 0xFF
		}
	}
	return img
}

// FromImage converts any image into a frame. Gray images stay single-channel,
// everything else becomes RGB.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok {
		out := New(b.Dx(), b.Dy(), Gray)
		for y := 0; y < b.Dy(); y++ {
			src := g.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*b.Dx():(y+1)*b.Dx()], g.Pix[src:src+b.Dx()])
		}
		return out
	}

	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
		b = rgba.Bounds()
	}
	out := New(b.Dx(), b.Dy(), RGB)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			s := rgba.PixOffset(b.Min.X+x, b.Min.Y+y)
			d := out.Offset(x, y)
			out.Pix[d] = rgba.Pix[s]
			out.Pix[d+1] = rgba.Pix[s+1]
			out.Pix[d+2] = rgba.Pix[s+2]
		}
	}
	return out
}

// Decode reads a JPEG or PNG image into a frame.
func Decode(r io.Reader) (*Frame, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return FromImage(img), nil
}

func luma(r, g, b uint8) uint8 {
	// ITU-R BT.601 weights, fixed point
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
