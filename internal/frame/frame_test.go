package frame

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestNewAndValidate(t *testing.T) {
	f := New(4, 3, RGB)
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	bad := &Frame{Width: 4, Height: 3, Channels: RGB, Pix: make([]byte, 10)}
	if err := bad.Validate(); err == nil {
		t.Error("Validate() should reject short pixel buffer")
	}

	var nilFrame *Frame
	if err := nilFrame.Validate(); err == nil {
		t.Error("Validate() should reject nil frame")
	}
}

func TestCropClampsToBounds(t *testing.T) {
	f := New(10, 10, Gray)
	for i := range f.Pix {
		f.Pix[i] = byte(i)
	}

	c := f.Crop(image.Rect(8, 8, 20, 20))
	if c.Width != 2 || c.Height != 2 {
		t.Fatalf("crop size = %dx%d, want 2x2", c.Width, c.Height)
	}
	if c.Pix[0] != f.Pix[f.Offset(8, 8)] {
		t.Errorf("crop origin pixel = %d, want %d", c.Pix[0], f.Pix[f.Offset(8, 8)])
	}

	empty := f.Crop(image.Rect(50, 50, 60, 60))
	if empty.Width != 1 || empty.Height != 1 {
		t.Errorf("empty crop size = %dx%d, want 1x1", empty.Width, empty.Height)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	f := New(2, 2, RGB)
	c := f.Clone()
	c.Pix[0] = 255
	if f.Pix[0] != 0 {
		t.Error("Clone shares pixel buffer with original")
	}
}

func TestToGray(t *testing.T) {
	f := New(1, 1, RGB)
	f.Pix[0], f.Pix[1], f.Pix[2] = 255, 255, 255

	g := f.ToGray()
	if g.Channels != Gray {
		t.Fatalf("channels = %d, want %d", g.Channels, Gray)
	}
	if g.Pix[0] != 255 {
		t.Errorf("white luma = %d, want 255", g.Pix[0])
	}
}

func TestImageRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	f := FromImage(img)
	if f.Channels != RGB || f.Width != 3 || f.Height != 2 {
		t.Fatalf("FromImage = %dx%dx%d, want 3x2x3", f.Width, f.Height, f.Channels)
	}
	i := f.Offset(1, 1)
	if f.Pix[i] != 10 || f.Pix[i+1] != 20 || f.Pix[i+2] != 30 {
		t.Errorf("pixel = %v, want [10 20 30]", f.Pix[i:i+3])
	}

	back := f.ToImage().(*image.RGBA)
	if got := back.RGBAAt(1, 1); got.R != 10 || got.B != 30 || got.A != 255 {
		t.Errorf("ToImage pixel = %v", got)
	}
}

func TestDecodePNG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 5, 4))
	img.SetGray(2, 2, color.Gray{Y: 200})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	f, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Width != 5 || f.Height != 4 {
		t.Errorf("size = %dx%d, want 5x4", f.Width, f.Height)
	}
	if f.Luma(2, 2) != 200 {
		t.Errorf("Luma(2,2) = %d, want 200", f.Luma(2, 2))
	}
}

func TestRegionValidate(t *testing.T) {
	tests := []struct {
		name    string
		region  Region
		wantErr bool
	}{
		{"inside", Region{X: 0.1, Y: 0.1, W: 0.5, H: 0.5}, false},
		{"full frame", Region{X: 0, Y: 0, W: 1, H: 1}, false},
		{"negative x", Region{X: -0.1, Y: 0, W: 0.5, H: 0.5}, true},
		{"overflow width", Region{X: 0.6, Y: 0, W: 0.5, H: 0.5}, true},
		{"overflow height", Region{X: 0, Y: 0.9, W: 0.1, H: 0.2}, true},
		{"empty", Region{X: 0.1, Y: 0.1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.region.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegionPixels(t *testing.T) {
	r := Region{X: 0.5, Y: 0.25, W: 0.25, H: 0.5}
	got := r.Pixels(200, 100)
	want := image.Rect(100, 25, 150, 75)
	if got != want {
		t.Errorf("Pixels = %v, want %v", got, want)
	}
}
