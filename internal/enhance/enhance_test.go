package enhance

import (
	"errors"
	"image"
	"testing"

	"gocv.io/x/gocv"

	"docscan/internal/config"
	"docscan/internal/scanerr"
	"docscan/internal/testimg"
)

func TestEnhanceShape(t *testing.T) {
	tests := []struct {
		name      string
		img       func() gocv.Mat
		mutate    func(*config.Enhance)
		wantChans int
	}{
		{"color", func() gocv.Mat { return testimg.Gradient(120, 80) }, func(*config.Enhance) {}, 3},
		{"gray", func() gocv.Mat { return testimg.Gray(120, 80, 90) }, func(*config.Enhance) {}, 1},
		{"grayscale output", func() gocv.Mat { return testimg.Gradient(120, 80) }, func(p *config.Enhance) { p.Grayscale = true }, 3},
		{"disabled", func() gocv.Mat { return testimg.Gradient(33, 17) }, func(p *config.Enhance) { p.Disabled = true }, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := tt.img()
			defer img.Close()
			p := config.Default().Enhance
			tt.mutate(&p)

			out, err := Enhance(img, p)
			if err != nil {
				t.Fatalf("Enhance() error = %v", err)
			}
			defer out.Close()

			if out.Cols() != img.Cols() || out.Rows() != img.Rows() {
				t.Errorf("size = %dx%d, want %dx%d", out.Cols(), out.Rows(), img.Cols(), img.Rows())
			}
			if out.Channels() != tt.wantChans {
				t.Errorf("channels = %d, want %d", out.Channels(), tt.wantChans)
			}
		})
	}
}

func TestEnhanceGrayscaleChannelsMatch(t *testing.T) {
	img := testimg.Gradient(64, 64)
	defer img.Close()
	p := config.Default().Enhance
	p.Grayscale = true

	out, err := Enhance(img, p)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	for _, pt := range []image.Point{{0, 0}, {32, 20}, {63, 63}} {
		b := out.GetUCharAt(pt.Y, pt.X*3)
		g := out.GetUCharAt(pt.Y, pt.X*3+1)
		r := out.GetUCharAt(pt.Y, pt.X*3+2)
		if b != g || g != r {
			t.Errorf("pixel %v = (%d,%d,%d), want equal channels", pt, b, g, r)
		}
	}
}

func TestEnhanceKeepsFlatPageFlat(t *testing.T) {
	img := testimg.Gray(160, 160, 120)
	defer img.Close()

	out, err := Enhance(img, config.Default().Enhance)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	lo, hi, _, _ := gocv.MinMaxLoc(out)
	if lo != hi {
		t.Errorf("flat page became %v..%v", lo, hi)
	}
}

func TestEnhanceInvalid(t *testing.T) {
	tests := []struct {
		name string
		img  func() gocv.Mat
	}{
		{"4 channels", func() gocv.Mat { return gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC4) }},
		{"float color", func() gocv.Mat { return gocv.NewMatWithSize(8, 8, gocv.MatTypeCV32FC3) }},
		{"16-bit gray", func() gocv.Mat { return gocv.NewMatWithSize(8, 8, gocv.MatTypeCV16UC1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := tt.img()
			defer img.Close()
			if _, err := Enhance(img, config.Default().Enhance); !errors.Is(err, scanerr.ErrInvalidImage) {
				t.Errorf("Enhance() error = %v, want ErrInvalidImage", err)
			}
		})
	}
}
