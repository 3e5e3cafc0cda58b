// Package testimg draws the synthetic photos used by the pipeline tests.
package testimg

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	Black = color.RGBA{0, 0, 0, 255}
	White = color.RGBA{255, 255, 255, 255}
)

// Solid returns a w x h BGR image filled with c.
func Solid(w, h int, c color.RGBA) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0), h, w, gocv.MatTypeCV8UC3)
}

// Polygon returns a bg image with the polygon pts filled with fg.
func Polygon(w, h int, pts []image.Point, fg, bg color.RGBA) gocv.Mat {
	img := Solid(w, h, bg)
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer pv.Close()
	if err := gocv.FillPoly(&img, pv, fg); err != nil {
		panic(err)
	}
	return img
}

// Gradient returns a smooth BGR ramp, useful for resampling checks.
func Gradient(w, h int) gocv.Mat {
	img := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetUCharAt(y, x*3+0, uint8(x*255/max(1, w-1)))
			img.SetUCharAt(y, x*3+1, uint8(y*255/max(1, h-1)))
			img.SetUCharAt(y, x*3+2, uint8((x+y)*255/max(1, w+h-2)))
		}
	}
	return img
}

// Gray returns a single channel w x h image filled with v.
func Gray(w, h int, v uint8) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(v), 0, 0, 0), h, w, gocv.MatTypeCV8U)
}

// MeanAbsDiff returns the mean absolute difference over all channels of two
// equally sized images.
func MeanAbsDiff(a, b gocv.Mat) float64 {
	diff := gocv.NewMat()
	defer diff.Close()
	if err := gocv.AbsDiff(a, b, &diff); err != nil {
		panic(err)
	}
	m := diff.Mean()
	switch a.Channels() {
	case 1:
		return m.Val1
	default:
		return (m.Val1 + m.Val2 + m.Val3) / 3
	}
}
