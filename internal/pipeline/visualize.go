package pipeline

import (
	"image/color"

	"gocv.io/x/gocv"

	"docscan/internal/config"
	"docscan/internal/geom"
	"docscan/internal/scanerr"
)

// boundaryColor is the overlay green.
var boundaryColor = color.RGBA{0, 255, 0, 255}

// Visualize returns a BGR copy of img with the corners joined by line
// segments and marked with filled circles.
func Visualize(img gocv.Mat, c geom.OrderedCorners, v config.Visualize) (gocv.Mat, error) {
	out := gocv.NewMat()
	var err error
	if img.Channels() == 1 {
		err = gocv.CvtColor(img, &out, gocv.ColorGrayToBGR)
	} else {
		err = img.CopyTo(&out)
	}
	if err != nil {
		out.Close()
		return gocv.Mat{}, scanerr.Invalidf("copy for overlay: %v", err)
	}

	points := c.ImagePoints()
	for i := 0; i < len(points); i++ {
		start := points[i]
		end := points[(i+1)%len(points)]
		if err := gocv.Line(&out, start, end, boundaryColor, v.Thickness); err != nil {
			out.Close()
			return gocv.Mat{}, scanerr.Invalidf("draw boundary: %v", err)
		}
	}
	if v.PointRadius > 0 {
		for _, pt := range points {
			if err := gocv.Circle(&out, pt, v.PointRadius, boundaryColor, -1); err != nil {
				out.Close()
				return gocv.Mat{}, scanerr.Invalidf("draw corner: %v", err)
			}
		}
	}
	return out, nil
}
