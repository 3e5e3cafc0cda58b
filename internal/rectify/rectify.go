// Package rectify removes perspective distortion by warping a labeled
// quadrilateral onto an upright rectangle.
package rectify

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"docscan/internal/config"
	"docscan/internal/edgemap"
	"docscan/internal/geom"
	"docscan/internal/scanerr"
)

// TargetSize returns the output rectangle for c: the longer of each pair of
// opposite edges, so a skewed capture is not shrunk. maxSide, when
// positive, scales the rectangle down uniformly to fit.
func TargetSize(c geom.OrderedCorners, maxSide int) (w, h int) {
	fw, fh := c.Width(), c.Height()
	if maxSide > 0 {
		if longest := math.Max(fw, fh); longest > float64(maxSide) {
			scale := float64(maxSide) / longest
			fw, fh = fw*scale, fh*scale
		}
	}
	return int(math.Round(fw)), int(math.Round(fh))
}

// Rectify resamples the region of src bounded by c into a w x h image with
// bilinear interpolation. The corners map to (0,0), (w,0), (w,h) and (0,h),
// so rectifying an image with its own bounds returns it unchanged.
func Rectify(src gocv.Mat, c geom.OrderedCorners, p config.Rectify) (gocv.Mat, error) {
	if err := edgemap.Validate(src); err != nil {
		return gocv.Mat{}, err
	}
	if c.Quad().HasCollinear() {
		return gocv.Mat{}, scanerr.Degeneratef("three of the corners %v are collinear", c)
	}
	w, h := TargetSize(c, p.MaxSide)
	if w < 1 || h < 1 {
		return gocv.Mat{}, scanerr.Degeneratef("target size %dx%d for corners %v", w, h, c)
	}

	srcPts := gocv.NewPoint2fVectorFromPoints(point2f(c))
	defer srcPts.Close()
	dstPts := gocv.NewPoint2fVectorFromPoints(point2f(geom.Rect(0, 0, float64(w), float64(h))))
	defer dstPts.Close()

	m := gocv.GetPerspectiveTransform2f(srcPts, dstPts)
	defer m.Close()
	if m.Empty() {
		return gocv.Mat{}, scanerr.Degeneratef("no perspective transform for corners %v", c)
	}

	border, fill := gocv.BorderReplicate, color.RGBA{}
	if p.Border == config.BorderWhite {
		border, fill = gocv.BorderConstant, color.RGBA{255, 255, 255, 255}
	}

	dst := gocv.NewMat()
	if err := gocv.WarpPerspectiveWithParams(src, &dst, m, image.Pt(w, h), gocv.InterpolationLinear, border, fill); err != nil {
		dst.Close()
		return gocv.Mat{}, scanerr.Invalidf("warp perspective: %v", err)
	}
	return dst, nil
}

func point2f(c geom.OrderedCorners) []gocv.Point2f {
	q := c.Quad()
	pts := make([]gocv.Point2f, len(q))
	for i, p := range q {
		pts[i] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
	}
	return pts
}
