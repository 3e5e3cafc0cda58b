// Package detect searches an edge map for the four sided outline of a
// document.
package detect

import (
	"sort"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"docscan/internal/config"
	"docscan/internal/geom"
)

// Candidate is a traced contour that passed the area filter.
type Candidate struct {
	Index int     // position in the FindContours result
	Area  float64 // enclosed contour area in pixels
}

// Detector finds the document quadrilateral. The zero value logs nothing.
type Detector struct {
	Params config.Detect
	Log    zerolog.Logger
}

// New returns a Detector using p.
func New(p config.Detect, log zerolog.Logger) *Detector {
	return &Detector{Params: p, Log: log}
}

// Detect returns the ordered corners of the largest acceptable quadrilateral
// in edges, an 8-bit binary map, and false when there is none. imageArea is
// the pixel area of the photo the map was built from.
func (d *Detector) Detect(edges gocv.Mat, imageArea float64) (geom.OrderedCorners, bool) {
	p := d.Params
	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	candidates := Rank(contours, imageArea, p)
	d.Log.Debug().
		Int("contours", contours.Size()).
		Int("candidates", len(candidates)).
		Msg("traced contours")

	for _, c := range candidates {
		contour := contours.At(c.Index)
		epsilon := p.ApproxEpsilon * gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, epsilon, true)
		pts := approx.ToPoints()
		approx.Close()

		quad, ok := geom.QuadFromImagePoints(pts)
		if !ok {
			d.Log.Debug().Float64("area", c.Area).Int("vertices", len(pts)).Msg("rejected: not four sided")
			continue
		}
		if reason := reject(quad, imageArea, p); reason != "" {
			d.Log.Debug().Float64("area", c.Area).Str("reason", reason).Msg("rejected quadrilateral")
			continue
		}

		corners := geom.Order(quad)
		d.Log.Debug().Float64("area", c.Area).Stringer("corners", corners).Msg("document outline found")
		return corners, true
	}
	return geom.OrderedCorners{}, false
}

// Rank keeps the contours whose area lies between the configured fractions
// of imageArea and returns at most MaxCandidates of them, largest first.
func Rank(contours gocv.PointsVector, imageArea float64, p config.Detect) []Candidate {
	minArea := p.MinAreaFraction * imageArea
	maxArea := p.MaxAreaFraction * imageArea

	var out []Candidate
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area < minArea || area > maxArea {
			continue
		}
		out = append(out, Candidate{Index: i, Area: area})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Area > out[j].Area })
	if len(out) > p.MaxCandidates {
		out = out[:p.MaxCandidates]
	}
	return out
}

// reject explains why quad cannot be a document outline, or returns "".
func reject(quad geom.Quad, imageArea float64, p config.Detect) string {
	switch {
	case !quad.IsConvex():
		return "not convex"
	case !quad.IsSimple():
		return "self intersecting"
	case quad.Area() < p.MinAreaFraction*imageArea:
		return "too small"
	case quad.MinAngle() < p.MinAngleDeg:
		return "sliver"
	}
	return ""
}
