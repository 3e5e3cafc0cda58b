// Package fallback estimates a document boundary when no clean four sided
// contour was found. It always produces corners.
package fallback

import (
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"docscan/internal/config"
	"docscan/internal/geom"
)

// Method names the tier that produced an Estimate.
type Method string

const (
	MethodLines      Method = "lines"
	MethodContourBox Method = "contour-box"
	MethodMargin     Method = "margin"
)

// Estimate is a fallback boundary.
type Estimate struct {
	Corners geom.OrderedCorners
	Method  Method
}

// clampSlack is how far outside the image, as a share of the short side,
// a line intersection may land before the estimate is discarded.
const clampSlack = 0.02

// clusterGap is the largest offset step, as a share of the short side,
// between lines treated as the same edge.
const clusterGap = 0.01

// Locator runs the fallback tiers in order: Hough lines, the rotated box of
// the largest contour, then the inset image rectangle.
type Locator struct {
	Params config.Fallback
	Log    zerolog.Logger
}

// New returns a Locator using p.
func New(p config.Fallback, log zerolog.Logger) *Locator {
	return &Locator{Params: p, Log: log}
}

// Locate estimates the document corners from the binary edge map.
func (l *Locator) Locate(edges gocv.Mat) Estimate {
	w, h := edges.Cols(), edges.Rows()

	if c, ok := l.fromLines(edges); ok {
		l.Log.Debug().Stringer("corners", c).Msg("fallback: line intersections")
		return Estimate{Corners: c, Method: MethodLines}
	}
	if l.Params.UseContourBox {
		if c, ok := l.fromContourBox(edges); ok {
			l.Log.Debug().Stringer("corners", c).Msg("fallback: contour box")
			return Estimate{Corners: c, Method: MethodContourBox}
		}
	}

	c := Margin(w, h, l.Params.MarginFraction)
	l.Log.Debug().Stringer("corners", c).Msg("fallback: inset margin")
	return Estimate{Corners: c, Method: MethodMargin}
}

// Margin returns the w x h image rectangle inset by fraction of its short
// side on every edge.
func Margin(w, h int, fraction float64) geom.OrderedCorners {
	inset := math.Floor(float64(min(w, h)) * fraction)
	return geom.InsetRect(w, h, inset)
}

// Line is a Hough line x*cos(Theta) + y*sin(Theta) = Rho. Rank orders lines
// by accumulator votes, 0 being the strongest.
type Line struct {
	Rho, Theta float64
	Rank       int
}

// Intersect returns the crossing point of a and b, false when parallel.
func Intersect(a, b Line) (geom.Point, bool) {
	ca, sa := math.Cos(a.Theta), math.Sin(a.Theta)
	cb, sb := math.Cos(b.Theta), math.Sin(b.Theta)
	det := ca*sb - sa*cb
	if math.Abs(det) < 1e-6 {
		return geom.Point{}, false
	}
	x := (a.Rho*sb - b.Rho*sa) / det
	y := (ca*b.Rho - cb*a.Rho) / det
	return geom.Pt(x, y), true
}

// alignTo flips l to the (rho, theta) representation whose angle is within
// a quarter turn of ref, so offsets of near parallel lines are comparable.
func alignTo(l Line, ref float64) Line {
	for l.Theta-ref > math.Pi/2 {
		l = Line{Rho: -l.Rho, Theta: l.Theta - math.Pi, Rank: l.Rank}
	}
	for ref-l.Theta > math.Pi/2 {
		l = Line{Rho: -l.Rho, Theta: l.Theta + math.Pi, Rank: l.Rank}
	}
	return l
}

// axialDistance is the angle between two undirected lines, in [0, pi/2].
func axialDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), math.Pi)
	return math.Min(d, math.Pi-d)
}

// DominantAngle returns the orientation, modulo a quarter turn, shared by
// most of the lines. Angles are quadrupled so that perpendicular lines vote
// together, averaged on the circle and divided back.
func DominantAngle(lines []Line) float64 {
	quad := make([]float64, len(lines))
	for i, l := range lines {
		quad[i] = 4 * l.Theta
	}
	return stat.CircularMean(quad, nil) / 4
}

// Group splits lines into those near the dominant orientation and those
// near its perpendicular, discarding the rest. Each line is aligned to its
// group's reference angle.
func Group(lines []Line, tolerance float64) (a, b []Line, refA, refB float64) {
	refA = DominantAngle(lines)
	refB = refA + math.Pi/2
	for _, l := range lines {
		switch {
		case axialDistance(l.Theta, refA) <= tolerance:
			a = append(a, alignTo(l, refA))
		case axialDistance(l.Theta, refB) <= tolerance:
			b = append(b, alignTo(l, refB))
		}
	}
	return a, b, refA, refB
}

// Representatives collapses runs of lines whose offsets differ by at most
// gap into the strongest line of each run, sorted by offset. A thick or
// slightly curved page edge yields many such near duplicates.
func Representatives(lines []Line, gap float64) []Line {
	if len(lines) == 0 {
		return nil
	}
	sorted := append([]Line(nil), lines...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rho < sorted[j].Rho })

	out := []Line{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		cur, last := sorted[i], &out[len(out)-1]
		if cur.Rho-sorted[i-1].Rho > gap {
			out = append(out, cur)
			continue
		}
		if cur.Rank < last.Rank {
			*last = cur
		}
	}
	return out
}

func (l *Locator) fromLines(edges gocv.Mat) (geom.OrderedCorners, bool) {
	p := l.Params
	w, h := edges.Cols(), edges.Rows()

	lines, err := houghLines(edges, p.HoughThreshold, p.MaxLines)
	if err != nil {
		l.Log.Debug().Err(err).Msg("fallback: hough transform failed")
		return geom.OrderedCorners{}, false
	}
	if len(lines) < 4 {
		l.Log.Debug().Int("lines", len(lines)).Msg("fallback: too few lines")
		return geom.OrderedCorners{}, false
	}

	tolerance := p.AngleToleranceDeg * math.Pi / 180
	groupA, groupB, _, _ := Group(lines, tolerance)
	if len(groupA) < 2 || len(groupB) < 2 {
		l.Log.Debug().Int("a", len(groupA)).Int("b", len(groupB)).Msg("fallback: lines lack two orientations")
		return geom.OrderedCorners{}, false
	}

	short := float64(min(w, h))
	gap := math.Max(clusterGap*short, 3)
	repA, repB := Representatives(groupA, gap), Representatives(groupB, gap)
	if len(repA) < 2 || len(repB) < 2 {
		l.Log.Debug().Int("a", len(repA)).Int("b", len(repB)).Msg("fallback: a single edge per orientation")
		return geom.OrderedCorners{}, false
	}
	a0, a1 := repA[0], repA[len(repA)-1]
	b0, b1 := repB[0], repB[len(repB)-1]
	if a1.Rho-a0.Rho < p.MinLineSeparation*short || b1.Rho-b0.Rho < p.MinLineSeparation*short {
		l.Log.Debug().
			Float64("spread_a", a1.Rho-a0.Rho).
			Float64("spread_b", b1.Rho-b0.Rho).
			Msg("fallback: outer lines too close")
		return geom.OrderedCorners{}, false
	}

	var quad geom.Quad
	for i, pair := range [4][2]Line{{a0, b0}, {a0, b1}, {a1, b1}, {a1, b0}} {
		pt, ok := Intersect(pair[0], pair[1])
		if !ok {
			return geom.OrderedCorners{}, false
		}
		slack := clampSlack * short
		if pt.X < -slack || pt.Y < -slack || pt.X > float64(w)+slack || pt.Y > float64(h)+slack {
			l.Log.Debug().Stringer("point", pt).Msg("fallback: intersection outside image")
			return geom.OrderedCorners{}, false
		}
		quad[i] = pt
	}

	corners := geom.Order(quad).Clamp(w, h)
	return corners, acceptable(corners, w, h, p.MinAreaFraction)
}

// houghLines runs the standard Hough transform and keeps the strongest
// limit lines.
func houghLines(edges gocv.Mat, threshold, limit int) ([]Line, error) {
	mat := gocv.NewMat()
	defer mat.Close()
	if err := gocv.HoughLines(edges, &mat, 1, math.Pi/180, threshold); err != nil {
		return nil, err
	}

	n := min(mat.Rows(), limit)
	lines := make([]Line, 0, n)
	for i := 0; i < n; i++ {
		v := mat.GetVecfAt(i, 0)
		if len(v) < 2 {
			continue
		}
		lines = append(lines, Line{Rho: float64(v[0]), Theta: float64(v[1]), Rank: i})
	}
	return lines, nil
}

// fromContourBox fits the minimum area rotated rectangle around the
// largest edge contour.
func (l *Locator) fromContourBox(edges gocv.Mat) (geom.OrderedCorners, bool) {
	w, h := edges.Cols(), edges.Rows()
	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var (
		largestArea float64
		largest     = -1
	)
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area > largestArea {
			largestArea = area
			largest = i
		}
	}
	if largest < 0 {
		return geom.OrderedCorners{}, false
	}

	rect := gocv.MinAreaRect(contours.At(largest))
	box := geom.RotatedCorners(
		geom.Pt(float64(rect.Center.X), float64(rect.Center.Y)),
		float64(rect.Width), float64(rect.Height), rect.Angle)
	corners := geom.Order(box).Clamp(w, h)

	l.Log.Debug().
		Float64("contour_area", largestArea).
		Float64("box_area", corners.Quad().Area()).
		Msg("fallback: largest contour box")
	return corners, acceptable(corners, w, h, l.Params.MinAreaFraction)
}

func acceptable(c geom.OrderedCorners, w, h int, minFraction float64) bool {
	q := c.Quad()
	return q.IsConvex() && !q.HasCollinear() && q.Area() >= minFraction*float64(w*h)
}
