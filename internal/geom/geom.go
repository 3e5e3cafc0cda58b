// Package geom holds the immutable point and quadrilateral values used to
// describe a document boundary in image space.
package geom

import (
	"fmt"
	"image"
	"math"
	"sort"
)

// collinearSine is the largest |sin| of the angle between two edges that
// still counts as collinear.
const collinearSine = 1e-3

// Point is a location in image space, x to the right and y down.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Scale multiplies both coordinates by f.
func (p Point) Scale(f float64) Point { return Point{p.X * f, p.Y * f} }

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// ImagePoint rounds p to the nearest pixel.
func (p Point) ImagePoint() image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

func (p Point) String() string {
	return fmt.Sprintf("(%.1f,%.1f)", p.X, p.Y)
}

// cross returns the z component of (b-a) x (c-a).
func cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// Collinear reports whether a, b and c lie on one line, including the case
// where two of them coincide.
func Collinear(a, b, c Point) bool {
	ab, ac := a.Dist(b), a.Dist(c)
	if ab < 1e-9 || ac < 1e-9 || b.Dist(c) < 1e-9 {
		return true
	}
	return math.Abs(cross(a, b, c))/(ab*ac) < collinearSine
}

// Quad is an unlabeled four point polygon, vertices in traversal order.
type Quad [4]Point

// QuadFromImagePoints converts integer contour vertices.
func QuadFromImagePoints(pts []image.Point) (Quad, bool) {
	var q Quad
	if len(pts) != 4 {
		return q, false
	}
	for i, p := range pts {
		q[i] = Point{float64(p.X), float64(p.Y)}
	}
	return q, true
}

// Area is the absolute shoelace area.
func (q Quad) Area() float64 {
	var s float64
	for i := range q {
		j := (i + 1) % 4
		s += q[i].X*q[j].Y - q[j].X*q[i].Y
	}
	return math.Abs(s) / 2
}

// Perimeter is the closed polygon length.
func (q Quad) Perimeter() float64 {
	var s float64
	for i := range q {
		s += q[i].Dist(q[(i+1)%4])
	}
	return s
}

// HasCollinear reports whether any three of the four vertices are collinear.
func (q Quad) HasCollinear() bool {
	for skip := range q {
		var tri []Point
		for i, p := range q {
			if i != skip {
				tri = append(tri, p)
			}
		}
		if Collinear(tri[0], tri[1], tri[2]) {
			return true
		}
	}
	return false
}

// IsConvex reports whether the vertices, in their current order, turn the
// same way at every corner. Degenerate corners are not convex.
func (q Quad) IsConvex() bool {
	var sign float64
	for i := range q {
		c := cross(q[i], q[(i+1)%4], q[(i+2)%4])
		if c == 0 {
			return false
		}
		if sign == 0 {
			sign = c
			continue
		}
		if (c > 0) != (sign > 0) {
			return false
		}
	}
	return true
}

// IsSimple reports whether the polygon has no crossing edges.
func (q Quad) IsSimple() bool {
	return !segmentsCross(q[0], q[1], q[2], q[3]) && !segmentsCross(q[1], q[2], q[3], q[0])
}

func segmentsCross(a, b, c, d Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0) != (d2 > 0)) && ((d3 > 0) != (d4 > 0)) && d1 != 0 && d2 != 0 && d3 != 0 && d4 != 0
}

// MinAngle returns the smallest interior angle in degrees.
func (q Quad) MinAngle() float64 {
	minAngle := 180.0
	for i := range q {
		prev, cur, next := q[(i+3)%4], q[i], q[(i+1)%4]
		u, v := prev.Sub(cur), next.Sub(cur)
		nu, nv := math.Hypot(u.X, u.Y), math.Hypot(v.X, v.Y)
		if nu == 0 || nv == 0 {
			return 0
		}
		cos := (u.X*v.X + u.Y*v.Y) / (nu * nv)
		a := math.Acos(math.Max(-1, math.Min(1, cos))) * 180 / math.Pi
		minAngle = math.Min(minAngle, a)
	}
	return minAngle
}

// OrderedCorners is a quadrilateral labeled by the canonical rule in Order.
// The zero value is not valid; build one with Order or Rect.
type OrderedCorners struct {
	TL, TR, BR, BL Point
}

// Quad returns the corners clockwise from top-left.
func (c OrderedCorners) Quad() Quad {
	return Quad{c.TL, c.TR, c.BR, c.BL}
}

// Width is the longer of the top and bottom edges.
func (c OrderedCorners) Width() float64 {
	return math.Max(c.TL.Dist(c.TR), c.BL.Dist(c.BR))
}

// Height is the longer of the left and right edges.
func (c OrderedCorners) Height() float64 {
	return math.Max(c.TL.Dist(c.BL), c.TR.Dist(c.BR))
}

// ImagePoints returns the rounded corners clockwise from top-left.
func (c OrderedCorners) ImagePoints() []image.Point {
	q := c.Quad()
	pts := make([]image.Point, len(q))
	for i, p := range q {
		pts[i] = p.ImagePoint()
	}
	return pts
}

// Scale multiplies every corner by f, keeping the labels.
func (c OrderedCorners) Scale(f float64) OrderedCorners {
	return OrderedCorners{c.TL.Scale(f), c.TR.Scale(f), c.BR.Scale(f), c.BL.Scale(f)}
}

// Array returns the corners as [x, y] pairs clockwise from top-left.
func (c OrderedCorners) Array() [][2]float64 {
	q := c.Quad()
	out := make([][2]float64, len(q))
	for i, p := range q {
		out[i] = [2]float64{p.X, p.Y}
	}
	return out
}

func (c OrderedCorners) String() string {
	return fmt.Sprintf("tl=%v tr=%v br=%v bl=%v", c.TL, c.TR, c.BR, c.BL)
}

// Order labels the vertices of q. The top-left corner has the smallest x+y
// and the bottom-right the largest; top-right has the smallest y-x and
// bottom-left the largest. Ties go to the lexicographically smaller point so
// the result does not depend on the input order. When the rule assigns one
// vertex to two labels (a square rotated by 45 degrees) the vertices are
// instead taken clockwise around their centroid, starting at top-left.
func Order(q Quad) OrderedCorners {
	sum := func(p Point) float64 { return p.X + p.Y }
	diff := func(p Point) float64 { return p.Y - p.X }

	c := OrderedCorners{
		TL: pick(q, sum, false),
		BR: pick(q, sum, true),
		TR: pick(q, diff, false),
		BL: pick(q, diff, true),
	}
	if c.Quad().isPermutationOf(q) {
		return c
	}
	return orderByAngle(q)
}

func pick(q Quad, key func(Point) float64, largest bool) Point {
	best := q[0]
	for _, p := range q[1:] {
		kb, kp := key(best), key(p)
		switch {
		case largest && kp > kb, !largest && kp < kb:
			best = p
		case kp == kb && less(p, best):
			best = p
		}
	}
	return best
}

func less(a, b Point) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

func (q Quad) isPermutationOf(other Quad) bool {
	a, b := q, other
	sortPoints(a[:])
	sortPoints(b[:])
	return a == b
}

func sortPoints(pts []Point) {
	sort.Slice(pts, func(i, j int) bool { return less(pts[i], pts[j]) })
}

func orderByAngle(q Quad) OrderedCorners {
	var cx, cy float64
	for _, p := range q {
		cx += p.X / 4
		cy += p.Y / 4
	}
	pts := q
	sortPoints(pts[:])
	sort.SliceStable(pts[:], func(i, j int) bool {
		return math.Atan2(pts[i].Y-cy, pts[i].X-cx) < math.Atan2(pts[j].Y-cy, pts[j].X-cx)
	})

	start := 0
	for i, p := range pts {
		s, best := p.X+p.Y, pts[start].X+pts[start].Y
		if s < best || (s == best && less(p, pts[start])) {
			start = i
		}
	}
	return OrderedCorners{
		TL: pts[start],
		TR: pts[(start+1)%4],
		BR: pts[(start+2)%4],
		BL: pts[(start+3)%4],
	}
}

// Rect returns the axis aligned corners of the rectangle spanning x0..x1, y0..y1.
func Rect(x0, y0, x1, y1 float64) OrderedCorners {
	return OrderedCorners{
		TL: Point{x0, y0},
		TR: Point{x1, y0},
		BR: Point{x1, y1},
		BL: Point{x0, y1},
	}
}

// InsetRect returns the w x h image rectangle shrunk by inset pixels on every
// side. The inset is clamped so the rectangle keeps at least one pixel.
func InsetRect(w, h int, inset float64) OrderedCorners {
	maxInset := math.Max(0, (math.Min(float64(w), float64(h))-1)/2)
	inset = math.Max(0, math.Min(inset, maxInset))
	return Rect(inset, inset, float64(w)-inset, float64(h)-inset)
}

// RotatedCorners returns the vertices of a w x h box centred at center and
// rotated by angle degrees.
func RotatedCorners(center Point, w, h, angle float64) Quad {
	cos := math.Cos(angle * math.Pi / 180)
	sin := math.Sin(angle * math.Pi / 180)
	halfW, halfH := w/2, h/2
	cx, cy := center.X, center.Y

	return Quad{
		{cx + halfW*cos - halfH*sin, cy + halfW*sin + halfH*cos},
		{cx - halfW*cos - halfH*sin, cy - halfW*sin + halfH*cos},
		{cx - halfW*cos + halfH*sin, cy - halfW*sin - halfH*cos},
		{cx + halfW*cos + halfH*sin, cy + halfW*sin - halfH*cos},
	}
}

// Clamp moves every corner into the w x h image.
func (c OrderedCorners) Clamp(w, h int) OrderedCorners {
	clamp := func(p Point) Point {
		return Point{
			X: math.Max(0, math.Min(float64(w), p.X)),
			Y: math.Max(0, math.Min(float64(h), p.Y)),
		}
	}
	return OrderedCorners{clamp(c.TL), clamp(c.TR), clamp(c.BR), clamp(c.BL)}
}
