package fallback

import (
	"image"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"docscan/internal/config"
	"docscan/internal/geom"
	"docscan/internal/testimg"
)

func near(a, b geom.OrderedCorners, tol float64) bool {
	return a.TL.Dist(b.TL) <= tol && a.TR.Dist(b.TR) <= tol && a.BR.Dist(b.BR) <= tol && a.BL.Dist(b.BL) <= tol
}

func TestLocateBlankUsesMargin(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		margin float64
		want   geom.OrderedCorners
	}{
		{"default margin", 400, 300, 0.025, geom.Rect(7, 7, 393, 293)},
		{"square", 1000, 1000, 0.025, geom.Rect(25, 25, 975, 975)},
		{"no margin", 64, 32, 0, geom.Rect(0, 0, 64, 32)},
		{"tiny image", 3, 3, 0.4, geom.Rect(1, 1, 2, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edges := testimg.Gray(tt.w, tt.h, 0)
			defer edges.Close()

			p := config.Default().Fallback
			p.MarginFraction = tt.margin
			got := New(p, zerolog.Nop()).Locate(edges)
			if got.Method != MethodMargin {
				t.Errorf("Method = %q, want %q", got.Method, MethodMargin)
			}
			if got.Corners != tt.want {
				t.Errorf("Corners = %v, want %v", got.Corners, tt.want)
			}
			if got.Corners.Width() <= 0 || got.Corners.Height() <= 0 {
				t.Errorf("degenerate margin rectangle %v", got.Corners)
			}
		})
	}
}

func TestLocateFromLines(t *testing.T) {
	edges := testimg.Gray(1000, 1000, 0)
	defer edges.Close()
	for _, seg := range [][2]image.Point{
		{{200, 0}, {200, 999}},
		{{800, 0}, {800, 999}},
		{{0, 150}, {999, 150}},
		{{0, 850}, {999, 850}},
	} {
		gocv.Line(&edges, seg[0], seg[1], testimg.White, 2)
	}

	got := New(config.Default().Fallback, zerolog.Nop()).Locate(edges)
	if got.Method != MethodLines {
		t.Fatalf("Method = %q, want %q", got.Method, MethodLines)
	}
	want := geom.Rect(200, 150, 800, 850)
	if !near(got.Corners, want, 4) {
		t.Errorf("Corners = %v, want about %v", got.Corners, want)
	}
}

func TestLocateFromContourBox(t *testing.T) {
	edges := testimg.Gray(1000, 1000, 0)
	defer edges.Close()
	gocv.Ellipse(&edges, image.Pt(500, 500), image.Pt(350, 150), 0, 0, 360, testimg.White, 1)

	got := New(config.Default().Fallback, zerolog.Nop()).Locate(edges)
	if got.Method != MethodContourBox {
		t.Fatalf("Method = %q, want %q", got.Method, MethodContourBox)
	}
	want := geom.Rect(150, 350, 850, 650)
	if !near(got.Corners, want, 5) {
		t.Errorf("Corners = %v, want about %v", got.Corners, want)
	}

	p := config.Default().Fallback
	p.UseContourBox = false
	if m := New(p, zerolog.Nop()).Locate(edges).Method; m != MethodMargin {
		t.Errorf("with contour box disabled Method = %q, want %q", m, MethodMargin)
	}
}

func TestIntersect(t *testing.T) {
	vertical := Line{Rho: 200, Theta: 0}
	horizontal := Line{Rho: 150, Theta: math.Pi / 2}
	pt, ok := Intersect(vertical, horizontal)
	if !ok {
		t.Fatal("Intersect() reported parallel lines")
	}
	if pt.Dist(geom.Pt(200, 150)) > 1e-9 {
		t.Errorf("Intersect() = %v, want (200,150)", pt)
	}
	if _, ok := Intersect(vertical, Line{Rho: 300, Theta: 0}); ok {
		t.Error("Intersect() of parallel lines should fail")
	}
}

func TestGroupAlignsFlippedLines(t *testing.T) {
	lines := []Line{
		{Rho: 200, Theta: 0},
		{Rho: -800, Theta: math.Pi - 0.01},
		{Rho: 150, Theta: math.Pi / 2},
		{Rho: 850, Theta: math.Pi/2 + 0.01},
		{Rho: 10, Theta: math.Pi / 4},
	}
	a, b, _, _ := Group(lines, 20*math.Pi/180)
	if len(a)+len(b) != 4 {
		t.Fatalf("grouped %d and %d lines, want 4 in total", len(a), len(b))
	}
	vertical := a
	if math.Abs(a[0].Theta-math.Pi/2) < math.Pi/4 {
		vertical = b
	}
	for _, l := range vertical {
		if l.Rho < 0 {
			t.Errorf("vertical line %+v not aligned to a positive offset", l)
		}
	}
}

func TestRepresentatives(t *testing.T) {
	lines := []Line{
		{Rho: 201, Rank: 3},
		{Rho: 200, Rank: 0},
		{Rho: 199, Rank: 5},
		{Rho: 800, Rank: 1},
		{Rho: 803, Rank: 2},
	}
	got := Representatives(lines, 5)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Rank != 0 || got[1].Rank != 1 {
		t.Errorf("representatives = %+v, want the strongest of each run", got)
	}
}
