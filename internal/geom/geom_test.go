package geom

import (
	"math"
	"testing"
)

func TestOrder(t *testing.T) {
	tests := []struct {
		name string
		in   Quad
		want OrderedCorners
	}{
		{
			name: "skewed document",
			in:   Quad{{880, 900}, {100, 100}, {90, 880}, {900, 120}},
			want: OrderedCorners{TL: Pt(100, 100), TR: Pt(900, 120), BR: Pt(880, 900), BL: Pt(90, 880)},
		},
		{
			name: "axis aligned",
			in:   Quad{{0, 10}, {10, 10}, {10, 0}, {0, 0}},
			want: Rect(0, 0, 10, 10),
		},
		{
			name: "diamond falls back to angular order",
			in:   Quad{{50, 100}, {100, 50}, {0, 50}, {50, 0}},
			want: OrderedCorners{TL: Pt(0, 50), TR: Pt(50, 0), BR: Pt(100, 50), BL: Pt(50, 100)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Order(tt.in); got != tt.want {
				t.Errorf("Order() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderIgnoresInputOrderAndIsIdempotent(t *testing.T) {
	base := Quad{{100, 100}, {900, 120}, {880, 900}, {90, 880}}
	want := Order(base)
	perms := [][4]int{
		{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}, {1, 0, 2, 3}, {3, 1, 2, 0},
	}
	for _, p := range perms {
		q := Quad{base[p[0]], base[p[1]], base[p[2]], base[p[3]]}
		if got := Order(q); got != want {
			t.Errorf("Order(%v) = %v, want %v", q, got, want)
		}
	}
	if again := Order(want.Quad()); again != want {
		t.Errorf("Order is not idempotent: %v then %v", want, again)
	}
}

func TestQuadPredicates(t *testing.T) {
	tests := []struct {
		name      string
		q         Quad
		convex    bool
		simple    bool
		collinear bool
		wantArea  float64
	}{
		{"square", Quad{{0, 0}, {10, 0}, {10, 10}, {0, 10}}, true, true, false, 100},
		{"bow tie", Quad{{0, 0}, {10, 10}, {10, 0}, {0, 10}}, false, false, false, 0},
		{"three collinear", Quad{{0, 0}, {50, 0}, {100, 0}, {100, 100}}, false, true, true, 5000},
		{"concave dart", Quad{{0, 0}, {10, 5}, {0, 10}, {3, 5}}, false, true, false, 35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.IsConvex(); got != tt.convex {
				t.Errorf("IsConvex() = %v, want %v", got, tt.convex)
			}
			if got := tt.q.IsSimple(); got != tt.simple {
				t.Errorf("IsSimple() = %v, want %v", got, tt.simple)
			}
			if got := tt.q.HasCollinear(); got != tt.collinear {
				t.Errorf("HasCollinear() = %v, want %v", got, tt.collinear)
			}
			if got := tt.q.Area(); math.Abs(got-tt.wantArea) > 1e-9 {
				t.Errorf("Area() = %v, want %v", got, tt.wantArea)
			}
		})
	}
}

func TestOrderedCornersSize(t *testing.T) {
	c := Order(Quad{{100, 100}, {900, 120}, {880, 900}, {90, 880}})
	if w := c.Width(); math.Abs(w-800.25) > 0.01 {
		t.Errorf("Width() = %v", w)
	}
	if h := c.Height(); math.Abs(h-780.26) > 0.01 {
		t.Errorf("Height() = %v", h)
	}
}

func TestInsetRect(t *testing.T) {
	got := InsetRect(400, 200, 5)
	if want := Rect(5, 5, 395, 195); got != want {
		t.Errorf("InsetRect() = %v, want %v", got, want)
	}
	tiny := InsetRect(2, 2, 10)
	if tiny.Width() <= 0 || tiny.Height() <= 0 {
		t.Errorf("InsetRect() collapsed: %v", tiny)
	}
}

func TestRotatedCorners(t *testing.T) {
	q := RotatedCorners(Pt(50, 50), 20, 10, 0)
	got := Order(q)
	if want := Rect(40, 45, 60, 55); got != want {
		t.Errorf("RotatedCorners() ordered = %v, want %v", got, want)
	}
	if !q.IsConvex() {
		t.Error("rotated box should be convex")
	}
}

func TestMinAngle(t *testing.T) {
	if a := (Quad{{0, 0}, {10, 0}, {10, 10}, {0, 10}}).MinAngle(); math.Abs(a-90) > 1e-9 {
		t.Errorf("MinAngle() = %v, want 90", a)
	}
	sliver := Quad{{0, 0}, {100, 0}, {200, 2}, {100, 2}}
	if a := sliver.MinAngle(); a > 5 {
		t.Errorf("MinAngle() = %v, want a sliver angle", a)
	}
}
