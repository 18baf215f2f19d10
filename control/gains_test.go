package control

import (
	"math"
	"testing"
)

func mustTable(t *testing.T, points []Breakpoint) Table {
	t.Helper()
	tbl, err := NewTable(points)
	if err != nil {
		t.Fatalf("NewTable() error: %v", err)
	}
	return tbl
}

func TestNewTable_RejectsNonMonotonic(t *testing.T) {
	cases := []struct {
		name   string
		points []Breakpoint
	}{
		{"decreasing", []Breakpoint{{X: 0, Y: 1}, {X: -1, Y: 2}}},
		{"duplicate", []Breakpoint{{X: 0, Y: 1}, {X: 0, Y: 2}}},
		{"middle", []Breakpoint{{X: 0, Y: 1}, {X: 5, Y: 2}, {X: 3, Y: 3}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTable(tc.points); err == nil {
				t.Fatalf("expected error for %v", tc.points)
			}
		})
	}
}

func TestTableInterp(t *testing.T) {
	tbl := mustTable(t, []Breakpoint{{X: 0, Y: 1.0}, {X: 10, Y: 2.0}, {X: 30, Y: 4.0}})

	cases := []struct {
		x    float64
		want float64
	}{
		{-5, 1.0}, // clamp below
		{0, 1.0},
		{5, 1.5},
		{10, 2.0},
		{20, 3.0},
		{30, 4.0},
		{50, 4.0}, // clamp above
	}
	for _, tc := range cases {
		if got := tbl.Interp(tc.x); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("Interp(%v)=%v want %v", tc.x, got, tc.want)
		}
	}
}

func TestConstantTable(t *testing.T) {
	tbl := Constant(0.7)
	for _, x := range []float64{-100, 0, 42} {
		if got := tbl.Interp(x); got != 0.7 {
			t.Errorf("Constant.Interp(%v)=%v want 0.7", x, got)
		}
	}
}

func TestEmptyTableYieldsZero(t *testing.T) {
	var tbl Table
	if !tbl.Empty() {
		t.Fatal("zero table should be empty")
	}
	if got := tbl.Interp(3); got != 0 {
		t.Fatalf("empty Interp=%v want 0", got)
	}
}
