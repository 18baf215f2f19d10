package control

import "fmt"

// Breakpoint is one (operating point, value) pair in a gain table.
type Breakpoint struct {
	X float64
	Y float64
}

// Table is an ordered piecewise-linear lookup. The independent variable is
// typically vehicle speed; lookups outside the breakpoint range clamp to the
// endpoint values.
type Table struct {
	xs []float64
	ys []float64
}

// NewTable builds a Table from ordered breakpoints. Breakpoints must be
// strictly increasing in X.
func NewTable(points []Breakpoint) (Table, error) {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		if i > 0 && p.X <= points[i-1].X {
			return Table{}, fmt.Errorf("breakpoints not strictly increasing at index %d (%v <= %v)", i, p.X, points[i-1].X)
		}
		xs[i] = p.X
		ys[i] = p.Y
	}
	return Table{xs: xs, ys: ys}, nil
}

// Constant returns a single-entry table that yields v at every operating point.
func Constant(v float64) Table {
	return Table{xs: []float64{0}, ys: []float64{v}}
}

// Interp evaluates the table at x. An empty table yields 0.
func (t Table) Interp(x float64) float64 {
	return interpPoints(x, t.xs, t.ys)
}

// Empty reports whether the table holds no breakpoints.
func (t Table) Empty() bool {
	return len(t.xs) == 0
}

// interpPoints is clamped linear interpolation over parallel slices.
// xs must be increasing; the slices must be the same length.
func interpPoints(x float64, xs, ys []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	if x <= xs[0] {
		return ys[0]
	}
	last := len(xs) - 1
	if x >= xs[last] {
		return ys[last]
	}
	for i := 1; i <= last; i++ {
		if x < xs[i] {
			frac := (x - xs[i-1]) / (xs[i] - xs[i-1])
			return ys[i-1] + frac*(ys[i]-ys[i-1])
		}
	}
	return ys[last]
}
