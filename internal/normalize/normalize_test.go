package normalize

import (
	"math"
	"math/rand"
	"sort"
	"testing"
)

func TestNormalizeCoordinatesUnitRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.Intn(30)
		pts := make([]Point, n)
		for i := range pts {
			pts[i] = Point{X: rng.NormFloat64() * 100, Y: rng.Float64()*5 - 40}
		}
		// Guarantee two distinct values per axis.
		pts[0] = Point{X: -1000, Y: -1000}
		pts[1] = Point{X: 1000, Y: 1000}

		out := NormalizeCoordinates(pts)
		xs := make([]float64, n)
		ys := make([]float64, n)
		for i, p := range out {
			xs[i], ys[i] = p.X, p.Y
		}
		for axis, vals := range map[string][]float64{"x": xs, "y": ys} {
			lo, hi, _ := MinMax(vals)
			if lo != 0 || hi != 1 {
				t.Fatalf("trial %d axis %s: min=%v max=%v, want 0 and 1", trial, axis, lo, hi)
			}
		}
	}
}

func TestNormalizeCoordinatesDegenerateAxis(t *testing.T) {
	out := NormalizeCoordinates([]Point{{X: 3, Y: 1}, {X: 3, Y: 5}, {X: 3, Y: 3}})
	for i, p := range out {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			t.Fatalf("point %d is NaN: %+v", i, p)
		}
		if p.X != DegenerateAxisValue {
			t.Errorf("point %d X = %v, want %v", i, p.X, DegenerateAxisValue)
		}
	}
	if out[0].Y != 0 || out[1].Y != 1 || out[2].Y != 0.5 {
		t.Errorf("Y axis = %v %v %v, want 0 1 0.5", out[0].Y, out[1].Y, out[2].Y)
	}
}

func TestNormalizeCoordinatesEmpty(t *testing.T) {
	if out := NormalizeCoordinates(nil); len(out) != 0 {
		t.Errorf("expected empty output, got %v", out)
	}
}

func TestNormalizeCoordinatesDoesNotMutateInput(t *testing.T) {
	in := []Point{{X: 2, Y: 4}, {X: 6, Y: 8}}
	NormalizeCoordinates(in)
	if in[0] != (Point{X: 2, Y: 4}) || in[1] != (Point{X: 6, Y: 8}) {
		t.Errorf("input mutated: %v", in)
	}
}

func TestMinMax(t *testing.T) {
	lo, hi, ok := MinMax([]float64{3, -2, 9, 4})
	if !ok || lo != -2 || hi != 9 {
		t.Errorf("MinMax = %v %v %v", lo, hi, ok)
	}
	if _, _, ok := MinMax(nil); ok {
		t.Error("MinMax(nil) should report !ok")
	}
}

func TestInterpolateSize(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		vr    Range
		sr    Range
		want  float64
	}{
		{"lower bound", 0, Range{0, 10}, Range{0.3, 1.2}, 0.3},
		{"upper bound", 10, Range{0, 10}, Range{0.3, 1.2}, 1.2},
		{"midpoint", 5, Range{0, 10}, Range{0, 2}, 1},
		{"extrapolates above", 20, Range{0, 10}, Range{0, 1}, 2},
		{"extrapolates below", -10, Range{0, 10}, Range{0, 1}, -1},
		{"zero width range", 4, Range{4, 4}, Range{0.3, 1.2}, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterpolateSize(tt.value, tt.vr, tt.sr)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("InterpolateSize = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPercentileRank(t *testing.T) {
	pop := []float64{-3, -1, 0, 2, 5}
	tests := []struct {
		name  string
		value float64
		dir   Direction
		want  float64
	}{
		{"high best", 10, High, 1},
		{"high worst", -10, High, 0},
		{"high middle", 1, High, 0.6},
		{"high ties not counted", 2, High, 0.6},
		{"low best", -10, Low, 1},
		{"low middle", 1, Low, 0.4},
		{"zero closest", 0, Zero, 0.8},
		{"zero far", -6, Zero, 0},
		{"zero symmetric", 1, Zero, 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentileRank(tt.value, pop, tt.dir)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("PercentileRank(%v, %s) = %v, want %v", tt.value, tt.dir, got, tt.want)
			}
		})
	}
}

func TestPercentileRankEmptyPopulation(t *testing.T) {
	for _, dir := range []Direction{Low, High, Zero} {
		got := PercentileRank(3, nil, dir)
		if got != EmptyPopulationRank {
			t.Errorf("%s: got %v, want %v", dir, got, EmptyPopulationRank)
		}
	}
}

func TestPercentileRankMonotonicHigh(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	pop := make([]float64, 40)
	for i := range pop {
		pop[i] = rng.NormFloat64()
	}
	values := make([]float64, 200)
	for i := range values {
		values[i] = rng.NormFloat64() * 2
	}
	sort.Float64s(values)

	prev := -1.0
	for _, v := range values {
		r := PercentileRank(v, pop, High)
		if r < prev {
			t.Fatalf("rank decreased from %v to %v at value %v", prev, r, v)
		}
		if r < 0 || r > 1 {
			t.Fatalf("rank %v out of [0,1]", r)
		}
		prev = r
	}
}

func TestFormatRankLabel(t *testing.T) {
	tests := []struct {
		rank float64
		want string
	}{
		{0.5, "Top 50%"},
		{1.0, "Top 0%"},
		{0.0, "Bottom 0%"},
		{0.25, "Bottom 25%"},
		{0.07, "Bottom 7%"},
		{0.904, "Top 10%"},
		{0.499, "Bottom 50%"},
		{1.5, "Top 0%"},
		{-0.2, "Bottom 0%"},
		{math.NaN(), "Top 50%"},
	}
	for _, tt := range tests {
		if got := FormatRankLabel(tt.rank); got != tt.want {
			t.Errorf("FormatRankLabel(%v) = %q, want %q", tt.rank, got, tt.want)
		}
	}
}

func TestParseDirection(t *testing.T) {
	for _, s := range []string{"low", "HIGH", " zero "} {
		if _, err := ParseDirection(s); err != nil {
			t.Errorf("ParseDirection(%q): %v", s, err)
		}
	}
	if _, err := ParseDirection("up"); err == nil {
		t.Error("expected error for invalid direction")
	}
}
