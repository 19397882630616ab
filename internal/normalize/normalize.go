// Package normalize holds the pure numeric helpers behind the node view:
// coordinate normalization, size interpolation and percentile ranking.
package normalize

import (
	"fmt"
	"math"
	"strings"
)

// Point is a 2D coordinate. After NormalizeCoordinates both fields lie in [0,1].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Range is a closed numeric interval.
type Range struct {
	Min float64 `json:"min" koanf:"min" yaml:"min"`
	Max float64 `json:"max" koanf:"max" yaml:"max"`
}

// DegenerateAxisValue is assigned to every point on an axis whose values are all equal.
const DegenerateAxisValue = 0.5

// NormalizeCoordinates maps each axis linearly onto [0,1] using the batch min
// and max. An axis with zero range is centred at DegenerateAxisValue.
func NormalizeCoordinates(points []Point) []Point {
	out := make([]Point, len(points))
	if len(points) == 0 {
		return out
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	minX, maxX, _ := MinMax(xs)
	minY, maxY, _ := MinMax(ys)

	for i, p := range points {
		out[i] = Point{
			X: scaleUnit(p.X, minX, maxX),
			Y: scaleUnit(p.Y, minY, maxY),
		}
	}
	return out
}

func scaleUnit(v, lo, hi float64) float64 {
	width := hi - lo
	if width == 0 || math.IsNaN(width) || math.IsInf(width, 0) {
		return DegenerateAxisValue
	}
	return (v - lo) / width
}

// MinMax returns the smallest and largest of values; ok is false when values is empty.
func MinMax(values []float64) (lo, hi float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, true
}

// InterpolateSize maps value from valueRange onto sizeRange linearly. Values
// outside valueRange extrapolate; callers clamp first when they need containment.
// A zero-width valueRange yields sizeRange.Min.
func InterpolateSize(value float64, valueRange, sizeRange Range) float64 {
	span := valueRange.Max - valueRange.Min
	if span == 0 {
		return sizeRange.Min
	}
	return (value-valueRange.Min)/span*(sizeRange.Max-sizeRange.Min) + sizeRange.Min
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Direction says which end of a metric's scale is preferable.
type Direction string

const (
	Low  Direction = "low"
	High Direction = "high"
	Zero Direction = "zero"
)

// ParseDirection accepts "low", "high" or "zero" in any case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Low, High, Zero:
		return d, nil
	}
	return "", fmt.Errorf("invalid rank direction %q: must be one of low, high, zero", s)
}

// EmptyPopulationRank is the rank reported against an empty population: the
// value is neither better nor worse than anything, so it sits in the middle.
const EmptyPopulationRank = 0.5

// PercentileRank returns the fraction of population beaten by value. 1 is the
// best in the population, 0 the worst. For High a member is beaten when it is
// strictly smaller, for Low when strictly larger, and for Zero when it is
// strictly further from zero.
func PercentileRank(value float64, population []float64, dir Direction) float64 {
	if len(population) == 0 {
		return EmptyPopulationRank
	}

	beaten := 0
	for _, p := range population {
		switch dir {
		case High:
			if p < value {
				beaten++
			}
		case Low:
			if p > value {
				beaten++
			}
		case Zero:
			if math.Abs(p) > math.Abs(value) {
				beaten++
			}
		default:
			panic(fmt.Sprintf("normalize: unhandled direction %q", string(dir)))
		}
	}
	return float64(beaten) / float64(len(population))
}

// FormatRankLabel renders a rank as "Top N%" (rank >= 0.5) or "Bottom N%".
// NaN is treated as EmptyPopulationRank.
func FormatRankLabel(rank float64) string {
	if math.IsNaN(rank) {
		rank = EmptyPopulationRank
	}
	rank = Clamp(rank, 0, 1)
	if rank >= 0.5 {
		return fmt.Sprintf("Top %d%%", int(math.Round((1-rank)*100)))
	}
	// rank*100 picks up float noise (0.07*100 = 7.000000000000001).
	return fmt.Sprintf("Bottom %d%%", int(math.Ceil(rank*100-1e-9)))
}
