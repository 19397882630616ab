// Package palette provides the colours used to encode topics and ranks.
package palette

import (
	"fmt"
	"math"
	"strconv"
)

// Color is an 8-bit RGB colour.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// CSS renders the colour as an rgb() string.
func (c Color) CSS() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// UnknownTopicID identifies the catch-all topic.
const UnknownTopicID = -1

var topicColors = map[int]Color{
	-1: {148, 163, 184},
	0:  {219, 39, 119},
	1:  {234, 88, 12},
	2:  {202, 138, 4},
	3:  {192, 38, 211},
	4:  {5, 150, 105},
	5:  {8, 145, 178},
	6:  {37, 99, 235},
	7:  {124, 58, 237},
	8:  {220, 38, 38},
	9:  {101, 163, 13},
}

// TopicColor returns the colour for a topic id; ids outside the palette cycle
// through the ten topic colours, and negative ids get the unknown grey.
func TopicColor(id int) Color {
	if c, ok := topicColors[id]; ok {
		return c
	}
	if id < 0 {
		return topicColors[UnknownTopicID]
	}
	return topicColors[id%10]
}

// TopicColorKey parses a string topic id as stored in legacy rows.
func TopicColorKey(id string) Color {
	n, err := strconv.Atoi(id)
	if err != nil {
		return topicColors[UnknownTopicID]
	}
	return TopicColor(n)
}

// Ramp is a piecewise-linear colour scale: Colors[i] sits at Boundaries[i].
type Ramp struct {
	Colors     []Color
	Boundaries []float64
}

// RankRamp goes from red (worst) through white to green (best).
var RankRamp = Ramp{
	Colors: []Color{
		{255, 0, 105},
		{255, 255, 255},
		{0, 255, 0},
	},
	Boundaries: []float64{0, 0.5, 1},
}

// At returns the interpolated colour for value. Values beyond the outer
// boundaries take the end colours.
func (r Ramp) At(value float64) Color {
	n := len(r.Colors)
	if n == 0 || len(r.Boundaries) != n {
		return Color{}
	}
	if n == 1 || math.IsNaN(value) || value <= r.Boundaries[0] {
		return r.Colors[0]
	}
	if value >= r.Boundaries[n-1] {
		return r.Colors[n-1]
	}
	i := 1
	for i < n-1 && r.Boundaries[i] < value {
		i++
	}
	lo, hi := r.Boundaries[i-1], r.Boundaries[i]
	return Interpolate(r.Colors[i-1], r.Colors[i], (value-lo)/(hi-lo))
}

// Interpolate blends from a to b; t is clamped to [0,1].
func Interpolate(a, b Color, t float64) Color {
	t = math.Max(0, math.Min(1, t))
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B)}
}
