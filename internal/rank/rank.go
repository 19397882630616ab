// Package rank places a node's statistics within the currently loaded
// reference sample and formats the result for display.
package rank

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/neuronview/internal/neurondb"
	"github.com/ziadkadry99/neuronview/internal/normalize"
	"github.com/ziadkadry99/neuronview/internal/palette"
)

// Rank is one metric's standing within a population.
type Rank struct {
	Metric    string              `json:"metric"`
	Title     string              `json:"title"`
	Value     float64             `json:"value"`
	Rank      float64             `json:"rank"`
	Label     string              `json:"label"`
	Direction normalize.Direction `json:"direction"`
	Color     palette.Color       `json:"color"`
}

// RankAndFormat ranks value within population and renders it as "Top N%" or
// "Bottom N%". The colour runs from red (worst) to green (best).
func RankAndFormat(metricName string, value float64, population []float64, dir normalize.Direction) Rank {
	r := normalize.PercentileRank(value, population, dir)
	return Rank{
		Metric:    metricName,
		Value:     value,
		Rank:      r,
		Label:     normalize.FormatRankLabel(r),
		Direction: dir,
		Color:     palette.RankRamp.At(r),
	}
}

// Statistic is a tracked per-neuron quantity and its preferred direction.
type Statistic struct {
	Name      string
	Title     string
	Direction normalize.Direction
	Value     func(*neurondb.NeuronRecord) float64
}

// Statistics lists the quantities shown in the neuron detail panel.
var Statistics = []Statistic{
	{
		Name:      "explanation_ev_correlation_score",
		Title:     "Explanation score",
		Direction: normalize.High,
		Value:     func(n *neurondb.NeuronRecord) float64 { return n.EVCorrelationScore },
	},
	{
		Name:      "activation_mean",
		Title:     "Mean",
		Direction: normalize.High,
		Value:     func(n *neurondb.NeuronRecord) float64 { return n.ActivationMean },
	},
	{
		Name:      "activation_variance",
		Title:     "Variance",
		Direction: normalize.Low,
		Value:     func(n *neurondb.NeuronRecord) float64 { return n.ActivationVariance },
	},
	{
		Name:      "activation_skewness",
		Title:     "Skewness",
		Direction: normalize.Zero,
		Value:     func(n *neurondb.NeuronRecord) float64 { return n.ActivationSkewness },
	},
	{
		Name:      "activation_kurtosis",
		Title:     "Kurtosis",
		Direction: normalize.Zero,
		Value:     func(n *neurondb.NeuronRecord) float64 { return n.ActivationKurtosis },
	},
}

// RankRecord ranks every tracked statistic of rec against sample. rec and
// sample must come from the same population, such as one committed view.
func RankRecord(rec *neurondb.NeuronRecord, sample []*neurondb.NeuronRecord) []Rank {
	out := make([]Rank, 0, len(Statistics))
	pop := make([]float64, len(sample))
	for _, s := range Statistics {
		for i, n := range sample {
			pop[i] = s.Value(n)
		}
		r := RankAndFormat(s.Name, s.Value(rec), pop, s.Direction)
		r.Title = s.Title
		out = append(out, r)
	}
	return out
}

// FormatRanks renders ranks one per line as plain text.
func FormatRanks(ranks []Rank) string {
	var sb strings.Builder
	for _, r := range ranks {
		fmt.Fprintf(&sb, "%-18s %-12s (%.4g)\n", r.Title+":", r.Label, r.Value)
	}
	return sb.String()
}
