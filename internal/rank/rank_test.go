package rank

import (
	"strings"
	"testing"

	"github.com/ziadkadry99/neuronview/internal/neurondb"
	"github.com/ziadkadry99/neuronview/internal/normalize"
	"github.com/ziadkadry99/neuronview/internal/palette"
)

func TestRankAndFormat(t *testing.T) {
	pop := []float64{1, 2, 3, 4}
	tests := []struct {
		name  string
		value float64
		dir   normalize.Direction
		text  string
		rank  float64
	}{
		{"best high", 5, normalize.High, "Top 0%", 1},
		{"worst high", 0, normalize.High, "Bottom 0%", 0},
		{"middle high", 3, normalize.High, "Top 50%", 0.5},
		{"low", 2, normalize.Low, "Top 50%", 0.5},
		{"quarter", 2, normalize.High, "Bottom 25%", 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RankAndFormat("m", tt.value, pop, tt.dir)
			if r.Label != tt.text || r.Rank != tt.rank {
				t.Errorf("got %q (%v), want %q (%v)", r.Label, r.Rank, tt.text, tt.rank)
			}
			if r.Metric != "m" || r.Value != tt.value {
				t.Errorf("metric/value not carried: %+v", r)
			}
		})
	}
}

func TestRankColor(t *testing.T) {
	pop := []float64{1, 2, 3, 4}
	if c := RankAndFormat("m", 10, pop, normalize.High).Color; c != (palette.Color{R: 0, G: 255, B: 0}) {
		t.Errorf("best colour = %+v, want green", c)
	}
	if c := RankAndFormat("m", -10, pop, normalize.High).Color; c != (palette.Color{R: 255, G: 0, B: 105}) {
		t.Errorf("worst colour = %+v, want red", c)
	}
}

func TestRankAndFormatEmptyPopulation(t *testing.T) {
	r := RankAndFormat("m", 3, nil, normalize.High)
	if r.Rank != normalize.EmptyPopulationRank || r.Label != "Top 50%" {
		t.Errorf("empty population gave %+v", r)
	}
}

func TestRankRecord(t *testing.T) {
	sample := []*neurondb.NeuronRecord{
		{EVCorrelationScore: 0.1, ActivationMean: 1, ActivationVariance: 4, ActivationSkewness: -2, ActivationKurtosis: 5},
		{EVCorrelationScore: 0.2, ActivationMean: 2, ActivationVariance: 3, ActivationSkewness: 1, ActivationKurtosis: 3},
		{EVCorrelationScore: 0.3, ActivationMean: 3, ActivationVariance: 2, ActivationSkewness: 0.5, ActivationKurtosis: 1},
		{EVCorrelationScore: 0.4, ActivationMean: 4, ActivationVariance: 1, ActivationSkewness: 0, ActivationKurtosis: 0},
	}
	ranks := RankRecord(sample[3], sample)
	if len(ranks) != len(Statistics) {
		t.Fatalf("got %d ranks, want %d", len(ranks), len(Statistics))
	}
	// sample[3] is best on every statistic: it beats the other three of four.
	for _, r := range ranks {
		if r.Rank != 0.75 {
			t.Errorf("%s rank = %v, want 0.75", r.Metric, r.Rank)
		}
		if r.Title == "" {
			t.Errorf("%s has no title", r.Metric)
		}
	}

	worst := RankRecord(sample[0], sample)
	if worst[0].Label != "Bottom 0%" {
		t.Errorf("worst explanation score = %q, want Bottom 0%%", worst[0].Label)
	}
	// Skewness -2 is furthest from zero.
	if worst[3].Rank != 0 {
		t.Errorf("skewness rank = %v, want 0", worst[3].Rank)
	}
}

func TestFormatRanks(t *testing.T) {
	out := FormatRanks([]Rank{
		{Title: "Mean", Label: "Top 25%", Value: 3},
		{Title: "Variance", Label: "Bottom 10%", Value: 0.5},
	})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "Mean:") || !strings.Contains(lines[0], "Top 25%") || !strings.HasSuffix(lines[0], "(3)") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Bottom 10%") || !strings.HasSuffix(lines[1], "(0.5)") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if FormatRanks(nil) != "" {
		t.Error("no ranks should render nothing")
	}
}
