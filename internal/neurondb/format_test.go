package neurondb

import (
	"strings"
	"testing"
)

func TestFormatNeuron(t *testing.T) {
	rec := &NeuronRecord{
		Layer:              4,
		Index:              17,
		ExplanationText:    "words about weather",
		EVCorrelationScore: 0.42,
		ActivationMean:     1.5,
		TopicID:            3,
	}

	out := FormatNeuron(rec, map[int]Topic{3: {ID: 3, Title: "Weather", TopWords: []string{"rain", "sun"}}})
	for _, want := range []string{"Layer 4 neuron 17", "words about weather", "Topic: Weather (rain, sun)", "0.4200", "Mean:     1.5000"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if out := FormatNeuron(rec, nil); !strings.Contains(out, "Topic: 3\n") {
		t.Errorf("unknown topic should print its id:\n%s", out)
	}
}

func TestFormatActivations(t *testing.T) {
	out := FormatActivations([]ActivationSample{
		{Tokens: []string{"it", " rained", " today"}, Values: []float64{0.1, 2, 0.3}},
		{Tokens: []string{"none"}, Values: []float64{0}},
	})
	if !strings.Contains(out, "Found 2 example(s)") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "it[[ rained]] today") {
		t.Errorf("strongest token not marked:\n%s", out)
	}
	if strings.Contains(out, "[[none]]") {
		t.Errorf("zero activation should not be marked:\n%s", out)
	}
}
