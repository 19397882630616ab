package neurondb

import (
	"fmt"
	"strings"
)

// FormatNeuron renders a neuron record as plain text for agents and the CLI.
func FormatNeuron(rec *NeuronRecord, topics map[int]Topic) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Layer %d neuron %d\n", rec.Layer, rec.Index)
	fmt.Fprintf(&sb, "Explanation: %s\n", rec.ExplanationText)
	if t, ok := topics[rec.TopicID]; ok {
		fmt.Fprintf(&sb, "Topic: %s (%s)\n", t.Title, strings.Join(t.TopWords, ", "))
	} else {
		fmt.Fprintf(&sb, "Topic: %d\n", rec.TopicID)
	}

	sb.WriteString("\nScores\n")
	fmt.Fprintf(&sb, "  EV correlation:         %.4f\n", rec.EVCorrelationScore)
	fmt.Fprintf(&sb, "  R squared:              %.4f\n", rec.RSquaredScore)
	fmt.Fprintf(&sb, "  Absolute dev explained: %.4f\n", rec.AbsoluteDevExplainedScore)

	sb.WriteString("\nActivation statistics\n")
	fmt.Fprintf(&sb, "  Mean:     %.4f\n", rec.ActivationMean)
	fmt.Fprintf(&sb, "  Variance: %.4f\n", rec.ActivationVariance)
	fmt.Fprintf(&sb, "  Skewness: %.4f\n", rec.ActivationSkewness)
	fmt.Fprintf(&sb, "  Kurtosis: %.4f\n", rec.ActivationKurtosis)
	return sb.String()
}

// FormatActivations marks each sample's strongest token with brackets.
func FormatActivations(samples []ActivationSample) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d example(s):\n", len(samples))
	for i, a := range samples {
		max := a.MaxActivation()
		fmt.Fprintf(&sb, "\n--- Example %d (max %.3f) ---\n", i+1, max)
		for j, tok := range a.Tokens {
			if a.Values[j] == max && max > 0 {
				fmt.Fprintf(&sb, "[[%s]]", tok)
			} else {
				sb.WriteString(tok)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
