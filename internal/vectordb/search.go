package vectordb

import (
	"fmt"
	"strings"
)

// FormatNeighbours renders hits as plain text for agents and the CLI.
func FormatNeighbours(results []Neighbour) string {
	if len(results) == 0 {
		return "No similar neurons found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d neuron(s):\n\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. layer %d neuron %d (similarity: %.4f)\n", i+1, r.Layer, r.Index, r.Similarity)
		if r.ExplanationText != "" {
			fmt.Fprintf(&sb, "   %s\n", r.ExplanationText)
		}
	}
	return sb.String()
}
