// Package inference talks to the activation server that runs the model and
// returns per-node scalars for a prompt.
package inference

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ziadkadry99/neuronview/internal/nodes"
)

// Metric group ids in Response.ActivationsByGroupID.
const (
	GroupActivation     = "activation"
	GroupWriteNorm      = "write_norm"
	GroupDirectionWrite = "direction_write"
	GroupActTimesGrad   = "act_times_grad"
)

// Groups lists the metric groups a view needs, in display order.
var Groups = []string{GroupActivation, GroupWriteNorm, GroupDirectionWrite, GroupActTimesGrad}

// Backend runs inference for a prompt.
type Backend interface {
	Infer(ctx context.Context, req Request) (*Response, error)
}

// Request describes one inference run.
type Request struct {
	Prompt                    string   `json:"prompt"`
	TargetTokens              []string `json:"target_tokens,omitempty"`
	DistractorTokens          []string `json:"distractor_tokens,omitempty"`
	ComponentTypeForMLP       string   `json:"component_type_for_mlp,omitempty"`
	ComponentTypeForAttention string   `json:"component_type_for_attention,omitempty"`
	TopAndBottomK             int      `json:"top_and_bottom_k"`
}

// Validate checks the fields the backend requires.
func (r Request) Validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if r.TopAndBottomK <= 0 {
		return fmt.Errorf("top_and_bottom_k must be positive, got %d", r.TopAndBottomK)
	}
	return nil
}

// Response carries the node list and, per metric group, one value per node
// aligned with NodeIndices.
type Response struct {
	Tokens               []string             `json:"tokens"`
	NodeIndices          []nodes.RawNodeIndex `json:"node_indices"`
	ActivationsByGroupID map[string][]float64 `json:"activations_by_group_id"`
	TopOutputTokens      []string             `json:"top_output_tokens"`
	TopOutputLogits      []float64            `json:"top_output_logits"`
}

// Validate checks that every metric array lines up with the node list.
func (r *Response) Validate() error {
	for group, vals := range r.ActivationsByGroupID {
		if len(vals) != len(r.NodeIndices) {
			return fmt.Errorf("group %q has %d values for %d nodes", group, len(vals), len(r.NodeIndices))
		}
	}
	if len(r.TopOutputTokens) != len(r.TopOutputLogits) {
		return fmt.Errorf("%d top output tokens but %d logits", len(r.TopOutputTokens), len(r.TopOutputLogits))
	}
	return nil
}

// TokenProbability is a candidate next token.
type TokenProbability struct {
	Token       string  `json:"token"`
	Logit       float64 `json:"logit"`
	Probability float64 `json:"probability"`
}

// NextTokens softmaxes the top output logits. Probabilities are relative to
// the returned candidates only.
func (r *Response) NextTokens() []TokenProbability {
	n := len(r.TopOutputLogits)
	if len(r.TopOutputTokens) < n {
		n = len(r.TopOutputTokens)
	}
	probs := Softmax(r.TopOutputLogits[:n])
	out := make([]TokenProbability, n)
	for i := 0; i < n; i++ {
		out[i] = TokenProbability{Token: r.TopOutputTokens[i], Logit: r.TopOutputLogits[i], Probability: probs[i]}
	}
	return out
}

// Softmax returns exp(x_i) / Σ exp(x_j), computed stably.
func Softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	lse := floats.LogSumExp(logits)
	for i, l := range logits {
		out[i] = math.Exp(l - lse)
	}
	return out
}
