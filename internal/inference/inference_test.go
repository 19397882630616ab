package inference

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ziadkadry99/neuronview/internal/nodes"
)

func TestSoftmax(t *testing.T) {
	got := Softmax([]float64{1000, 1000, 1000 + math.Log(2)})
	want := []float64{0.25, 0.25, 0.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Softmax[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if len(Softmax(nil)) != 0 {
		t.Error("expected empty output for empty input")
	}
}

func TestNextTokens(t *testing.T) {
	r := &Response{TopOutputTokens: []string{" cat", " dog"}, TopOutputLogits: []float64{2, 2}}
	toks := r.NextTokens()
	if len(toks) != 2 || toks[0].Token != " cat" || math.Abs(toks[1].Probability-0.5) > 1e-12 {
		t.Errorf("unexpected next tokens: %+v", toks)
	}
}

func TestResponseValidate(t *testing.T) {
	layer := 0
	ok := &Response{
		NodeIndices:          []nodes.RawNodeIndex{{NodeType: nodes.MLPNeuron, LayerIndex: &layer, TensorIndices: []int{1}}},
		ActivationsByGroupID: map[string][]float64{GroupActivation: {1}},
	}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	bad := &Response{
		NodeIndices:          ok.NodeIndices,
		ActivationsByGroupID: map[string][]float64{GroupWriteNorm: {1, 2}},
	}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for misaligned group")
	}
}

func TestHTTPClientInfer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/derived_scalars" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Prompt != "hello" || req.TopAndBottomK != 5 {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"tokens": ["hel", "lo"],
			"node_indices": [
				{"node_type": "mlp_neuron", "layer_index": 1, "tensor_indices": [0, 42]},
				{"node_type": "attn_write_norm", "layer_index": 0, "tensor_indices": [0, 1, 3]}
			],
			"activations_by_group_id": {"activation": [0.5, 0.1], "act_times_grad": [-1, 2]},
			"top_output_tokens": [" world"],
			"top_output_logits": [3.2]
		}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", time.Second)
	resp, err := c.Infer(context.Background(), Request{Prompt: "hello", TopAndBottomK: 5})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(resp.NodeIndices) != 2 || resp.NodeIndices[1].NodeType != nodes.AttentionHead {
		t.Errorf("unexpected node indices: %+v", resp.NodeIndices)
	}
	id, err := nodes.Resolve(resp.NodeIndices[0])
	if err != nil || id.Index != 42 || id.Layer != 1 {
		t.Errorf("Resolve = %v, %v", id, err)
	}
	if resp.ActivationsByGroupID[GroupActTimesGrad][0] != -1 {
		t.Errorf("unexpected act_times_grad: %v", resp.ActivationsByGroupID[GroupActTimesGrad])
	}
}

func TestHTTPClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/derived_scalars":
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		case "/model_info":
			w.Write([]byte(`{"model_name": "gpt2-small", "n_layers": 12, "has_mlp_autoencoder": true}`))
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 0)
	_, err := c.Infer(context.Background(), Request{Prompt: "x", TopAndBottomK: 1})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("expected status error, got %v", err)
	}
	if _, err := c.Infer(context.Background(), Request{TopAndBottomK: 1}); err == nil {
		t.Error("expected validation error for empty prompt")
	}

	info, err := c.ModelInfo(context.Background())
	if err != nil {
		t.Fatalf("ModelInfo: %v", err)
	}
	if info.ModelName != "gpt2-small" || info.NLayers != 12 || !info.HasMLPAutoencoder {
		t.Errorf("unexpected model info: %+v", info)
	}
}
