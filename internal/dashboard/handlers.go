package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/neuronview/internal/neurondb"
	"github.com/ziadkadry99/neuronview/internal/nodes"
	"github.com/ziadkadry99/neuronview/internal/nodeview"
	"github.com/ziadkadry99/neuronview/internal/projection"
	"github.com/ziadkadry99/neuronview/internal/vectordb"
)

// runResponse acknowledges a background run.
type runResponse struct {
	RequestID uint64 `json:"request_id"`
}

// nodeResponse is the detail panel for one node of the committed view.
type nodeResponse struct {
	*nodeview.Ranked
	TopActivations    []neurondb.ActivationSample `json:"top_activations"`
	RandomActivations []neurondb.ActivationSample `json:"random_activations"`
}

func decodeParams(r *http.Request) (nodeview.Params, error) {
	var p nodeview.Params
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		return p, errors.New("invalid JSON body")
	}
	return p, validateParams(p)
}

func validateParams(p nodeview.Params) error {
	if strings.TrimSpace(p.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if p.NodeType != "" && !p.NodeType.Valid() {
		return errors.New("unknown node_type " + strconv.Quote(string(p.NodeType)))
	}
	if p.TopAndBottomK < 0 {
		return errors.New("top_and_bottom_k must be non-negative")
	}
	return nil
}

// handleRun starts a view run. With ?wait=true it blocks and returns the
// committed view; otherwise it returns 202 and the run continues in the
// background.
func (d *Dashboard) handleRun(w http.ResponseWriter, r *http.Request) {
	p, err := decodeParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		id := d.service.Start(context.Background(), p)
		writeJSON(w, http.StatusAccepted, runResponse{RequestID: id})
		return
	}

	snap, err := d.service.Run(r.Context(), p)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, snap)
	case errors.Is(err, nodeview.ErrSuperseded):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, projection.ErrProjectionInputTooSmall):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
}

func (d *Dashboard) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.service.View().Snapshot())
}

// parseIdentity reads the {type}, {layer} and {neuron} URL parameters.
func parseIdentity(r *http.Request) (nodes.NodeIdentity, error) {
	t, err := nodes.ParseNodeType(chi.URLParam(r, "type"))
	if err != nil {
		return nodes.NodeIdentity{}, err
	}
	layer, index, err := neurondb.ParseLayerIndex(r)
	if err != nil {
		return nodes.NodeIdentity{}, err
	}
	return nodes.NodeIdentity{Type: t, Layer: layer, Index: index}, nil
}

func (d *Dashboard) handleNode(w http.ResponseWriter, r *http.Request) {
	id, err := parseIdentity(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ranked, err := d.service.Ranks(id)
	if errors.Is(err, nodeview.ErrNodeNotInView) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	limit := d.activationLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	resp := nodeResponse{
		Ranked:            ranked,
		TopActivations:    []neurondb.ActivationSample{},
		RandomActivations: []neurondb.ActivationSample{},
	}
	if d.store != nil && id.Type.SupportsEmbeddingLookup() {
		resp.TopActivations, err = d.store.ListActivations(r.Context(), id.Layer, id.Index, string(neurondb.CategoryTop), limit)
		if err == nil {
			resp.RandomActivations, err = d.store.ListActivations(r.Context(), id.Layer, id.Index, string(neurondb.CategoryRandom), limit)
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseCount(r *http.Request, def int) (int, error) {
	s := r.URL.Query().Get("n")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 100 {
		return 0, errors.New("n must be an integer between 1 and 100")
	}
	return n, nil
}

func parseFilter(r *http.Request) (*vectordb.Filter, error) {
	s := r.URL.Query().Get("topic")
	if s == "" {
		return nil, nil
	}
	topic, err := strconv.Atoi(s)
	if err != nil {
		return nil, errors.New("topic must be an integer")
	}
	return &vectordb.Filter{TopicID: &topic}, nil
}

func (d *Dashboard) handleSimilar(w http.ResponseWriter, r *http.Request) {
	if d.index == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "neighbour index not loaded"})
		return
	}
	id, err := parseIdentity(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	n, err := parseCount(r, 10)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	results, err := d.index.Similar(r.Context(), id.Layer, id.Index, n, filter)
	if errors.Is(err, vectordb.ErrNotIndexed) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (d *Dashboard) handleSearch(w http.ResponseWriter, r *http.Request) {
	if d.index == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "neighbour index not loaded"})
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
		return
	}
	n, err := parseCount(r, 10)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	results, err := d.index.Search(r.Context(), q, n, filter)
	switch {
	case errors.Is(err, vectordb.ErrSearchDisabled):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.Is(err, vectordb.ErrDimensionMismatch):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, results)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
