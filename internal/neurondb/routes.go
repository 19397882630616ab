package neurondb

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the neuron lookup endpoints on the given router.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Get("/api/neurons/{layer}/{neuron}", handleGetNeuron(store))
	r.Get("/api/activations/{layer}/{neuron}", handleListActivations(store))
	r.Get("/api/topics", handleListTopics(store))
}

// ParseLayerIndex reads the {layer} and {neuron} URL parameters.
func ParseLayerIndex(r *http.Request) (layer, index int, err error) {
	layer, err = strconv.Atoi(chi.URLParam(r, "layer"))
	if err != nil || layer < 0 {
		return 0, 0, errors.New("layer must be a non-negative integer")
	}
	index, err = strconv.Atoi(chi.URLParam(r, "neuron"))
	if err != nil || index < 0 {
		return 0, 0, errors.New("neuron must be a non-negative integer")
	}
	return layer, index, nil
}

func handleGetNeuron(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		layer, index, err := ParseLayerIndex(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		n, err := store.GetNeuron(r.Context(), layer, index)
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

func handleListActivations(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		layer, index, err := ParseLayerIndex(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
				return
			}
			limit = n
		}

		samples, err := store.ListActivations(r.Context(), layer, index, r.URL.Query().Get("category"), limit)
		if errors.Is(err, ErrInvalidCategory) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, samples)
	}
}

func handleListTopics(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topics, err := store.ListTopics(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, topics)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
