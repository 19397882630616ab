package neurondb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/neuronview/internal/db"
)

func setupTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database, opts...)
}

func sampleNeuron(layer, index int, emb ...float32) NeuronRecord {
	return NeuronRecord{
		Layer:              layer,
		Index:              index,
		ExplanationText:    "mentions of cheese",
		Embedding:          emb,
		EVCorrelationScore: 0.42,
		ActivationMean:     1.5,
		ActivationVariance: 0.25,
		ActivationSkewness: -0.1,
		ActivationKurtosis: 3,
		TopicID:            2,
	}
}

func TestUpsertAndGetNeuron(t *testing.T) {
	for _, format := range []EmbeddingFormat{FormatJSON, FormatHalf} {
		t.Run(string(format), func(t *testing.T) {
			store := setupTestStore(t, WithEmbeddingFormat(format))
			ctx := context.Background()

			id, err := store.UpsertNeuron(ctx, sampleNeuron(3, 17, 0.5, -1, 0.25, 2))
			if err != nil {
				t.Fatalf("UpsertNeuron: %v", err)
			}
			if id == 0 {
				t.Error("expected non-zero id")
			}

			n, err := store.GetNeuron(ctx, 3, 17)
			if err != nil {
				t.Fatalf("GetNeuron: %v", err)
			}
			want := []float32{0.5, -1, 0.25, 2}
			if len(n.Embedding) != len(want) {
				t.Fatalf("embedding length = %d, want %d", len(n.Embedding), len(want))
			}
			for i := range want {
				if n.Embedding[i] != want[i] {
					t.Errorf("embedding[%d] = %v, want %v", i, n.Embedding[i], want[i])
				}
			}
			if n.TopicID != 2 || n.ActivationKurtosis != 3 || n.ExplanationText != "mentions of cheese" {
				t.Errorf("unexpected record: %+v", n)
			}

			// Upserting again updates in place.
			rec := sampleNeuron(3, 17, 1, 1, 1, 1)
			rec.ExplanationText = "updated"
			id2, err := store.UpsertNeuron(ctx, rec)
			if err != nil {
				t.Fatalf("second UpsertNeuron: %v", err)
			}
			if id2 != id {
				t.Errorf("upsert changed id from %d to %d", id, id2)
			}
			count, _ := store.CountNeurons(ctx)
			if count != 1 {
				t.Errorf("CountNeurons = %d, want 1", count)
			}
		})
	}
}

func TestGetNeuronNotFound(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.GetNeuron(context.Background(), 0, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUndecodableEmbedding(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	if _, err := store.db.ExecContext(ctx,
		`INSERT INTO neurons (layer_index, neuron_index, explanation_embedding) VALUES (1, 2, '[1, oops')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := store.db.ExecContext(ctx,
		`INSERT INTO neurons (layer_index, neuron_index, explanation_embedding) VALUES (1, 3, x'000102')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	for _, idx := range []int{2, 3} {
		n, err := store.GetNeuron(ctx, 1, idx)
		if !errors.Is(err, ErrUndecodableEmbedding) || !errors.Is(err, ErrNotFound) {
			t.Errorf("neuron %d: expected undecodable embedding error wrapping ErrNotFound, got %v", idx, err)
		}
		if n == nil || n.Embedding != nil {
			t.Errorf("neuron %d: expected record without embedding, got %+v", idx, n)
		}
	}

	var visited int
	if err := store.AllNeurons(ctx, func(*NeuronRecord) error { visited++; return nil }); err != nil {
		t.Fatalf("AllNeurons: %v", err)
	}
	if visited != 0 {
		t.Errorf("AllNeurons visited %d corrupt rows, want 0", visited)
	}
}

func TestNullEmbedding(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	if _, err := store.UpsertNeuron(ctx, sampleNeuron(0, 1)); err != nil {
		t.Fatalf("UpsertNeuron: %v", err)
	}
	n, err := store.GetNeuron(ctx, 0, 1)
	if err != nil {
		t.Fatalf("GetNeuron: %v", err)
	}
	if len(n.Embedding) != 0 {
		t.Errorf("expected no embedding, got %v", n.Embedding)
	}
}

func TestAllNeuronsOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	for _, li := range [][2]int{{2, 0}, {0, 5}, {0, 1}} {
		if _, err := store.UpsertNeuron(ctx, sampleNeuron(li[0], li[1], 1, 2)); err != nil {
			t.Fatalf("UpsertNeuron: %v", err)
		}
	}
	var got [][2]int
	err := store.AllNeurons(ctx, func(n *NeuronRecord) error {
		got = append(got, [2]int{n.Layer, n.Index})
		return nil
	})
	if err != nil {
		t.Fatalf("AllNeurons: %v", err)
	}
	want := [][2]int{{0, 1}, {0, 5}, {2, 0}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestActivations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	if _, err := store.UpsertNeuron(ctx, sampleNeuron(4, 9, 1, 0)); err != nil {
		t.Fatalf("UpsertNeuron: %v", err)
	}

	var top []ActivationSample
	for i := 0; i < 12; i++ {
		top = append(top, ActivationSample{
			Category: CategoryTop,
			Tokens:   []string{"the", "cheese"},
			Values:   []float64{0, float64(12 - i)},
		})
	}
	if err := store.AddActivations(ctx, 4, 9, top); err != nil {
		t.Fatalf("AddActivations(top): %v", err)
	}
	if err := store.AddActivations(ctx, 4, 9, []ActivationSample{
		{Category: CategoryRandom, Tokens: []string{"a"}, Values: []float64{0.1}},
	}); err != nil {
		t.Fatalf("AddActivations(random): %v", err)
	}

	got, err := store.ListActivations(ctx, 4, 9, "top", 0)
	if err != nil {
		t.Fatalf("ListActivations: %v", err)
	}
	if len(got) != DefaultActivationLimit {
		t.Fatalf("default limit returned %d samples, want %d", len(got), DefaultActivationLimit)
	}
	if got[0].MaxActivation() != 12 || got[1].MaxActivation() != 11 {
		t.Errorf("samples out of insertion order: %v, %v", got[0].Values, got[1].Values)
	}
	if got[0].ID == "" {
		t.Error("expected generated sample id")
	}

	random, err := store.ListActivations(ctx, 4, 9, "random", 5)
	if err != nil {
		t.Fatalf("ListActivations(random): %v", err)
	}
	if len(random) != 1 || random[0].Tokens[0] != "a" {
		t.Errorf("unexpected random samples: %+v", random)
	}

	if _, err := store.ListActivations(ctx, 4, 9, "best", 5); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}

	err = store.AddActivations(ctx, 4, 9, []ActivationSample{
		{Category: CategoryTop, Tokens: []string{"a", "b"}, Values: []float64{1}},
	})
	if err == nil {
		t.Error("expected error for misaligned sample")
	}

	if err := store.AddActivations(ctx, 7, 7, top[:1]); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown neuron, got %v", err)
	}
}

func TestListActivationsSkipsMisalignedRows(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	id, err := store.UpsertNeuron(ctx, sampleNeuron(0, 0, 1))
	if err != nil {
		t.Fatalf("UpsertNeuron: %v", err)
	}
	if _, err := store.db.ExecContext(ctx,
		`INSERT INTO activations (id, neuron_id, category, tokens, activation_values, position)
		 VALUES ('bad', ?, 'top', '["x","y"]', '[1]', 0), ('good', ?, 'top', '["x"]', '[1]', 1)`, id, id); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := store.ListActivations(ctx, 0, 0, "top", 10)
	if err != nil {
		t.Fatalf("ListActivations: %v", err)
	}
	if len(got) != 1 || got[0].ID != "good" {
		t.Errorf("expected only the aligned sample, got %+v", got)
	}
}

func TestTopics(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	if err := store.UpsertTopic(ctx, Topic{ID: 1, Title: "Food", TopWords: []string{"cheese", "bread"}}); err != nil {
		t.Fatalf("UpsertTopic: %v", err)
	}
	if err := store.UpsertTopic(ctx, Topic{ID: 0, Title: "Code"}); err != nil {
		t.Fatalf("UpsertTopic: %v", err)
	}
	topics, err := store.ListTopics(ctx)
	if err != nil {
		t.Fatalf("ListTopics: %v", err)
	}
	if len(topics) != 2 || topics[0].ID != 0 || topics[1].Title != "Food" {
		t.Fatalf("unexpected topics: %+v", topics)
	}
	if topics[1].Color.R != 234 {
		t.Errorf("topic 1 color = %+v", topics[1].Color)
	}
	if len(topics[0].TopWords) != 0 {
		t.Errorf("expected empty top words, got %v", topics[0].TopWords)
	}
	byID := TopicsByID(topics)
	if byID[1].TopWords[1] != "bread" {
		t.Errorf("TopicsByID lost words: %+v", byID[1])
	}
}

func TestRoutes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	if _, err := store.UpsertNeuron(ctx, sampleNeuron(1, 2, 1, 0)); err != nil {
		t.Fatalf("UpsertNeuron: %v", err)
	}
	if err := store.AddActivations(ctx, 1, 2, []ActivationSample{
		{Category: CategoryTop, Tokens: []string{"hi"}, Values: []float64{2}},
	}); err != nil {
		t.Fatalf("AddActivations: %v", err)
	}

	r := chi.NewRouter()
	RegisterRoutes(r, store)

	tests := []struct {
		path string
		want int
	}{
		{"/api/neurons/1/2", http.StatusOK},
		{"/api/neurons/1/3", http.StatusNotFound},
		{"/api/neurons/x/3", http.StatusBadRequest},
		{"/api/activations/1/2?category=top&limit=5", http.StatusOK},
		{"/api/activations/1/2?category=worst", http.StatusBadRequest},
		{"/api/activations/1/2?limit=many", http.StatusBadRequest},
		{"/api/topics", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", tt.path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d (body %s)", tt.path, rec.Code, tt.want, rec.Body.String())
		}
	}

	req := httptest.NewRequest("GET", "/api/activations/1/2", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var samples []ActivationSample
	if err := json.NewDecoder(rec.Body).Decode(&samples); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(samples) != 1 || samples[0].Tokens[0] != "hi" {
		t.Errorf("unexpected samples: %+v", samples)
	}
}

func TestParseCategory(t *testing.T) {
	if c, err := ParseCategory(""); err != nil || c != CategoryTop {
		t.Errorf("ParseCategory(\"\") = %q, %v", c, err)
	}
	if _, err := ParseCategory("TOP"); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected case-sensitive rejection, got %v", err)
	}
}
