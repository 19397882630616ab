package vectordb

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/neuronview/internal/embeddings"
	"github.com/ziadkadry99/neuronview/internal/logger"
	"github.com/ziadkadry99/neuronview/internal/metrics"
	"github.com/ziadkadry99/neuronview/internal/neurondb"
)

const collectionName = "explanations"

// ChromemIndex is an in-memory NeighbourIndex over explanation embeddings.
type ChromemIndex struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	embedFunc  chromem.EmbeddingFunc
	dimension  int
}

// NewChromemIndex creates an empty index. embedder may be nil, in which case
// Search returns ErrSearchDisabled.
func NewChromemIndex(embedder embeddings.Embedder) (*ChromemIndex, error) {
	x := &ChromemIndex{db: chromem.NewDB(), embedder: embedder}
	if embedder != nil {
		x.embedFunc = embeddings.ToChromemFunc(embedder)
	} else {
		x.embedFunc = func(context.Context, string) ([]float32, error) {
			return nil, ErrSearchDisabled
		}
	}
	col, err := x.db.GetOrCreateCollection(collectionName, nil, x.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	x.collection = col
	return x, nil
}

func docID(layer, index int) string {
	return strconv.Itoa(layer) + ":" + strconv.Itoa(index)
}

// Build replaces the index contents with every neuron from src. Only
// embeddings of the most common dimension are indexed. It returns the number
// of indexed neurons.
func (x *ChromemIndex) Build(ctx context.Context, src NeuronSource) (int, error) {
	log := logger.Log.With("vectordb")

	var recs []*neurondb.NeuronRecord
	counts := make(map[int]int)
	err := src.AllNeurons(ctx, func(r *neurondb.NeuronRecord) error {
		if len(r.Embedding) == 0 || zeroNorm(r.Embedding) {
			return nil
		}
		recs = append(recs, r)
		counts[len(r.Embedding)]++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reading neurons: %w", err)
	}

	dim, best := 0, 0
	for d, c := range counts {
		if c > best || (c == best && d > dim) {
			dim, best = d, c
		}
	}

	docs := make([]chromem.Document, 0, len(recs))
	skipped := 0
	for _, r := range recs {
		if len(r.Embedding) != dim {
			skipped++
			continue
		}
		docs = append(docs, chromem.Document{
			ID:        docID(r.Layer, r.Index),
			Content:   r.ExplanationText,
			Embedding: r.Embedding,
			Metadata: map[string]string{
				"layer":    strconv.Itoa(r.Layer),
				"index":    strconv.Itoa(r.Index),
				"topic_id": strconv.Itoa(r.TopicID),
			},
		})
	}
	if skipped > 0 {
		log.Warn("skipped embeddings with minority dimension", "skipped", skipped, "dimension", dim)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.db.DeleteCollection(collectionName); err != nil {
		return 0, fmt.Errorf("reset collection: %w", err)
	}
	col, err := x.db.CreateCollection(collectionName, nil, x.embedFunc)
	if err != nil {
		return 0, fmt.Errorf("create collection: %w", err)
	}
	if len(docs) > 0 {
		if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return 0, fmt.Errorf("index embeddings: %w", err)
		}
	}
	x.collection = col
	x.dimension = dim

	metrics.IndexedNeurons.Set(float64(len(docs)))
	log.Info("built neighbour index", "neurons", len(docs), "dimension", dim)
	return len(docs), nil
}

// Similar returns up to n neurons closest to (layer, index), most similar first.
func (x *ChromemIndex) Similar(ctx context.Context, layer, index, n int, filter *Filter) ([]Neighbour, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	doc, err := x.collection.GetByID(ctx, docID(layer, index))
	if err != nil {
		return nil, fmt.Errorf("%w: layer %d index %d", ErrNotIndexed, layer, index)
	}
	// One extra result because the neuron always matches itself.
	results, err := x.query(ctx, doc.Embedding, n+1, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Neighbour, 0, n)
	for _, r := range results {
		if r.ID == doc.ID {
			continue
		}
		if len(out) == n {
			break
		}
		out = append(out, toNeighbour(r))
	}
	return out, nil
}

// Search embeds query with the configured embedder and returns the n closest neurons.
func (x *ChromemIndex) Search(ctx context.Context, query string, n int, filter *Filter) ([]Neighbour, error) {
	if x.embedder == nil {
		return nil, ErrSearchDisabled
	}
	vec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.dimension > 0 && len(vec) != x.dimension {
		return nil, fmt.Errorf("%w: %s produced %d dimensions, index has %d",
			ErrDimensionMismatch, x.embedder.Name(), len(vec), x.dimension)
	}
	results, err := x.query(ctx, vec, n, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Neighbour, len(results))
	for i, r := range results {
		out[i] = toNeighbour(r)
	}
	return out, nil
}

// query must be called with x.mu held.
func (x *ChromemIndex) query(ctx context.Context, vec []float32, n int, filter *Filter) ([]chromem.Result, error) {
	if n <= 0 {
		n = 10
	}
	// chromem-go requires nResults <= collection size.
	count := x.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if n > count {
		n = count
	}
	results, err := x.collection.QueryEmbedding(ctx, vec, n, buildWhereClause(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	return results, nil
}

// Persist writes the index to a gzip-compressed file.
func (x *ChromemIndex) Persist(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.db.ExportToFile(path, true, "")
}

// Load replaces the index with one written by Persist.
func (x *ChromemIndex) Load(path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.db.ImportFromFile(path, ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}
	// Re-acquire collection reference after import.
	col := x.db.GetCollection(collectionName, x.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	x.collection = col
	x.dimension = 0
	metrics.IndexedNeurons.Set(float64(col.Count()))
	return nil
}

// Count returns the number of indexed neurons.
func (x *ChromemIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.collection.Count()
}

func toNeighbour(r chromem.Result) Neighbour {
	layer, _ := strconv.Atoi(r.Metadata["layer"])
	index, _ := strconv.Atoi(r.Metadata["index"])
	topic, _ := strconv.Atoi(r.Metadata["topic_id"])
	return Neighbour{
		Layer:           layer,
		Index:           index,
		ExplanationText: r.Content,
		TopicID:         topic,
		Similarity:      r.Similarity,
	}
}

func buildWhereClause(filter *Filter) map[string]string {
	if filter == nil {
		return nil
	}
	where := make(map[string]string)
	if filter.TopicID != nil {
		where["topic_id"] = strconv.Itoa(*filter.TopicID)
	}
	if filter.Layer != nil {
		where["layer"] = strconv.Itoa(*filter.Layer)
	}
	if len(where) == 0 {
		return nil
	}
	return where
}

func zeroNorm(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0)
}
