package neurondb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ziadkadry99/neuronview/internal/db"
	"github.com/ziadkadry99/neuronview/internal/logger"
	"github.com/ziadkadry99/neuronview/internal/palette"
)

// Store manages neuron metadata, activation samples and topics.
type Store struct {
	db     *db.DB
	format EmbeddingFormat
}

// Option configures a Store.
type Option func(*Store)

// WithEmbeddingFormat sets the format UpsertNeuron writes embeddings in.
// Reads accept either format regardless.
func WithEmbeddingFormat(f EmbeddingFormat) Option {
	return func(s *Store) { s.format = f }
}

// NewStore creates a new neuron store.
func NewStore(database *db.DB, opts ...Option) *Store {
	s := &Store{db: database, format: FormatJSON}
	for _, o := range opts {
		o(s)
	}
	return s
}

const neuronColumns = `id, layer_index, neuron_index, explanation_text,
	explanation_embedding, typeof(explanation_embedding),
	explanation_ev_correlation_score, explanation_rsquared_score, explanation_absolute_dev_explained_score,
	activation_mean, activation_variance, activation_skewness, activation_kurtosis,
	explanation_topic_id`

type scanner interface {
	Scan(dest ...any) error
}

// scanNeuron fills a record. A decode failure still returns the scanned
// record, without its embedding, alongside ErrUndecodableEmbedding.
func scanNeuron(row scanner) (*NeuronRecord, error) {
	var n NeuronRecord
	var raw []byte
	var sqlType string
	err := row.Scan(&n.ID, &n.Layer, &n.Index, &n.ExplanationText,
		&raw, &sqlType,
		&n.EVCorrelationScore, &n.RSquaredScore, &n.AbsoluteDevExplainedScore,
		&n.ActivationMean, &n.ActivationVariance, &n.ActivationSkewness, &n.ActivationKurtosis,
		&n.TopicID)
	if err != nil {
		return nil, err
	}
	emb, err := DecodeEmbedding(raw, sqlType)
	if err != nil {
		return &n, fmt.Errorf("%w: layer %d neuron %d: %v", ErrUndecodableEmbedding, n.Layer, n.Index, err)
	}
	n.Embedding = emb
	return &n, nil
}

// GetNeuron returns the neuron at layer/index. It returns ErrNotFound when no
// row exists and ErrUndecodableEmbedding (which wraps ErrNotFound) when the
// stored embedding is corrupt.
func (s *Store) GetNeuron(ctx context.Context, layer, index int) (*NeuronRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+neuronColumns+` FROM neurons WHERE layer_index = ? AND neuron_index = ?`,
		layer, index)
	n, err := scanNeuron(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: layer %d neuron %d", ErrNotFound, layer, index)
	}
	if errors.Is(err, ErrUndecodableEmbedding) {
		return n, err
	}
	if err != nil {
		return nil, fmt.Errorf("getting neuron: %w", err)
	}
	return n, nil
}

// CountNeurons returns the number of stored neurons.
func (s *Store) CountNeurons(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM neurons`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting neurons: %w", err)
	}
	return n, nil
}

// AllNeurons calls fn for every neuron with a decodable embedding, ordered by
// layer and index. Rows with corrupt embeddings are skipped and logged. fn
// must not use the store: the rows are still open while it runs.
func (s *Store) AllNeurons(ctx context.Context, fn func(*NeuronRecord) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+neuronColumns+` FROM neurons ORDER BY layer_index, neuron_index`)
	if err != nil {
		return fmt.Errorf("listing neurons: %w", err)
	}
	defer rows.Close()

	skipped := 0
	for rows.Next() {
		n, err := scanNeuron(rows)
		if errors.Is(err, ErrUndecodableEmbedding) {
			skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("scanning neuron: %w", err)
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	if skipped > 0 {
		logger.Log.Warn("skipped neurons with undecodable embeddings", "count", skipped)
	}
	return rows.Err()
}

// UpsertNeuron inserts or replaces the neuron at rec's layer/index and returns its row id.
func (s *Store) UpsertNeuron(ctx context.Context, rec NeuronRecord) (int64, error) {
	emb, err := EncodeEmbedding(rec.Embedding, s.format)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO neurons (layer_index, neuron_index, explanation_text, explanation_embedding,
			explanation_ev_correlation_score, explanation_rsquared_score, explanation_absolute_dev_explained_score,
			activation_mean, activation_variance, activation_skewness, activation_kurtosis, explanation_topic_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(layer_index, neuron_index) DO UPDATE SET
			explanation_text = excluded.explanation_text,
			explanation_embedding = excluded.explanation_embedding,
			explanation_ev_correlation_score = excluded.explanation_ev_correlation_score,
			explanation_rsquared_score = excluded.explanation_rsquared_score,
			explanation_absolute_dev_explained_score = excluded.explanation_absolute_dev_explained_score,
			activation_mean = excluded.activation_mean,
			activation_variance = excluded.activation_variance,
			activation_skewness = excluded.activation_skewness,
			activation_kurtosis = excluded.activation_kurtosis,
			explanation_topic_id = excluded.explanation_topic_id
		 RETURNING id`,
		rec.Layer, rec.Index, rec.ExplanationText, emb,
		rec.EVCorrelationScore, rec.RSquaredScore, rec.AbsoluteDevExplainedScore,
		rec.ActivationMean, rec.ActivationVariance, rec.ActivationSkewness, rec.ActivationKurtosis, rec.TopicID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting neuron %d/%d: %w", rec.Layer, rec.Index, err)
	}
	return id, nil
}

// ListActivations returns up to limit activation samples of the given
// category for the neuron at layer/index, strongest first for "top". A
// non-positive limit means DefaultActivationLimit. Rows whose token and value
// arrays disagree in length are skipped.
func (s *Store) ListActivations(ctx context.Context, layer, index int, category string, limit int) ([]ActivationSample, error) {
	cat, err := ParseCategory(category)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultActivationLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.category, a.tokens, a.activation_values
		 FROM activations a JOIN neurons n ON n.id = a.neuron_id
		 WHERE n.layer_index = ? AND n.neuron_index = ? AND a.category = ?
		 ORDER BY a.position ASC
		 LIMIT ?`, layer, index, string(cat), limit)
	if err != nil {
		return nil, fmt.Errorf("listing activations: %w", err)
	}
	defer rows.Close()

	samples := []ActivationSample{}
	for rows.Next() {
		var a ActivationSample
		var tokens, values string
		if err := rows.Scan(&a.ID, &a.Category, &tokens, &values); err != nil {
			return nil, fmt.Errorf("scanning activation: %w", err)
		}
		if err := json.Unmarshal([]byte(tokens), &a.Tokens); err != nil {
			logger.Log.Warn("skipping activation with bad tokens", "id", a.ID, "error", err)
			continue
		}
		if err := json.Unmarshal([]byte(values), &a.Values); err != nil {
			logger.Log.Warn("skipping activation with bad values", "id", a.ID, "error", err)
			continue
		}
		if len(a.Tokens) != len(a.Values) {
			logger.Log.Warn("skipping misaligned activation", "id", a.ID,
				"tokens", len(a.Tokens), "values", len(a.Values))
			continue
		}
		samples = append(samples, a)
	}
	return samples, rows.Err()
}

// AddActivations appends samples to the neuron at layer/index. Samples are
// listed back in the order given.
func (s *Store) AddActivations(ctx context.Context, layer, index int, samples []ActivationSample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var neuronID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM neurons WHERE layer_index = ? AND neuron_index = ?`, layer, index).Scan(&neuronID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: layer %d neuron %d", ErrNotFound, layer, index)
	}
	if err != nil {
		return fmt.Errorf("looking up neuron: %w", err)
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM activations WHERE neuron_id = ?`, neuronID).Scan(&next); err != nil {
		return fmt.Errorf("reading activation position: %w", err)
	}

	for i, a := range samples {
		cat, err := ParseCategory(string(a.Category))
		if err != nil {
			return err
		}
		if len(a.Tokens) != len(a.Values) {
			return fmt.Errorf("activation sample %d has %d tokens but %d values", i, len(a.Tokens), len(a.Values))
		}
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		tokens, err := json.Marshal(a.Tokens)
		if err != nil {
			return fmt.Errorf("encoding tokens: %w", err)
		}
		values, err := json.Marshal(a.Values)
		if err != nil {
			return fmt.Errorf("encoding values: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO activations (id, neuron_id, category, tokens, activation_values, position)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, neuronID, string(cat), string(tokens), string(values), next+i); err != nil {
			return fmt.Errorf("inserting activation: %w", err)
		}
	}
	return tx.Commit()
}

// ListTopics returns the topic catalog ordered by id.
func (s *Store) ListTopics(ctx context.Context) ([]Topic, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, top_words FROM topics ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	defer rows.Close()

	topics := []Topic{}
	for rows.Next() {
		var t Topic
		var words string
		if err := rows.Scan(&t.ID, &t.Title, &words); err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
		if err := json.Unmarshal([]byte(words), &t.TopWords); err != nil {
			return nil, fmt.Errorf("parsing top words for topic %d: %w", t.ID, err)
		}
		t.Color = palette.TopicColor(t.ID)
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// UpsertTopic inserts or replaces a topic.
func (s *Store) UpsertTopic(ctx context.Context, t Topic) error {
	words := t.TopWords
	if words == nil {
		words = []string{}
	}
	b, err := json.Marshal(words)
	if err != nil {
		return fmt.Errorf("encoding top words: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO topics (id, title, top_words) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, top_words = excluded.top_words`,
		t.ID, t.Title, string(b))
	if err != nil {
		return fmt.Errorf("upserting topic %d: %w", t.ID, err)
	}
	return nil
}

// TopicsByID indexes a topic list by id.
func TopicsByID(topics []Topic) map[int]Topic {
	m := make(map[int]Topic, len(topics))
	for _, t := range topics {
		m[t.ID] = t
	}
	return m
}
