package neurondb

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// EmbeddingFormat selects how embeddings are written to the neurons table.
type EmbeddingFormat string

const (
	// FormatJSON stores a JSON array of numbers in a TEXT value.
	FormatJSON EmbeddingFormat = "json"
	// FormatHalf stores little-endian IEEE 754 half-precision floats in a BLOB.
	FormatHalf EmbeddingFormat = "half"
)

// ParseEmbeddingFormat accepts "json" or "half".
func ParseEmbeddingFormat(s string) (EmbeddingFormat, error) {
	switch f := EmbeddingFormat(s); f {
	case FormatJSON, FormatHalf:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown embedding format %q", s)
}

// EncodeEmbedding serializes an embedding for storage.
func EncodeEmbedding(v []float32, format EmbeddingFormat) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch format {
	case FormatHalf:
		return encodeHalf(v), nil
	case FormatJSON, "":
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding embedding: %w", err)
		}
		return string(b), nil
	}
	return nil, fmt.Errorf("unknown embedding format %q", format)
}

// DecodeEmbedding parses a stored embedding. sqlType is SQLite's typeof() for
// the column: "text" is JSON, "blob" is half precision, "null" is no embedding.
func DecodeEmbedding(raw []byte, sqlType string) ([]float32, error) {
	switch sqlType {
	case "null", "":
		return nil, nil
	case "text":
		return decodeJSON(raw)
	case "blob":
		return decodeHalf(raw)
	}
	return nil, fmt.Errorf("unexpected embedding column type %q", sqlType)
}

func decodeJSON(raw []byte) ([]float32, error) {
	var vals []float64
	if err := json.Unmarshal(raw, &vals); err != nil {
		return nil, fmt.Errorf("parsing embedding JSON: %w", err)
	}
	out := make([]float32, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("embedding component %d is not finite", i)
		}
		out[i] = float32(v)
	}
	return out, nil
}

func encodeHalf(v []float32) []byte {
	buf := make([]byte, 2*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint16(buf[2*i:], float16.Fromfloat32(f).Bits())
	}
	return buf
}

func decodeHalf(raw []byte) ([]float32, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("half-precision embedding has odd length %d", len(raw))
	}
	out := make([]float32, len(raw)/2)
	for i := range out {
		h := float16.Frombits(binary.LittleEndian.Uint16(raw[2*i:]))
		if h.IsNaN() || h.IsInf(0) {
			return nil, fmt.Errorf("embedding component %d is not finite", i)
		}
		out[i] = h.Float32()
	}
	return out, nil
}
