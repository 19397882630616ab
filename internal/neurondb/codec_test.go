package neurondb

import "testing"

func TestHalfPrecisionRoundTrip(t *testing.T) {
	in := []float32{0, 1, -2.5, 0.099975586, 65504}
	raw, err := EncodeEmbedding(in, FormatHalf)
	if err != nil {
		t.Fatalf("EncodeEmbedding: %v", err)
	}
	b, ok := raw.([]byte)
	if !ok {
		t.Fatalf("half embedding encoded as %T, want []byte", raw)
	}
	if len(b) != 2*len(in) {
		t.Fatalf("encoded length = %d, want %d", len(b), 2*len(in))
	}
	out, err := DecodeEmbedding(b, "blob")
	if err != nil {
		t.Fatalf("DecodeEmbedding: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("component %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDecodeEmbeddingErrors(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		sqlType string
	}{
		{"odd blob", []byte{1, 2, 3}, "blob"},
		{"infinite half", []byte{0x00, 0x7c}, "blob"},
		{"bad json", []byte("[1,"), "text"},
		{"json object", []byte(`{"a":1}`), "text"},
		{"integer column", []byte("3"), "integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeEmbedding(tt.raw, tt.sqlType); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecodeNull(t *testing.T) {
	v, err := DecodeEmbedding(nil, "null")
	if err != nil || v != nil {
		t.Errorf("DecodeEmbedding(null) = %v, %v", v, err)
	}
}

func TestParseEmbeddingFormat(t *testing.T) {
	if f, err := ParseEmbeddingFormat(""); err != nil || f != FormatJSON {
		t.Errorf("empty format = %q, %v", f, err)
	}
	if _, err := ParseEmbeddingFormat("f64"); err == nil {
		t.Error("expected error for unknown format")
	}
}
