package nodes

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NodeType is the kind of computational unit a node refers to.
type NodeType string

const (
	MLPNeuron                    NodeType = "mlp_neuron"
	AttentionHead                NodeType = "attention_head"
	AutoencoderLatent            NodeType = "autoencoder_latent"
	MLPAutoencoderLatent         NodeType = "mlp_autoencoder_latent"
	AttentionAutoencoderLatent   NodeType = "attention_autoencoder_latent"
	AutoencoderLatentByTokenPair NodeType = "autoencoder_latent_by_token_pair"
	ResidualStreamChannel        NodeType = "residual_stream_channel"
	QKChannel                    NodeType = "qk_channel"
	VChannel                     NodeType = "v_channel"
	Layer                        NodeType = "layer"
	VocabToken                   NodeType = "vocab_token"
)

// AllTypes lists every known node type in declaration order.
var AllTypes = []NodeType{
	MLPNeuron,
	AttentionHead,
	AutoencoderLatent,
	MLPAutoencoderLatent,
	AttentionAutoencoderLatent,
	AutoencoderLatentByTokenPair,
	ResidualStreamChannel,
	QKChannel,
	VChannel,
	Layer,
	VocabToken,
}

// aliases maps URL and derived-scalar names onto node types.
var aliases = map[string]NodeType{
	"attn_write_norm":           AttentionHead,
	"mlp_post_act":              MLPNeuron,
	"online_autoencoder_latent": AutoencoderLatent,
	"residual":                  ResidualStreamChannel,

	"flattened_attn_write_to_latent_summed_over_heads":         AutoencoderLatentByTokenPair,
	"flattened_attn_write_to_latent_summed_over_heads_batched": AutoencoderLatentByTokenPair,
}

// ParseNodeType resolves a node type name or one of its aliases.
func ParseNodeType(s string) (NodeType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if t := NodeType(key); t.Valid() {
		return t, nil
	}
	if t, ok := aliases[key]; ok {
		return t, nil
	}
	return "", fmt.Errorf("invalid node type %q", s)
}

// UnmarshalJSON canonicalises aliases. Unknown names are kept as-is so that
// resolution can report them as unsupported instead of failing the decode.
func (t *NodeType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if parsed, err := ParseNodeType(s); err == nil {
		*t = parsed
		return nil
	}
	*t = NodeType(s)
	return nil
}

// Valid reports whether t is one of the declared node types.
func (t NodeType) Valid() bool {
	switch t {
	case MLPNeuron, AttentionHead, AutoencoderLatent, MLPAutoencoderLatent,
		AttentionAutoencoderLatent, AutoencoderLatentByTokenPair, ResidualStreamChannel,
		QKChannel, VChannel, Layer, VocabToken:
		return true
	}
	return false
}

// HasLayerAndIndex reports whether nodes of this type are addressed by a
// {layer, index} pair. Whole-layer and vocabulary-token nodes are not.
func (t NodeType) HasLayerAndIndex() bool {
	switch t {
	case MLPNeuron, AttentionHead, AutoencoderLatent, MLPAutoencoderLatent,
		AttentionAutoencoderLatent, AutoencoderLatentByTokenPair, ResidualStreamChannel,
		QKChannel, VChannel:
		return true
	case Layer, VocabToken:
		return false
	default:
		panic(fmt.Sprintf("nodes: unhandled node type %q", string(t)))
	}
}

// SupportsEmbeddingLookup reports whether the metadata store keeps explanation
// embeddings for this type.
func (t NodeType) SupportsEmbeddingLookup() bool {
	switch t {
	case MLPNeuron, AutoencoderLatent, MLPAutoencoderLatent, AttentionAutoencoderLatent:
		return true
	case AttentionHead, AutoencoderLatentByTokenPair, ResidualStreamChannel,
		QKChannel, VChannel, Layer, VocabToken:
		return false
	default:
		panic(fmt.Sprintf("nodes: unhandled node type %q", string(t)))
	}
}

// Label is the human-readable name of the type.
func (t NodeType) Label() string {
	switch t {
	case MLPNeuron:
		return "MLP Neuron"
	case AttentionHead:
		return "Attention Head"
	case AutoencoderLatent:
		return "Autoencoder Latent"
	case MLPAutoencoderLatent:
		return "MLP Autoencoder Latent"
	case AttentionAutoencoderLatent:
		return "Attention Autoencoder Latent"
	case AutoencoderLatentByTokenPair:
		return "Autoencoder Latent (token pair)"
	case ResidualStreamChannel:
		return "Residual Stream Channel"
	case QKChannel:
		return "QK Channel"
	case VChannel:
		return "V Channel"
	case Layer:
		return "Layer"
	case VocabToken:
		return "Vocab Token"
	default:
		panic(fmt.Sprintf("nodes: unhandled node type %q", string(t)))
	}
}

// NodeIdentity uniquely identifies a unit within a model. It is comparable and
// safe to use as a map key.
type NodeIdentity struct {
	Type  NodeType `json:"node_type"`
	Layer int      `json:"layer_index"`
	Index int      `json:"node_index"`
}

func (id NodeIdentity) String() string {
	return fmt.Sprintf("%s:%d:%d", id.Type, id.Layer, id.Index)
}

// Key is the {layer, index} pair the metadata store is keyed by.
func (id NodeIdentity) Key() LayerIndex {
	return LayerIndex{Layer: id.Layer, Index: id.Index}
}

// LayerIndex addresses a row in the metadata store.
type LayerIndex struct {
	Layer int
	Index int
}

// RawNodeIndex is the inference backend's representation of a node. The unit
// index is the last entry of TensorIndices; leading entries are token positions.
type RawNodeIndex struct {
	NodeType      NodeType `json:"node_type"`
	LayerIndex    *int     `json:"layer_index"`
	TensorIndices []int    `json:"tensor_indices"`
	PassType      string   `json:"pass_type,omitempty"`
}
