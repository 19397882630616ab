package nodes

import (
	"errors"
	"fmt"
)

// Resolve maps a raw backend node index to its canonical identity.
func Resolve(raw RawNodeIndex) (NodeIdentity, error) {
	if !raw.NodeType.Valid() {
		return NodeIdentity{}, &UnsupportedNodeTypeError{Type: raw.NodeType, Reason: "unknown type"}
	}
	if !raw.NodeType.HasLayerAndIndex() {
		return NodeIdentity{}, &UnsupportedNodeTypeError{Type: raw.NodeType, Reason: "no layer/index representation"}
	}
	if raw.LayerIndex == nil {
		return NodeIdentity{}, &UnsupportedNodeTypeError{Type: raw.NodeType, Reason: "missing layer index"}
	}
	if len(raw.TensorIndices) == 0 {
		return NodeIdentity{}, &UnsupportedNodeTypeError{Type: raw.NodeType, Reason: "missing tensor indices"}
	}

	layer := *raw.LayerIndex
	index := raw.TensorIndices[len(raw.TensorIndices)-1]
	if layer < 0 || index < 0 {
		return NodeIdentity{}, fmt.Errorf("negative layer or node index in %s node (%d, %d)", raw.NodeType, layer, index)
	}
	return NodeIdentity{Type: raw.NodeType, Layer: layer, Index: index}, nil
}

// Filtered is the subset of a node list matching one type, together with each
// retained entry's position in the original list.
type Filtered struct {
	Nodes     []RawNodeIndex
	Positions []int
}

// FilterByType keeps entries of the target type. Positions[i] is the index of
// Nodes[i] in the input, for re-aligning parallel metric arrays.
func FilterByType(raw []RawNodeIndex, target NodeType) Filtered {
	var out Filtered
	for i, n := range raw {
		if n.NodeType != target {
			continue
		}
		out.Nodes = append(out.Nodes, n)
		out.Positions = append(out.Positions, i)
	}
	return out
}

// ResolveAll resolves every filtered node. Unsupported nodes are dropped along
// with their positions; other resolution errors are returned.
func ResolveAll(f Filtered) (ids []NodeIdentity, positions []int, skipped int, err error) {
	for i, raw := range f.Nodes {
		id, rerr := Resolve(raw)
		if rerr != nil {
			if errors.Is(rerr, ErrUnsupportedNodeType) {
				skipped++
				continue
			}
			return nil, nil, skipped, rerr
		}
		ids = append(ids, id)
		positions = append(positions, f.Positions[i])
	}
	return ids, positions, skipped, nil
}

// Realign gathers values at the given original positions.
func Realign(values []float64, positions []int) ([]float64, error) {
	out := make([]float64, len(positions))
	for i, p := range positions {
		if p < 0 || p >= len(values) {
			return nil, fmt.Errorf("position %d out of range for %d values", p, len(values))
		}
		out[i] = values[p]
	}
	return out, nil
}
