package nodes

import (
	"errors"
	"fmt"
)

// ErrUnsupportedNodeType is matched by every UnsupportedNodeTypeError.
var ErrUnsupportedNodeType = errors.New("unsupported node type")

// UnsupportedNodeTypeError reports a raw node that has no {layer, index} form.
type UnsupportedNodeTypeError struct {
	Type   NodeType
	Reason string
}

func (e *UnsupportedNodeTypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported node type %q: %s", string(e.Type), e.Reason)
	}
	return fmt.Sprintf("unsupported node type %q", string(e.Type))
}

func (e *UnsupportedNodeTypeError) Unwrap() error { return ErrUnsupportedNodeType }
