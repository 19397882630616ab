package projection

import (
	"errors"
	"fmt"
)

// MinSurvivors is the smallest batch a projection is defined for.
const MinSurvivors = 2

// ErrProjectionInputTooSmall is returned when fewer than MinSurvivors
// embeddings survive fetching and dimension checks.
var ErrProjectionInputTooSmall = errors.New("projection input too small")

// InputTooSmallError reports how many of the requested nodes survived.
// Zero and one survivors fail the same way; Survivors tells them apart.
type InputTooSmallError struct {
	Survivors int
	Requested int
}

func (e *InputTooSmallError) Error() string {
	return fmt.Sprintf("%s: %d of %d nodes have usable embeddings, need at least %d",
		ErrProjectionInputTooSmall, e.Survivors, e.Requested, MinSurvivors)
}

func (e *InputTooSmallError) Unwrap() error { return ErrProjectionInputTooSmall }
