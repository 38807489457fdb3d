package surgery

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrap details carry layer identification; test with
// errors.Is.
var (
	// ErrDependencyUnresolved marks a pruned layer whose channels cannot be
	// absorbed by any downstream consumer (they reach the graph output, so
	// removing them would change the observable output shape).
	ErrDependencyUnresolved = errors.New("unresolved channel dependency")

	// ErrShapeMismatch marks a producer/consumer pair whose channel counts
	// disagree. The whole surgery run is aborted; no partial graph is
	// returned.
	ErrShapeMismatch = errors.New("channel shape mismatch")
)

// ShapeMismatchError identifies the inconsistent layer pair.
type ShapeMismatchError struct {
	Producer string // producing layer name
	Consumer string // consuming layer name
	Param    string // consumer parameter involved
	Expected int    // channel count the producer declares
	Actual   int    // channel count the consumer's parameter axis has
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("channel shape mismatch: %q -> %q (%s): expected %d channels, got %d",
		e.Producer, e.Consumer, e.Param, e.Expected, e.Actual)
}

// Unwrap lets errors.Is match ErrShapeMismatch.
func (e *ShapeMismatchError) Unwrap() error {
	return ErrShapeMismatch
}
