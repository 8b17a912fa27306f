package nn

import (
	"errors"
	"fmt"
)

var (
	// ErrShape is reported when a vector, buffer or layer shape does not
	// match what the network was built with.
	ErrShape = errors.New("shape mismatch")
	// ErrConfig is reported for an unusable network description.
	ErrConfig = errors.New("invalid network configuration")
	// ErrNotDifferentiable is raised when training reaches an activation
	// that only supports evaluation.
	ErrNotDifferentiable = errors.New("activation has no directional derivative")
	ErrUnknownActivation = errors.New("unknown activation")
	ErrUnknownLoss       = errors.New("unknown loss")
)

// mustLen panics with ErrShape unless every vector has length n.
func mustLen(op string, n int, vs ...[]float64) {
	for _, v := range vs {
		if len(v) != n {
			panic(fmt.Errorf("nn: %s: %w: got length %d, want %d", op, ErrShape, len(v), n))
		}
	}
}
