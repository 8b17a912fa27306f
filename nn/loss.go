package nn

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Loss scores a network output against the expected output.
// Gradient must tolerate out and grad being the same slice.
type Loss interface {
	Loss(out, expected []float64) float64
	Gradient(out, expected, grad []float64)
	fmt.Stringer
}

// LossLookup maps configuration names to loss functions.
var LossLookup = map[string]Loss{
	"mse":                   MeanSquaredError{},
	"cross-entropy":         CrossEntropy{},
	"softmax-cross-entropy": SoftmaxCrossEntropy{},
}

// LossByName returns the loss registered under name.
func LossByName(name string) (Loss, error) {
	l, ok := LossLookup[name]
	if !ok {
		names := make([]string, 0, len(LossLookup))
		for k := range LossLookup {
			names = append(names, k)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownLoss, name, names)
	}
	return l, nil
}

// MeanSquaredError is the sum of squared component errors, Σ(e-z)².
type MeanSquaredError struct{}

func (MeanSquaredError) Loss(out, expected []float64) float64 {
	mustLen("mse", len(out), expected)
	var loss float64
	for k, z := range out {
		d := expected[k] - z
		loss += d * d
	}
	return loss
}

func (MeanSquaredError) Gradient(out, expected, grad []float64) {
	mustLen("mse gradient", len(out), expected, grad)
	for k, z := range out {
		grad[k] = -2 * (expected[k] - z)
	}
}

func (MeanSquaredError) String() string { return "mse" }

// CrossEntropy is -Σ e·log(z).
//
// Every output component must lie in (0,1]. This is not checked: a zero or
// negative output yields an infinite or NaN loss and gradient.
type CrossEntropy struct{}

func (CrossEntropy) Loss(out, expected []float64) float64 {
	mustLen("cross-entropy", len(out), expected)
	var loss float64
	for k, z := range out {
		if expected[k] == 0 {
			continue
		}
		loss -= expected[k] * math.Log(z)
	}
	return loss
}

func (CrossEntropy) Gradient(out, expected, grad []float64) {
	mustLen("cross-entropy gradient", len(out), expected, grad)
	for k, z := range out {
		if expected[k] == 0 {
			grad[k] = 0
			continue
		}
		grad[k] = -expected[k] / z
	}
}

func (CrossEntropy) String() string { return "cross-entropy" }

// SoftmaxCrossEntropy is cross-entropy taken over softmax(z), computed from
// the raw scores z directly:
//
//	L     = (Σ e)·log(Σ exp z) - Σ e·z
//	dL/dz = softmax(z)·(Σ e) - e
//
// Pair it with a Passthrough output activation.
type SoftmaxCrossEntropy struct{}

func (SoftmaxCrossEntropy) Loss(out, expected []float64) float64 {
	mustLen("softmax-cross-entropy", len(out), expected)
	if len(out) == 0 {
		return 0
	}
	return floats.Sum(expected)*floats.LogSumExp(out) - floats.Dot(expected, out)
}

func (SoftmaxCrossEntropy) Gradient(out, expected, grad []float64) {
	mustLen("softmax-cross-entropy gradient", len(out), expected, grad)
	if len(out) == 0 {
		return
	}
	total := floats.Sum(expected)
	Softmax{}.Activate(out, grad)
	for j, e := range expected {
		grad[j] = grad[j]*total - e
	}
}

func (SoftmaxCrossEntropy) String() string { return "softmax-cross-entropy" }
