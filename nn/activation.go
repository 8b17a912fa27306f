package nn

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Activation is the nonlinearity applied after a layer's affine map.
// Activate must tolerate in and out being the same slice.
type Activation interface {
	Activate(in, out []float64)
	fmt.Stringer
}

// Differentiable is an Activation that can be trained through.
//
// DirectionalDerivative writes J(in)·dir into out, where J is the Jacobian
// of the activation evaluated at the pre-activation vector in. dir and out
// may be the same slice.
type Differentiable interface {
	Activation
	DirectionalDerivative(in, dir, out []float64)
}

// ActivationLookup maps configuration names to activations.
var ActivationLookup = map[string]Activation{
	"passthrough": Passthrough{},
	"identity":    Passthrough{},
	"logistic":    Logistic{},
	"sigmoid":     Logistic{},
	"softmax":     Softmax{},
	"tanh":        Tanh{},
	"relu":        ReLU{},
}

// ActivationByName returns the activation registered under name.
func ActivationByName(name string) (Activation, error) {
	a, ok := ActivationLookup[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownActivation, name, activationNames())
	}
	return a, nil
}

func activationNames() []string {
	names := make([]string, 0, len(ActivationLookup))
	for k := range ActivationLookup {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Passthrough is the identity activation.
type Passthrough struct{}

func (Passthrough) Activate(in, out []float64) {
	mustLen("passthrough", len(in), out)
	copy(out, in)
}

func (Passthrough) DirectionalDerivative(in, dir, out []float64) {
	mustLen("passthrough derivative", len(in), dir, out)
	copy(out, dir)
}

func (Passthrough) String() string { return "passthrough" }

// Logistic applies the sigmoid 1/(1+e^-z) to each component.
type Logistic struct{}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func (Logistic) Activate(in, out []float64) {
	mustLen("logistic", len(in), out)
	for k, z := range in {
		out[k] = sigmoid(z)
	}
}

// DirectionalDerivative uses the diagonal Jacobian g(z)(1-g(z)).
func (Logistic) DirectionalDerivative(in, dir, out []float64) {
	mustLen("logistic derivative", len(in), dir, out)
	for j, z := range in {
		g := sigmoid(z)
		out[j] = dir[j] * g * (1 - g)
	}
}

func (Logistic) String() string { return "logistic" }

// Softmax is the normalized exponential e^z_k / Σ e^z_i.
//
// The maximum input is subtracted before exponentiating, so large inputs
// do not overflow.
type Softmax struct{}

func (Softmax) Activate(in, out []float64) {
	mustLen("softmax", len(in), out)
	if len(in) == 0 {
		return
	}
	hi := floats.Max(in)
	var norm float64
	for k, z := range in {
		e := math.Exp(z - hi)
		out[k] = e
		norm += e
	}
	floats.Scale(1/norm, out)
}

// DirectionalDerivative computes
//
//	dg_j = g_j * Σ_{k≠j} g_k (dir_j - dir_k)
//
// which is the dense softmax Jacobian applied to dir with 1-g_j rewritten as
// Σ_{k≠j} g_k. That form avoids the cancellation in g(1-g) near 0 and 1.
func (Softmax) DirectionalDerivative(in, dir, out []float64) {
	mustLen("softmax derivative", len(in), dir, out)
	n := len(in)
	scratch := make([]float64, 2*n)
	g, d := scratch[:n], scratch[n:]
	Softmax{}.Activate(in, g)
	copy(d, dir)
	for j := range out {
		var acc float64
		for k := range g {
			if k == j {
				continue
			}
			acc += g[k] * (d[j] - d[k])
		}
		out[j] = g[j] * acc
	}
}

func (Softmax) String() string { return "softmax" }

// Tanh applies the hyperbolic tangent to each component.
type Tanh struct{}

func (Tanh) Activate(in, out []float64) {
	mustLen("tanh", len(in), out)
	for k, z := range in {
		out[k] = math.Tanh(z)
	}
}

func (Tanh) DirectionalDerivative(in, dir, out []float64) {
	mustLen("tanh derivative", len(in), dir, out)
	for j, z := range in {
		t := math.Tanh(z)
		out[j] = dir[j] * (1 - t*t)
	}
}

func (Tanh) String() string { return "tanh" }

// reluLeak is the slope of ReLU below zero.
const reluLeak = 0.0001

// ReLU is a leaky rectifier: z for z >= 0, reluLeak*z otherwise.
type ReLU struct{}

func (ReLU) Activate(in, out []float64) {
	mustLen("relu", len(in), out)
	for k, z := range in {
		if z < 0 {
			out[k] = reluLeak * z
		} else {
			out[k] = z
		}
	}
}

func (ReLU) DirectionalDerivative(in, dir, out []float64) {
	mustLen("relu derivative", len(in), dir, out)
	for j, z := range in {
		if z < 0 {
			out[j] = reluLeak * dir[j]
		} else {
			out[j] = dir[j]
		}
	}
}

func (ReLU) String() string { return "relu" }
