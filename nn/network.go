package nn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Network is a fully-connected feed-forward network.
//
// Transition i maps layer i to layer i+1 through weights[i], laid out as
// shape[i+1] bias terms followed by a shape[i] x shape[i+1] table stored
// row-major by source neuron. The slices are allocated once in New and only
// their values change afterwards.
//
// A Network is not safe for concurrent use while Train is running.
type Network struct {
	shape   []int
	acts    []Activation
	loss    Loss
	weights [][]float64
	tables  []*mat.Dense // views over weights[i][shape[i+1]:]
}

// New creates a network with all weights and biases set to zero.
// acts holds one activation per layer transition.
func New(shape []int, acts []Activation, loss Loss) (*Network, error) {
	if len(shape) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 layers, got %d", ErrConfig, len(shape))
	}
	for i, w := range shape {
		if w <= 0 {
			return nil, fmt.Errorf("%w: layer %d has width %d", ErrConfig, i, w)
		}
	}
	if len(acts) != len(shape)-1 {
		return nil, fmt.Errorf("%w: %d activations for %d layer transitions",
			ErrShape, len(acts), len(shape)-1)
	}
	for i, a := range acts {
		if a == nil {
			return nil, fmt.Errorf("%w: activation %d is nil", ErrConfig, i)
		}
	}
	if loss == nil {
		return nil, fmt.Errorf("%w: loss is nil", ErrConfig)
	}

	n := &Network{
		shape:   append([]int(nil), shape...),
		acts:    append([]Activation(nil), acts...),
		loss:    loss,
		weights: make([][]float64, len(shape)-1),
		tables:  make([]*mat.Dense, len(shape)-1),
	}
	for i := range n.weights {
		src, dst := shape[i], shape[i+1]
		n.weights[i] = make([]float64, (src+1)*dst)
		n.tables[i] = mat.NewDense(src, dst, n.weights[i][dst:])
	}
	return n, nil
}

// Init draws every weight and bias from r.
func (n *Network) Init(r distuv.Rander) {
	for i := range n.weights {
		n.InitLayer(i, r)
	}
}

// InitLayer draws the weights and bias of transition i from r.
func (n *Network) InitLayer(i int, r distuv.Rander) {
	w := n.weights[i]
	for k := range w {
		w[k] = r.Rand()
	}
}

// Shape returns a copy of the layer widths.
func (n *Network) Shape() []int { return append([]int(nil), n.shape...) }

// Activations returns the activation of each layer transition.
func (n *Network) Activations() []Activation { return append([]Activation(nil), n.acts...) }

// LossFunc returns the loss the network is trained against.
func (n *Network) LossFunc() Loss { return n.loss }

// Transitions returns the number of weight matrices, len(Shape())-1.
func (n *Network) Transitions() int { return len(n.weights) }

// Bias returns the bias terms of transition i. The slice aliases the
// network's storage.
func (n *Network) Bias(i int) []float64 {
	return n.weights[i][:n.shape[i+1]]
}

// Weights returns the weight table of transition i without the bias,
// with one row per source neuron and one column per destination neuron.
// The matrix shares storage with the network and must be treated as
// read-only.
func (n *Network) Weights(i int) mat.Matrix {
	return n.tables[i]
}

// SetWeights overwrites transition i with the given bias and weight table.
func (n *Network) SetWeights(i int, bias []float64, w mat.Matrix) error {
	if i < 0 || i >= len(n.weights) {
		return fmt.Errorf("%w: transition %d out of range [0,%d)", ErrShape, i, len(n.weights))
	}
	if len(bias) != n.shape[i+1] {
		return shapeError("SetWeights", "bias length", len(bias), n.shape[i+1])
	}
	r, c := w.Dims()
	if r != n.shape[i] || c != n.shape[i+1] {
		return fmt.Errorf("nn: SetWeights: %w: table is %dx%d, want %dx%d",
			ErrShape, r, c, n.shape[i], n.shape[i+1])
	}
	copy(n.Bias(i), bias)
	n.tables[i].Copy(w)
	return nil
}

// affine writes bias + Wᵀ·in into out for transition i.
func (n *Network) affine(i int, in, out []float64) {
	dst := mat.NewVecDense(len(out), out)
	dst.MulVec(n.tables[i].T(), mat.NewVecDense(len(in), in))
	floats.Add(out, n.Bias(i))
}

// Apply evaluates the network on values[0], leaving every layer's
// post-activation value in values. Nothing else is modified.
func (n *Network) Apply(values Values) {
	n.checkValues("Apply", values)
	for i, act := range n.acts {
		next := values[i+1]
		n.affine(i, values[i], next)
		act.Activate(next, next)
	}
}

// Predict evaluates the network and returns the index of the largest
// output, the first one on ties.
func (n *Network) Predict(values Values) int {
	n.Apply(values)
	return floats.MaxIdx(values.Output())
}

// Loss returns the loss of the output currently held in values.
func (n *Network) Loss(values Values, expected []float64) float64 {
	n.checkValues("Loss", values)
	return n.loss.Loss(values.Output(), expected)
}

// Train performs one stochastic gradient-descent step on the example whose
// input is in b.Act[0] and whose target output is expected. Each weight is
// updated in place by -rate times its gradient.
func (n *Network) Train(b *Buffers, expected []float64, rate float64) {
	n.checkValues("Train", b.Act)
	n.checkValues("Train", b.PreAct)
	n.checkValues("Train", b.Grad)
	last := len(n.shape) - 1
	mustLen("Train expected", n.shape[last], expected)

	for i, act := range n.acts {
		n.affine(i, b.Act[i], b.PreAct[i+1])
		act.Activate(b.PreAct[i+1], b.Act[i+1])
	}

	n.loss.Gradient(b.Act[last], expected, b.Grad[last])

	for k := last; k > 0; k-- {
		i := k - 1
		d, ok := n.acts[i].(Differentiable)
		if !ok {
			panic(fmt.Errorf("nn: Train: transition %d (%v): %w", i, n.acts[i], ErrNotDifferentiable))
		}
		// Grad[k] becomes dL/dz for layer k.
		d.DirectionalDerivative(b.PreAct[k], b.Grad[k], b.Grad[k])
		delta := mat.NewVecDense(len(b.Grad[k]), b.Grad[k])

		// Propagate through the weights before they are updated.
		if i > 0 {
			prev := mat.NewVecDense(len(b.Grad[i]), b.Grad[i])
			prev.MulVec(n.tables[i], delta)
		}

		n.tables[i].RankOne(n.tables[i], -rate, mat.NewVecDense(len(b.Act[i]), b.Act[i]), delta)
		floats.AddScaled(n.Bias(i), -rate, b.Grad[k])
	}
}

func shapeError(op, what string, got, want int) error {
	return fmt.Errorf("nn: %s: %w: %s is %d, want %d", op, ErrShape, what, got, want)
}
