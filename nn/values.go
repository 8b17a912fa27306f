package nn

// Values holds one vector per layer of a network. Values[0] is the input,
// Values[len-1] the output.
type Values [][]float64

// Input returns the input layer vector.
func (v Values) Input() []float64 { return v[0] }

// Output returns the output layer vector.
func (v Values) Output() []float64 { return v[len(v)-1] }

// Buffers is the caller-owned scratch space for Network.Train.
//
// After a training step Act holds every layer's post-activation value,
// PreAct every layer's pre-activation value, and Grad the gradient of the
// loss with respect to each layer's pre-activation value. Index 0 of PreAct
// and Grad is never written.
type Buffers struct {
	Act    Values
	PreAct Values
	Grad   Values
}

// NewValues allocates a Values sized to the network's shape.
func (n *Network) NewValues() Values {
	v := make(Values, len(n.shape))
	for i, w := range n.shape {
		v[i] = make([]float64, w)
	}
	return v
}

// NewBuffers allocates training buffers sized to the network's shape.
func (n *Network) NewBuffers() *Buffers {
	return &Buffers{
		Act:    n.NewValues(),
		PreAct: n.NewValues(),
		Grad:   n.NewValues(),
	}
}

func (n *Network) checkValues(op string, v Values) {
	if len(v) != len(n.shape) {
		panic(shapeError(op, "layer count", len(v), len(n.shape)))
	}
	for i, w := range n.shape {
		mustLen(op, w, v[i])
	}
}
