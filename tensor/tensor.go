package tensor

import "fmt"

// Tensor is a simple n-D array backed by a flat []float64.
type Tensor struct {
	Data  []float64
	Shape []int
}

// New allocates a Tensor of given shape (product of dims = len(Data)).
func New(shape ...int) *Tensor {
	total := 1
	for _, d := range shape {
		total *= d
	}
	return &Tensor{
		Data:  make([]float64, total),
		Shape: append([]int(nil), shape...),
	}
}

// NewWithData creates a 1-D tensor from existing data slice.
func NewWithData(data []float64) *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), data...),
		Shape: []int{len(data)},
	}
}

// FromBytes builds a rows x cols image from unsigned 8-bit pixels in
// row-major order, scaled to [0,1].
func FromBytes(pix []byte, rows, cols int) (*Tensor, error) {
	if len(pix) != rows*cols {
		return nil, fmt.Errorf("FromBytes: %d pixels for a %dx%d image", len(pix), rows, cols)
	}
	t := New(rows, cols)
	for i, p := range pix {
		t.Data[i] = float64(p) / 255
	}
	return t, nil
}

// Strided builds a rows x cols tensor from every stride-th element of src,
// starting at offset. A column of a row-major table with stride columns is
// Strided(table, col, stride, ...).
func Strided(src []float64, offset, stride, rows, cols int) (*Tensor, error) {
	n := rows * cols
	if n > 0 && offset+stride*(n-1) >= len(src) {
		return nil, fmt.Errorf("Strided: %d elements at offset %d stride %d exceed source of %d",
			n, offset, stride, len(src))
	}
	t := New(rows, cols)
	for i := range t.Data {
		t.Data[i] = src[offset+stride*i]
	}
	return t, nil
}

// Normalize maps [min,max] linearly onto [0,1] in place, clamping values
// that fall outside.
func (t *Tensor) Normalize(min, max float64) *Tensor {
	span := max - min
	for i, v := range t.Data {
		n := (v - min) / span
		switch {
		case n < 0:
			n = 0
		case n > 1:
			n = 1
		}
		t.Data[i] = n
	}
	return t
}

// Rows and Cols return the dimensions of a 2-D tensor.
func (t *Tensor) Rows() int { return t.dim(0) }
func (t *Tensor) Cols() int { return t.dim(1) }

func (t *Tensor) dim(i int) int {
	if len(t.Shape) != 2 {
		panic(fmt.Sprintf("tensor: expected 2-D shape, got %v", t.Shape))
	}
	return t.Shape[i]
}

// At returns the element at the given indices.
// For a 4D tensor [a, b, c, d], At(i, j, k, l) returns the element at position [i][j][k][l].
func (t *Tensor) At(indices ...int) float64 {
	return t.Data[t.offset("At", indices)]
}

// Set sets the element at the given indices to the given value.
func (t *Tensor) Set(value float64, indices ...int) {
	t.Data[t.offset("Set", indices)] = value
}

func (t *Tensor) offset(op string, indices []int) int {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("%s: expected %d indices, got %d", op, len(t.Shape), len(indices)))
	}

	// Compute linear index
	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.Shape[i] {
			panic(fmt.Sprintf("%s: index %d out of bounds for dimension %d (shape: %v)", op, indices[i], i, t.Shape))
		}
		idx += indices[i] * stride
		stride *= t.Shape[i]
	}
	return idx
}
