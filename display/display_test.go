package display

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/roush2j/cps680-mnist/nn"
	"github.com/roush2j/cps680-mnist/tensor"
)

// net4x2 has 4 inputs feeding 2 outputs; input i reaches output q with
// weight (i - 2) / 2 for q == 0 and the negation for q == 1.
func net4x2(t *testing.T) *nn.Network {
	t.Helper()
	net, err := nn.New([]int{4, 2}, []nn.Activation{nn.Logistic{}}, nn.MeanSquaredError{})
	require.NoError(t, err)
	w := mat.NewDense(4, 2, []float64{
		-1, 1,
		-0.5, 0.5,
		0, 0,
		0.5, -0.5,
	})
	require.NoError(t, net.SetWeights(0, []float64{9, 9}, w))
	return net
}

func TestWeightImage(t *testing.T) {
	net := net4x2(t)

	img, err := WeightImage(net, 0, 0, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, img.Shape)
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75}, img.Data)

	img, err = WeightImage(net, 0, 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0.75, 0.5, 0.25}, img.Data)
}

func TestWeightImageErrors(t *testing.T) {
	net := net4x2(t)
	_, err := WeightImage(net, 1, 0, 2, 2)
	assert.Error(t, err)
	_, err = WeightImage(net, 0, 2, 2, 2)
	assert.Error(t, err)
	_, err = WeightImage(net, 0, 0, 3, 3)
	assert.Error(t, err)
}

func TestGray(t *testing.T) {
	src := tensor.New(2, 3)
	copy(src.Data, []float64{0, 0.5, 1, -1, 2, 0.2})
	img := Gray(src)
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	assert.Equal(t, []uint8{0, 128, 255, 0, 255, 51}, img.Pix)
}

func TestWritePNGRoundTrip(t *testing.T) {
	src := tensor.New(2, 2)
	copy(src.Data, []float64{0, 1, 1, 0})
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, src))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	r, _, _, _ := img.At(1, 0).RGBA()
	assert.Equal(t, uint32(0xFFFF), r)
	r, _, _, _ = img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), r)
}

func TestDumpWeights(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "weights")
	n, err := DumpWeights(dir, net4x2(t), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, name := range []string{"weight-00-00.png", "weight-00-01.png"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	n, err = DumpWeights(dir, net4x2(t), 3, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestHex(t *testing.T) {
	src := tensor.New(2, 2)
	copy(src.Data, []float64{0, 1, 0.2, 0.125})
	assert.Equal(t, "00 FF \n33 02 ", Hex(src))
}

func TestASCII(t *testing.T) {
	src := tensor.New(1, 3)
	copy(src.Data, []float64{0, 0.5, 1})
	assert.Equal(t, " +@\n", ASCII(src))
}
