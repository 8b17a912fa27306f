// Package display renders images and weight tables as grayscale pictures
// and text.
package display

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/roush2j/cps680-mnist/nn"
	"github.com/roush2j/cps680-mnist/tensor"
)

// WeightImage returns the weights feeding destination neuron dest of
// transition layer as a rows x cols image, mapping [-1,1] onto [0,1].
func WeightImage(net *nn.Network, layer, dest, rows, cols int) (*tensor.Tensor, error) {
	if layer < 0 || layer >= net.Transitions() {
		return nil, fmt.Errorf("transition %d out of range [0,%d)", layer, net.Transitions())
	}
	w := net.Weights(layer)
	src, dst := w.Dims()
	if dest < 0 || dest >= dst {
		return nil, fmt.Errorf("neuron %d out of range [0,%d)", dest, dst)
	}
	if rows*cols != src {
		return nil, fmt.Errorf("%dx%d image for %d source neurons", rows, cols, src)
	}

	var img *tensor.Tensor
	if rm, ok := w.(mat.RawMatrixer); ok {
		raw := rm.RawMatrix()
		var err error
		img, err = tensor.Strided(raw.Data, dest, raw.Stride, rows, cols)
		if err != nil {
			return nil, err
		}
	} else {
		img = tensor.New(rows, cols)
		mat.Col(img.Data, dest, w)
	}
	return img.Normalize(-1, 1), nil
}

// Gray converts a 2-D tensor of values in [0,1] to an 8-bit image,
// rounding to the nearest level and clamping values outside that range.
func Gray(t *tensor.Tensor) *image.Gray {
	rows, cols := t.Rows(), t.Cols()
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := t.Data[r*cols+c]
			switch {
			case v < 0:
				v = 0
			case v > 1:
				v = 1
			}
			img.Pix[r*img.Stride+c] = uint8(v*255 + 0.5)
		}
	}
	return img
}

// WritePNG encodes t as a grayscale PNG.
func WritePNG(w io.Writer, t *tensor.Tensor) error {
	return png.Encode(w, Gray(t))
}

// SavePNG writes t to a PNG file.
func SavePNG(path string, t *tensor.Tensor) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePNG(f, t); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}

// DumpWeights writes one weight-LL-QQ.png per destination neuron QQ of
// every transition LL whose source layer has rows*cols neurons. It returns
// the number of files written.
func DumpWeights(dir string, net *nn.Network, rows, cols int) (int, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return 0, err
	}
	shape := net.Shape()
	written := 0
	for l := 0; l < net.Transitions(); l++ {
		if shape[l] != rows*cols {
			continue
		}
		for q := 0; q < shape[l+1]; q++ {
			img, err := WeightImage(net, l, q, rows, cols)
			if err != nil {
				return written, err
			}
			name := filepath.Join(dir, fmt.Sprintf("weight-%02d-%02d.png", l, q))
			if err := SavePNG(name, img); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

const hexDigits = "0123456789ABCDEF"

// Hex prints the 8-bit pixels of t as space-separated pairs of hex digits,
// low nibble first, one line per row.
func Hex(t *tensor.Tensor) string {
	img := Gray(t)
	var sb strings.Builder
	for r := 0; r < t.Rows(); r++ {
		if r > 0 {
			sb.WriteByte('\n')
		}
		for _, p := range img.Pix[r*img.Stride : r*img.Stride+t.Cols()] {
			sb.WriteByte(hexDigits[p&0xF])
			sb.WriteByte(hexDigits[p>>4])
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

const shades = " .:-=+*#%@"

// ASCII renders t with one character per pixel, darker characters for
// larger values.
func ASCII(t *tensor.Tensor) string {
	img := Gray(t)
	var sb strings.Builder
	for r := 0; r < t.Rows(); r++ {
		for _, p := range img.Pix[r*img.Stride : r*img.Stride+t.Cols()] {
			sb.WriteByte(shades[int(p)*len(shades)/256])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
