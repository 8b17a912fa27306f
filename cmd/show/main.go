// mnist-show: prints the first images of an MNIST set with their labels
// and writes each one as NNNNN-L.png.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roush2j/cps680-mnist/display"
	"github.com/roush2j/cps680-mnist/mnist"
	"github.com/roush2j/cps680-mnist/tensor"
	"github.com/roush2j/cps680-mnist/utils"
)

var (
	defaults = utils.DefaultConfig()

	dataRoot = flag.String("data", defaults.DataRoot, "Directory holding the MNIST IDX files")
	images   = flag.String("images", defaults.TrainImages, "Image file")
	labels   = flag.String("labels", defaults.TrainLabels, "Label file")
	count    = flag.Int("n", 10, "Number of images to show")
	outDir   = flag.String("out", ".", "Directory for the PNG files")
	ascii    = flag.Bool("ascii", false, "Print shaded text instead of hex")
)

func main() {
	flag.Parse()
	if err := show(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func show() error {
	set, err := mnist.Open(*dataRoot, *images, *labels)
	if err != nil {
		return err
	}
	defer set.Close()
	if err := os.MkdirAll(*outDir, os.ModePerm); err != nil {
		return err
	}

	rows, cols := set.Images.Rows(), set.Images.Cols()
	pix := make([]byte, rows*cols)
	for i := 0; i < *count && set.Images.HasNext(); i++ {
		if err := set.Images.NextBytes(pix); err != nil {
			return err
		}
		label, err := set.Labels.Next()
		if err != nil {
			return err
		}
		img, err := tensor.FromBytes(pix, rows, cols)
		if err != nil {
			return err
		}

		fmt.Println(label)
		if *ascii {
			fmt.Print(display.ASCII(img))
		} else {
			fmt.Println(display.Hex(img))
		}
		name := filepath.Join(*outDir, fmt.Sprintf("%05d-%1d.png", i, label))
		if err := display.SavePNG(name, img); err != nil {
			return err
		}
	}
	return nil
}
