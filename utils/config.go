package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roush2j/cps680-mnist/nn"
)

// Config holds training configuration
type Config struct {
	Architecture []int
	// Activations names one activation per layer transition. A single name
	// is used for every hidden transition, with OutputActivation on the last.
	Activations      []string
	OutputActivation string
	Loss             string

	LearningRate float64
	Epochs       int
	Seed         int64
	InitSigma    float64 // 0 selects uniform ±1/√fan-in initialisation
	Limit        int     // examples per epoch, 0 for all

	DataRoot     string
	TrainImages  string
	TrainLabels  string
	TestImages   string
	TestLabels   string
	AnalysisFile string
	DumpDir      string
}

// DefaultConfig matches the classic 784-100-10 MNIST setup.
func DefaultConfig() Config {
	return Config{
		Architecture:     []int{784, 100, 10},
		Activations:      []string{"logistic"},
		OutputActivation: "passthrough",
		Loss:             "softmax-cross-entropy",
		LearningRate:     0.01,
		Epochs:           5,
		Seed:             42,
		InitSigma:        0.5,
		DataRoot:         "data",
		TrainImages:      "train-images-idx3-ubyte.gz",
		TrainLabels:      "train-labels-idx1-ubyte.gz",
		TestImages:       "t10k-images-idx3-ubyte.gz",
		TestLabels:       "t10k-labels-idx1-ubyte.gz",
	}
}

// ParseArchitecture parses architecture string into slice of integers
func ParseArchitecture(archStr string) ([]int, error) {
	archParts := strings.Fields(strings.ReplaceAll(archStr, ",", " "))
	arch := make([]int, len(archParts))
	for i, s := range archParts {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		arch[i] = n
	}
	return arch, nil
}

// ParseActivations splits a comma-separated list of activation names.
func ParseActivations(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}

// ValidateConfig validates training configuration
func ValidateConfig(config *Config) error {
	if len(config.Architecture) < 2 {
		return fmt.Errorf("architecture must have at least 2 layers (input and output)")
	}
	for i, w := range config.Architecture {
		if w <= 0 {
			return fmt.Errorf("layer %d width must be positive, got %d", i, w)
		}
	}

	transitions := len(config.Architecture) - 1
	if n := len(config.Activations); n != 1 && n != transitions {
		return fmt.Errorf("need 1 or %d activations, got %d", transitions, n)
	}

	if config.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive")
	}

	if config.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive")
	}

	if config.InitSigma < 0 {
		return fmt.Errorf("init sigma must not be negative")
	}

	if config.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}

	return nil
}

// ActivationNames expands the configured names to one per transition.
// A full list is used as given; a single name is repeated for every
// transition, with OutputActivation (if set) on the last one.
func (c *Config) ActivationNames() []string {
	transitions := len(c.Architecture) - 1
	if len(c.Activations) == transitions {
		return append([]string(nil), c.Activations...)
	}
	names := make([]string, transitions)
	for i := range names {
		names[i] = c.Activations[0]
	}
	if c.OutputActivation != "" {
		names[transitions-1] = c.OutputActivation
	}
	return names
}

// Build validates the configuration and returns an initialised network.
func (c *Config) Build() (*nn.Network, error) {
	if err := ValidateConfig(c); err != nil {
		return nil, err
	}
	names := c.ActivationNames()
	acts := make([]nn.Activation, len(names))
	for i, name := range names {
		a, err := nn.ActivationByName(name)
		if err != nil {
			return nil, fmt.Errorf("transition %d: %w", i, err)
		}
		acts[i] = a
	}
	loss, err := nn.LossByName(c.Loss)
	if err != nil {
		return nil, err
	}
	net, err := nn.New(c.Architecture, acts, loss)
	if err != nil {
		return nil, err
	}

	src := rand.NewSource(uint64(c.Seed))
	for i := 0; i < net.Transitions(); i++ {
		net.InitLayer(i, c.initializer(i, src))
	}
	return net, nil
}

// initializer draws from N(0, InitSigma), or from U(-1/√n, 1/√n) over the
// fan-in n of transition i when InitSigma is zero.
func (c *Config) initializer(i int, src rand.Source) distuv.Rander {
	if c.InitSigma > 0 {
		return distuv.Normal{Mu: 0, Sigma: c.InitSigma, Src: src}
	}
	bound := 1 / math.Sqrt(float64(c.Architecture[i]))
	return distuv.Uniform{Min: -bound, Max: bound, Src: src}
}
