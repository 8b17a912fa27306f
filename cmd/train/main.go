// mnist-train: trains a fully-connected network on MNIST one example at a
// time and reports per-epoch accuracy.
//
// Usage:
//
//	mnist-train --arch="784,100,10" --act=logistic --lr=0.01 --epochs=5
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"golang.org/x/exp/rand"

	"github.com/roush2j/cps680-mnist/display"
	"github.com/roush2j/cps680-mnist/mnist"
	"github.com/roush2j/cps680-mnist/train"
	"github.com/roush2j/cps680-mnist/utils"
)

var (
	defaults = utils.DefaultConfig()

	arch      = flag.String("arch", "784,100,10", "Layer widths, input first")
	acts      = flag.String("act", "logistic", "Activation per transition, or one name for every hidden transition")
	outAct    = flag.String("out-act", defaults.OutputActivation, "Output activation when -act names a single activation")
	lossName  = flag.String("loss", defaults.Loss, "Loss: mse, cross-entropy, softmax-cross-entropy")
	lr        = flag.Float64("lr", defaults.LearningRate, "Learning rate")
	epochs    = flag.Int("epochs", defaults.Epochs, "Number of training epochs")
	seed      = flag.Int64("seed", defaults.Seed, "Random seed")
	sigma     = flag.Float64("sigma", defaults.InitSigma, "Std-dev of initial weights, 0 for uniform ±1/√fan-in")
	limit     = flag.Int("limit", 0, "Examples per pass, 0 for all")
	dataRoot  = flag.String("data", defaults.DataRoot, "Directory holding the MNIST IDX files")
	trainCSV  = flag.String("csv", "", "Train from a CSV file (label,p0..pN) instead of IDX files")
	testCSV   = flag.String("test-csv", "", "CSV test set used with -csv")
	shuffle   = flag.Bool("shuffle", false, "Shuffle CSV training data once before training")
	analysis  = flag.String("analysis", "", "Append per-epoch results to this CSV file")
	dumpDir   = flag.String("dump", "", "Write weight images of the first layer to this directory")
	verbose   = flag.Bool("verbose", true, "Verbose output")
	imageRows = 28
	imageCols = 28
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	config, err := buildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("  Architecture:  %v\n", config.Architecture)
	fmt.Printf("  Activations:   %v\n", config.ActivationNames())
	fmt.Printf("  Loss:          %s\n", config.Loss)
	fmt.Printf("  Learning Rate: %g\n", config.LearningRate)
	fmt.Printf("  Epochs:        %d\n", config.Epochs)
	fmt.Printf("  Seed:          %d\n", config.Seed)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildConfig() (*utils.Config, error) {
	config := utils.DefaultConfig()
	a, err := utils.ParseArchitecture(*arch)
	if err != nil {
		return nil, fmt.Errorf("parsing architecture: %w", err)
	}
	config.Architecture = a
	config.Activations = utils.ParseActivations(*acts)
	config.OutputActivation = *outAct
	config.Loss = *lossName
	config.LearningRate = *lr
	config.Epochs = *epochs
	config.Seed = *seed
	config.InitSigma = *sigma
	config.Limit = *limit
	config.DataRoot = *dataRoot
	config.AnalysisFile = *analysis
	config.DumpDir = *dumpDir
	if err := utils.ValidateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func run(ctx context.Context, config *utils.Config) error {
	stats := &utils.TimingStats{}
	totalStart := time.Now()

	start := time.Now()
	net, err := config.Build()
	if err != nil {
		return err
	}
	utils.Track(&stats.ModelInitTime, start)

	start = time.Now()
	trainSrc, testSrc, closeData, err := openData(config)
	if err != nil {
		return err
	}
	defer closeData()
	utils.Track(&stats.DataLoadingTime, start)

	trainer := &train.Trainer{
		Net:    net,
		Rate:   config.LearningRate,
		Epochs: config.Epochs,
		Limit:  config.Limit,
		Stats:  stats,
	}
	if config.AnalysisFile != "" {
		trainer.Report = train.NewReport(config.AnalysisFile, net, config.LearningRate)
	}

	fmt.Println("Starting training...")
	results, err := trainer.Run(ctx, trainSrc, testSrc)
	if err != nil {
		return err
	}
	if n := len(results); n > 0 && results[n-1].Test != nil {
		ev := results[n-1].Test
		fmt.Printf("\nFinal test accuracy: %.2f%% over %d examples\n", 100*ev.Accuracy, ev.Examples)
		for class, r := range ev.Recall() {
			fmt.Printf("  %d: %.2f%%\n", class, 100*r)
		}
	}

	if config.DumpDir != "" {
		n, err := display.DumpWeights(config.DumpDir, net, imageRows, imageCols)
		if err != nil {
			return fmt.Errorf("dumping weights: %w", err)
		}
		fmt.Printf("Wrote %d weight images to %s\n", n, config.DumpDir)
	}

	stats.TotalTime = time.Since(totalStart)
	utils.PrintTimingStats(stats)
	return nil
}

// openData opens the training and test sources named by the flags.
// The test source is nil when no test data was given.
func openData(config *utils.Config) (trainSrc, testSrc train.Source, closeFn func(), err error) {
	width := config.Architecture[0]
	if *trainCSV != "" {
		lines, err := mnist.ReadCSVFile(*trainCSV, width)
		if err != nil {
			return nil, nil, nil, err
		}
		utils.Logf("loaded %d training lines from %s", len(lines), *trainCSV)
		src := mnist.NewLineSource(lines, width)
		if *shuffle {
			src.Shuffle(rand.NewSource(uint64(config.Seed)))
		}
		trainSrc = src
		if *testCSV != "" {
			lines, err := mnist.ReadCSVFile(*testCSV, width)
			if err != nil {
				return nil, nil, nil, err
			}
			utils.Logf("loaded %d test lines from %s", len(lines), *testCSV)
			testSrc = mnist.NewLineSource(lines, width)
		}
		return trainSrc, testSrc, func() {}, nil
	}

	trainSet, err := mnist.Open(config.DataRoot, config.TrainImages, config.TrainLabels)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening training set: %w", err)
	}
	utils.Logf("training set %s: %d images", filepath.Join(config.DataRoot, config.TrainImages), trainSet.Len())
	testSet, err := mnist.Open(config.DataRoot, config.TestImages, config.TestLabels)
	if err != nil {
		trainSet.Close()
		return nil, nil, nil, fmt.Errorf("opening test set: %w", err)
	}
	utils.Logf("test set %s: %d images", filepath.Join(config.DataRoot, config.TestImages), testSet.Len())
	return trainSet, testSet, func() {
		trainSet.Close()
		testSet.Close()
	}, nil
}
