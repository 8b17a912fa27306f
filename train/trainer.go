// Package train drives online training and evaluation of an nn.Network
// over a stream of labelled examples.
package train

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/roush2j/cps680-mnist/nn"
	"github.com/roush2j/cps680-mnist/utils"
)

// ErrDiverged is returned when the network output stops being a number.
var ErrDiverged = errors.New("training diverged")

// Source is a rewindable stream of labelled examples.
type Source interface {
	// Next writes the next example into features and returns its label,
	// or io.EOF once the stream is exhausted.
	Next(features []float64) (label int, err error)
	// Reset rewinds to the first example.
	Reset() error
	// Width is the number of features per example.
	Width() int
}

// OneHot writes the target vector for label into dst.
func OneHot(label int, dst []float64) error {
	if label < 0 || label >= len(dst) {
		return fmt.Errorf("label %d outside [0,%d)", label, len(dst))
	}
	for i := range dst {
		dst[i] = 0
	}
	dst[label] = 1
	return nil
}

// EpochResult summarises one pass over the training data.
type EpochResult struct {
	Epoch    int
	Examples int
	MeanLoss float64
	Accuracy float64
	Duration time.Duration
	Test     *Evaluation // nil when no test source was given
}

// Evaluation summarises the network's performance on a data set.
type Evaluation struct {
	Examples int
	MeanLoss float64
	Accuracy float64
	// Confusion counts examples by actual label (row) and predicted label
	// (column).
	Confusion *mat.Dense
}

// Recall returns, per class, the fraction of its examples predicted
// correctly. Classes with no examples report 0.
func (e *Evaluation) Recall() []float64 {
	r, _ := e.Confusion.Dims()
	recall := make([]float64, r)
	for i := range recall {
		if total := floats.Sum(e.Confusion.RawRowView(i)); total > 0 {
			recall[i] = e.Confusion.At(i, i) / total
		}
	}
	return recall
}

// Trainer runs stochastic gradient descent one example at a time.
type Trainer struct {
	Net    *nn.Network
	Rate   float64
	Epochs int
	Limit  int // examples per pass, 0 for all
	Stats  *utils.TimingStats
	Report *Report
}

func (t *Trainer) stats() *utils.TimingStats {
	if t.Stats == nil {
		t.Stats = &utils.TimingStats{}
	}
	return t.Stats
}

func (t *Trainer) checkWidth(src Source) error {
	if w := t.Net.Shape()[0]; src.Width() != w {
		return fmt.Errorf("source has %d features, network input has %d", src.Width(), w)
	}
	return nil
}

// Epoch trains on every example of src from its current position. The
// loss and accuracy are those of the forward pass taken before each
// update.
func (t *Trainer) Epoch(ctx context.Context, src Source) (EpochResult, error) {
	var res EpochResult
	if err := t.checkWidth(src); err != nil {
		return res, err
	}
	stats := t.stats()
	begin := time.Now()

	b := t.Net.NewBuffers()
	expected := make([]float64, len(b.Act.Output()))
	var losses []float64
	correct := 0
	for t.Limit == 0 || res.Examples < t.Limit {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		start := time.Now()
		label, err := src.Next(b.Act.Input())
		utils.Track(&stats.DataLoadingTime, start)
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("example %d: %w", res.Examples, err)
		}
		if err := OneHot(label, expected); err != nil {
			return res, fmt.Errorf("example %d: %w", res.Examples, err)
		}

		start = time.Now()
		t.Net.Train(b, expected, t.Rate)
		utils.Track(&stats.TrainStepTime, start)

		out := b.Act.Output()
		if floats.HasNaN(out) {
			return res, fmt.Errorf("example %d: %w", res.Examples, ErrDiverged)
		}
		losses = append(losses, t.Net.Loss(b.Act, expected))
		if floats.MaxIdx(out) == label {
			correct++
		}
		res.Examples++
		stats.TrainExamples++
	}

	if res.Examples > 0 {
		res.MeanLoss = stat.Mean(losses, nil)
		res.Accuracy = float64(correct) / float64(res.Examples)
	}
	res.Duration = time.Since(begin)
	return res, nil
}

// Evaluate runs the network over src without training.
func (t *Trainer) Evaluate(ctx context.Context, src Source) (*Evaluation, error) {
	if err := t.checkWidth(src); err != nil {
		return nil, err
	}
	stats := t.stats()
	defer utils.Track(&stats.EvaluationTime, time.Now())

	values := t.Net.NewValues()
	classes := len(values.Output())
	expected := make([]float64, classes)
	ev := &Evaluation{Confusion: mat.NewDense(classes, classes, nil)}
	var losses []float64
	correct := 0
	for t.Limit == 0 || ev.Examples < t.Limit {
		if err := ctx.Err(); err != nil {
			return ev, err
		}
		label, err := src.Next(values.Input())
		if err == io.EOF {
			break
		}
		if err != nil {
			return ev, fmt.Errorf("example %d: %w", ev.Examples, err)
		}
		if err := OneHot(label, expected); err != nil {
			return ev, fmt.Errorf("example %d: %w", ev.Examples, err)
		}

		guess := t.Net.Predict(values)
		losses = append(losses, t.Net.Loss(values, expected))
		ev.Confusion.Set(label, guess, ev.Confusion.At(label, guess)+1)
		if guess == label {
			correct++
		}
		ev.Examples++
		stats.EvalExamples++
	}

	if ev.Examples > 0 {
		ev.MeanLoss = stat.Mean(losses, nil)
		ev.Accuracy = float64(correct) / float64(ev.Examples)
	}
	return ev, nil
}

// Run trains for t.Epochs passes over trainSrc, rewinding it before each
// pass, and evaluates on testSrc after each one when it is not nil. A
// cancelled ctx stops training between examples.
func (t *Trainer) Run(ctx context.Context, trainSrc, testSrc Source) ([]EpochResult, error) {
	if t.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", t.Epochs)
	}
	var results []EpochResult
	for epoch := 1; epoch <= t.Epochs; epoch++ {
		if err := trainSrc.Reset(); err != nil {
			return results, fmt.Errorf("rewinding training data: %w", err)
		}
		res, err := t.Epoch(ctx, trainSrc)
		res.Epoch = epoch
		if err != nil {
			return results, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		utils.Logf("epoch %d/%d: %d examples, loss %.4f, accuracy %.2f%% (%v)",
			epoch, t.Epochs, res.Examples, res.MeanLoss, 100*res.Accuracy, res.Duration.Round(time.Millisecond))

		if testSrc != nil {
			if err := testSrc.Reset(); err != nil {
				return results, fmt.Errorf("rewinding test data: %w", err)
			}
			ev, err := t.Evaluate(ctx, testSrc)
			if err != nil {
				return results, fmt.Errorf("epoch %d evaluation: %w", epoch, err)
			}
			res.Test = ev
			utils.Logf("epoch %d/%d: test loss %.4f, accuracy %.2f%% over %d examples",
				epoch, t.Epochs, ev.MeanLoss, 100*ev.Accuracy, ev.Examples)
		}

		if t.Report != nil {
			if err := t.Report.Write(res); err != nil {
				return results, err
			}
		}
		results = append(results, res)
	}
	return results, nil
}
