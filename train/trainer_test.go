package train

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/roush2j/cps680-mnist/nn"
	"github.com/roush2j/cps680-mnist/utils"
)

func TestMain(m *testing.M) {
	utils.Output = io.Discard
	os.Exit(m.Run())
}

type example struct {
	features []float64
	label    int
}

// memSource serves a fixed list of examples.
type memSource struct {
	examples []example
	pos      int
	resets   int
}

func (s *memSource) Width() int { return len(s.examples[0].features) }

func (s *memSource) Next(features []float64) (int, error) {
	if s.pos >= len(s.examples) {
		return 0, io.EOF
	}
	e := s.examples[s.pos]
	s.pos++
	copy(features, e.features)
	return e.label, nil
}

func (s *memSource) Reset() error {
	s.pos = 0
	s.resets++
	return nil
}

func twoClasses() *memSource {
	return &memSource{examples: []example{
		{[]float64{1, 0}, 0},
		{[]float64{0, 1}, 1},
	}}
}

func linearNet(t *testing.T) *nn.Network {
	t.Helper()
	net, err := nn.New([]int{2, 2}, []nn.Activation{nn.Passthrough{}}, nn.SoftmaxCrossEntropy{})
	require.NoError(t, err)
	return net
}

func TestOneHot(t *testing.T) {
	dst := []float64{5, 5, 5}
	require.NoError(t, OneHot(1, dst))
	assert.Equal(t, []float64{0, 1, 0}, dst)

	assert.Error(t, OneHot(3, dst))
	assert.Error(t, OneHot(-1, dst))
}

func TestEvaluateConfusion(t *testing.T) {
	net := linearNet(t)
	require.NoError(t, net.SetWeights(0, []float64{0, 0}, mat.NewDense(2, 2, []float64{1, 0, 0, 1})))
	src := &memSource{examples: []example{
		{[]float64{1, 0}, 0},
		{[]float64{0, 1}, 1},
		{[]float64{1, 0}, 1},
	}}

	tr := &Trainer{Net: net}
	ev, err := tr.Evaluate(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 3, ev.Examples)
	assert.InDelta(t, 2.0/3, ev.Accuracy, 1e-12)
	assert.InDelta(t, math.Log1p(math.Exp(-1))+1.0/3, ev.MeanLoss, 1e-12)
	assert.Equal(t, []float64{1, 0, 1, 1}, ev.Confusion.RawMatrix().Data)
	assert.Equal(t, []float64{1, 0.5}, ev.Recall())
	assert.Equal(t, 3, tr.Stats.EvalExamples)
}

func TestEpochLearnsSeparableData(t *testing.T) {
	net := linearNet(t)
	tr := &Trainer{Net: net, Rate: 0.5}
	ctx := context.Background()
	src := twoClasses()

	var last EpochResult
	for i := 0; i < 20; i++ {
		require.NoError(t, src.Reset())
		res, err := tr.Epoch(ctx, src)
		require.NoError(t, err)
		last = res
	}
	assert.Equal(t, 2, last.Examples)
	assert.Equal(t, 1.0, last.Accuracy)
	assert.Less(t, last.MeanLoss, 0.1)
	assert.Equal(t, 40, tr.Stats.TrainExamples)

	require.NoError(t, src.Reset())
	ev, err := tr.Evaluate(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 1.0, ev.Accuracy)
}

func TestEpochLimit(t *testing.T) {
	tr := &Trainer{Net: linearNet(t), Rate: 0.1, Limit: 1}
	res, err := tr.Epoch(context.Background(), twoClasses())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Examples)
}

func TestEpochErrors(t *testing.T) {
	ctx := context.Background()
	tr := &Trainer{Net: linearNet(t), Rate: 0.1}

	_, err := tr.Epoch(ctx, &memSource{examples: []example{{[]float64{1, 0, 0}, 0}}})
	assert.Error(t, err, "width mismatch")

	_, err = tr.Epoch(ctx, &memSource{examples: []example{{[]float64{1, 0}, 2}}})
	assert.Error(t, err, "label out of range")

	_, err = tr.Epoch(ctx, &memSource{examples: []example{{[]float64{math.NaN(), 0}, 0}}})
	assert.ErrorIs(t, err, ErrDiverged)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := &Trainer{Net: linearNet(t), Rate: 0.1, Epochs: 3}
	results, err := tr.Run(ctx, twoClasses(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestRunResetsAndReports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "analysis.csv")
	net := linearNet(t)
	tr := &Trainer{Net: net, Rate: 0.5, Epochs: 3, Report: NewReport(path, net, 0.5)}
	trainSrc, testSrc := twoClasses(), twoClasses()

	results, err := tr.Run(context.Background(), trainSrc, testSrc)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 3, trainSrc.resets)
	assert.Equal(t, 3, testSrc.resets)
	for i, res := range results {
		assert.Equal(t, i+1, res.Epoch)
		assert.Equal(t, 2, res.Examples)
		require.NotNil(t, res.Test)
		assert.Equal(t, 2, res.Test.Examples)
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, reportHeaders, rows[0])
	assert.Equal(t, "2-2", rows[1][1])
	assert.Equal(t, "passthrough", rows[1][2])
	assert.Equal(t, "softmax-cross-entropy", rows[1][3])
	assert.Equal(t, "0.5", rows[1][4])
	assert.Equal(t, "3", rows[3][5])
}

func TestRunRejectsZeroEpochs(t *testing.T) {
	tr := &Trainer{Net: linearNet(t), Rate: 0.1}
	_, err := tr.Run(context.Background(), twoClasses(), nil)
	assert.Error(t, err)
}
