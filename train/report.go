package train

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/roush2j/cps680-mnist/nn"
)

var reportHeaders = []string{
	"End Time", "Architecture", "Activations", "Loss", "LR", "Epoch",
	"Examples", "Train Loss", "Train Accuracy", "Test Loss", "Test Accuracy", "Seconds",
}

// Report appends one CSV row per epoch to a file, writing the header row
// only when the file is new.
type Report struct {
	Path         string
	Architecture string
	Activations  string
	Loss         string
	Rate         float64
}

// NewReport describes net in every row it writes to path.
func NewReport(path string, net *nn.Network, rate float64) *Report {
	shape := net.Shape()
	arch := make([]string, len(shape))
	for i, w := range shape {
		arch[i] = strconv.Itoa(w)
	}
	acts := net.Activations()
	names := make([]string, len(acts))
	for i, a := range acts {
		names[i] = a.String()
	}
	return &Report{
		Path:         path,
		Architecture: strings.Join(arch, "-"),
		Activations:  strings.Join(names, ","),
		Loss:         net.LossFunc().String(),
		Rate:         rate,
	}
}

// Write appends the row for res.
func (r *Report) Write(res EpochResult) error {
	if dir := filepath.Dir(r.Path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return err
		}
	}
	var needsHeaders bool
	if _, err := os.Stat(r.Path); os.IsNotExist(err) {
		needsHeaders = true
	}
	file, err := os.OpenFile(r.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if needsHeaders {
		if err := w.Write(reportHeaders); err != nil {
			return fmt.Errorf("writing csv headers: %w", err)
		}
	}
	if err := w.Write(r.record(res)); err != nil {
		return fmt.Errorf("writing csv record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}

func (r *Report) record(res EpochResult) []string {
	record := make([]string, len(reportHeaders))
	record[0] = time.Now().Format(time.RFC3339)
	record[1] = r.Architecture
	record[2] = r.Activations
	record[3] = r.Loss
	record[4] = strconv.FormatFloat(r.Rate, 'f', -1, 64)
	record[5] = strconv.Itoa(res.Epoch)
	record[6] = strconv.Itoa(res.Examples)
	record[7] = strconv.FormatFloat(res.MeanLoss, 'f', 6, 64)
	record[8] = strconv.FormatFloat(res.Accuracy, 'f', 4, 64)
	if res.Test != nil {
		record[9] = strconv.FormatFloat(res.Test.MeanLoss, 'f', 6, 64)
		record[10] = strconv.FormatFloat(res.Test.Accuracy, 'f', 4, 64)
	}
	record[11] = strconv.FormatFloat(res.Duration.Seconds(), 'f', 2, 64)
	return record
}
