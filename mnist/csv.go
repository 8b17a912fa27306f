package mnist

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/exp/rand"
)

// Line is one labelled example.
type Line struct {
	Inputs []float64
	Label  int
}

type Lines []Line

// LoadCSV reads examples of the form "label,p0,...,pN" with width pixels
// in 0..255, scaling the pixels to [0,1]. A leading header line whose label
// column is not a number is skipped.
func LoadCSV(reader io.Reader, width int) (Lines, error) {
	r := csv.NewReader(bufio.NewReader(reader))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var lines Lines
	var lineNum int
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return lines, err
		}
		lineNum++
		if len(record) != width+1 {
			return lines, errInvalidLine{
				lineNum:  lineNum,
				splits:   len(record),
				expected: width + 1,
			}
		}

		label, err := strconv.Atoi(record[0])
		if err != nil {
			if lineNum == 1 {
				continue
			}
			return lines, fmt.Errorf("at line %d, parsing label: %w", lineNum, err)
		}
		inputs := make([]float64, width)
		for i := range inputs {
			x, err := strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return lines, fmt.Errorf("at line %d, parsing input %d: %w", lineNum, i, err)
			}
			inputs[i] = x / 255
		}
		lines = append(lines, Line{Inputs: inputs, Label: label})
	}
	return lines, nil
}

// ReadCSVFile loads a whole CSV file into memory.
func ReadCSVFile(filename string, width int) (Lines, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	lines, err := LoadCSV(file, width)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return lines, nil
}

type errInvalidLine struct {
	lineNum  int
	splits   int
	expected int
}

func (e errInvalidLine) Error() string {
	return fmt.Sprintf("at line %d, expected %d values, got %d",
		e.lineNum, e.expected, e.splits)
}

// IsInvalidLine reports whether err was caused by a record of the wrong
// width.
func IsInvalidLine(err error) bool {
	var e errInvalidLine
	return errors.As(err, &e)
}

// LineSource serves in-memory lines one at a time.
type LineSource struct {
	lines Lines
	width int
	pos   int
}

// NewLineSource serves lines whose inputs all have the given width.
func NewLineSource(lines Lines, width int) *LineSource {
	return &LineSource{lines: lines, width: width}
}

func (s *LineSource) Width() int { return s.width }
func (s *LineSource) Len() int   { return len(s.lines) }

// Next copies the next example into features and returns its label.
func (s *LineSource) Next(features []float64) (int, error) {
	if s.pos >= len(s.lines) {
		return 0, io.EOF
	}
	if len(features) != s.width {
		return 0, fmt.Errorf("feature buffer holds %d values, want %d", len(features), s.width)
	}
	l := s.lines[s.pos]
	s.pos++
	copy(features, l.Inputs)
	return l.Label, nil
}

// Reset rewinds to the first line.
func (s *LineSource) Reset() error {
	s.pos = 0
	return nil
}

// Shuffle reorders the lines in place and rewinds.
func (s *LineSource) Shuffle(src rand.Source) {
	rand.New(src).Shuffle(len(s.lines), func(i, j int) {
		s.lines[i], s.lines[j] = s.lines[j], s.lines[i]
	})
	s.pos = 0
}
