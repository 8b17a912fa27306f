package mnist

import (
	"fmt"
	"path/filepath"
)

// Set pairs an image stream with its labels.
type Set struct {
	Images *ImageSet
	Labels *LabelSet
}

// Open opens an image file and a label file under root.
func Open(root, images, labels string) (*Set, error) {
	is, err := OpenImages(filepath.Join(root, images))
	if err != nil {
		return nil, err
	}
	ls, err := OpenLabels(filepath.Join(root, labels))
	if err != nil {
		is.Close()
		return nil, err
	}
	s, err := NewSet(is, ls)
	if err != nil {
		is.Close()
		ls.Close()
		return nil, err
	}
	return s, nil
}

// NewSet pairs images with labels. Both must hold the same number of records.
func NewSet(images *ImageSet, labels *LabelSet) (*Set, error) {
	if images.Count() != labels.Count() {
		return nil, fmt.Errorf("%w: %d images, %d labels", ErrCountMismatch, images.Count(), labels.Count())
	}
	return &Set{Images: images, Labels: labels}, nil
}

// Len is the number of examples in the set.
func (s *Set) Len() int { return s.Images.Count() }

// Width is the number of pixels per image.
func (s *Set) Width() int { return s.Images.Size() }

// Next reads the next image into features and returns its label.
// It returns io.EOF once the set is exhausted.
func (s *Set) Next(features []float64) (int, error) {
	if err := s.Images.Next(features); err != nil {
		return 0, err
	}
	return s.Labels.Next()
}

// Reset rewinds both streams to the first example.
func (s *Set) Reset() error {
	if err := s.Images.Reset(); err != nil {
		return err
	}
	return s.Labels.Reset()
}

func (s *Set) Close() error {
	err := s.Images.Close()
	if lerr := s.Labels.Close(); err == nil {
		err = lerr
	}
	return err
}
