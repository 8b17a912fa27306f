// Package mnist reads the MNIST handwritten digit sets.
//
// Images and labels come in the IDX format, optionally gzip-compressed:
//
//	images: magic 2051, count, rows, cols (big-endian uint32), then
//	        rows*cols unsigned bytes per image, row-major
//	labels: magic 2049, count, then one unsigned byte per label
//
// Both are read as streams, one record at a time, and can be rewound with
// Reset for another epoch.
package mnist

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	imageMagic = 2051
	labelMagic = 2049
)

var (
	ErrBadMagic      = errors.New("not an MNIST IDX file")
	ErrCountMismatch = errors.New("image and label counts differ")
)

// Opener returns a fresh reader positioned at the start of an IDX stream.
type Opener func() (io.ReadCloser, error)

// FileOpener opens path on every call.
func FileOpener(path string) Opener {
	return func() (io.ReadCloser, error) { return os.Open(path) }
}

// stream is an IDX header plus a reader over the records that follow it.
type stream struct {
	open  Opener
	magic uint32
	name  string
	dims  []int

	r       io.Reader
	closers []io.Closer
}

func newStream(open Opener, magic uint32, ndims int) (*stream, error) {
	s := &stream{open: open, magic: magic, dims: make([]int, ndims)}
	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *stream) start() error {
	rc, err := s.open()
	if err != nil {
		return err
	}
	s.closers = []io.Closer{rc}
	if f, ok := rc.(*os.File); ok {
		s.name = f.Name()
	}

	br := bufio.NewReaderSize(rc, 4096)
	s.r = br
	if head, err := br.Peek(2); err == nil && head[0] == 0x1f && head[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			s.Close()
			return fmt.Errorf("opening gzip stream %s: %w", s.name, err)
		}
		s.closers = append(s.closers, gz)
		s.r = bufio.NewReaderSize(gz, 4096)
	}

	var header [4]uint32
	hdr := header[:1+len(s.dims)]
	if err := binary.Read(s.r, binary.BigEndian, hdr); err != nil {
		s.Close()
		return fmt.Errorf("reading IDX header %s: %w", s.name, err)
	}
	if hdr[0] != s.magic {
		s.Close()
		return fmt.Errorf("%w: %s: magic %d, want %d", ErrBadMagic, s.name, hdr[0], s.magic)
	}

	dims := make([]int, len(s.dims))
	for i := range dims {
		dims[i] = int(hdr[i+1])
	}
	for i, d := range s.dims {
		if d != 0 && d != dims[i] {
			s.Close()
			return fmt.Errorf("%s: header changed between reads: %v, was %v", s.name, dims, s.dims)
		}
	}
	copy(s.dims, dims)
	return nil
}

func (s *stream) readFull(buf []byte) error {
	if _, err := io.ReadFull(s.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("reading %s: %w", s.name, err)
	}
	return nil
}

func (s *stream) reset() error {
	s.Close()
	return s.start()
}

// Close releases the underlying readers.
func (s *stream) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// ImageSet is a stream of images.
type ImageSet struct {
	*stream
	read int
	buf  []byte
}

// OpenImages opens an image file, gzip-compressed or not.
func OpenImages(path string) (*ImageSet, error) {
	return NewImageSet(FileOpener(path))
}

// NewImageSet reads an image set from the streams returned by open.
func NewImageSet(open Opener) (*ImageSet, error) {
	s, err := newStream(open, imageMagic, 3)
	if err != nil {
		return nil, err
	}
	return &ImageSet{stream: s}, nil
}

func (s *ImageSet) Count() int { return s.dims[0] }
func (s *ImageSet) Rows() int  { return s.dims[1] }
func (s *ImageSet) Cols() int  { return s.dims[2] }

// Size is the number of pixels per image.
func (s *ImageSet) Size() int { return s.Rows() * s.Cols() }

// HasNext reports whether at least one more image remains.
func (s *ImageSet) HasNext() bool { return s.read < s.Count() }

// NextBytes reads the next image as raw pixels into dst. It returns io.EOF
// after the last image.
func (s *ImageSet) NextBytes(dst []byte) error {
	if len(dst) != s.Size() {
		return fmt.Errorf("image buffer holds %d pixels, want %d", len(dst), s.Size())
	}
	if !s.HasNext() {
		return io.EOF
	}
	if err := s.readFull(dst); err != nil {
		return err
	}
	s.read++
	return nil
}

// Next reads the next image into dst with pixels scaled to [0,1].
func (s *ImageSet) Next(dst []float64) error {
	if len(dst) != s.Size() {
		return fmt.Errorf("image buffer holds %d values, want %d", len(dst), s.Size())
	}
	if s.buf == nil {
		s.buf = make([]byte, s.Size())
	}
	if err := s.NextBytes(s.buf); err != nil {
		return err
	}
	for i, p := range s.buf {
		dst[i] = float64(p) / 255
	}
	return nil
}

// Reset rewinds to the first image.
func (s *ImageSet) Reset() error {
	s.read = 0
	return s.reset()
}

// LabelSet is a stream of class labels.
type LabelSet struct {
	*stream
	read int
	buf  [1]byte
}

// OpenLabels opens a label file, gzip-compressed or not.
func OpenLabels(path string) (*LabelSet, error) {
	return NewLabelSet(FileOpener(path))
}

// NewLabelSet reads a label set from the streams returned by open.
func NewLabelSet(open Opener) (*LabelSet, error) {
	s, err := newStream(open, labelMagic, 1)
	if err != nil {
		return nil, err
	}
	return &LabelSet{stream: s}, nil
}

func (s *LabelSet) Count() int { return s.dims[0] }

// HasNext reports whether at least one more label remains.
func (s *LabelSet) HasNext() bool { return s.read < s.Count() }

// Next returns the next label, or io.EOF after the last one.
func (s *LabelSet) Next() (int, error) {
	if !s.HasNext() {
		return 0, io.EOF
	}
	if err := s.readFull(s.buf[:]); err != nil {
		return 0, err
	}
	s.read++
	return int(s.buf[0]), nil
}

// Reset rewinds to the first label.
func (s *LabelSet) Reset() error {
	s.read = 0
	return s.reset()
}
