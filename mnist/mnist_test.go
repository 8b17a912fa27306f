package mnist

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func idxBytes(t *testing.T, header []uint32, body []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, header))
	buf.Write(body)
	return buf.Bytes()
}

func gzipBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func memOpener(b []byte) Opener {
	return func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(b)), nil }
}

// three 2x2 images with pixels 0..11 and labels 7, 0, 9.
func writeFixture(t *testing.T, dir string, compress bool) (images, labels string) {
	t.Helper()
	pix := make([]byte, 12)
	for i := range pix {
		pix[i] = byte(i)
	}
	img := idxBytes(t, []uint32{imageMagic, 3, 2, 2}, pix)
	lab := idxBytes(t, []uint32{labelMagic, 3}, []byte{7, 0, 9})
	images, labels = "images.idx", "labels.idx"
	if compress {
		img, lab = gzipBytes(t, img), gzipBytes(t, lab)
		images, labels = images+".gz", labels+".gz"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, images), img, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, labels), lab, 0o644))
	return images, labels
}

func TestImageSetHeader(t *testing.T) {
	img := idxBytes(t, []uint32{imageMagic, 3, 2, 2}, make([]byte, 12))
	s, err := NewImageSet(memOpener(gzipBytes(t, img)))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 3, s.Count())
	assert.Equal(t, 2, s.Rows())
	assert.Equal(t, 2, s.Cols())
	assert.Equal(t, 4, s.Size())
	assert.True(t, s.HasNext())
}

func TestImageSetNext(t *testing.T) {
	img := idxBytes(t, []uint32{imageMagic, 1, 1, 3}, []byte{0, 51, 255})
	s, err := NewImageSet(memOpener(img))
	require.NoError(t, err)

	dst := make([]float64, 3)
	require.NoError(t, s.Next(dst))
	assert.Equal(t, []float64{0, 0.2, 1}, dst)
	assert.False(t, s.HasNext())
	assert.ErrorIs(t, s.Next(dst), io.EOF)
}

func TestImageSetBadMagic(t *testing.T) {
	img := idxBytes(t, []uint32{labelMagic, 3, 2, 2}, nil)
	_, err := NewImageSet(memOpener(img))
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = NewLabelSet(memOpener(idxBytes(t, []uint32{imageMagic, 3}, nil)))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestImageSetTruncated(t *testing.T) {
	img := idxBytes(t, []uint32{imageMagic, 2, 2, 2}, []byte{1, 2, 3, 4, 5})
	s, err := NewImageSet(memOpener(img))
	require.NoError(t, err)

	buf := make([]byte, 4)
	require.NoError(t, s.NextBytes(buf))
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
	assert.ErrorIs(t, s.NextBytes(buf), io.ErrUnexpectedEOF)
}

func TestImageSetWrongBuffer(t *testing.T) {
	img := idxBytes(t, []uint32{imageMagic, 1, 2, 2}, make([]byte, 4))
	s, err := NewImageSet(memOpener(img))
	require.NoError(t, err)
	assert.Error(t, s.NextBytes(make([]byte, 3)))
	assert.Error(t, s.Next(make([]float64, 5)))
}

func TestLabelSetReset(t *testing.T) {
	lab := idxBytes(t, []uint32{labelMagic, 2}, []byte{4, 2})
	s, err := NewLabelSet(memOpener(gzipBytes(t, lab)))
	require.NoError(t, err)

	for pass := 0; pass < 2; pass++ {
		var got []int
		for s.HasNext() {
			l, err := s.Next()
			require.NoError(t, err)
			got = append(got, l)
		}
		assert.Equal(t, []int{4, 2}, got, "pass %d", pass)
		_, err = s.Next()
		assert.ErrorIs(t, err, io.EOF)
		require.NoError(t, s.Reset())
	}
}

func TestOpenSet(t *testing.T) {
	for _, compress := range []bool{false, true} {
		dir := t.TempDir()
		images, labels := writeFixture(t, dir, compress)
		s, err := Open(dir, images, labels)
		require.NoError(t, err)

		assert.Equal(t, 3, s.Len())
		assert.Equal(t, 4, s.Width())

		features := make([]float64, s.Width())
		var got []int
		for {
			l, err := s.Next(features)
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			got = append(got, l)
		}
		assert.Equal(t, []int{7, 0, 9}, got)
		assert.InDelta(t, 11.0/255, features[3], 1e-15)

		require.NoError(t, s.Reset())
		l, err := s.Next(features)
		require.NoError(t, err)
		assert.Equal(t, 7, l)
		assert.Equal(t, 0.0, features[0])
		assert.NoError(t, s.Close())
	}
}

func TestSetCountMismatch(t *testing.T) {
	img := idxBytes(t, []uint32{imageMagic, 2, 1, 1}, []byte{1, 2})
	lab := idxBytes(t, []uint32{labelMagic, 3}, []byte{1, 2, 3})
	is, err := NewImageSet(memOpener(img))
	require.NoError(t, err)
	ls, err := NewLabelSet(memOpener(lab))
	require.NoError(t, err)

	_, err = NewSet(is, ls)
	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(t.TempDir(), "nope", "nada")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCSV(t *testing.T) {
	in := "label,p0,p1\n3,0,255\n1,51,0\n"
	lines, err := LoadCSV(strings.NewReader(in), 2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, Line{Inputs: []float64{0, 1}, Label: 3}, lines[0])
	assert.Equal(t, Line{Inputs: []float64{0.2, 0}, Label: 1}, lines[1])
}

func TestLoadCSVInvalidLine(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("1,2,3\n4,5\n"), 2)
	require.Error(t, err)
	assert.True(t, IsInvalidLine(err))
	assert.Equal(t, "at line 2, expected 3 values, got 2", err.Error())

	_, err = LoadCSV(strings.NewReader("1,2,3\n4,x,5\n"), 2)
	require.Error(t, err)
	assert.False(t, IsInvalidLine(err))
}

func TestLineSource(t *testing.T) {
	lines := Lines{
		{Inputs: []float64{1, 0}, Label: 0},
		{Inputs: []float64{0, 1}, Label: 1},
		{Inputs: []float64{1, 1}, Label: 2},
	}
	s := NewLineSource(lines, 2)
	assert.Equal(t, 2, s.Width())
	assert.Equal(t, 3, s.Len())

	f := make([]float64, 2)
	l, err := s.Next(f)
	require.NoError(t, err)
	assert.Equal(t, 0, l)
	assert.Equal(t, []float64{1, 0}, f)

	s.Next(f)
	s.Next(f)
	_, err = s.Next(f)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, s.Reset())
	s.Shuffle(rand.NewSource(1))
	seen := map[int]bool{}
	for {
		l, err := s.Next(f)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		seen[l] = true
	}
	assert.Len(t, seen, 3)
}
