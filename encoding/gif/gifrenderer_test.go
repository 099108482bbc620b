package gif

import (
	"bytes"
	"image/gif"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncoderRoundTrip(t *testing.T) {
	enc := NewEncoder(8, 8)
	frames := [][][]float32{
		{{0, 1}, {2, 3}},
		{{3, 2}, {1, 0}},
	}
	for i, f := range frames {
		if err := enc.Frame(f, "step"); err != nil {
			t.Fatalf("frame %d: %+v", i, err)
		}
	}

	var buf bytes.Buffer
	if err := enc.Flush(&buf); err != nil {
		t.Fatalf("%+v", err)
	}
	decoded, err := gif.DecodeAll(&buf)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Len(t, decoded.Image, len(frames))
}

func TestEncoderRejectsEmptyFrame(t *testing.T) {
	enc := NewEncoder(8, 8)
	assert.Error(t, enc.Frame(nil, "empty"))
	assert.Error(t, enc.Flush(&bytes.Buffer{}), "flushing without frames must fail")
}

func TestNormalizeRange(t *testing.T) {
	flat := normalize([][]float32{{-2, 0}, {2, -2}}, 2, 2)
	assert.Equal(t, []float32{0, 127.5, 255, 0}, flat)
}

func TestNormalizeConstantFrame(t *testing.T) {
	flat := normalize([][]float32{{3, 3}}, 1, 2)
	assert.Equal(t, []float32{0, 0}, flat, "a flat frame must not divide by zero")
}
