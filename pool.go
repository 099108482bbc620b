package vrnn

import (
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var framePool = make(map[int]map[int]*sync.Pool)

func borrowFrame(rows, cols int) [][]float32 {
	if d, ok := framePool[rows]; ok {
		if d2, ok := d[cols]; ok {
			return d2.Get().([][]float32)
		}
	}
	retVal := make([][]float32, rows)
	for i := range retVal {
		retVal[i] = make([]float32, cols)
	}
	return retVal
}

// ReturnFrame gives a frame borrowed via SplitFrames back to the pool.
func ReturnFrame(rows, cols int, f [][]float32) {
	if d, ok := framePool[rows]; ok {
		if _, ok := d[cols]; ok {
			framePool[rows][cols].Put(f)
		} else {
			framePool[rows][cols] = newFramePool(rows, cols)
			framePool[rows][cols].Put(f)
		}
	} else {
		framePool[rows] = make(map[int]*sync.Pool)
		framePool[rows][cols] = newFramePool(rows, cols)
		framePool[rows][cols].Put(f)
	}
}

func newFramePool(rows, cols int) *sync.Pool {
	return &sync.Pool{
		New: func() interface{} {
			retVal := make([][]float32, rows)
			for i := range retVal {
				retVal[i] = make([]float32, cols)
			}
			return retVal
		},
	}
}

// SplitFrames exposes a [T, batch, dim] sequence as per-timestep pooled
// matrices, one [batch][dim] frame per step. Callers hand them back with
// ReturnFrame when done.
func SplitFrames(seq *tensor.Dense) ([][][]float32, error) {
	shape := seq.Shape()
	if len(shape) != 3 {
		return nil, errors.Errorf("want a [T, batch, dim] sequence, got %v", shape)
	}
	data, ok := seq.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("want float32 sequence data, got %T", seq.Data())
	}
	T, B, D := shape[0], shape[1], shape[2]
	frames := make([][][]float32, T)
	for t := 0; t < T; t++ {
		f := borrowFrame(B, D)
		for i := 0; i < B; i++ {
			at := t*B*D + i*D
			copy(f[i], data[at:at+D])
		}
		frames[t] = f
	}
	return frames, nil
}
