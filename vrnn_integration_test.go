package vrnn_test

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/tungk/vrnn"
	"github.com/tungk/vrnn/nnet"
)

func builder(nconf nnet.Config) vrnn.BundleBuilder {
	return func(g *G.ExprGraph) (vrnn.Bundle, *G.Node, vrnn.State, error) {
		n := nnet.New(nconf)
		if err := n.Init(g); err != nil {
			return nil, nil, nil, err
		}
		h0, s0 := n.InitState()
		return n, h0, s0, nil
	}
}

// sequences with a binary last column when the variant wants one
func batchFor(conf vrnn.Config, seed int64) *tensor.Dense {
	r := rand.New(rand.NewSource(seed))
	T, B, D := conf.SeqLength, conf.BatchSize, conf.InDim
	backing := make([]float32, T*B*D)
	for i := range backing {
		backing[i] = float32(r.NormFloat64())
	}
	if conf.InDim > conf.XDim {
		for t := 0; t < T; t++ {
			for b := 0; b < B; b++ {
				at := t*B*D + b*D + conf.XDim
				backing[at] = float32(r.Intn(2))
			}
		}
	}
	return tensor.New(tensor.WithShape(T, B, D), tensor.WithBacking(backing))
}

func TestTrainAndGenerate(t *testing.T) {
	conf := vrnn.DefaultConf(vrnn.GaussOut, 1, 1, 3)
	conf.BatchSize = 2
	conf.LearnRate = 1e-2

	v, err := vrnn.New(conf, builder(nnet.DefaultConf(conf.Model, 1, 1, conf.BatchSize)))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer v.Close()

	batches := []*tensor.Dense{batchFor(conf, 5), batchFor(conf, 6)}
	bound, err := v.Fit(batches, 100)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if math32.IsNaN(bound) || math32.IsInf(bound, 0) {
		t.Fatalf("degenerate bound %v after one epoch", bound)
	}
	assert.Len(t, v.Stats.Bounds, len(batches))
	assert.Len(t, v.LastDistParams(), 6)

	// a second epoch reuses the same tape
	if _, err := v.Fit(batches, 200); err != nil {
		t.Fatalf("%+v", err)
	}

	seq, err := v.Generate(9)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Equal(t, tensor.Shape{conf.SeqLength, conf.BatchSize, conf.InDim}, seq.Shape())

	frames, err := vrnn.SplitFrames(seq)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Len(t, frames, conf.SeqLength)
	for _, f := range frames {
		vrnn.ReturnFrame(conf.BatchSize, conf.InDim, f)
	}
}

func TestAllVariantsTrainAndGenerate(t *testing.T) {
	for _, model := range []string{vrnn.GaussOut, vrnn.GMOut, vrnn.GaussOutBin, vrnn.GMOutBin} {
		conf := vrnn.DefaultConf(model, 2, 2, 2)
		conf.BatchSize = 2

		v, err := vrnn.New(conf, builder(nnet.DefaultConf(model, 2, 2, conf.BatchSize)))
		if err != nil {
			t.Fatalf("%s: %+v", model, err)
		}

		bound, subs, err := v.Step(batchFor(conf, 31), normal(32, conf.SeqLength, conf.BatchSize, conf.ZDim))
		if err != nil {
			t.Fatalf("%s: %+v", model, err)
		}
		if math32.IsNaN(bound) || math32.IsInf(bound, 0) {
			t.Fatalf("%s: degenerate bound %v", model, bound)
		}
		wantSubs := 5
		if conf.InDim > conf.XDim {
			wantSubs = 6
		}
		assert.Len(t, subs, wantSubs, model)

		seq, err := v.Generate(33)
		if err != nil {
			t.Fatalf("%s: %+v", model, err)
		}
		assert.Equal(t, tensor.Shape{conf.SeqLength, conf.BatchSize, conf.InDim}, seq.Shape(), model)

		if conf.InDim > conf.XDim {
			// the appended channel is a sigmoid, so it stays in (0, 1)
			data := seq.Data().([]float32)
			D := conf.InDim
			for i := conf.XDim; i < len(data); i += D {
				if data[i] <= 0 || data[i] >= 1 {
					t.Fatalf("%s: binary channel value %v outside (0, 1)", model, data[i])
				}
			}
		}
		v.Close()
	}
}

func normal(seed int64, dims ...int) *tensor.Dense {
	r := rand.New(rand.NewSource(seed))
	size := 1
	for _, d := range dims {
		size *= d
	}
	backing := make([]float32, size)
	for i := range backing {
		backing[i] = float32(r.NormFloat64())
	}
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(backing))
}
