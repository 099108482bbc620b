// Command vrnn trains a variational recurrent neural network on
// synthetic sine-wave sequences and optionally renders generated samples.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/tungk/vrnn"
	enc "github.com/tungk/vrnn/encoding/gif"
	"github.com/tungk/vrnn/nnet"
)

var (
	model     = flag.String("model", vrnn.GaussOut, "output model: gauss_out|gm_out|gauss_out_bin|gm_out_bin")
	xDim      = flag.Int("x-dim", 2, "continuous output dimensionality")
	zDim      = flag.Int("z-dim", 3, "latent dimensionality")
	batch     = flag.Int("batch", 32, "batch size")
	seqLen    = flag.Int("seq", 25, "sequence length")
	epochs    = flag.Int("epochs", 10, "training epochs")
	nBatches  = flag.Int("batches", 8, "training batches per epoch")
	lr        = flag.Float64("lr", 1e-3, "learning rate")
	beta      = flag.Float64("beta", 1, "KL weight")
	masking   = flag.Bool("masking", false, "mask sentinel-padded rows")
	maskValue = flag.Float64("mask-value", 0, "mask sentinel")
	seed      = flag.Int64("seed", 1337, "RNG seed")
	statsOut  = flag.String("stats", "", "CSV file for the training history")
	gifOut    = flag.String("gif", "", "render a generated sequence to this GIF file")
	dotOut    = flag.String("dot", "", "write the unrolled architecture as dot to this file")
)

func main() {
	flag.Parse()

	conf := vrnn.DefaultConf(*model, *xDim, *zDim, *seqLen)
	conf.BatchSize = *batch
	conf.KLWeight = *beta
	conf.Masking = *masking
	conf.MaskValue = *maskValue
	conf.LearnRate = *lr

	nconf := nnet.DefaultConf(*model, *xDim, *zDim, *batch)
	v, err := vrnn.New(conf, func(g *G.ExprGraph) (vrnn.Bundle, *G.Node, vrnn.State, error) {
		n := nnet.New(nconf)
		if err := n.Init(g); err != nil {
			return nil, nil, nil, err
		}
		h0, s0 := n.InitState()
		return n, h0, s0, nil
	})
	if err != nil {
		log.Fatalf("%+v", err)
	}
	defer v.Close()

	if *dotOut != "" {
		if err := os.WriteFile(*dotOut, []byte(v.ToDot()), 0644); err != nil {
			log.Fatal(err)
		}
	}

	batches := synthesize(conf, *nBatches, *seed)
	for e := 0; e < *epochs; e++ {
		bound, err := v.Fit(batches, *seed+int64(e)*1000)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		log.Printf("epoch %d: bound %.4f", e, bound)
	}
	if v.Stats.Degenerate > 0 {
		log.Printf("%d degenerate bounds recorded", v.Stats.Degenerate)
	}
	if *statsOut != "" {
		if err := v.Stats.Dump(*statsOut); err != nil {
			log.Fatal(err)
		}
	}

	if *gifOut != "" {
		if err := render(v, conf, *gifOut, *seed+99); err != nil {
			log.Fatalf("%+v", err)
		}
	}
}

func render(v *vrnn.VRNN, conf vrnn.Config, out string, seed int64) error {
	seq, err := v.Generate(seed)
	if err != nil {
		return err
	}
	frames, err := vrnn.SplitFrames(seq)
	if err != nil {
		return err
	}
	r := enc.NewEncoder(12, 12)
	for t, f := range frames {
		if err := r.Frame(f, fmt.Sprintf("step %d/%d", t+1, len(frames))); err != nil {
			return err
		}
		vrnn.ReturnFrame(conf.BatchSize, conf.InDim, f)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.Flush(f)
}

// synthesize builds sine-wave batches: every batch row is a sine with
// random frequency and phase plus observation noise and a per-feature
// offset. Bin variants get a half-period square wave as the binary
// column. With masking on, a random tail of each row sits at the
// sentinel.
func synthesize(conf vrnn.Config, n int, seed int64) []*tensor.Dense {
	r := rand.New(rand.NewSource(seed))
	T, B, D := conf.SeqLength, conf.BatchSize, conf.InDim

	batches := make([]*tensor.Dense, n)
	for bi := range batches {
		backing := make([]float32, T*B*D)
		for b := 0; b < B; b++ {
			freq := 0.1 + 0.4*r.Float64()
			phase := 2 * math.Pi * r.Float64()
			dead := 0
			if conf.Masking && T > 2 {
				dead = r.Intn(T / 2)
			}
			for t := 0; t < T; t++ {
				at := t*B*D + b*D
				if t >= T-dead {
					for d := 0; d < D; d++ {
						backing[at+d] = float32(conf.MaskValue)
					}
					continue
				}
				wave := math.Sin(freq*float64(t) + phase)
				for d := 0; d < conf.XDim; d++ {
					backing[at+d] = float32(wave + 0.1*r.NormFloat64() + 0.2*float64(d))
				}
				if conf.InDim > conf.XDim && wave > 0 {
					backing[at+conf.XDim] = 1
				}
			}
		}
		batches[bi] = tensor.New(tensor.WithShape(T, B, D), tensor.WithBacking(backing))
	}
	return batches
}
