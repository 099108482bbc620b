// Package nnet is the default sub-network bundle for the VRNN: rectified
// single-hidden-layer heads for the prior, encoder and decoder, dense
// feature extractors, and a GRU recurrent cell, all on one gorgonia
// graph. It satisfies the root package's Bundle interface.
package nnet

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"

	"github.com/tungk/vrnn/distr"
)

var Float = distr.Float

// Nets holds the variables of one bundle instance. Heads that the
// configured variant never uses are never built, so every variable owned
// here has a gradient path.
//
// Covariance heads emit log variance and are exponentiated on the way
// out; that keeps every covariance strictly positive, which the
// distribution kernels require but do not check.
type Nets struct {
	Config

	g *G.ExprGraph

	phiX layer

	priorHid  layer
	priorMean layer
	priorCov  layer

	encHid  layer
	encMean layer
	encCov  layer

	phiZ layer

	decHid  layer
	decMean []layer // KMix heads for mixtures, one otherwise
	decCov  []layer
	decPi   layer // mixture only
	decBin  layer // bin only

	gruZ, gruR, gruH gate

	h0         *G.Node
	trainables G.Nodes
}

// New returns an uninitialized bundle.
func New(conf Config) *Nets {
	return &Nets{Config: conf}
}

// Init creates every variable of the configured variant on g.
func (n *Nets) Init(g *G.ExprGraph) error {
	if !n.IsValid() {
		return errors.Errorf("invalid nnet configuration %+v", n.Config)
	}
	n.g = g
	n.trainables = n.trainables[:0]

	var m maebe
	n.phiX = n.layer(&m, n.InDim, n.PhiXDim, "phi_x")

	n.priorHid = n.layer(&m, n.HidDim, n.HidDim, "prior_hid")
	n.priorMean = n.layer(&m, n.HidDim, n.ZDim, "prior_mean")
	n.priorCov = n.layer(&m, n.HidDim, n.ZDim, "prior_cov")

	n.encHid = n.layer(&m, n.PhiXDim+n.HidDim, n.HidDim, "enc_hid")
	n.encMean = n.layer(&m, n.HidDim, n.ZDim, "enc_mean")
	n.encCov = n.layer(&m, n.HidDim, n.ZDim, "enc_cov")

	n.phiZ = n.layer(&m, n.ZDim, n.PhiZDim, "phi_z")

	n.decHid = n.layer(&m, n.PhiZDim+n.HidDim, n.HidDim, "dec_hid")
	heads := 1
	if distr.IsMixture(n.Model) {
		heads = n.KMix
	}
	n.decMean = make([]layer, heads)
	n.decCov = make([]layer, heads)
	for i := 0; i < heads; i++ {
		n.decMean[i] = n.layer(&m, n.HidDim, n.XDim, name("dec_mean", i))
		n.decCov[i] = n.layer(&m, n.HidDim, n.XDim, name("dec_cov", i))
	}
	if distr.IsMixture(n.Model) {
		n.decPi = n.layer(&m, n.HidDim, n.KMix, "dec_pi")
	}
	if distr.HasBin(n.Model) {
		n.decBin = n.layer(&m, n.HidDim, 1, "dec_bin")
	}

	jointDim := n.PhiXDim + n.PhiZDim
	n.gruZ = n.gate(&m, jointDim, "gru_update")
	n.gruR = n.gate(&m, jointDim, "gru_reset")
	n.gruH = n.gate(&m, jointDim, "gru_cand")

	// not trainable: the zero initial state
	n.h0 = G.NewMatrix(g, Float, G.WithShape(n.BatchSize, n.HidDim), G.WithName("h0"), G.WithInit(G.Zeroes()))
	return m.err
}

func (n *Nets) layer(m *maebe, in, out int, nm string) layer {
	l := m.newLayer(n.g, in, out, n.BatchSize, nm)
	if m.err == nil {
		n.trainables = append(n.trainables, l.w, l.b)
	}
	return l
}

func (n *Nets) gate(m *maebe, in int, nm string) gate {
	gt := m.newGate(n.g, in, n.HidDim, n.BatchSize, nm)
	if m.err == nil {
		n.trainables = append(n.trainables, gt.w, gt.u, gt.b)
	}
	return gt
}

// InitState returns the zero initial cell output and state. For a GRU the
// two coincide.
func (n *Nets) InitState() (*G.Node, interface{}) { return n.h0, n.h0 }

// Trainables returns every variable of the configured variant, in
// creation order.
func (n *Nets) Trainables() G.Nodes { return n.trainables }

func (n *Nets) FeatureExtractor(x *G.Node) (*G.Node, error) {
	var m maebe
	out := m.rectify(m.apply(n.phiX, x))
	return out, m.err
}

func (n *Nets) PriorNet(h *G.Node) (distr.Params, error) {
	var m maebe
	hid := m.rectify(m.apply(n.priorHid, h))
	p := distr.Params{
		Mean: m.apply(n.priorMean, hid),
		Cov:  m.exp(m.apply(n.priorCov, hid)),
	}
	return p, m.err
}

func (n *Nets) EncoderNet(phiX, h *G.Node) (distr.Params, error) {
	var m maebe
	hid := m.rectify(m.apply(n.encHid, m.concat(1, phiX, h)))
	p := distr.Params{
		Mean: m.apply(n.encMean, hid),
		Cov:  m.exp(m.apply(n.encCov, hid)),
	}
	return p, m.err
}

func (n *Nets) LatentProjection(z *G.Node) (*G.Node, error) {
	var m maebe
	out := m.rectify(m.apply(n.phiZ, z))
	return out, m.err
}

func (n *Nets) DecoderNet(phiZ, h *G.Node) (distr.Params, error) {
	var m maebe
	hid := m.rectify(m.apply(n.decHid, m.concat(1, phiZ, h)))

	var p distr.Params
	if distr.IsMixture(n.Model) {
		means := make([]*G.Node, n.KMix)
		covs := make([]*G.Node, n.KMix)
		for i := 0; i < n.KMix; i++ {
			means[i] = m.reshape(m.apply(n.decMean[i], hid), 1, n.BatchSize, n.XDim)
			covs[i] = m.reshape(m.exp(m.apply(n.decCov[i], hid)), 1, n.BatchSize, n.XDim)
		}
		if n.KMix == 1 {
			p.Mean, p.Cov = means[0], covs[0]
		} else {
			p.Mean = m.concat(0, means...)
			p.Cov = m.concat(0, covs...)
		}
		p.PiLogits = m.apply(n.decPi, hid)
	} else {
		p.Mean = m.apply(n.decMean[0], hid)
		p.Cov = m.exp(m.apply(n.decCov[0], hid))
	}
	if distr.HasBin(n.Model) {
		p.BinLogits = m.reshape(m.apply(n.decBin, hid), n.BatchSize)
	}
	return p, m.err
}

// Cell advances the GRU on the joint input. The state is the hidden
// matrix itself.
func (n *Nets) Cell(in *G.Node, state interface{}) (*G.Node, interface{}, error) {
	h, ok := state.(*G.Node)
	if !ok {
		return nil, nil, errors.Errorf("state is %T, want *gorgonia.Node", state)
	}
	var m maebe
	z := m.sigmoid(m.applyGate(n.gruZ, in, h))
	r := m.sigmoid(m.applyGate(n.gruR, in, h))
	cand := m.tanh(m.applyGate(n.gruH, in, m.prod(r, h)))
	newH := m.add(m.prod(m.sub(distr.Const(1), z), h), m.prod(z, cand))
	if m.err != nil {
		return nil, nil, m.err
	}
	return newH, newH, nil
}

// GobEncode serializes the trainable values, in creation order.
func (n *Nets) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	for _, node := range n.trainables {
		v := node.Value()
		if err := enc.Encode(&v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// GobDecode restores trainable values into an initialized bundle. A fresh
// graph is created when Init was never called.
func (n *Nets) GobDecode(p []byte) error {
	if n.g == nil {
		if err := n.Init(G.NewGraph()); err != nil {
			return err
		}
	}
	dec := gob.NewDecoder(bytes.NewBuffer(p))
	for _, node := range n.trainables {
		var v G.Value
		if err := dec.Decode(&v); err != nil {
			return err
		}
		if err := G.Let(node, v); err != nil {
			return err
		}
	}
	return nil
}

func name(prefix string, i int) string {
	return fmt.Sprintf("%s_%d", prefix, i)
}
