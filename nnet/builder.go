package nnet

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// maebe threads graph-construction errors; first failure wins.
type maebe struct {
	err error
}

func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

// layer is one dense layer. The bias carries the full activation shape,
// so applying it is a plain add; batch size is fixed per graph anyway.
type layer struct {
	w, b *G.Node
}

func (m *maebe) newLayer(g *G.ExprGraph, in, out, batch int, name string) layer {
	if m.err != nil {
		return layer{}
	}
	w := G.NewMatrix(g, Float, G.WithShape(in, out), G.WithName(name+"_w"), G.WithInit(G.GlorotN(1.0)))
	b := G.NewMatrix(g, Float, G.WithShape(batch, out), G.WithName(name+"_b"), G.WithInit(G.Zeroes()))
	return layer{w: w, b: b}
}

func (m *maebe) apply(l layer, x *G.Node) *G.Node {
	xw := m.do(func() (*G.Node, error) { return G.Mul(x, l.w) })
	return m.add(xw, l.b)
}

// gate is one GRU gate: an input weight, a recurrent weight and a bias.
type gate struct {
	w, u *G.Node
	b    *G.Node
}

func (m *maebe) newGate(g *G.ExprGraph, in, hid, batch int, name string) gate {
	if m.err != nil {
		return gate{}
	}
	w := G.NewMatrix(g, Float, G.WithShape(in, hid), G.WithName(name+"_w"), G.WithInit(G.GlorotN(1.0)))
	u := G.NewMatrix(g, Float, G.WithShape(hid, hid), G.WithName(name+"_u"), G.WithInit(G.GlorotN(1.0)))
	b := G.NewMatrix(g, Float, G.WithShape(batch, hid), G.WithName(name+"_b"), G.WithInit(G.Zeroes()))
	return gate{w: w, u: u, b: b}
}

func (m *maebe) applyGate(gt gate, x, h *G.Node) *G.Node {
	xw := m.do(func() (*G.Node, error) { return G.Mul(x, gt.w) })
	hu := m.do(func() (*G.Node, error) { return G.Mul(h, gt.u) })
	return m.add(m.add(xw, hu), gt.b)
}

func (m *maebe) add(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Add(a, b) })
}

func (m *maebe) sub(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Sub(a, b) })
}

func (m *maebe) prod(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.HadamardProd(a, b) })
}

func (m *maebe) rectify(x *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Rectify(x) })
}

func (m *maebe) sigmoid(x *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Sigmoid(x) })
}

func (m *maebe) tanh(x *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Tanh(x) })
}

func (m *maebe) exp(x *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Exp(x) })
}

func (m *maebe) concat(axis int, ns ...*G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Concat(axis, ns...) })
}

func (m *maebe) reshape(x *G.Node, to ...int) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Reshape(x, tensor.Shape(to)) })
}
