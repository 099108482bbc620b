// Package distr implements the graph-level distribution primitives the
// VRNN is built from: reparameterized sampling, log-likelihoods and KL
// divergence for diagonal Gaussians and Gaussian mixtures, plus a
// logit-space Bernoulli cross entropy. All functions build nodes on the
// graph their inputs belong to; nothing here executes anything.
package distr

import (
	"strings"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var Float = G.Float32

// Family keywords recognized by Sample. Model configuration strings
// ("gauss_out", "gm_out_bin", ...) embed these.
const (
	Gauss = "gauss"
	GM    = "gm"
)

// IsMixture reports whether a model or family string selects the
// Gaussian-mixture family.
func IsMixture(dist string) bool { return strings.Contains(dist, GM) }

// HasBin reports whether a model or family string carries the Bernoulli
// side channel.
func HasBin(dist string) bool { return strings.Contains(dist, "bin") }

// Params holds the parameters of one distribution.
//
// Gaussian: Mean and Cov are [batch, dim], Cov diagonal and strictly
// positive (the kernels do not check; a non-positive covariance NaNs).
// Mixture: Mean and Cov are [K, batch, dim] component stacks and PiLogits
// is [batch, K]. BinLogits, when present, is a [batch] logit vector for
// the side channel.
type Params struct {
	Mean *G.Node
	Cov  *G.Node

	PiLogits  *G.Node
	BinLogits *G.Node
}

// Const lifts a float into a graph constant of the package dtype.
func Const(v float64) *G.Node {
	if Float == G.Float64 {
		return G.NewConstant(v)
	}
	return G.NewConstant(float32(v))
}

// maebe threads graph-construction errors: the first failure poisons every
// subsequent op, so call sites read straight-line.
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

func (m *maebe) add(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Add(a, b) })
}

func (m *maebe) sub(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Sub(a, b) })
}

// mul is gorgonia's Mul: a matmul on matrices, a scale when one side is a
// scalar. Only the scalar form is used here.
func (m *maebe) mul(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Mul(a, b) })
}

func (m *maebe) prod(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.HadamardProd(a, b) })
}

func (m *maebe) div(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.HadamardDiv(a, b) })
}

func (m *maebe) sum(a *G.Node, along ...int) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Sum(a, along...) })
}

func (m *maebe) max(a *G.Node, along ...int) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Max(a, along...) })
}

func (m *maebe) log(a *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Log(a) })
}

func (m *maebe) exp(a *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Exp(a) })
}

func (m *maebe) sqrt(a *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Sqrt(a) })
}

func (m *maebe) neg(a *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Neg(a) })
}

func (m *maebe) abs(a *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Abs(a) })
}

func (m *maebe) reshape(a *G.Node, to ...int) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Reshape(a, tensor.Shape(to)) })
}

func (m *maebe) transpose(a *G.Node, pattern ...int) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Transpose(a, pattern...) })
}
