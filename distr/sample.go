package distr

import (
	"strings"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

// Sample draws one reparameterized sample per batch row.
//
// eps is a standard-normal noise frame of the sample's shape. For the
// mixture family, gumbel must carry a [batch, K] frame of standard Gumbel
// draws; it picks the mixture component (Gumbel-max over the component
// logits is an exact categorical draw) and is ignored otherwise.
//
// When dist carries the "bin" suffix, sigmoid(BinLogits) is appended as an
// extra column. That side channel is deterministic - the probability, not
// a Bernoulli draw.
func Sample(p Params, eps, gumbel *G.Node, dist string) (*G.Node, error) {
	var s *G.Node
	var err error
	switch {
	case strings.Contains(dist, Gauss):
		s, err = gaussSample(p.Mean, p.Cov, eps)
	case strings.Contains(dist, GM):
		s, err = mixtureSample(p, eps, gumbel)
	default:
		return nil, errors.Errorf("unsupported distribution family %q", dist)
	}
	if err != nil {
		return nil, err
	}
	if !HasBin(dist) {
		return s, nil
	}

	if p.BinLogits == nil {
		return nil, errors.Errorf("family %q needs BinLogits", dist)
	}
	var m maebe
	sig := m.do(func() (*G.Node, error) { return G.Sigmoid(p.BinLogits) })
	col := m.reshape(sig, sig.Shape()[0], 1)
	out := m.do(func() (*G.Node, error) { return G.Concat(1, s, col) })
	return out, m.err
}

func gaussSample(mean, cov, eps *G.Node) (*G.Node, error) {
	var m maebe
	scaled := m.prod(m.sqrt(cov), eps)
	s := m.add(mean, scaled)
	return s, m.err
}

// mixtureSample picks one component per batch row and applies the Gaussian
// formula to the picked parameters. The pick is a one-hot contraction:
// rows of the perturbed logits are compared against their own max, and the
// resulting 0/1 matrix gathers means and covariances without a gather op.
func mixtureSample(p Params, eps, gumbel *G.Node) (*G.Node, error) {
	if gumbel == nil {
		return nil, errors.New("mixture sampling needs a gumbel noise frame")
	}
	k := p.Mean.Shape()[0]
	batch := p.PiLogits.Shape()[0]

	var m maebe
	scores := m.add(p.PiLogits, gumbel) // [batch, K]
	rowMax := m.reshape(m.max(scores, 1), batch, 1)
	diff := m.do(func() (*G.Node, error) {
		return G.BroadcastSub(scores, rowMax, nil, []byte{1})
	})
	oneHot := m.do(func() (*G.Node, error) { return G.Eq(diff, Const(0), true) })
	oneHot = m.reshape(m.transpose(oneHot, 1, 0), k, batch, 1) // [K, batch, 1]

	mean := m.sum(m.bcast(p.Mean, oneHot), 0) // [batch, dim]
	cov := m.sum(m.bcast(p.Cov, oneHot), 0)
	if m.err != nil {
		return nil, m.err
	}
	return gaussSample(mean, cov, eps)
}

// bcast multiplies a [K, batch, dim] stack by a [K, batch, 1] selector.
func (m *maebe) bcast(stack, sel *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) {
		return G.BroadcastHadamardProd(stack, sel, nil, []byte{2})
	})
}
