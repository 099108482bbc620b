package distr

import (
	G "gorgonia.org/gorgonia"
)

// GaussianKLDiv builds the closed-form KL divergence between two diagonal
// Gaussians, one value per batch row. The first pair of arguments is the
// "from" distribution (the posterior), the second the "to" (the prior);
// swapping them computes a different divergence.
func GaussianKLDiv(mean0, cov0, mean1, cov1 *G.Node, dim int) (*G.Node, error) {
	var m maebe
	meanDiff := m.sub(mean1, mean0)
	cov1Inv := m.do(func() (*G.Node, error) { return G.Inverse(cov1) })

	logTerm := m.sub(m.sum(m.log(cov1), 1), m.sum(m.log(cov0), 1))
	traceTerm := m.sum(m.prod(cov1Inv, cov0), 1)
	squareTerm := m.sum(m.prod(m.prod(meanDiff, cov1Inv), meanDiff), 1)

	inner := m.add(m.add(traceTerm, squareTerm), m.sub(logTerm, Const(float64(dim))))
	kl := m.mul(Const(0.5), inner)
	return kl, m.err
}

// CrossEntropy builds the logit-space binary cross entropy, one value per
// batch row, in the usual overflow-safe arrangement
// max(l,0) - l*t + log(1 + exp(-|l|)).
func CrossEntropy(logits, target *G.Node) (*G.Node, error) {
	var m maebe
	relu := m.do(func() (*G.Node, error) { return G.Rectify(logits) })
	lt := m.prod(logits, target)
	expNegAbs := m.exp(m.neg(m.abs(logits)))
	softplus := m.do(func() (*G.Node, error) { return G.Log1p(expNegAbs) })
	ce := m.add(m.sub(relu, lt), softplus)
	return ce, m.err
}
