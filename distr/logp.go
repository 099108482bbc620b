package distr

import (
	"math"

	G "gorgonia.org/gorgonia"
)

var log2Pi = math.Log(2 * math.Pi)

// LogProb is the decomposition of a log-likelihood evaluation. LogP is the
// per-row log-density, shape [batch]. The remaining pieces exist for
// monitoring: for the mixture kernel they keep the leading component axis
// ([K, batch] resp. [K, batch, dim]) instead of being reduced.
type LogProb struct {
	LogP    *G.Node
	LogNorm *G.Node
	LogExp  *G.Node
	AbsDiff *G.Node
}

// GaussianLogP evaluates the diagonal-Gaussian log-density of target under
// p. dim is the feature dimensionality of the summed-over axis.
func GaussianLogP(p Params, target *G.Node, dim int) (LogProb, error) {
	var m maebe
	xDiff := m.sub(target, p.Mean)
	xSquare := m.sum(m.prod(m.div(xDiff, p.Cov), xDiff), 1)
	logExp := m.mul(Const(-0.5), xSquare)

	logCovDet := m.sum(m.log(p.Cov), 1)
	logNorm := m.mul(Const(-0.5), m.add(logCovDet, Const(float64(dim)*log2Pi)))

	return LogProb{
		LogP:    m.add(logNorm, logExp),
		LogNorm: logNorm,
		LogExp:  logExp,
		AbsDiff: m.abs(xDiff),
	}, m.err
}

// MixtureLogP evaluates the Gaussian-mixture log-density of target under
// p: per-component log-density plus log-mixture-weight, marginalized with
// a stable log-sum-exp over the leading component axis.
func MixtureLogP(p Params, target *G.Node, dim int) (LogProb, error) {
	batch := target.Shape()[0]

	var m maebe
	logPi := m.log(m.do(func() (*G.Node, error) { return G.SoftMax(p.PiLogits, 1) }))
	logPi = m.transpose(logPi, 1, 0) // [K, batch]

	t := m.reshape(target, 1, batch, dim)
	xDiff := m.do(func() (*G.Node, error) {
		return G.BroadcastSub(t, p.Mean, []byte{0}, nil) // [K, batch, dim]
	})
	xSquare := m.sum(m.prod(m.div(xDiff, p.Cov), xDiff), 2)
	logExp := m.mul(Const(-0.5), xSquare) // [K, batch]

	logCovDet := m.sum(m.log(p.Cov), 2)
	logNorm := m.mul(Const(-0.5), m.add(logCovDet, Const(float64(dim)*log2Pi)))
	logNorm = m.add(logNorm, logPi) // [K, batch]

	s := m.add(logNorm, logExp)
	sMax := m.max(s, 0) // [batch]
	sMaxRow := m.reshape(sMax, 1, batch)
	centered := m.do(func() (*G.Node, error) {
		return G.BroadcastSub(s, sMaxRow, nil, []byte{0})
	})
	logP := m.add(m.log(m.sum(m.exp(centered), 0)), sMax)

	return LogProb{
		LogP:    logP,
		LogNorm: logNorm,
		LogExp:  logExp,
		AbsDiff: m.abs(xDiff),
	}, m.err
}
