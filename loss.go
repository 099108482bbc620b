package vrnn

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"

	"github.com/tungk/vrnn/distr"
)

// StepLoss is one timestep's contribution to the variational bound. Bound
// is the scalar beta*KL - logP (+ CE for bin variants); lower is better.
// Subs is the fixed-order monitoring vector
// [KL, logP, logNorm, logExp, meanAbsDiff(, CE)].
//
// Under masking only KL, logP and CE are renormalized by the live-row
// count; the remaining entries stay plain batch means and are therefore
// approximate there. Known limitation, kept as documented behavior.
type StepLoss struct {
	Bound *G.Node
	Subs  []*G.Node
}

// StepBound combines one step's distribution parameters into the bound.
// target is the ground-truth frame [batch, inDim]; for bin variants its
// last column is the binary channel. The KL term is Gaussian-form
// regardless of the output family.
func StepBound(target *G.Node, prior, posterior, out distr.Params, conf Config) (StepLoss, error) {
	var sl StepLoss
	if !knownModel(conf.Model) {
		return sl, errors.Errorf("unsupported model %q", conf.Model)
	}

	kl, err := distr.GaussianKLDiv(posterior.Mean, posterior.Cov, prior.Mean, prior.Cov, conf.ZDim)
	if err != nil {
		return sl, errors.Wrap(err, "kl divergence")
	}

	var m maebe
	distTarget := target
	var ceRows *G.Node
	if hasBin(conf.Model) {
		if out.BinLogits == nil {
			return sl, errors.Errorf("model %q needs BinLogits", conf.Model)
		}
		distTarget = m.slice(target, nil, G.S(0, conf.XDim))
		binTarget := m.slice(target, nil, G.S(conf.XDim))
		if m.err != nil {
			return sl, m.err
		}
		if ceRows, err = distr.CrossEntropy(out.BinLogits, binTarget); err != nil {
			return sl, errors.Wrap(err, "cross entropy")
		}
	}

	var lp distr.LogProb
	if isMixture(conf.Model) {
		lp, err = distr.MixtureLogP(out, distTarget, conf.XDim)
	} else {
		lp, err = distr.GaussianLogP(out, distTarget, conf.XDim)
	}
	if err != nil {
		return sl, errors.Wrap(err, "log likelihood")
	}

	var klRed, logPRed, ceRed *G.Node
	if conf.Masking {
		// A row sitting entirely at the sentinel is dead: the mask is the
		// sign of the max |target - sentinel| over features, and the
		// reductions divide by the live count. An all-dead batch divides
		// by zero; guaranteeing at least one live row is the caller's
		// contract.
		maskVals := m.abs(m.sub(target, distr.Const(conf.MaskValue)))
		mask := m.sign(m.max(maskVals, 1)) // [batch], 0/1
		numLive := m.sum(mask)

		klRed = m.div(m.sum(m.prod(mask, kl)), numLive)
		logPRed = m.div(m.sum(m.prod(mask, lp.LogP)), numLive)
		if ceRows != nil {
			ceRed = m.div(m.sum(m.prod(mask, ceRows)), numLive)
		}
	} else {
		klRed = m.mean(kl)
		logPRed = m.mean(lp.LogP)
		if ceRows != nil {
			ceRed = m.mean(ceRows)
		}
	}

	bound := m.sub(m.mul(distr.Const(conf.KLWeight), klRed), logPRed)
	if ceRed != nil {
		bound = m.add(bound, ceRed)
	}

	subs := []*G.Node{klRed, logPRed, m.mean(lp.LogNorm), m.mean(lp.LogExp), m.mean(lp.AbsDiff)}
	if ceRed != nil {
		subs = append(subs, ceRed)
	}
	if m.err != nil {
		return sl, m.err
	}
	return StepLoss{Bound: bound, Subs: subs}, nil
}
