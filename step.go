package vrnn

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"

	"github.com/tungk/vrnn/distr"
)

// State is a recurrent cell's hidden state. Nothing outside the cell that
// produced it interprets it; the loop threads it by value and replaces it
// wholesale every step.
type State = interface{}

// Bundle supplies the five sub-networks the model is assembled from. All
// methods build nodes on the graph the input nodes live on; trainable
// variables belong to the implementation.
type Bundle interface {
	// FeatureExtractor maps an input frame [batch, inDim] to feature space.
	FeatureExtractor(x *G.Node) (*G.Node, error)

	// PriorNet maps the cell output to latent prior parameters.
	PriorNet(h *G.Node) (distr.Params, error)

	// EncoderNet maps input features and the cell output to latent
	// posterior parameters.
	EncoderNet(phiX, h *G.Node) (distr.Params, error)

	// LatentProjection maps a latent sample to its feature space.
	LatentProjection(z *G.Node) (*G.Node, error)

	// DecoderNet maps the projected latent and the cell output to output
	// distribution parameters.
	DecoderNet(phiZ, h *G.Node) (distr.Params, error)

	// Cell advances the recurrent cell on the joint input, returning the
	// new cell output and the replacement state.
	Cell(in *G.Node, state State) (*G.Node, State, error)
}

// StepOut carries everything one teacher-forced timestep produces.
type StepOut struct {
	Prior     distr.Params
	Posterior distr.Params
	Out       distr.Params

	H     *G.Node
	State State
}

// InferenceStep builds one teacher-forced timestep: the latent is sampled
// from the posterior (which sees the ground-truth frame), and the cell
// advances on the joint feature/latent input. Pure graph construction; no
// side effects.
func InferenceStep(x, h *G.Node, state State, epsZ *G.Node, b Bundle) (StepOut, error) {
	var so StepOut

	phiX, err := b.FeatureExtractor(x)
	if err != nil {
		return so, errors.Wrap(err, "feature extractor")
	}
	if so.Prior, err = b.PriorNet(h); err != nil {
		return so, errors.Wrap(err, "prior net")
	}
	if so.Posterior, err = b.EncoderNet(phiX, h); err != nil {
		return so, errors.Wrap(err, "encoder net")
	}

	z, err := distr.Sample(so.Posterior, epsZ, nil, distr.Gauss)
	if err != nil {
		return so, errors.Wrap(err, "latent sample")
	}
	phiZ, err := b.LatentProjection(z)
	if err != nil {
		return so, errors.Wrap(err, "latent projection")
	}
	if so.Out, err = b.DecoderNet(phiZ, h); err != nil {
		return so, errors.Wrap(err, "decoder net")
	}

	joint, err := G.Concat(1, phiX, phiZ)
	if err != nil {
		return so, errors.Wrap(err, "joint input")
	}
	if so.H, so.State, err = b.Cell(joint, state); err != nil {
		return so, errors.Wrap(err, "recurrent cell")
	}
	return so, nil
}

// GenerationStep builds one autoregressive timestep: no ground truth, so
// the latent comes from the prior and the emitted frame is a sample from
// the output distribution, fed back through the feature extractor for the
// cell advance. model picks the output family for the sample; gumbel is
// only consulted for mixture variants.
func GenerationStep(h *G.Node, state State, epsZ, epsX, gumbel *G.Node, model string, b Bundle) (x, newH *G.Node, newState State, err error) {
	prior, err := b.PriorNet(h)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "prior net")
	}
	z, err := distr.Sample(prior, epsZ, nil, distr.Gauss)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "latent sample")
	}
	phiZ, err := b.LatentProjection(z)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "latent projection")
	}
	out, err := b.DecoderNet(phiZ, h)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "decoder net")
	}
	if x, err = distr.Sample(out, epsX, gumbel, model); err != nil {
		return nil, nil, nil, errors.Wrap(err, "output sample")
	}

	phiX, err := b.FeatureExtractor(x)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "feature extractor")
	}
	joint, err := G.Concat(1, phiX, phiZ)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "joint input")
	}
	if newH, newState, err = b.Cell(joint, state); err != nil {
		return nil, nil, nil, errors.Wrap(err, "recurrent cell")
	}
	return x, newH, newState, nil
}
