package vrnn

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

// Acc is the accumulator the sequence loop threads. Steps replace it
// wholesale; nothing is mutated in place. The running bound is a sum that
// is never reset mid-loop, and Count increases by exactly one per step.
type Acc struct {
	Seq    *G.Node   // inference: input sequence [T, batch, inDim]
	Frames []*G.Node // generation: one output slot per step, nil until written

	H     *G.Node
	State State

	Bound *G.Node // running bound sum, inference only; nil means zero
	Count int

	EpsZ   *G.Node // [T, batch, zDim]
	EpsX   *G.Node // [T, batch, xDim], generation only
	Gumbel *G.Node // [T, batch, K], mixture generation only

	Tracked Tracked
}

// Tracked is the debug bundle: running sub-loss sums and the most recent
// step's latent/output distribution parameters. Its shape is identical
// every iteration.
type Tracked struct {
	SubSums    []*G.Node
	DistParams []*G.Node // mean0, cov0, meanZ, covZ, meanX, covX
}

// StepFunc advances the accumulator by one timestep.
type StepFunc func(Acc) (Acc, error)

// StopFunc reports whether the loop is done, checked before each step.
type StopFunc func(Acc) bool

// Run drives step until stop fires and returns the final accumulator.
// There is no other exit: a failing step aborts the whole computation.
func Run(acc Acc, step StepFunc, stop StopFunc) (Acc, error) {
	for !stop(acc) {
		var err error
		if acc, err = step(acc); err != nil {
			return acc, errors.Wrapf(err, "step %d", acc.Count)
		}
	}
	return acc, nil
}

// StopAfter builds the fixed-length stop predicate: the loop terminates
// once Count reaches seqLength.
func StopAfter(seqLength int) StopFunc {
	return func(acc Acc) bool { return acc.Count >= seqLength }
}

// TrainStep returns the teacher-forced step function: slice the current
// frame and noise frame, run one inference step, fold the step bound and
// sub-losses into the accumulator.
func TrainStep(conf Config, b Bundle) StepFunc {
	return func(acc Acc) (Acc, error) {
		var m maebe
		xT := m.slice(acc.Seq, G.S(acc.Count))
		epsZT := m.slice(acc.EpsZ, G.S(acc.Count))
		if m.err != nil {
			return acc, m.err
		}

		so, err := InferenceStep(xT, acc.H, acc.State, epsZT, b)
		if err != nil {
			return acc, err
		}
		sl, err := StepBound(xT, so.Prior, so.Posterior, so.Out, conf)
		if err != nil {
			return acc, err
		}

		if acc.Bound == nil {
			acc.Bound = sl.Bound
		} else {
			acc.Bound = m.add(acc.Bound, sl.Bound)
		}
		if acc.Tracked.SubSums == nil {
			acc.Tracked.SubSums = sl.Subs
		} else {
			if len(acc.Tracked.SubSums) != len(sl.Subs) {
				return acc, errors.Errorf("sub-loss count changed mid-loop: %d vs %d",
					len(acc.Tracked.SubSums), len(sl.Subs))
			}
			sums := make([]*G.Node, len(sl.Subs))
			for i := range sl.Subs {
				sums[i] = m.add(acc.Tracked.SubSums[i], sl.Subs[i])
			}
			acc.Tracked.SubSums = sums
		}
		acc.Tracked.DistParams = []*G.Node{
			so.Prior.Mean, so.Prior.Cov,
			so.Posterior.Mean, so.Posterior.Cov,
			so.Out.Mean, so.Out.Cov,
		}

		acc.H, acc.State = so.H, so.State
		acc.Count++
		return acc, m.err
	}
}

// GenStep returns the autoregressive step function: slice the noise
// frames, run one generation step, write the sampled frame into its slot.
// Each slot is written exactly once.
func GenStep(conf Config, b Bundle) StepFunc {
	return func(acc Acc) (Acc, error) {
		var m maebe
		epsZT := m.slice(acc.EpsZ, G.S(acc.Count))
		epsXT := m.slice(acc.EpsX, G.S(acc.Count))
		var gumT *G.Node
		if acc.Gumbel != nil {
			gumT = m.slice(acc.Gumbel, G.S(acc.Count))
		}
		if m.err != nil {
			return acc, m.err
		}

		x, h, state, err := GenerationStep(acc.H, acc.State, epsZT, epsXT, gumT, conf.Model, b)
		if err != nil {
			return acc, err
		}

		if acc.Count >= len(acc.Frames) {
			return acc, errors.Errorf("no output slot for step %d", acc.Count)
		}
		if acc.Frames[acc.Count] != nil {
			return acc, errors.Errorf("output slot %d written twice", acc.Count)
		}
		frames := make([]*G.Node, len(acc.Frames))
		copy(frames, acc.Frames)
		frames[acc.Count] = x
		acc.Frames = frames

		acc.H, acc.State = h, state
		acc.Count++
		return acc, nil
	}
}
