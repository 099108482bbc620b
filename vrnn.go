// Package vrnn implements a variational recurrent neural network: a
// recurrent deterministic state coupled with a per-timestep latent
// variable, trained by minimizing a (negated) variational lower bound.
// The sub-networks are pluggable (see Bundle); package nnet supplies the
// default gorgonia implementation.
package vrnn

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/tungk/vrnn/distr"
	"github.com/tungk/vrnn/internal/noise"
)

// gradient values are clipped to [-gradClip, gradClip] before the solver
// applies them.
const gradClip = 100

// BundleBuilder constructs a fresh Bundle plus its initial cell output and
// state on g. Construction is per-graph because Generate clones the
// trained weights into a second, forward-only graph.
type BundleBuilder func(g *G.ExprGraph) (Bundle, *G.Node, State, error)

// Trainabler is implemented by bundles that expose their variables. The
// solver steps exactly this list, so a variant that never builds a head
// never owns a parameter without a gradient path.
type Trainabler interface {
	Trainables() G.Nodes
}

// VRNN owns the unrolled teacher-forced training graph, its tape machine
// and the solver, and can spin off generation graphs from the trained
// weights.
type VRNN struct {
	Config
	Stats Statistics

	build BundleBuilder

	g      *G.ExprGraph
	b      Bundle
	xPl    *G.Node
	epsZPl *G.Node

	boundVal G.Value
	subVals  []G.Value
	distVals []G.Value

	trainables G.Nodes
	vm         G.VM
	solver     G.Solver
}

// New validates conf, builds the unrolled training graph and readies the
// Adam solver. build is called once here and once per Generate.
func New(conf Config, build BundleBuilder) (*VRNN, error) {
	if !conf.IsValid() {
		return nil, errors.Errorf("invalid configuration %+v", conf)
	}
	v := &VRNN{
		Config: conf,
		Stats:  makeStatistics(conf.Model),
		build:  build,
	}
	if err := v.buildTrain(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *VRNN) buildTrain() error {
	v.g = G.NewGraph()
	b, h0, s0, err := v.build(v.g)
	if err != nil {
		return errors.Wrap(err, "bundle")
	}
	v.b = b

	T, B := v.SeqLength, v.BatchSize
	v.xPl = G.NewTensor(v.g, distr.Float, 3, G.WithShape(T, B, v.InDim), G.WithName("x"))
	v.epsZPl = G.NewTensor(v.g, distr.Float, 3, G.WithShape(T, B, v.ZDim), G.WithName("eps_z"))

	acc := Acc{Seq: v.xPl, H: h0, State: s0, EpsZ: v.epsZPl}
	if acc, err = Run(acc, TrainStep(v.Config, b), StopAfter(T)); err != nil {
		return err
	}
	if acc.Count != T {
		return errors.Errorf("loop stopped at %d of %d steps", acc.Count, T)
	}

	G.Read(acc.Bound, &v.boundVal)
	v.subVals = make([]G.Value, len(acc.Tracked.SubSums))
	for i, n := range acc.Tracked.SubSums {
		G.Read(n, &v.subVals[i])
	}
	v.distVals = make([]G.Value, len(acc.Tracked.DistParams))
	for i, n := range acc.Tracked.DistParams {
		G.Read(n, &v.distVals[i])
	}

	tr, ok := b.(Trainabler)
	if !ok {
		return errors.Errorf("bundle %T exposes no trainables", b)
	}
	v.trainables = tr.Trainables()
	if _, err = G.Grad(acc.Bound, v.trainables...); err != nil {
		return errors.Wrap(err, "grad")
	}

	v.vm = G.NewTapeMachine(v.g, G.BindDualValues(v.trainables...))
	v.solver = G.NewAdamSolver(G.WithLearnRate(v.LearnRate), G.WithClip(gradClip))
	return nil
}

// Step runs one optimization step on a batch: x is [T, batch, inDim] and
// epsZ [T, batch, zDim]. It returns the accumulated bound and sub-losses
// and records them in Stats.
func (v *VRNN) Step(x, epsZ *tensor.Dense) (float32, []float32, error) {
	v.vm.Reset()
	if err := G.Let(v.xPl, x); err != nil {
		return 0, nil, errors.Wrap(err, "bind x")
	}
	if err := G.Let(v.epsZPl, epsZ); err != nil {
		return 0, nil, errors.Wrap(err, "bind eps_z")
	}
	if err := v.vm.RunAll(); err != nil {
		return 0, nil, errors.Wrap(err, "run")
	}
	if err := v.solver.Step(G.NodesToValueGrads(v.trainables)); err != nil {
		return 0, nil, errors.Wrap(err, "solver")
	}

	bound := scalarOf(v.boundVal)
	subs := make([]float32, len(v.subVals))
	for i := range v.subVals {
		subs[i] = scalarOf(v.subVals[i])
	}
	v.Stats.update(bound, subs)
	return bound, subs, nil
}

// Fit runs one epoch over pre-batched sequences with freshly drawn latent
// noise and returns the mean bound.
func (v *VRNN) Fit(batches []*tensor.Dense, seed int64) (float32, error) {
	if len(batches) == 0 {
		return 0, errors.New("no batches")
	}
	var total float32
	for i, x := range batches {
		epsZ := noise.Normal(seed+int64(i), v.SeqLength, v.BatchSize, v.ZDim)
		bound, _, err := v.Step(x, epsZ)
		if err != nil {
			return 0, errors.Wrapf(err, "batch %d", i)
		}
		total += bound
	}
	return total / float32(len(batches)), nil
}

// LastDistParams returns the latest step's distribution parameter values
// [mean0, cov0, meanZ, covZ, meanX, covX] from the most recent Step.
func (v *VRNN) LastDistParams() []G.Value {
	out := make([]G.Value, len(v.distVals))
	copy(out, v.distVals)
	return out
}

// Generate clones the trained weights into a forward-only graph, runs the
// generation loop for SeqLength steps and returns the sampled sequence as
// a [T, batch, inDim] tensor. Every output slot is written exactly once.
func (v *VRNN) Generate(seed int64) (*tensor.Dense, error) {
	g := G.NewGraph()
	b, h0, s0, err := v.build(g)
	if err != nil {
		return nil, errors.Wrap(err, "bundle")
	}
	src, ok := v.b.(Trainabler)
	if !ok {
		return nil, errors.Errorf("bundle %T exposes no trainables", v.b)
	}
	dst, ok := b.(Trainabler)
	if !ok {
		return nil, errors.Errorf("bundle %T exposes no trainables", b)
	}
	from, to := src.Trainables(), dst.Trainables()
	if len(from) != len(to) {
		return nil, errors.Errorf("trainable mismatch: %d vs %d", len(from), len(to))
	}
	for i, n := range from {
		if err := G.Let(to[i], n.Value()); err != nil {
			return nil, errors.Wrapf(err, "clone %v", n)
		}
	}

	T, B := v.SeqLength, v.BatchSize
	epsZPl := G.NewTensor(g, distr.Float, 3, G.WithShape(T, B, v.ZDim), G.WithName("eps_z"))
	epsXPl := G.NewTensor(g, distr.Float, 3, G.WithShape(T, B, v.XDim), G.WithName("eps_x"))
	var gumPl *G.Node
	if isMixture(v.Model) {
		gumPl = G.NewTensor(g, distr.Float, 3, G.WithShape(T, B, v.KMix), G.WithName("gumbel"))
	}

	acc := Acc{
		Frames: make([]*G.Node, T),
		H:      h0,
		State:  s0,
		EpsZ:   epsZPl,
		EpsX:   epsXPl,
		Gumbel: gumPl,
	}
	if acc, err = Run(acc, GenStep(v.Config, b), StopAfter(T)); err != nil {
		return nil, err
	}
	for i, f := range acc.Frames {
		if f == nil {
			return nil, errors.Errorf("output slot %d never written", i)
		}
	}

	var m maebe
	rows := make([]*G.Node, T)
	for i, f := range acc.Frames {
		frame := f
		rows[i] = m.do(func() (*G.Node, error) {
			return G.Reshape(frame, tensor.Shape{1, B, v.InDim})
		})
	}
	seq := rows[0]
	if T > 1 {
		seq = m.do(func() (*G.Node, error) { return G.Concat(0, rows...) })
	}
	if m.err != nil {
		return nil, m.err
	}
	var seqVal G.Value
	G.Read(seq, &seqVal)

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := G.Let(epsZPl, noise.Normal(seed, T, B, v.ZDim)); err != nil {
		return nil, errors.Wrap(err, "bind eps_z")
	}
	if err := G.Let(epsXPl, noise.Normal(seed+1, T, B, v.XDim)); err != nil {
		return nil, errors.Wrap(err, "bind eps_x")
	}
	if gumPl != nil {
		if err := G.Let(gumPl, noise.Gumbel(seed+2, T, B, v.KMix)); err != nil {
			return nil, errors.Wrap(err, "bind gumbel")
		}
	}
	if err := vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "generate")
	}
	out, ok := seqVal.(*tensor.Dense)
	if !ok {
		return nil, errors.Errorf("unexpected sequence value %T", seqVal)
	}
	return out, nil
}

// Close releases the training VM.
func (v *VRNN) Close() error { return v.vm.Close() }

func scalarOf(v G.Value) float32 {
	switch data := v.Data().(type) {
	case float32:
		return data
	case float64:
		return float32(data)
	case []float32:
		return data[0]
	case []float64:
		return float32(data[0])
	}
	return math32.NaN()
}
