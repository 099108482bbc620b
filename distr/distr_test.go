package distr

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func dense(shape tensor.Shape, backing []float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))
}

func randPos(n int, r *rand.Rand) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = 0.1 + r.Float32()
	}
	return out
}

func randVals(n int, r *rand.Rand) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(r.NormFloat64())
	}
	return out
}

func input(g *G.ExprGraph, name string, shape tensor.Shape, backing []float32) *G.Node {
	return G.NewTensor(g, Float, shape.Dims(), G.WithShape(shape...), G.WithName(name), G.WithValue(dense(shape, backing)))
}

func TestSampleAffineInNoise(t *testing.T) {
	const batch, dim = 4, 3
	r := rand.New(rand.NewSource(1))
	g := G.NewGraph()

	mean := input(g, "mean", tensor.Shape{batch, dim}, randVals(batch*dim, r))
	cov := input(g, "cov", tensor.Shape{batch, dim}, randPos(batch*dim, r))
	epsBack := randVals(batch*dim, r)
	eps2Back := make([]float32, len(epsBack))
	for i, v := range epsBack {
		eps2Back[i] = 2 * v
	}
	eps := input(g, "eps", tensor.Shape{batch, dim}, epsBack)
	eps2 := input(g, "eps2", tensor.Shape{batch, dim}, eps2Back)

	p := Params{Mean: mean, Cov: cov}
	s1, err := Sample(p, eps, nil, Gauss)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	s2, err := Sample(p, eps2, nil, Gauss)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	var v1, v2, vm G.Value
	G.Read(s1, &v1)
	G.Read(s2, &v2)
	G.Read(mean, &vm)

	vm2 := G.NewTapeMachine(g)
	defer vm2.Close()
	if err := vm2.RunAll(); err != nil {
		t.Fatalf("%+v", err)
	}

	a := v1.Data().([]float32)
	b := v2.Data().([]float32)
	mu := vm.Data().([]float32)
	for i := range a {
		assert.InDelta(t, 2*(a[i]-mu[i]), b[i]-mu[i], 1e-5, "sample must be affine in the noise at %d", i)
	}
}

func TestSampleUnsupportedFamily(t *testing.T) {
	g := G.NewGraph()
	p := Params{
		Mean: input(g, "mean", tensor.Shape{1, 1}, []float32{0}),
		Cov:  input(g, "cov", tensor.Shape{1, 1}, []float32{1}),
	}
	eps := input(g, "eps", tensor.Shape{1, 1}, []float32{0})
	_, err := Sample(p, eps, nil, "poisson")
	if err == nil {
		t.Fatal("expected an unsupported-family error")
	}
	assert.Contains(t, err.Error(), "unsupported distribution family")
}

func TestGaussianSelfKLZero(t *testing.T) {
	const batch, dim = 3, 4
	r := rand.New(rand.NewSource(2))
	g := G.NewGraph()

	mean := input(g, "mean", tensor.Shape{batch, dim}, randVals(batch*dim, r))
	cov := input(g, "cov", tensor.Shape{batch, dim}, randPos(batch*dim, r))

	kl, err := GaussianKLDiv(mean, cov, mean, cov, dim)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	var v G.Value
	G.Read(kl, &v)

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("%+v", err)
	}
	for i, got := range v.Data().([]float32) {
		assert.InDelta(t, 0, got, 1e-5, "self-KL must vanish at row %d", i)
	}
}

func TestGaussianLogPMonotone(t *testing.T) {
	// standard normal params, rows ordered by |x - mean|: log p must
	// strictly decrease down the batch.
	const batch, dim = 5, 1
	g := G.NewGraph()

	mean := input(g, "mean", tensor.Shape{batch, dim}, make([]float32, batch))
	ones := []float32{1, 1, 1, 1, 1}
	cov := input(g, "cov", tensor.Shape{batch, dim}, ones)
	target := input(g, "x", tensor.Shape{batch, dim}, []float32{0, 0.5, 1, 2, 4})

	lp, err := GaussianLogP(Params{Mean: mean, Cov: cov}, target, dim)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	var v G.Value
	G.Read(lp.LogP, &v)

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("%+v", err)
	}
	got := v.Data().([]float32)
	for i := 1; i < len(got); i++ {
		if got[i] >= got[i-1] {
			t.Errorf("log p must decrease with |x - mean|: row %d has %v after %v", i, got[i], got[i-1])
		}
	}
	// row 0 is the standard-normal mode
	want := -0.5 * math32.Log(2*math32.Pi)
	assert.InDelta(t, want, got[0], 1e-5)
}

func TestMixtureSingleComponentMatchesGaussian(t *testing.T) {
	const batch, dim = 4, 3
	r := rand.New(rand.NewSource(3))
	g := G.NewGraph()

	meanBack := randVals(batch*dim, r)
	covBack := randPos(batch*dim, r)
	targetBack := randVals(batch*dim, r)

	gm := Params{
		Mean:     input(g, "means", tensor.Shape{1, batch, dim}, meanBack),
		Cov:      input(g, "covs", tensor.Shape{1, batch, dim}, covBack),
		PiLogits: input(g, "pi", tensor.Shape{batch, 1}, []float32{0.3, -1, 2, 0}),
	}
	gauss := Params{
		Mean: input(g, "mean", tensor.Shape{batch, dim}, meanBack),
		Cov:  input(g, "cov", tensor.Shape{batch, dim}, covBack),
	}
	target := input(g, "x", tensor.Shape{batch, dim}, targetBack)

	mixLP, err := MixtureLogP(gm, target, dim)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	gaussLP, err := GaussianLogP(gauss, target, dim)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	var vMix, vGauss G.Value
	G.Read(mixLP.LogP, &vMix)
	G.Read(gaussLP.LogP, &vGauss)

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("%+v", err)
	}
	a := vMix.Data().([]float32)
	b := vGauss.Data().([]float32)
	for i := range a {
		assert.InDelta(t, b[i], a[i], 1e-4, "K=1 mixture must reduce to the Gaussian at row %d", i)
	}
}

func TestMixtureSamplePicksDominantComponent(t *testing.T) {
	// two components with wildly separated logits and zero noise: the
	// sample must sit exactly at the dominant component's mean.
	const batch, dim, k = 2, 2, 2
	g := G.NewGraph()

	means := input(g, "means", tensor.Shape{k, batch, dim}, []float32{
		1, 1, 1, 1, // component 0
		9, 9, 9, 9, // component 1
	})
	covs := input(g, "covs", tensor.Shape{k, batch, dim}, []float32{
		1, 1, 1, 1,
		1, 1, 1, 1,
	})
	pi := input(g, "pi", tensor.Shape{batch, k}, []float32{
		100, -100,
		-100, 100,
	})
	eps := input(g, "eps", tensor.Shape{batch, dim}, make([]float32, batch*dim))
	gumbel := input(g, "gumbel", tensor.Shape{batch, k}, make([]float32, batch*k))

	s, err := Sample(Params{Mean: means, Cov: covs, PiLogits: pi}, eps, gumbel, GM)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	var v G.Value
	G.Read(s, &v)

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Equal(t, []float32{1, 1, 9, 9}, v.Data().([]float32))
}

func TestCrossEntropyMatchesReference(t *testing.T) {
	g := G.NewGraph()
	logitsBack := []float32{-3, -0.5, 0, 0.5, 3}
	targetBack := []float32{0, 1, 0.5, 0, 1}

	logits := input(g, "logits", tensor.Shape{5}, logitsBack)
	target := input(g, "target", tensor.Shape{5}, targetBack)

	ce, err := CrossEntropy(logits, target)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	var v G.Value
	G.Read(ce, &v)

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("%+v", err)
	}
	got := v.Data().([]float32)
	for i := range got {
		l, y := logitsBack[i], targetBack[i]
		relu := l
		if relu < 0 {
			relu = 0
		}
		want := relu - l*y + math32.Log1p(math32.Exp(-math32.Abs(l)))
		assert.InDelta(t, want, got[i], 1e-5, "row %d", i)
	}
}
