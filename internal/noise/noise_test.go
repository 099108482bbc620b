package noise

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
)

func moments(d *tensor.Dense) (mean, variance float32) {
	data := d.Data().([]float32)
	for _, v := range data {
		mean += v
	}
	mean /= float32(len(data))
	for _, v := range data {
		variance += (v - mean) * (v - mean)
	}
	variance /= float32(len(data))
	return mean, variance
}

func TestNormalMoments(t *testing.T) {
	d := Normal(42, 100, 100)
	assert.Equal(t, tensor.Shape{100, 100}, d.Shape())

	mean, variance := moments(d)
	assert.InDelta(t, 0, mean, 0.05)
	assert.InDelta(t, 1, variance, 0.05)
}

func TestNormalDeterministic(t *testing.T) {
	a := Normal(7, 5, 5)
	b := Normal(7, 5, 5)
	assert.Equal(t, a.Data(), b.Data())

	c := Normal(8, 5, 5)
	assert.NotEqual(t, a.Data(), c.Data())
}

func TestGumbelMoments(t *testing.T) {
	d := Gumbel(42, 100, 100)
	assert.Equal(t, tensor.Shape{100, 100}, d.Shape())

	for _, v := range d.Data().([]float32) {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			t.Fatal("gumbel draws must be finite")
		}
	}
	// standard Gumbel mean is the Euler-Mascheroni constant
	mean, _ := moments(d)
	assert.InDelta(t, 0.5772, mean, 0.05)
}

func TestGumbelDeterministic(t *testing.T) {
	a := Gumbel(7, 4, 4)
	b := Gumbel(7, 4, 4)
	assert.Equal(t, a.Data(), b.Data())
}
