// Package noise pre-draws the externally supplied noise streams the model
// consumes: standard normal tensors for the reparameterized Gaussian
// samples and standard Gumbel tensors for the mixture component picks.
package noise

import (
	"github.com/chewxy/math32"
	rng "github.com/leesper/go_rng"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// Normal returns a float32 tensor of the given shape filled with standard
// normal draws.
func Normal(seed int64, dims ...int) *tensor.Dense {
	g := rng.NewGaussianGenerator(seed)
	backing := make([]float32, size(dims))
	for i := range backing {
		backing[i] = float32(g.Gaussian(0, 1))
	}
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(backing))
}

// Gumbel returns a float32 tensor of the given shape filled with standard
// Gumbel draws, -log(-log U).
func Gumbel(seed int64, dims ...int) *tensor.Dense {
	g := rng.NewUniformGenerator(seed)
	backing := make([]float32, size(dims))
	for i := range backing {
		u := g.Float32()
		if u <= 0 {
			u = math32.SmallestNonzeroFloat32
		}
		backing[i] = math32.Log(-math32.Log(u))
	}
	vecf32.Scale(backing, -1)
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(backing))
}

func size(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
