package vrnn

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/tungk/vrnn/distr"
)

func isMixture(model string) bool { return distr.IsMixture(model) }
func hasBin(model string) bool    { return distr.HasBin(model) }

// maebe threads graph-construction errors, as in distr: the first failure
// poisons every subsequent op.
type maebe struct {
	err error
}

func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) add(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Add(a, b) })
}

func (m *maebe) sub(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Sub(a, b) })
}

func (m *maebe) mul(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Mul(a, b) })
}

func (m *maebe) prod(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.HadamardProd(a, b) })
}

func (m *maebe) div(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.HadamardDiv(a, b) })
}

func (m *maebe) sum(a *G.Node, along ...int) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Sum(a, along...) })
}

func (m *maebe) mean(a *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Mean(a) })
}

func (m *maebe) max(a *G.Node, along ...int) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Max(a, along...) })
}

func (m *maebe) abs(a *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Abs(a) })
}

func (m *maebe) sign(a *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Sign(a) })
}

func (m *maebe) slice(a *G.Node, slices ...tensor.Slice) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Slice(a, slices...) })
}
