package vrnn

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
)

// ToDot renders the unrolled per-step dataflow - prior, encoder, latent,
// decoder, cell and bound per timestep, with the recurrent state threaded
// through - as a graphviz document. This is the architecture view; the
// full gorgonia graph is far too dense to eyeball.
func (v *VRNN) ToDot() string {
	g := gographviz.NewGraph()
	if err := g.SetName("G"); err != nil {
		panic(err)
	}
	g.SetDir(true)

	prev := "h0"
	g.AddNode("G", prev, map[string]string{"shape": "box"})
	for t := 0; t < v.SeqLength; t++ {
		x := fmt.Sprintf("x_%d", t)
		prior := fmt.Sprintf("prior_%d", t)
		enc := fmt.Sprintf("enc_%d", t)
		z := fmt.Sprintf("z_%d", t)
		dec := fmt.Sprintf("dec_%d", t)
		cell := fmt.Sprintf("cell_%d", t)
		bound := fmt.Sprintf("bound_%d", t)

		g.AddNode("G", x, map[string]string{"shape": "box"})
		g.AddNode("G", cell, map[string]string{"shape": "box"})
		for _, n := range []string{prior, enc, z, dec, bound} {
			g.AddNode("G", n, nil)
		}

		g.AddEdge(prev, prior, true, nil)
		g.AddEdge(prev, enc, true, nil)
		g.AddEdge(prev, dec, true, nil)
		g.AddEdge(prev, cell, true, nil)
		g.AddEdge(x, enc, true, nil)
		g.AddEdge(x, cell, true, nil)
		g.AddEdge(x, bound, true, nil)
		g.AddEdge(enc, z, true, nil)
		g.AddEdge(z, dec, true, nil)
		g.AddEdge(z, cell, true, nil)
		g.AddEdge(prior, bound, true, nil)
		g.AddEdge(enc, bound, true, nil)
		g.AddEdge(dec, bound, true, nil)

		prev = cell
	}
	return g.String()
}
