package vrnn

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/chewxy/math32"
)

// Statistics accumulates the bound and sub-loss history of a training
// run, one record per optimization step.
type Statistics struct {
	Names  []string
	Bounds []float32
	Subs   map[string][]float32

	// Degenerate counts NaN/Inf bounds. Numeric blowups are recorded, not
	// silently dropped; the count is the cheap way to notice them.
	Degenerate int
}

func makeStatistics(model string) Statistics {
	names := []string{"kl_div", "log_p", "log_norm", "log_exp", "abs_diff"}
	if hasBin(model) {
		names = append(names, "ce")
	}
	return Statistics{
		Names: names,
		Subs:  make(map[string][]float32),
	}
}

func (s *Statistics) update(bound float32, subs []float32) {
	if math32.IsNaN(bound) || math32.IsInf(bound, 0) {
		s.Degenerate++
	}
	s.Bounds = append(s.Bounds, bound)
	for i, name := range s.Names {
		if i < len(subs) {
			s.Subs[name] = append(s.Subs[name], subs[i])
		}
	}
}

// Dump writes the history as CSV, one row per recorded step.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"bound"}, s.Names...)
	if err := w.Write(header); err != nil {
		return err
	}
	for i, b := range s.Bounds {
		rec := make([]string, 0, len(header))
		rec = append(rec, fmtF32(b))
		for _, name := range s.Names {
			col := s.Subs[name]
			if i < len(col) {
				rec = append(rec, fmtF32(col[i]))
			} else {
				rec = append(rec, "")
			}
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func fmtF32(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
