package vrnn

// Output model variants. The "bin" variants carry a Bernoulli side channel
// as the last column of every frame.
const (
	GaussOut    = "gauss_out"
	GMOut       = "gm_out"
	GaussOutBin = "gauss_out_bin"
	GMOutBin    = "gm_out_bin"
)

// Config is the model configuration dictionary.
type Config struct {
	Model string // one of the four output variants above

	ZDim  int // latent dimensionality
	XDim  int // continuous output dimensionality
	InDim int // frame width: XDim, plus 1 for bin variants
	KMix  int // mixture components, mixture variants only

	BatchSize int
	SeqLength int

	KLWeight  float64 // beta weight on the KL term
	Masking   bool
	MaskValue float64 // sentinel marking dead rows when Masking is on

	LearnRate float64
}

func DefaultConf(model string, xDim, zDim, seqLength int) Config {
	conf := Config{
		Model:     model,
		ZDim:      zDim,
		XDim:      xDim,
		InDim:     xDim,
		KMix:      1,
		BatchSize: 32,
		SeqLength: seqLength,
		KLWeight:  1,
		MaskValue: 0,
		LearnRate: 1e-3,
	}
	if hasBin(model) {
		conf.InDim++
	}
	if isMixture(model) {
		conf.KMix = 5
	}
	return conf
}

func (conf Config) IsValid() bool {
	wantIn := conf.XDim
	if hasBin(conf.Model) {
		wantIn++
	}
	return knownModel(conf.Model) &&
		conf.ZDim >= 1 &&
		conf.XDim >= 1 &&
		conf.InDim == wantIn &&
		(!isMixture(conf.Model) || conf.KMix >= 1) &&
		conf.BatchSize >= 1 &&
		conf.SeqLength >= 1 &&
		conf.KLWeight >= 0
}

func knownModel(model string) bool {
	switch model {
	case GaussOut, GMOut, GaussOutBin, GMOutBin:
		return true
	}
	return false
}
