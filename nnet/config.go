package nnet

import "github.com/tungk/vrnn/distr"

// Config sizes the default sub-network bundle.
type Config struct {
	Model string // output variant, same strings as the root config

	InDim int // frame width fed to the feature extractor
	XDim  int // continuous output width
	ZDim  int // latent width
	KMix  int // mixture components, mixture variants only

	PhiXDim int // input feature width
	PhiZDim int // latent feature width
	HidDim  int // recurrent width

	BatchSize int
}

func DefaultConf(model string, xDim, zDim, batch int) Config {
	conf := Config{
		Model:     model,
		InDim:     xDim,
		XDim:      xDim,
		ZDim:      zDim,
		KMix:      1,
		BatchSize: batch,
	}
	if distr.HasBin(model) {
		conf.InDim++
	}
	if distr.IsMixture(model) {
		conf.KMix = 5
	}
	conf.PhiXDim = 2 * conf.InDim
	conf.PhiZDim = 2 * conf.ZDim
	conf.HidDim = 2 * (conf.PhiXDim + conf.PhiZDim)
	return conf
}

func (conf Config) IsValid() bool {
	wantIn := conf.XDim
	if distr.HasBin(conf.Model) {
		wantIn++
	}
	return validModel(conf.Model) &&
		conf.InDim == wantIn &&
		conf.XDim >= 1 &&
		conf.ZDim >= 1 &&
		(!distr.IsMixture(conf.Model) || conf.KMix >= 1) &&
		conf.PhiXDim >= 1 &&
		conf.PhiZDim >= 1 &&
		conf.HidDim >= 1 &&
		conf.BatchSize >= 1
}

func validModel(model string) bool {
	switch model {
	case "gauss_out", "gm_out", "gauss_out_bin", "gm_out_bin":
		return true
	}
	return false
}
