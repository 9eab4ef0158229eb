package model

// Primer3Prefs are the tunables passed to primer3 through the pipeline.
// Defaults follow the pipeline's own: product size 50-150, max size 25.
type Primer3Prefs struct {
	// PRIMER_PRODUCT_SIZE_RANGE, lengths of the product primers should create
	ProductSizeRangeMin uint `json:"product_size_range_min" yaml:"product_size_range_min"`
	ProductSizeRangeMax uint `json:"product_size_range_max" yaml:"product_size_range_max"`
	// PRIMER_MAX_SIZE, can't be larger than 35
	MaxSize                    uint `json:"max_size" yaml:"max_size"`
	LibAmbiguityCodesConsensus bool `json:"lib_ambiguity_codes_consensus" yaml:"lib_ambiguity_codes_consensus"`
	LiberalBase                bool `json:"liberal_base" yaml:"liberal_base"`
	NumReturn                  uint `json:"num_return" yaml:"num_return"`
	ExplainFlag                bool `json:"explain_flag" yaml:"explain_flag"`

	ThermodynamicParametersPath string `json:"-" yaml:"-"`
}

func DefaultPrimer3Prefs() Primer3Prefs {
	return Primer3Prefs{
		ProductSizeRangeMin:        50,
		ProductSizeRangeMax:        150,
		MaxSize:                    25,
		LibAmbiguityCodesConsensus: true,
		LiberalBase:                true,
		NumReturn:                  5,
		ExplainFlag:                true,
	}
}
