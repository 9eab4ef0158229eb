// Package primer3 renders the primer3 preferences consumed by the pipeline.
package primer3

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/CZERTAINLY/Polymarker/internal/model"
)

const PrefsFile = "primer3_preferences.txt"

// Parameter names of the primer3 tunables.
const (
	ParamProductSizeRangeMin        = "Product size range min"
	ParamProductSizeRangeMax        = "Product size range max"
	ParamMaxSize                    = "Primer maximum size"
	ParamLibAmbiguityCodesConsensus = "Lib ambiguity codes consensus"
	ParamLiberalBase                = "Liberal base"
	ParamNumReturn                  = "Number to return"
	ParamExplainFlag                = "Explain flag"
)

const maxPrimerSize = 35

// FromParams overlays request parameters on top of defaults. The bool
// result is false if no primer3 parameter was present.
func FromParams(defaults model.Primer3Prefs, params *model.ParamSet) (model.Primer3Prefs, bool, error) {
	prefs := defaults
	var found bool

	uints := []struct {
		name string
		dst  *uint
	}{
		{ParamProductSizeRangeMin, &prefs.ProductSizeRangeMin},
		{ParamProductSizeRangeMax, &prefs.ProductSizeRangeMax},
		{ParamMaxSize, &prefs.MaxSize},
		{ParamNumReturn, &prefs.NumReturn},
	}
	for _, u := range uints {
		v, ok := params.Get(u.name)
		if !ok {
			continue
		}
		n, ok := v.Uint()
		if !ok {
			return prefs, false, fmt.Errorf("parameter %q: not an unsigned integer: %v", u.name, v.Any())
		}
		*u.dst = n
		found = true
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{ParamLibAmbiguityCodesConsensus, &prefs.LibAmbiguityCodesConsensus},
		{ParamLiberalBase, &prefs.LiberalBase},
		{ParamExplainFlag, &prefs.ExplainFlag},
	}
	for _, b := range bools {
		v, ok := params.Get(b.name)
		if !ok {
			continue
		}
		x, ok := v.Bool()
		if !ok {
			return prefs, false, fmt.Errorf("parameter %q: not a boolean: %v", b.name, v.Any())
		}
		*b.dst = x
		found = true
	}

	if err := Validate(prefs); err != nil {
		return prefs, false, err
	}
	return prefs, found, nil
}

func Validate(p model.Primer3Prefs) error {
	switch {
	case p.ProductSizeRangeMin > p.ProductSizeRangeMax:
		return fmt.Errorf("product size range %d-%d is empty", p.ProductSizeRangeMin, p.ProductSizeRangeMax)
	case p.MaxSize > maxPrimerSize:
		return fmt.Errorf("primer maximum size %d is larger than %d", p.MaxSize, maxPrimerSize)
	}
	return nil
}

// Marshal renders preferences as key=value lines.
func Marshal(p model.Primer3Prefs) []byte {
	var buf bytes.Buffer
	kv := func(k, v string) {
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(v)
		buf.WriteByte('\n')
	}
	flag := func(b bool) string {
		if b {
			return "1"
		}
		return "0"
	}
	u := func(n uint) string { return strconv.FormatUint(uint64(n), 10) }

	kv("primer_product_size_range", u(p.ProductSizeRangeMin)+"-"+u(p.ProductSizeRangeMax))
	kv("primer_max_size", u(p.MaxSize))
	kv("primer_lib_ambiguity_codes_consensus", flag(p.LibAmbiguityCodesConsensus))
	kv("primer_liberal_base", flag(p.LiberalBase))
	kv("primer_num_return", u(p.NumReturn))
	kv("primer_explain_flag", flag(p.ExplainFlag))
	if p.ThermodynamicParametersPath != "" {
		kv("primer_thermodynamic_parameters_path", p.ThermodynamicParametersPath)
	}
	return buf.Bytes()
}

func Write(path string, p model.Primer3Prefs) error {
	if err := os.WriteFile(path, Marshal(p), 0o644); err != nil {
		return fmt.Errorf("writing primer3 preferences: %w", err)
	}
	return nil
}
