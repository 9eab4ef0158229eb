package marker

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

type annotatedSequence struct {
	QuerySequence string         `json:"query_sequence"`
	Polymorphisms []polymorphism `json:"polymorphisms"`
}

type polymorphism struct {
	Locus struct {
		Begin faldoPosition `json:"faldo:begin"`
		End   faldoPosition `json:"faldo:end"`
	} `json:"locus"`
	Difference struct {
		Query string `json:"query"`
		Hit   string `json:"hit"`
	} `json:"sequence_difference"`
}

type faldoPosition struct {
	Position int `json:"faldo:position"`
}

// FlattenSequence turns an annotated sequence into the bracket notation
// understood by the pipeline, e.g. AC[A/T]TACGT. Positions are 1-based and
// inclusive. Input which is not a JSON object is returned unchanged.
func FlattenSequence(raw []byte) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return string(raw), nil
	}

	var seq annotatedSequence
	if err := json.Unmarshal([]byte(trimmed), &seq); err != nil {
		return "", fmt.Errorf("parsing annotated sequence: %w", err)
	}
	if seq.QuerySequence == "" {
		return "", fmt.Errorf("annotated sequence: empty query_sequence")
	}

	snps := slices.Clone(seq.Polymorphisms)
	// right to left keeps the positions of the remaining ones valid
	slices.SortStableFunc(snps, func(a, b polymorphism) int {
		return b.Locus.Begin.Position - a.Locus.Begin.Position
	})

	out := seq.QuerySequence
	prev := len(out) + 1
	for _, p := range snps {
		begin, end := p.Locus.Begin.Position, p.Locus.End.Position
		if end == 0 {
			end = begin
		}
		if begin < 1 || end < begin || end > len(seq.QuerySequence) {
			return "", fmt.Errorf("polymorphism [%d, %d] out of range of sequence with length %d", begin, end, len(seq.QuerySequence))
		}
		if end >= prev {
			return "", fmt.Errorf("polymorphism [%d, %d] overlaps another one", begin, end)
		}
		prev = begin
		out = out[:begin-1] + "[" + p.Difference.Query + "/" + p.Difference.Hit + "]" + out[end:]
	}
	return out, nil
}
