// Package marker builds the inputs of the polymarker pipeline: the marker
// list file and the command line.
package marker

import (
	"fmt"
	"os"
	"regexp"

	"github.com/CZERTAINLY/Polymarker/internal/model"
)

// ListFile is the name of the marker list inside a job directory.
const ListFile = "markers_list"

var repeatedGroupRx = regexp.MustCompile(`^` + regexp.QuoteMeta(model.SequenceGroupName) + ` \[\d+\]$`)

// Record is a single line of the marker list.
type Record struct {
	Gene       string
	Chromosome string
	Sequence   string
}

// String formats the record as gene,chromosome,sequence. Without a
// chromosome the gene is repeated in its place.
func (r Record) String() string {
	chromosome := r.Chromosome
	if chromosome == "" {
		chromosome = r.Gene
	}
	return r.Gene + "," + chromosome + "," + r.Sequence
}

// Records extracts the marker records from the primary sequence group and all
// repeated groups, in declaration order.
func Records(params *model.ParamSet) ([]Record, error) {
	primary, ok := params.Group(model.SequenceGroupName)
	if !ok {
		return nil, fmt.Errorf("%w: group %q", model.ErrMissingParameter, model.SequenceGroupName)
	}
	groups := []*model.Group{primary}
	for _, g := range params.Groups {
		if repeatedGroupRx.MatchString(g.Name) {
			groups = append(groups, g)
		}
	}

	ret := make([]Record, 0, len(groups))
	for _, g := range groups {
		r, err := record(g)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
		ret = append(ret, r)
	}
	return ret, nil
}

func record(g *model.Group) (Record, error) {
	gene, ok := g.GetString(model.ParamGene)
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", model.ErrMissingParameter, model.ParamGene)
	}
	v, ok := g.Get(model.ParamSequence)
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", model.ErrMissingParameter, model.ParamSequence)
	}
	var seq string
	if raw, ok := v.JSON(); ok {
		var err error
		seq, err = FlattenSequence(raw)
		if err != nil {
			return Record{}, err
		}
	} else if s, ok := v.String(); ok {
		seq = s
	}
	if seq == "" {
		return Record{}, fmt.Errorf("%w: %q", model.ErrMissingParameter, model.ParamSequence)
	}
	chromosome, _ := g.GetString(model.ParamChromosome)
	return Record{Gene: gene, Chromosome: chromosome, Sequence: seq}, nil
}

// WriteList rewrites the marker list at path. It reports whether any record
// carried an explicit chromosome. The file is not written at all if a
// required parameter is missing.
func WriteList(path string, params *model.ParamSet) (bool, error) {
	records, err := Records(params)
	if err != nil {
		return false, err
	}

	// the list is rewritten on every attempt
	f, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("opening marker list: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("closing marker list %s: %w", path, err)
	}
	var usesChromosome bool
	for _, r := range records {
		if r.Chromosome != "" {
			usesChromosome = true
		}
		if err := AppendRecord(path, r); err != nil {
			return false, err
		}
	}
	return usesChromosome, nil
}

// AppendRecord adds exactly one line to the file at path, creating it if needed.
func AppendRecord(path string, r Record) error {
	if r.Gene == "" || r.Sequence == "" {
		return fmt.Errorf("%w: record needs a gene and a sequence", model.ErrMissingParameter)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening marker list: %w", err)
	}
	_, err = f.WriteString(r.String() + "\n")
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("appending to marker list %s: %w", path, err)
	}
	return nil
}
