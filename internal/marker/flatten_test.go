package marker_test

import (
	"testing"

	"github.com/CZERTAINLY/Polymarker/internal/marker"
	"github.com/stretchr/testify/require"
)

func TestFlattenSequence(t *testing.T) {
	t.Parallel()
	type then struct {
		seq string
		err string
	}
	var testCases = []struct {
		scenario string
		given    string
		then     then
	}{
		{
			scenario: "plain",
			given:    "ATCG[A/T]GGCA",
			then:     then{seq: "ATCG[A/T]GGCA"},
		},
		{
			scenario: "single snp",
			given:    `{"query_sequence":"ACGTACGT","polymorphisms":[{"locus":{"faldo:begin":{"faldo:position":3},"faldo:end":{"faldo:position":3}},"sequence_difference":{"query":"A","hit":"T"}}]}`,
			then:     then{seq: "AC[A/T]TACGT"},
		},
		{
			scenario: "unordered snps",
			given: `{"query_sequence":"ACGTACGT","polymorphisms":[
				{"locus":{"faldo:begin":{"faldo:position":1}},"sequence_difference":{"query":"A","hit":"G"}},
				{"locus":{"faldo:begin":{"faldo:position":8},"faldo:end":{"faldo:position":8}},"sequence_difference":{"query":"T","hit":"C"}},
				{"locus":{"faldo:begin":{"faldo:position":4},"faldo:end":{"faldo:position":5}},"sequence_difference":{"query":"TA","hit":"-"}}]}`,
			then: then{seq: "[A/G]CG[TA/-]CG[T/C]"},
		},
		{
			scenario: "no polymorphisms",
			given:    `{"query_sequence":"ACGT"}`,
			then:     then{seq: "ACGT"},
		},
		{
			scenario: "out of range",
			given:    `{"query_sequence":"ACGT","polymorphisms":[{"locus":{"faldo:begin":{"faldo:position":5}},"sequence_difference":{"query":"A","hit":"T"}}]}`,
			then:     then{err: "out of range"},
		},
		{
			scenario: "overlap",
			given: `{"query_sequence":"ACGT","polymorphisms":[
				{"locus":{"faldo:begin":{"faldo:position":1},"faldo:end":{"faldo:position":3}},"sequence_difference":{"query":"ACG","hit":"T"}},
				{"locus":{"faldo:begin":{"faldo:position":2}},"sequence_difference":{"query":"C","hit":"T"}}]}`,
			then: then{err: "overlaps"},
		},
		{
			scenario: "empty query",
			given:    `{"polymorphisms":[]}`,
			then:     then{err: "empty query_sequence"},
		},
		{
			scenario: "malformed",
			given:    `{"query_sequence":`,
			then:     then{err: "parsing annotated sequence"},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			seq, err := marker.FlattenSequence([]byte(tt.given))
			if tt.then.err != "" {
				require.ErrorContains(t, err, tt.then.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.then.seq, seq)
		})
	}
}
