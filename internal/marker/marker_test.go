package marker_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CZERTAINLY/Polymarker/internal/marker"
	"github.com/CZERTAINLY/Polymarker/internal/model"
	"github.com/stretchr/testify/require"
)

func TestWriteList(t *testing.T) {
	t.Parallel()

	type then struct {
		content        string
		usesChromosome bool
	}
	var testCases = []struct {
		scenario string
		given    *model.ParamSet
		then     then
	}{
		{
			scenario: "chromosome",
			given: model.NewParamSet().AddGroup(model.SequenceGroupName, map[string]any{
				model.ParamGene:       "G1",
				model.ParamChromosome: "3B",
				model.ParamSequence:   "ATCG[A/T]GGCA",
			}),
			then: then{"G1,3B,ATCG[A/T]GGCA\n", true},
		},
		{
			scenario: "no chromosome",
			given: model.NewParamSet().AddGroup(model.SequenceGroupName, map[string]any{
				model.ParamGene:     "G1",
				model.ParamSequence: "ATCG[A/T]GGCA",
			}),
			then: then{"G1,G1,ATCG[A/T]GGCA\n", false},
		},
		{
			scenario: "repeated groups",
			given: model.NewParamSet().
				AddGroup(model.SequenceGroupName+" [2]", map[string]any{
					model.ParamGene:     "G3",
					model.ParamSequence: "TT[G/C]AA",
				}).
				AddGroup("Primer3 parameters", map[string]any{
					model.ParamGene:     "ignored",
					model.ParamSequence: "ignored",
				}).
				AddGroup(model.SequenceGroupName, map[string]any{
					model.ParamGene:     "G1",
					model.ParamSequence: "ATCG[A/T]GGCA",
				}).
				AddGroup(model.SequenceGroupName+" [1]", map[string]any{
					model.ParamGene:       "G2",
					model.ParamChromosome: "1A",
					model.ParamSequence:   `{"query_sequence":"ACGTACGT","polymorphisms":[{"locus":{"faldo:begin":{"faldo:position":3},"faldo:end":{"faldo:position":3}},"sequence_difference":{"query":"A","hit":"T"}}]}`,
				}),
			then: then{"G1,G1,ATCG[A/T]GGCA\nG3,G3,TT[G/C]AA\nG2,1A,AC[A/T]TACGT\n", true},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), marker.ListFile)
			usesChromosome, err := marker.WriteList(path, tt.given)
			require.NoError(t, err)
			require.Equal(t, tt.then.usesChromosome, usesChromosome)
			b, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Equal(t, tt.then.content, string(b))
		})
	}
}

func TestWriteList_Rewrites(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), marker.ListFile)
	require.NoError(t, os.WriteFile(path, []byte("stale,stale,stale\nstale,stale,stale\n"), 0o644))

	params := model.NewParamSet().AddGroup(model.SequenceGroupName, map[string]any{
		model.ParamGene:     "G1",
		model.ParamSequence: "AC[G/T]",
	})
	_, err := marker.WriteList(path, params)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "G1,G1,AC[G/T]\n", string(b))
}

func TestWriteList_Fail(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    *model.ParamSet
		then     string
	}{
		{
			scenario: "no group",
			given:    model.NewParamSet().Set(model.ParamGene, "G1"),
			then:     `group "Sequence parameters"`,
		},
		{
			scenario: "missing gene",
			given: model.NewParamSet().AddGroup(model.SequenceGroupName, map[string]any{
				model.ParamSequence: "ACGT",
			}),
			then: `"Gene"`,
		},
		{
			scenario: "missing sequence in repeated group",
			given: model.NewParamSet().
				AddGroup(model.SequenceGroupName, map[string]any{
					model.ParamGene:     "G1",
					model.ParamSequence: "ACGT",
				}).
				AddGroup(model.SequenceGroupName+" [1]", map[string]any{
					model.ParamGene: "G2",
				}),
			then: `group "Sequence parameters [1]"`,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), marker.ListFile)
			_, err := marker.WriteList(path, tt.given)
			require.ErrorIs(t, err, model.ErrMissingParameter)
			require.ErrorContains(t, err, tt.then)
			_, err = os.Stat(path)
			require.ErrorIs(t, err, os.ErrNotExist)
		})
	}

	t.Run("io error", func(t *testing.T) {
		params := model.NewParamSet().AddGroup(model.SequenceGroupName, map[string]any{
			model.ParamGene:     "G1",
			model.ParamSequence: "ACGT",
		})
		path := filepath.Join(t.TempDir(), "missing", marker.ListFile)
		_, err := marker.WriteList(path, params)
		require.Error(t, err)
		require.ErrorContains(t, err, "opening marker list")
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestAppendRecord(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, marker.AppendRecord(path, marker.Record{Gene: "G1", Chromosome: "3B", Sequence: "A[C/G]T"}))
	require.NoError(t, marker.AppendRecord(path, marker.Record{Gene: "G2", Sequence: "T[C/G]A"}))
	require.ErrorIs(t, marker.AppendRecord(path, marker.Record{Gene: "G3"}), model.ErrMissingParameter)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "G1,3B,A[C/G]T\nG2,G2,T[C/G]A\n", string(b))
}
