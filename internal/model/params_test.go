package model_test

import (
	"encoding/json"
	"testing"

	"github.com/CZERTAINLY/Polymarker/internal/model"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParamSet(t *testing.T) {
	params := model.NewParamSet().
		Set(model.ParamContigFilename, "IWGSC").
		AddGroup(model.SequenceGroupName, map[string]any{
			model.ParamGene:       "G1",
			model.ParamChromosome: "",
			model.ParamSequence:   "ATCG[A/T]GGCA",
		})

	s, ok := params.GetString(model.ParamContigFilename)
	require.True(t, ok)
	require.Equal(t, "IWGSC", s)

	s, err := params.RequireString(model.ParamGene)
	require.NoError(t, err)
	require.Equal(t, "G1", s)

	_, ok = params.GetString(model.ParamChromosome)
	require.False(t, ok, "empty strings are treated as absent")

	_, err = params.RequireString(model.ParamJobIDs)
	require.ErrorIs(t, err, model.ErrMissingParameter)
	require.ErrorContains(t, err, model.ParamJobIDs)

	g, ok := params.Group(model.SequenceGroupName)
	require.True(t, ok)
	s, ok = g.GetString(model.ParamSequence)
	require.True(t, ok)
	require.Equal(t, "ATCG[A/T]GGCA", s)

	_, ok = params.Group("Sequence parameters [1]")
	require.False(t, ok)
}

func TestParamSet_Decode(t *testing.T) {
	yml := `
params:
  Contig filename: IWGSC
  Number to return: 3
groups:
  - name: Sequence parameters
    params:
      Gene: G1
      Sequence:
        query_sequence: ACGT
        polymorphisms: []
`
	var fromYAML model.ParamSet
	require.NoError(t, yaml.Unmarshal([]byte(yml), &fromYAML))

	n, ok := fromYAML.Params["Number to return"].Uint()
	require.True(t, ok)
	require.Equal(t, uint(3), n)

	seq, ok := fromYAML.Get(model.ParamSequence)
	require.True(t, ok)
	_, ok = seq.String()
	require.False(t, ok)
	raw, ok := seq.JSON()
	require.True(t, ok)
	require.JSONEq(t, `{"query_sequence":"ACGT","polymorphisms":[]}`, string(raw))

	b, err := json.Marshal(fromYAML)
	require.NoError(t, err)
	var fromJSON model.ParamSet
	require.NoError(t, json.Unmarshal(b, &fromJSON))
	gene, ok := fromJSON.GetString(model.ParamGene)
	require.True(t, ok)
	require.Equal(t, "G1", gene)
}

func TestValue(t *testing.T) {
	t.Parallel()
	cases := []struct {
		scenario string
		given    any
		uint     uint
		uintOK   bool
		boolV    bool
		boolOK   bool
	}{
		{"int", 5, 5, true, false, false},
		{"float", float64(7), 7, true, false, false},
		{"fraction", 7.5, 0, false, false, false},
		{"negative", -1, 0, false, false, false},
		{"numeric string", " 12 ", 12, true, false, false},
		{"bool", true, 0, false, true, true},
		{"bool string", "false", 0, false, false, true},
		{"nil", nil, 0, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			v := model.NewValue(tc.given)
			u, ok := v.Uint()
			require.Equal(t, tc.uintOK, ok)
			require.Equal(t, tc.uint, u)
			b, ok := v.Bool()
			require.Equal(t, tc.boolOK, ok)
			require.Equal(t, tc.boolV, b)
		})
	}
}

func TestValue_JSONString(t *testing.T) {
	v := model.NewValue(` {"query_sequence":"AC"} `)
	raw, ok := v.JSON()
	require.True(t, ok)
	require.JSONEq(t, `{"query_sequence":"AC"}`, string(raw))

	_, ok = model.NewValue("ACGT").JSON()
	require.False(t, ok)
}
