package marker

import (
	"strings"
)

const armSelectionFirstTwo = "arm_selection_first_two"

// Invocation is the command line of the polymarker pipeline.
type Invocation struct {
	Executable string
	Contigs    string
	Output     string
	Aligner    string
	MarkerList string
	// ArmSelection asks the pipeline to guess the chromosome arm, used
	// when the marker list has no chromosome column.
	ArmSelection bool
	// Primer3Prefs is an optional path to a primer3 preferences file.
	Primer3Prefs string
}

// Args returns arguments without the executable, in a stable order.
func (i Invocation) Args() []string {
	args := []string{
		"--contigs", i.Contigs,
		"--output", i.Output,
		"--aligner", i.Aligner,
		"--marker_list", i.MarkerList,
	}
	if i.ArmSelection {
		args = append(args, "--arm_selection", armSelectionFirstTwo)
	}
	if i.Primer3Prefs != "" {
		args = append(args, "--primer_3_preferences", i.Primer3Prefs)
	}
	return args
}

func (i Invocation) String() string {
	return strings.Join(append([]string{i.Executable}, i.Args()...), " ")
}
