package marker_test

import (
	"testing"

	"github.com/CZERTAINLY/Polymarker/internal/marker"
	"github.com/stretchr/testify/require"
)

func TestInvocation(t *testing.T) {
	t.Parallel()
	base := marker.Invocation{
		Executable: "/opt/polymarker/bin/polymarker.rb",
		Contigs:    "/data/iwgsc.fa",
		Output:     "/jobs/1",
		Aligner:    "exonerate",
		MarkerList: "/jobs/1/markers_list",
	}

	var testCases = []struct {
		scenario string
		given    func(marker.Invocation) marker.Invocation
		then     string
	}{
		{
			scenario: "minimal",
			given:    func(i marker.Invocation) marker.Invocation { return i },
			then:     "/opt/polymarker/bin/polymarker.rb --contigs /data/iwgsc.fa --output /jobs/1 --aligner exonerate --marker_list /jobs/1/markers_list",
		},
		{
			scenario: "arm selection",
			given: func(i marker.Invocation) marker.Invocation {
				i.ArmSelection = true
				return i
			},
			then: "/opt/polymarker/bin/polymarker.rb --contigs /data/iwgsc.fa --output /jobs/1 --aligner exonerate --marker_list /jobs/1/markers_list --arm_selection arm_selection_first_two",
		},
		{
			scenario: "all",
			given: func(i marker.Invocation) marker.Invocation {
				i.Aligner = "blast"
				i.ArmSelection = true
				i.Primer3Prefs = "/jobs/1/primer3_preferences.txt"
				return i
			},
			then: "/opt/polymarker/bin/polymarker.rb --contigs /data/iwgsc.fa --output /jobs/1 --aligner blast --marker_list /jobs/1/markers_list --arm_selection arm_selection_first_two --primer_3_preferences /jobs/1/primer3_preferences.txt",
		},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			inv := tt.given(base)
			require.Equal(t, tt.then, inv.String())
			require.Equal(t, tt.then, inv.String(), "command line must be stable")
			require.Equal(t, inv.Executable+" "+joined(inv.Args()), inv.String())
		})
	}
}

func joined(args []string) string {
	var s string
	for i, a := range args {
		if i > 0 {
			s += " "
		}
		s += a
	}
	return s
}
