package service_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/CZERTAINLY/Polymarker/internal/model"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakePipeline stands in for polymarker. With GATE set it waits until a file
// of that name appears in the output directory.
const fakePipeline = `
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift 2 ;;
    --marker_list) markers="$2"; shift 2 ;;
    *) shift ;;
  esac
done
if [ -n "$GATE" ]; then
  while [ ! -f "$out/$GATE" ]; do sleep 0.05; done
fi
echo "running polymarker"
printf 'Marker,SNP\n' > "$out/primers.csv"
cat "$markers" >> "$out/primers.csv"
printf '>G1\nACGT\n' > "$out/exons_genes_and_contigs.fa"
`

func script(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	path := filepath.Join(t.TempDir(), "polymarker.rb")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T, async bool) model.Config {
	t.Helper()
	return model.Config{
		WorkingDirectory: t.TempDir(),
		Tool:             model.ToolSystem,
		Aligner:          model.AlignerExonerate,
		Executable:       script(t, fakePipeline),
		Asynchronous:     async,
		Sequences: []model.Sequence{
			{Name: "IWGSC", FastaFilename: "/data/iwgsc.fa", Description: "Chinese Spring", Active: true},
			{Name: "Cadenza", FastaFilename: "/data/cadenza.fa", Active: false},
		},
	}
}

func testParams() *model.ParamSet {
	return model.NewParamSet().AddGroup(model.SequenceGroupName, map[string]any{
		model.ParamGene:       "G1",
		model.ParamChromosome: "3B",
		model.ParamSequence:   "ATCG[A/T]GGCA",
	})
}
