// Package result turns the output files of a finished job into a result
// document.
package result

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/CZERTAINLY/Polymarker/internal/jobdir"
	"github.com/CZERTAINLY/Polymarker/internal/model"
)

const ProtocolInline = "inline"

// Section maps an output file to a key of the result data.
type Section struct {
	File string
	Key  string
}

// DefaultSections are the outputs of the polymarker pipeline.
var DefaultSections = []Section{
	{File: "primers.csv", Key: "primers"},
	{File: "exons_genes_and_contigs.fa", Key: "exons_genes_and_contigs"},
}

// Envelope is an inline resource holding the job outputs.
type Envelope struct {
	Protocol string            `json:"protocol"`
	Value    uuid.UUID         `json:"value"`
	Data     map[string]string `json:"data"`
}

// Compute reads all sections from dir. A nil result and nil error are
// returned for any status except StatusSucceeded. A single unreadable file
// fails the whole computation.
func Compute(ctx context.Context, status model.OperationStatus, dir string, id uuid.UUID, sections []Section) (json.RawMessage, error) {
	if status != model.StatusSucceeded {
		return nil, nil
	}

	var mx sync.Mutex
	data := make(map[string]string, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sections {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := jobdir.ReadFile(dir, s.File)
			if err != nil {
				return fmt.Errorf("reading %s of job %s: %w", s.File, id, err)
			}
			mx.Lock()
			data[s.Key] = string(b)
			mx.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(Envelope{
		Protocol: ProtocolInline,
		Value:    id,
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding result of job %s: %w", id, err)
	}
	return raw, nil
}
