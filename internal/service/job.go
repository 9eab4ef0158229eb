package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/CZERTAINLY/Polymarker/internal/job"
	"github.com/CZERTAINLY/Polymarker/internal/model"
	"github.com/CZERTAINLY/Polymarker/internal/tool"
)

// KeyService is the root key naming the service which produced a job
const KeyService = "service"

type jobJSON struct {
	job.Info
	Sequence string    `json:"sequence,omitempty"`
	Tool     tool.Type `json:"tool,omitempty"`
}

// MarshalJSON writes the job in the form understood by Deserialize:
//
//	{"service": "Polymarker service", "job": {"job_uuid": ..., "tool": "system"}, "job_dir": ...}
func (j *Job) MarshalJSON() ([]byte, error) {
	jj := jobJSON{Info: j.Info()}
	if j.Sequence != nil {
		jj.Sequence = j.Sequence.Name
	}
	root := map[string]any{
		KeyService: Name,
	}
	if j.Tool != nil {
		jj.Tool = j.Tool.Type()
		if err := j.Tool.AddToJSON(root); err != nil {
			return nil, fmt.Errorf("serializing tool of job %s: %w", j.ID(), err)
		}
	}
	root[tool.KeyJob] = jj
	return json.Marshal(root)
}

// Serialize is json.Marshal of a job.
func Serialize(j *Job) ([]byte, error) {
	return json.Marshal(j)
}

// Deserialize restores a job written by Serialize. A job known to the
// service is returned as is, so a running process stays attached to it.
func (s *Service) Deserialize(_ context.Context, raw []byte) (*Job, error) {
	var fragment map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fragment); err != nil {
		return nil, fmt.Errorf("decoding job: %w", err)
	}
	rawJob, ok := fragment[tool.KeyJob]
	if !ok {
		return nil, fmt.Errorf("decoding job: no %q object", tool.KeyJob)
	}
	var jj jobJSON
	if err := json.Unmarshal(rawJob, &jj); err != nil {
		return nil, fmt.Errorf("decoding job: %w", err)
	}
	if jj.ID == uuid.Nil {
		return nil, errors.New("decoding job: missing job_uuid")
	}
	if known, ok := s.Lookup(jj.ID); ok {
		return known, nil
	}

	var seq *model.Sequence
	if jj.Sequence != "" {
		seq, _ = s.cfg.Sequence(jj.Sequence)
	}
	j := job.FromInfo(jj.Info)
	t, err := tool.FromJSON(j, seq, s.cfg, s.tasks, fragment)
	if err != nil {
		return nil, fmt.Errorf("restoring job %s: %w", jj.ID, err)
	}
	return s.add(&Job{Job: j, Tool: t, Sequence: seq}), nil
}
