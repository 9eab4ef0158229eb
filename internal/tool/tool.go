// Package tool binds a job to the backend executing it. The backend variant
// is tagged by Type, which is persisted with the job so a tool can be
// restored from JSON alone.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"github.com/google/uuid"

	"github.com/CZERTAINLY/Polymarker/internal/job"
	"github.com/CZERTAINLY/Polymarker/internal/jobdir"
	"github.com/CZERTAINLY/Polymarker/internal/model"
	"github.com/CZERTAINLY/Polymarker/internal/task"
)

type Type string

const (
	TypeSystem Type = model.ToolSystem
	TypeWeb    Type = model.ToolWeb
)

// JSON keys of the serialized tool.
const (
	KeyJob        = "job"
	KeyTool       = "tool"
	KeyJobDir     = "job_dir"
	KeyAsync      = "async"
	KeyLogFile    = "logfile"
	KeyExecutable = "executable"
)

var ErrNotParsed = errors.New("parameters have not been parsed")

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeSystem, TypeWeb:
		return Type(s), nil
	default:
		return "", fmt.Errorf("%w: %q", model.ErrUnknownTool, s)
	}
}

// TypeOf reads the tool tag of a serialized job.
func TypeOf(fragment map[string]json.RawMessage) (Type, error) {
	raw, ok := fragment[KeyJob]
	if !ok {
		return "", fmt.Errorf("%w: no %q object", model.ErrUnknownTool, KeyJob)
	}
	var j struct {
		Tool *string `json:"tool"`
	}
	if err := json.Unmarshal(raw, &j); err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrUnknownTool, err)
	}
	if j.Tool == nil {
		return "", fmt.Errorf("%w: missing tag", model.ErrUnknownTool)
	}
	return ParseType(*j.Tool)
}

// Tool executes a single job.
type Tool interface {
	Type() Type
	Job() *job.Job
	Sequence() *model.Sequence
	// Dir is the working directory of the job, never empty.
	Dir() string
	CommandLine() string
	// Log returns the path of the pipeline log, empty when unknown.
	Log() string

	// ParseParameters validates the request and writes the pipeline inputs
	// into the job directory.
	ParseParameters(ctx context.Context, params *model.ParamSet) error
	Run(ctx context.Context) model.OperationStatus
	// Status returns the cached status, update queries the process first.
	Status(ctx context.Context, update bool) model.OperationStatus
	// ComputeResult reads the outputs of a succeeded job into its result.
	ComputeResult(ctx context.Context) error
	// ResultErr returns the error of the last failed ComputeResult, it is
	// cleared once a result is read.
	ResultErr() error
	AddToJSON(root map[string]any) error
	// Rebind points the tool and its job to another job identity and directory.
	Rebind(id uuid.UUID) error
	Close()
}

// New creates a tool for a fresh job.
func New(typ Type, j *job.Job, seq *model.Sequence, cfg model.Config, tasks *task.Manager) (Tool, error) {
	b, err := newBase(j, seq, cfg)
	if err != nil {
		return nil, err
	}
	b.dir = jobdir.Derive(cfg.WorkingDirectory, j.ID())

	switch typ {
	case TypeSystem:
		exe, err := exec.LookPath(cfg.Executable)
		if err != nil {
			return nil, fmt.Errorf("resolving executable: %w", err)
		}
		return newSystem(b, exe, cfg.Asynchronous, tasks), nil
	case TypeWeb:
		return &Web{base: b}, nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownTool, typ)
	}
}

// FromJSON restores a tool serialized by AddToJSON. A missing or malformed
// job_dir is derived from the job identity again.
func FromJSON(j *job.Job, seq *model.Sequence, cfg model.Config, tasks *task.Manager, fragment map[string]json.RawMessage) (Tool, error) {
	typ, err := TypeOf(fragment)
	if err != nil {
		return nil, err
	}
	b, err := newBase(j, seq, cfg)
	if err != nil {
		return nil, err
	}
	if dir, ok := stringField(fragment, KeyJobDir); ok && dir != "" {
		b.dir = dir
	} else {
		b.dir = jobdir.Derive(cfg.WorkingDirectory, j.ID())
	}

	switch typ {
	case TypeSystem:
		exe, ok := stringField(fragment, KeyExecutable)
		if !ok || exe == "" {
			exe = cfg.Executable
		}
		async := cfg.Asynchronous
		if raw, ok := fragment[KeyAsync]; ok {
			if err := json.Unmarshal(raw, &async); err != nil {
				async = cfg.Asynchronous
			}
		}
		s := newSystem(b, exe, async, tasks)
		if log, ok := stringField(fragment, KeyLogFile); ok {
			s.logFile = log
		}
		return s, nil
	default:
		return &Web{base: b}, nil
	}
}

func stringField(fragment map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fragment[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
