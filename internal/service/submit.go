package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/CZERTAINLY/Polymarker/internal/job"
	"github.com/CZERTAINLY/Polymarker/internal/jobdir"
	"github.com/CZERTAINLY/Polymarker/internal/ledger"
	"github.com/CZERTAINLY/Polymarker/internal/log"
	"github.com/CZERTAINLY/Polymarker/internal/model"
	"github.com/CZERTAINLY/Polymarker/internal/result"
	"github.com/CZERTAINLY/Polymarker/internal/tool"
)

// Submit creates and runs one job per target sequence. The sequence named by
// the Contig filename parameter is the only target, otherwise every active
// sequence is searched. A request carrying Previous results adopts those jobs
// instead of running new ones.
//
// Jobs which can't be started are returned with a failed status, an error is
// returned only when no job could be created.
func (s *Service) Submit(ctx context.Context, params *model.ParamSet) ([]*Job, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: no parameters", model.ErrMissingParameter)
	}
	if v, ok := params.Get(model.ParamJobIDs); ok {
		ids, err := jobIDs(v)
		if err != nil {
			return nil, err
		}
		return s.Recover(ctx, ids), nil
	}

	targets, err := s.targets(params)
	if err != nil {
		return nil, err
	}

	jobs := make([]*Job, 0, len(targets))
	for _, seq := range targets {
		j, err := s.newJob(seq)
		if err != nil {
			return jobs, fmt.Errorf("creating job: %w", err)
		}
		j = s.add(j)
		s.start(ctx, j, params)
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// targets returns nil sequence for an unknown name, the tool reports it then
func (s *Service) targets(params *model.ParamSet) ([]*model.Sequence, error) {
	if name, ok := params.GetString(model.ParamContigFilename); ok {
		seq, _ := s.cfg.Sequence(name)
		return []*model.Sequence{seq}, nil
	}
	active := s.cfg.ActiveSequences()
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: %q and no active sequence", model.ErrMissingParameter, model.ParamContigFilename)
	}
	return active, nil
}

func (s *Service) start(ctx context.Context, j *Job, params *model.ParamSet) {
	ctx = log.ContextAttrs(ctx, slog.String("job_uuid", j.ID().String()))
	if err := j.Tool.ParseParameters(ctx, params); err != nil {
		slog.WarnContext(ctx, "parsing parameters failed", "error", err)
		j.Fail(model.StatusFailedToStart, err)
		s.record(ctx, j)
		return
	}

	slog.DebugContext(ctx, "starting polymarker", "command", j.Tool.CommandLine())
	status := j.Tool.Run(ctx)
	if status.Failure() {
		slog.WarnContext(ctx, "job failed", "status", status.String(), "errors", j.Errors())
	} else {
		slog.InfoContext(ctx, "job submitted", "status", status.String(), "job_dir", j.Tool.Dir())
	}
	s.record(ctx, j)
}

// Status refreshes and returns a job. Jobs unknown to this instance are
// restored from the ledger.
func (s *Service) Status(ctx context.Context, id uuid.UUID) (*Job, error) {
	j, ok := s.Lookup(id)
	if !ok {
		var err error
		j, err = s.restore(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	if j.Tool == nil {
		return j, nil
	}

	ctx = log.ContextAttrs(ctx, slog.String("job_uuid", id.String()))
	before := j.Status()
	hadResult := j.HasResult()
	after := j.Tool.Status(ctx, true)
	if after != before || j.HasResult() != hadResult {
		s.record(ctx, j)
	}
	return j, nil
}

func (s *Service) restore(ctx context.Context, id uuid.UUID) (*Job, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	row, err := ledger.Get(ctx, s.db, id.String())
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return s.Deserialize(ctx, []byte(row.JobJSON))
}

// Recover adopts jobs run earlier, possibly by another process, from their
// directories. Every id yields one job in the order given. A failure is
// reported by the status of its job and never stops the others.
func (s *Service) Recover(ctx context.Context, ids []string) []*Job {
	jobs := make([]*Job, 0, len(ids))
	for _, raw := range ids {
		jobs = append(jobs, s.recover(ctx, raw))
	}
	return jobs
}

func (s *Service) recover(ctx context.Context, raw string) *Job {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		j := job.New(raw, "")
		j.Fail(model.StatusFailed, fmt.Errorf("invalid job id %q: %w", raw, err))
		return &Job{Job: j}
	}
	if known, ok := s.Lookup(id); ok {
		if known.Tool != nil {
			known.Tool.Status(ctx, true)
		}
		return known
	}

	ctx = log.ContextAttrs(ctx, slog.String("job_uuid", id.String()))
	j := job.New("", "")
	t, err := tool.New(s.toolType, j, nil, s.cfg, s.tasks)
	if err == nil {
		err = t.Rebind(id)
	}
	if err != nil {
		return failedJob(id, fmt.Errorf("recovering job %s: %w", id, err))
	}

	sj := &Job{Job: j, Tool: t}
	md, err := jobdir.LoadMetadata(t.Dir())
	if err != nil {
		slog.DebugContext(ctx, "recovering without metadata", "error", err)
	} else {
		j.SetMetadata(md.Name, md.Description)
		if seq, ok := s.cfg.Sequence(md.Name); ok {
			sj.Sequence = seq
		}
	}

	// the outputs decide, the status is committed after they were read
	res, err := result.Compute(ctx, model.StatusSucceeded, t.Dir(), id, result.DefaultSections)
	if err != nil {
		slog.WarnContext(ctx, "recovering job failed", "error", err)
		j.Fail(model.StatusFailed, err)
	} else {
		j.SetResult(res)
		j.SetStatus(model.StatusSucceeded)
	}

	sj = s.add(sj)
	s.record(ctx, sj)
	return sj
}

// failedJob reports an id which could not be recovered, under that id
func failedJob(id uuid.UUID, err error) *Job {
	j := job.NewUnassigned("", "")
	if serr := j.SetID(id); serr != nil {
		err = errors.Join(err, serr)
	}
	j.Fail(model.StatusFailed, err)
	return &Job{Job: j}
}

// jobIDs accepts a list of strings or a single string separated by commas
// or white space.
func jobIDs(v model.Value) ([]string, error) {
	switch x := v.Any().(type) {
	case string:
		return strings.FieldsFunc(x, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		}), nil
	case []string:
		return x, nil
	case []any:
		ids := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q: expected string, got %T", model.ErrMissingParameter, model.ParamJobIDs, e)
			}
			ids = append(ids, s)
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("%w: %q: expected list of job ids, got %T", model.ErrMissingParameter, model.ParamJobIDs, x)
	}
}
