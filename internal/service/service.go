package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"sync"

	gocron "github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/CZERTAINLY/Polymarker/internal/job"
	"github.com/CZERTAINLY/Polymarker/internal/jobdir"
	"github.com/CZERTAINLY/Polymarker/internal/ledger"
	"github.com/CZERTAINLY/Polymarker/internal/model"
	"github.com/CZERTAINLY/Polymarker/internal/task"
	"github.com/CZERTAINLY/Polymarker/internal/tool"
)

const (
	Name        = "Polymarker service"
	Description = "A service using Polymarker"
)

var (
	ErrJobNotFound = errors.New("job not found")
)

// Job is a job together with the tool running it and the sequence it searches.
type Job struct {
	*job.Job
	Tool     tool.Tool
	Sequence *model.Sequence
}

// Service turns requests into jobs. It owns the task manager, so the last
// running background job keeps it alive after Release.
type Service struct {
	cfg      model.Config
	toolType tool.Type
	tasks    *task.Manager
	db       *sql.DB

	scheduler gocron.Scheduler
	bgCtx     context.Context

	mx   sync.RWMutex
	jobs map[uuid.UUID]*Job
	// order of submission, used by Jobs
	order []uuid.UUID

	closeOnce sync.Once
}

// New validates the configuration and initializes the service. Configuration
// errors, including an executable which can't be found, are returned here.
func New(ctx context.Context, cfg model.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	typ, err := tool.ParseType(cfg.Tool)
	if err != nil {
		return nil, err
	}
	if typ == tool.TypeSystem {
		if _, err := exec.LookPath(cfg.Executable); err != nil {
			return nil, fmt.Errorf("%w: executable: %w", model.ErrInvalidConfig, err)
		}
	}
	if err := jobdir.Ensure(cfg.WorkingDirectory); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		toolType: typ,
		bgCtx:    context.WithoutCancel(ctx),
		jobs:     make(map[uuid.UUID]*Job),
	}
	s.tasks = task.NewManager(s.teardown)

	if cfg.Ledger != nil {
		db, err := ledger.InitDB(ctx, cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("initializing ledger: %w", err)
		}
		s.db = db
	}

	if cfg.Poll != nil {
		scheduler, err := newScheduler(ctx, cfg.Poll, func() { s.Refresh(s.bgCtx) })
		if err != nil {
			s.closeDB()
			return nil, fmt.Errorf("poll failed: %w", err)
		}
		s.scheduler = scheduler
		s.scheduler.Start()
	}
	return s, nil
}

func (s *Service) Config() model.Config {
	return s.cfg
}

// Tasks exposes the background task registry.
func (s *Service) Tasks() *task.Manager {
	return s.tasks
}

// Lookup returns a job known to this service instance.
func (s *Service) Lookup(id uuid.UUID) (*Job, bool) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

// Jobs returns all known jobs in the order they were added.
func (s *Service) Jobs() []*Job {
	s.mx.RLock()
	defer s.mx.RUnlock()
	ret := make([]*Job, 0, len(s.order))
	for _, id := range s.order {
		ret = append(ret, s.jobs[id])
	}
	return ret
}

// add keeps the first job registered under an id
func (s *Service) add(j *Job) *Job {
	s.mx.Lock()
	defer s.mx.Unlock()
	if old, ok := s.jobs[j.ID()]; ok {
		return old
	}
	s.jobs[j.ID()] = j
	s.order = append(s.order, j.ID())
	return j
}

func (s *Service) drop(id uuid.UUID) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return
	}
	delete(s.jobs, id)
	s.order = slices.DeleteFunc(s.order, func(x uuid.UUID) bool { return x == id })
}

// newJob creates a job and its tool for a sequence.
func (s *Service) newJob(seq *model.Sequence) (*Job, error) {
	var name, description string
	if seq != nil {
		name, description = seq.Name, seq.Description
	}
	j := job.New(name, description)
	t, err := tool.New(s.toolType, j, seq, s.cfg, s.tasks)
	if err != nil {
		return nil, err
	}
	return &Job{Job: j, Tool: t, Sequence: seq}, nil
}

// Release drops the reference of the service. Resources are freed once the
// last background job finishes. Jobs which are not running are closed now.
func (s *Service) Release() {
	for _, j := range s.Jobs() {
		if j.Tool != nil {
			j.Tool.Close()
		}
	}
	s.tasks.Release()
}

// Close releases the service and waits until all background jobs are done.
func (s *Service) Close(ctx context.Context) error {
	s.Release()
	return s.tasks.Wait(ctx)
}

// teardown runs once, after the last background job completed
func (s *Service) teardown() {
	s.closeOnce.Do(func() {
		ctx := s.bgCtx
		if s.scheduler != nil {
			if err := s.scheduler.Shutdown(); err != nil {
				slog.ErrorContext(ctx, "stopping poller", "error", err)
			}
		}
		for _, j := range s.Jobs() {
			s.record(ctx, j)
		}
		s.closeDB()
		slog.DebugContext(ctx, "service released")
	})
}

func (s *Service) closeDB() {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		slog.Error("closing ledger", "error", err)
	}
}
