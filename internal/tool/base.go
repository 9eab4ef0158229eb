package tool

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/CZERTAINLY/Polymarker/internal/job"
	"github.com/CZERTAINLY/Polymarker/internal/jobdir"
	"github.com/CZERTAINLY/Polymarker/internal/model"
)

type base struct {
	mx          sync.RWMutex
	job         *job.Job
	seq         *model.Sequence
	cfg         model.Config
	dir         string
	commandLine string
	// resultErr is the error of the last failed ComputeResult
	resultErr error
}

func newBase(j *job.Job, seq *model.Sequence, cfg model.Config) (*base, error) {
	if j == nil {
		return nil, errors.New("tool needs a job")
	}
	if j.ID() == uuid.Nil {
		return nil, errors.New("job has no identity")
	}
	if cfg.WorkingDirectory == "" {
		return nil, errors.New("working directory is not configured")
	}
	return &base{job: j, seq: seq, cfg: cfg}, nil
}

func (b *base) Job() *job.Job {
	return b.job
}

func (b *base) Sequence() *model.Sequence {
	return b.seq
}

func (b *base) Dir() string {
	b.mx.RLock()
	defer b.mx.RUnlock()
	return b.dir
}

func (b *base) CommandLine() string {
	b.mx.RLock()
	defer b.mx.RUnlock()
	return b.commandLine
}

func (b *base) ResultErr() error {
	b.mx.RLock()
	defer b.mx.RUnlock()
	return b.resultErr
}

func (b *base) setResultErr(err error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.resultErr = err
}

func (b *base) Rebind(id uuid.UUID) error {
	if id == uuid.Nil {
		return errors.New("can't rebind to nil job id")
	}
	dir := jobdir.Derive(b.cfg.WorkingDirectory, id)
	b.mx.Lock()
	defer b.mx.Unlock()
	b.dir = dir
	b.job.Rebind(id)
	return nil
}

func (b *base) AddToJSON(root map[string]any) error {
	if root == nil {
		return errors.New("nil json object")
	}
	root[KeyJobDir] = b.Dir()
	return nil
}
