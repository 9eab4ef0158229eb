// Package job holds the state of a single submitted unit of work.
package job

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/CZERTAINLY/Polymarker/internal/model"
)

var ErrIDAssigned = errors.New("job id already assigned")

// Job is safe for concurrent use. Its status only moves forward, once
// terminal it does not change.
type Job struct {
	mx          sync.RWMutex
	id          uuid.UUID
	name        string
	description string
	status      model.OperationStatus
	result      json.RawMessage
	errors      []string
}

// New returns a job with a fresh random identity.
func New(name, description string) *Job {
	return &Job{
		id:          uuid.New(),
		name:        name,
		description: description,
	}
}

// NewUnassigned returns a job without identity, SetID must be called once.
func NewUnassigned(name, description string) *Job {
	return &Job{name: name, description: description}
}

func (j *Job) ID() uuid.UUID {
	j.mx.RLock()
	defer j.mx.RUnlock()
	return j.id
}

// SetID assigns the identity of a job created by NewUnassigned.
func (j *Job) SetID(id uuid.UUID) error {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.id != uuid.Nil {
		return ErrIDAssigned
	}
	j.id = id
	return nil
}

// Rebind moves a job to another identity. It exists for adopting a job
// directory left by a previous run only.
func (j *Job) Rebind(id uuid.UUID) {
	j.mx.Lock()
	defer j.mx.Unlock()
	j.id = id
}

func (j *Job) Name() string {
	j.mx.RLock()
	defer j.mx.RUnlock()
	return j.name
}

func (j *Job) Description() string {
	j.mx.RLock()
	defer j.mx.RUnlock()
	return j.description
}

func (j *Job) SetMetadata(name, description string) {
	j.mx.Lock()
	defer j.mx.Unlock()
	j.name = name
	j.description = description
}

func (j *Job) Status() model.OperationStatus {
	j.mx.RLock()
	defer j.mx.RUnlock()
	return j.status
}

// SetStatus moves the job to status s and returns the resulting status.
// Transitions out of a terminal status and back to an earlier
// non-terminal one are ignored.
func (j *Job) SetStatus(s model.OperationStatus) model.OperationStatus {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.status.Terminal() {
		return j.status
	}
	if !s.Terminal() && s < j.status {
		return j.status
	}
	j.status = s
	return j.status
}

func (j *Job) Result() json.RawMessage {
	j.mx.RLock()
	defer j.mx.RUnlock()
	return j.result
}

func (j *Job) HasResult() bool {
	j.mx.RLock()
	defer j.mx.RUnlock()
	return j.result != nil
}

func (j *Job) SetResult(raw json.RawMessage) {
	j.mx.Lock()
	defer j.mx.Unlock()
	j.result = raw
}

func (j *Job) AddError(msg string) {
	j.mx.Lock()
	defer j.mx.Unlock()
	j.errors = append(j.errors, msg)
}

func (j *Job) Errors() []string {
	j.mx.RLock()
	defer j.mx.RUnlock()
	return append([]string(nil), j.errors...)
}

// Fail records err and moves the job to a failed status.
func (j *Job) Fail(s model.OperationStatus, err error) model.OperationStatus {
	if err != nil {
		j.AddError(err.Error())
	}
	return j.SetStatus(s)
}

// Info is the serialized form of a job.
type Info struct {
	ID          uuid.UUID             `json:"job_uuid"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Status      model.OperationStatus `json:"status"`
	Results     json.RawMessage       `json:"results,omitempty"`
	Errors      []string              `json:"errors,omitempty"`
}

func (j *Job) Info() Info {
	j.mx.RLock()
	defer j.mx.RUnlock()
	return Info{
		ID:          j.id,
		Name:        j.name,
		Description: j.description,
		Status:      j.status,
		Results:     j.result,
		Errors:      append([]string(nil), j.errors...),
	}
}

// FromInfo restores a job, the status is taken verbatim.
func FromInfo(info Info) *Job {
	return &Job{
		id:          info.ID,
		name:        info.Name,
		description: info.Description,
		status:      info.Status,
		result:      info.Results,
		errors:      append([]string(nil), info.Errors...),
	}
}
