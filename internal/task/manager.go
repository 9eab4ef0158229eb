// Package task runs external processes and tracks the asynchronous ones
// of a service.
package task

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrTaskRegistered = errors.New("task already registered")
	ErrManagerClosed  = errors.New("task manager released")
)

// CompleteFunc is called once the process of a registered task ends.
type CompleteFunc func(id uuid.UUID, res Result)

type entry struct {
	runner     *Runner
	onComplete CompleteFunc
	stop       chan struct{}
}

// Manager is a registry of in-flight tasks. It holds a reference count,
// one for the owning service and one per registered task. Teardown runs when
// the count drops to zero, which is after Release has been called and the
// last task completed or was removed.
type Manager struct {
	mx       sync.Mutex
	tasks    map[uuid.UUID]*entry
	refs     int
	released bool
	done     chan struct{}
	onZero   func()
	wg       sync.WaitGroup
}

func NewManager(onZero func()) *Manager {
	return &Manager{
		tasks:  make(map[uuid.UUID]*entry),
		refs:   1,
		done:   make(chan struct{}),
		onZero: onZero,
	}
}

// Register adds a task before its process is started and takes a reference.
// onComplete is called with the result once the process ends.
func (m *Manager) Register(id uuid.UUID, runner *Runner, onComplete CompleteFunc) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.refs == 0 {
		return ErrManagerClosed
	}
	if _, ok := m.tasks[id]; ok {
		return ErrTaskRegistered
	}

	e := &entry{
		runner:     runner,
		onComplete: onComplete,
		stop:       make(chan struct{}),
	}
	m.tasks[id] = e
	m.refs++

	ch := runner.WaitChan()
	m.wg.Go(func() {
		select {
		case res := <-ch:
			m.Complete(id, res)
		case <-e.stop:
		}
	})
	return nil
}

func (m *Manager) Lookup(id uuid.UUID) (*Runner, bool) {
	m.mx.Lock()
	defer m.mx.Unlock()
	e, ok := m.tasks[id]
	if !ok {
		return nil, false
	}
	return e.runner, true
}

// Complete runs the completion callback of a task, removes it and drops its
// reference. Unknown or already completed tasks are ignored.
func (m *Manager) Complete(id uuid.UUID, res Result) {
	e, ok := m.detach(id)
	if !ok {
		return
	}
	if e.onComplete != nil {
		e.onComplete(id, res)
	}
	m.unref()
}

// Remove drops a task without calling its callback, e.g. when the process
// could not be started.
func (m *Manager) Remove(id uuid.UUID) {
	if _, ok := m.detach(id); !ok {
		return
	}
	m.unref()
}

func (m *Manager) detach(id uuid.UUID) (*entry, bool) {
	m.mx.Lock()
	defer m.mx.Unlock()
	e, ok := m.tasks[id]
	if ok {
		delete(m.tasks, id)
		close(e.stop)
	}
	return e, ok
}

// Release drops the reference of the owning service, calling it more than
// once has no effect.
func (m *Manager) Release() {
	m.mx.Lock()
	if m.released {
		m.mx.Unlock()
		return
	}
	m.released = true
	m.mx.Unlock()
	m.unref()
}

func (m *Manager) unref() {
	m.mx.Lock()
	m.refs--
	zero := m.refs == 0
	m.mx.Unlock()
	if !zero {
		return
	}
	if m.onZero != nil {
		m.onZero()
	}
	close(m.done)
}

// Len returns the number of in-flight tasks.
func (m *Manager) Len() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return len(m.tasks)
}

// Refs returns the current reference count.
func (m *Manager) Refs() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.refs
}

// Done is closed once the reference count reached zero and teardown ran.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until teardown has finished or ctx is done. A finished
// teardown wins over a canceled ctx.
func (m *Manager) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		m.wg.Wait()
		return nil
	default:
	}
	select {
	case <-m.done:
		m.wg.Wait()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
