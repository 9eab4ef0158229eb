package task

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

var (
	ErrTaskNotStarted = errors.New("task not started")
	ErrTaskInProgress = errors.New("task in progress")
)

// waitDelay bounds the wait for pipes held open by orphaned children
const waitDelay = 5 * time.Second

type StderrFunc func(ctx context.Context, line string)

// Runner owns a single external process at a time.
type Runner struct {
	mx         sync.RWMutex
	cmd        *exec.Cmd
	cancelFunc context.CancelFunc
	exited     chan struct{}
	finished   bool
	result     Result
	waits      []chan Result
}

func NewRunner() *Runner {
	return &Runner{
		result: Result{Err: ErrTaskNotStarted},
	}
}

type Command struct {
	Path string
	Args []string
	Env  []string
	// Dir is the working directory of the process
	Dir string
	// LogPath redirects stdout and stderr to a file, Result.Stdout stays nil then.
	LogPath string
	Timeout time.Duration
}

type Result struct {
	Path    string
	Args    []string
	Env     []string
	Dir     string
	LogPath string
	Started time.Time
	Stopped time.Time
	State   *os.ProcessState
	Stdout  *bytes.Buffer
	Err     error
}

// ExitCode returns the exit code of the process or -1 if it has not exited.
func (r Result) ExitCode() int {
	if r.State == nil {
		return -1
	}
	return r.State.ExitCode()
}

// Success reports whether the process ran and exited with zero.
func (r Result) Success() bool {
	return r.Err == nil && r.State != nil && r.State.ExitCode() == 0
}

// Start runs the underlying process, it ensures only a single instance is active.
// Returns ErrTaskInProgress or an exec error, otherwise nil. Does NOT wait on
// the command to finish, use WaitChan or Run instead.
// Note it spawns an internal goroutine which monitors the started command and stderr.
func (r *Runner) Start(ctx context.Context, proto Command, stderrFunc StderrFunc) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cmd != nil {
		return ErrTaskInProgress
	}

	r.result = Result{
		Path:    proto.Path,
		Args:    append([]string(nil), proto.Args...),
		Env:     append([]string(nil), proto.Env...),
		Dir:     proto.Dir,
		LogPath: proto.LogPath,
	}

	if proto.Timeout == 0 {
		slog.DebugContext(ctx, "command has no timeout", "path", proto.Path)
		ctx, r.cancelFunc = context.WithCancel(ctx)
	} else {
		ctx, r.cancelFunc = context.WithTimeout(ctx, proto.Timeout)
	}

	cmd := exec.CommandContext(ctx, r.result.Path, r.result.Args...)
	cmd.Env = r.result.Env
	cmd.Dir = r.result.Dir
	cmd.WaitDelay = waitDelay

	fail := func(err error) error {
		r.cancelFunc()
		r.result.Stopped = time.Now().UTC()
		r.result.Err = err
		r.finished = true
		return err
	}

	var logFile *os.File
	if proto.LogPath != "" {
		var err error
		logFile, err = os.Create(proto.LogPath)
		if err != nil {
			return fail(fmt.Errorf("creating log file: %w", err))
		}
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	} else {
		var buf bytes.Buffer
		r.result.Stdout = &buf
		cmd.Stdout = &buf
	}

	var stderr io.ReadCloser
	if stderrFunc != nil {
		cmd.Stderr = nil
		var err error
		stderr, err = cmd.StderrPipe()
		if err != nil {
			closeLog(ctx, logFile)
			return fail(err)
		}
	}

	r.result.Started = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		closeLog(ctx, logFile)
		return fail(err)
	}

	r.cmd = cmd
	r.exited = make(chan struct{})
	var stderrDone chan struct{}
	if stderr != nil {
		stderrDone = make(chan struct{})
		go func() {
			defer close(stderrDone)
			processStderr(ctx, stderr, stderrFunc)
		}()
	}
	go r.wait(ctx, cmd, logFile, stderrDone, r.exited)
	return nil
}

// Run starts the process and blocks until it ends.
func (r *Runner) Run(ctx context.Context, proto Command) Result {
	if err := r.Start(ctx, proto, nil); err != nil {
		if errors.Is(err, ErrTaskInProgress) {
			return Result{Path: proto.Path, Args: proto.Args, Err: err}
		}
		return r.LastResult()
	}
	return <-r.WaitChan()
}

func processStderr(ctx context.Context, stderr io.Reader, stderrFunc StderrFunc) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		stderrFunc(ctx, scanner.Text())
	}
	err := scanner.Err()
	if err != nil && !errors.Is(err, io.EOF) {
		slog.ErrorContext(ctx, "processing stderr", "error", err)
	}
}

func (r *Runner) wait(ctx context.Context, cmd *exec.Cmd, logFile *os.File, stderrDone, exited chan struct{}) {
	defer close(exited)
	if stderrDone != nil {
		// the pipe must be drained before Wait closes it
		<-stderrDone
	}
	err := cmd.Wait()
	stopped := time.Now().UTC()
	closeLog(ctx, logFile)

	r.mx.Lock()
	defer r.mx.Unlock()
	r.cancelFunc()
	r.result.Stopped = stopped
	r.result.State = cmd.ProcessState
	r.result.Err = err
	r.cmd = nil
	r.finished = true
	r.notify()
}

// notify must be called with r.mx held
func (r *Runner) notify() {
	for _, ch := range r.waits {
		ch <- r.result
		close(ch)
	}
	r.waits = nil
}

func closeLog(ctx context.Context, f *os.File) {
	if f == nil {
		return
	}
	if err := f.Close(); err != nil {
		slog.ErrorContext(ctx, "closing log file", "path", f.Name(), "error", err)
	}
}

// WaitChan returns the channel obtaining the result of a running
// program. The channel is closed once program ends. If nothing runs and a
// previous run has finished, its result is delivered immediately. If the
// runner was never started, the channel waits for the first process which
// starts successfully.
func (r *Runner) WaitChan() <-chan Result {
	ch := make(chan Result, 1)
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cmd == nil && r.finished {
		ch <- r.result
		close(ch)
		return ch
	}
	r.waits = append(r.waits, ch)
	return ch
}

// LastResult returns a last command result
// or result with ErrTaskNotStarted if no process has been executed yet.
// Err is nil while the process runs.
func (r *Runner) LastResult() Result {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return r.result
}

func (r *Runner) Running() bool {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return r.cmd != nil
}

// Close kills the running process if any and waits for it to exit.
func (r *Runner) Close() {
	r.mx.Lock()
	exited := r.exited
	if r.cmd != nil && r.cancelFunc != nil {
		r.cancelFunc()
	}
	r.mx.Unlock()
	if exited != nil {
		<-exited
	}
}
