package tool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/CZERTAINLY/Polymarker/internal/jobdir"
	"github.com/CZERTAINLY/Polymarker/internal/marker"
	"github.com/CZERTAINLY/Polymarker/internal/model"
	"github.com/CZERTAINLY/Polymarker/internal/primer3"
	"github.com/CZERTAINLY/Polymarker/internal/result"
	"github.com/CZERTAINLY/Polymarker/internal/task"
)

const (
	LogFile = "polymarker.log"
	// logTail is the amount of the pipeline log attached to a failed job
	logTail = 4096
)

// System runs the polymarker pipeline as a local process, either blocking
// the caller or in the background.
type System struct {
	*base
	executable string
	async      bool
	logFile    string
	invocation marker.Invocation
	parsed     bool

	tasks  *task.Manager
	runner *task.Runner
	bgCtx  context.Context
}

func newSystem(b *base, executable string, async bool, tasks *task.Manager) *System {
	return &System{
		base:       b,
		executable: executable,
		async:      async,
		tasks:      tasks,
	}
}

func (s *System) Type() Type {
	return TypeSystem
}

func (s *System) Log() string {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return s.logFile
}

func (s *System) Async() bool {
	return s.async
}

func (s *System) Executable() string {
	return s.executable
}

func (s *System) ParseParameters(_ context.Context, params *model.ParamSet) error {
	if params == nil {
		return fmt.Errorf("%w: no parameters", model.ErrMissingParameter)
	}
	contigs, err := s.contigs(params)
	if err != nil {
		return err
	}

	dir := s.Dir()
	if err := jobdir.Ensure(dir); err != nil {
		return err
	}
	md := jobdir.Metadata{Name: s.job.Name(), Description: s.job.Description()}
	if err := jobdir.SaveMetadata(dir, md); err != nil {
		return err
	}

	markerList := filepath.Join(dir, marker.ListFile)
	usesChromosome, err := marker.WriteList(markerList, params)
	if err != nil {
		return err
	}

	defaults := model.DefaultPrimer3Prefs()
	if s.cfg.Primer3 != nil {
		defaults = *s.cfg.Primer3
	}
	defaults.ThermodynamicParametersPath = s.cfg.ThermodynamicParametersPath
	prefs, found, err := primer3.FromParams(defaults, params)
	if err != nil {
		return err
	}
	var prefsPath string
	if found || s.cfg.Primer3 != nil || prefs.ThermodynamicParametersPath != "" {
		prefsPath = filepath.Join(dir, primer3.PrefsFile)
		if err := primer3.Write(prefsPath, prefs); err != nil {
			return err
		}
	}

	inv := marker.Invocation{
		Executable:   s.executable,
		Contigs:      contigs,
		Output:       dir,
		Aligner:      s.cfg.Aligner,
		MarkerList:   markerList,
		ArmSelection: !usesChromosome,
		Primer3Prefs: prefsPath,
	}

	s.mx.Lock()
	defer s.mx.Unlock()
	s.invocation = inv
	s.commandLine = inv.String()
	s.logFile = filepath.Join(dir, LogFile)
	s.parsed = true
	return nil
}

// contigs returns the FASTA file of the target sequence. A tool without a
// sequence uses the one named by the Contig filename parameter.
func (s *System) contigs(params *model.ParamSet) (string, error) {
	if s.seq != nil {
		return s.seq.FastaFilename, nil
	}
	name, err := params.RequireString(model.ParamContigFilename)
	if err != nil {
		return "", err
	}
	seq, ok := s.cfg.Sequence(name)
	if !ok {
		return "", fmt.Errorf("%w: unknown sequence %q", model.ErrMissingParameter, name)
	}
	s.seq = seq
	return seq.FastaFilename, nil
}

func (s *System) command() task.Command {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return task.Command{
		Path:    s.invocation.Executable,
		Args:    s.invocation.Args(),
		Dir:     s.dir,
		LogPath: s.logFile,
		Timeout: s.cfg.ProcessTimeout(),
	}
}

func (s *System) Run(ctx context.Context) model.OperationStatus {
	s.mx.RLock()
	parsed := s.parsed
	s.mx.RUnlock()
	if !parsed {
		return s.job.Fail(model.StatusFailedToStart, ErrNotParsed)
	}
	if s.async {
		return s.runAsync(ctx)
	}

	s.job.SetStatus(model.StatusPending)
	runner := task.NewRunner()
	s.setRunner(ctx, runner)
	if err := runner.Start(ctx, s.command(), nil); err != nil {
		return s.failToStart(err)
	}
	s.job.SetStatus(model.StatusStarted)
	return s.finish(ctx, <-runner.WaitChan())
}

func (s *System) runAsync(ctx context.Context) model.OperationStatus {
	if s.tasks == nil {
		return s.job.Fail(model.StatusFailedToStart, errors.New("no task manager"))
	}
	s.job.SetStatus(model.StatusPending)

	runner := task.NewRunner()
	s.setRunner(ctx, runner)
	id := s.job.ID()
	err := s.tasks.Register(id, runner, func(_ uuid.UUID, res task.Result) {
		s.finish(s.bgCtx, res)
	})
	if err != nil {
		return s.job.Fail(model.StatusFailedToStart, fmt.Errorf("registering job %s: %w", id, err))
	}

	// the process outlives the request which started it
	if err := runner.Start(context.WithoutCancel(ctx), s.command(), nil); err != nil {
		s.tasks.Remove(id)
		return s.failToStart(err)
	}
	return s.job.SetStatus(model.StatusStarted)
}

func (s *System) setRunner(ctx context.Context, runner *task.Runner) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.runner = runner
	s.bgCtx = context.WithoutCancel(ctx)
}

func (s *System) failToStart(err error) model.OperationStatus {
	if log := s.logTail(); log != "" {
		s.job.AddError(log)
	}
	return s.job.Fail(model.StatusFailedToStart, err)
}

// finish records the exit of the process and applies it to the job.
func (s *System) finish(ctx context.Context, res task.Result) model.OperationStatus {
	st := jobdir.ExitStatus{
		ExitCode: res.ExitCode(),
		Started:  res.Started,
		Stopped:  res.Stopped,
	}
	if res.Err != nil {
		st.Error = res.Err.Error()
	}
	if err := jobdir.SaveExitStatus(s.Dir(), st); err != nil {
		s.job.AddError(err.Error())
	}
	return s.observe(ctx, st)
}

// observe must tolerate concurrent calls from the completion callback and
// status polling.
func (s *System) observe(ctx context.Context, st jobdir.ExitStatus) model.OperationStatus {
	s.mx.Lock()
	if !s.job.Status().Terminal() {
		if st.ExitCode == 0 && st.Error == "" {
			s.job.SetStatus(model.StatusSucceeded)
		} else {
			msg := fmt.Sprintf("polymarker exited with code %d", st.ExitCode)
			if st.Error != "" {
				msg += ": " + st.Error
			}
			s.job.AddError(msg)
			if log := s.logTailLocked(); log != "" {
				s.job.AddError(log)
			}
			s.job.SetStatus(model.StatusFailed)
		}
	}
	s.mx.Unlock()

	status := s.job.Status()
	if status == model.StatusSucceeded && !s.job.HasResult() {
		s.collect(ctx)
	}
	return status
}

// collect reads the result of a succeeded job. A failure keeps the status,
// the result is read again on the next update.
func (s *System) collect(ctx context.Context) {
	if err := s.ComputeResult(ctx); err != nil {
		slog.WarnContext(ctx, "collecting result failed", "job_uuid", s.job.ID(), "error", err)
	}
}

func (s *System) Status(ctx context.Context, update bool) model.OperationStatus {
	status := s.job.Status()
	if !update {
		return status
	}
	if status.Terminal() {
		if status == model.StatusSucceeded && !s.job.HasResult() {
			s.collect(ctx)
		}
		return status
	}

	s.mx.RLock()
	runner := s.runner
	s.mx.RUnlock()
	if runner != nil {
		if runner.Running() {
			return status
		}
		res := runner.LastResult()
		if errors.Is(res.Err, task.ErrTaskNotStarted) || res.Stopped.IsZero() {
			return status
		}
		return s.finish(ctx, res)
	}

	// no live process, e.g. a job restored after restart
	st, err := jobdir.LoadExitStatus(s.Dir())
	if err != nil {
		return status
	}
	return s.observe(ctx, st)
}

func (s *System) ComputeResult(ctx context.Context) error {
	j := s.job
	raw, err := result.Compute(ctx, j.Status(), s.Dir(), j.ID(), result.DefaultSections)
	s.setResultErr(err)
	if err != nil {
		return err
	}
	if raw != nil {
		j.SetResult(raw)
	}
	return nil
}

func (s *System) AddToJSON(root map[string]any) error {
	if err := s.base.AddToJSON(root); err != nil {
		return err
	}
	root[KeyAsync] = s.async
	if log := s.Log(); log != "" {
		root[KeyLogFile] = log
	}
	root[KeyExecutable] = s.executable
	return nil
}

// Close unregisters a background task whose process was never started.
// A started one is completed by the task manager once its process ends.
func (s *System) Close() {
	s.mx.RLock()
	runner := s.runner
	s.mx.RUnlock()
	if s.tasks == nil || runner == nil || runner.Running() {
		return
	}
	if !errors.Is(runner.LastResult().Err, task.ErrTaskNotStarted) {
		return
	}
	s.tasks.Remove(s.job.ID())
}

func (s *System) logTail() string {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return s.logTailLocked()
}

func (s *System) logTailLocked() string {
	if s.logFile == "" {
		return ""
	}
	f, err := os.Open(s.logFile)
	if err != nil {
		return ""
	}
	defer f.Close()
	if info, err := f.Stat(); err == nil && info.Size() > logTail {
		if _, err := f.Seek(-logTail, io.SeekEnd); err != nil {
			return ""
		}
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
