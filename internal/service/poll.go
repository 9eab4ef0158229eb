package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/CZERTAINLY/Polymarker/internal/ledger"
	"github.com/CZERTAINLY/Polymarker/internal/model"
	"github.com/CZERTAINLY/Polymarker/internal/parallel"
)

const refreshLimit = 4

// Refresh queries the status of every job which has not finished yet.
func (s *Service) Refresh(ctx context.Context) {
	var inflight []*Job
	for _, j := range s.Jobs() {
		if j.Tool != nil && !j.Status().Terminal() {
			inflight = append(inflight, j)
		}
	}
	if len(inflight) == 0 {
		return
	}

	poll := func(ctx context.Context, j *Job) (*Job, error) {
		before := j.Status()
		if after := j.Tool.Status(ctx, true); after != before {
			s.record(ctx, j)
		}
		return j, nil
	}
	for j, err := range parallel.NewMap(ctx, refreshLimit, poll).Iter(parallel.All(inflight)) {
		if err != nil {
			slog.WarnContext(ctx, "refreshing job", "error", err)
			continue
		}
		slog.DebugContext(ctx, "refreshed", "job_uuid", j.ID().String(), "status", j.Status().String())
	}
}

// record stores the current state of a job in the ledger, if there is one.
func (s *Service) record(ctx context.Context, j *Job) {
	if s.db == nil {
		return
	}
	raw, err := json.Marshal(j)
	if err != nil {
		slog.ErrorContext(ctx, "serializing job", "job_uuid", j.ID().String(), "error", err)
		return
	}
	id := j.ID().String()
	status := j.Status()

	err = ledger.Start(ctx, s.db, id, status.String(), string(raw))
	if err == nil && status.Terminal() {
		if status.Failure() {
			err = ledger.FinishErr(ctx, s.db, id, status.String(), string(raw), strings.Join(j.Errors(), "\n"))
		} else {
			err = ledger.FinishOK(ctx, s.db, id, status.String(), string(raw))
		}
	}
	if err != nil && !errors.Is(err, ledger.ErrAlreadyFinished) {
		slog.ErrorContext(ctx, "recording job", "job_uuid", id, "error", err)
	}
}

func newScheduler(ctx context.Context, cfg *model.Poll, pollFunc func()) (gocron.Scheduler, error) {
	if cfg == nil {
		return nil, errors.New("poll is nil")
	}
	var job gocron.JobDefinition
	switch {
	case cfg.Cron != "":
		if err := model.ParseCron(cfg.Cron); err != nil {
			return nil, fmt.Errorf("parsing poll.cron: %w", err)
		}
		job = gocron.CronJob(cfg.Cron, false)
		slog.DebugContext(ctx, "successfully parsed", "cron", cfg.Cron)
	case cfg.Every != "":
		d, err := model.ParseCueDuration(cfg.Every)
		if err != nil {
			return nil, fmt.Errorf("parsing poll.every: %w", err)
		}
		job = gocron.DurationJob(d)
		slog.DebugContext(ctx, "successfully parsed", "every", d.String())
	default:
		return nil, errors.New("both cron and every are empty")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		job,
		gocron.NewTask(pollFunc),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	return s, nil
}
