package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/CZERTAINLY/Polymarker/internal/ledger"
)

var (
	ErrNoLedger      = errors.New("no ledger configured")
	ErrJobInProgress = errors.New("job in progress")
)

// InProgress returns the jobs the ledger records as running, with their
// status refreshed. Rows which can't be restored are skipped.
func (s *Service) InProgress(ctx context.Context) ([]*Job, error) {
	if s.db == nil {
		return nil, ErrNoLedger
	}
	rows, err := ledger.List(ctx, s.db, true)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}

	jobs := make([]*Job, 0, len(rows))
	for _, row := range rows {
		slog.DebugContext(ctx, "ledger", "row", row.String())
		id, err := uuid.Parse(row.UUID)
		if err != nil {
			slog.WarnContext(ctx, "skipping ledger row", "uuid", row.UUID, "error", err)
			continue
		}
		j, err := s.Status(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "skipping ledger row", "uuid", row.UUID, "error", err)
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Forget removes a finished job from the ledger and from this service. The
// job directory is kept.
func (s *Service) Forget(ctx context.Context, id uuid.UUID) error {
	if s.db == nil {
		return ErrNoLedger
	}
	row, err := ledger.Get(ctx, s.db, id.String())
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	case err != nil:
		return err
	case row.InProgress:
		return fmt.Errorf("%w: %s", ErrJobInProgress, id)
	}
	if j, ok := s.Lookup(id); ok && !j.Status().Terminal() {
		return fmt.Errorf("%w: %s", ErrJobInProgress, id)
	}

	// teardown would record a known job again
	s.drop(id)
	if err := ledger.Delete(ctx, s.db, id.String()); err != nil {
		return fmt.Errorf("forgetting job %s: %w", id, err)
	}
	return nil
}
