// Package ledger persists submitted jobs in sqlite, so their status can be
// answered by a later process.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyFinished = errors.New("already finished")
)

type Job struct {
	UUID          string
	InProgress    bool
	Status        string
	JobJSON       string
	Success       *bool
	FailureReason *string
}

type JobRow struct {
	Job
	ID int
}

func (d JobRow) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("uuid: %q, in_progress: %t, status: %q", d.UUID, d.InProgress, d.Status))
	if d.Success != nil {
		sb.WriteString(fmt.Sprintf(", success: %t", *d.Success))
	} else {
		sb.WriteString(", success: nil")
	}
	if d.FailureReason != nil {
		sb.WriteString(fmt.Sprintf(", failure_reason: %q", *d.FailureReason))
	} else {
		sb.WriteString(", failure_reason: nil")
	}
	return sb.String()
}

func InitDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT NOT NULL UNIQUE,
			in_progress BOOLEAN NOT NULL,
			status TEXT NOT NULL,
			job_json TEXT NOT NULL,
			success BOOLEAN DEFAULT NULL,
			failure_reason TEXT DEFAULT NULL
		)`,
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func rollback(ctx context.Context, tx *sql.Tx, uuid string) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.ErrorContext(ctx, "Calling `tx.Rollback()` failed.", slog.String("uuid", uuid), slog.String("error", err.Error()))
	}
}

// inProgress returns ErrNotFound if the job is unknown
func inProgress(ctx context.Context, tx *sql.Tx, uuid string) (bool, error) {
	var inProgress bool
	row := tx.QueryRowContext(ctx,
		`SELECT in_progress FROM jobs WHERE uuid=?`, uuid,
	)
	err := row.Scan(&inProgress)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, ErrNotFound
	case err != nil:
		return false, fmt.Errorf("executing sql query failed: %w", err)
	}
	return inProgress, nil
}

// Start persists, on success, information that a job identified by 'uuid' is in progress.
// If the job is still in progress its status and serialized form are updated,
// if it has already finished ErrAlreadyFinished is returned.
func Start(ctx context.Context, db *sql.DB, uuid, status, jobJSON string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx, uuid)

	running, err := inProgress(ctx, tx, uuid)
	switch {
	case err == nil && running:
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, job_json = ? WHERE uuid = ?;`, status, jobJSON, uuid,
		)
		if err != nil {
			return fmt.Errorf("executing sql update failed: %w", err)
		}
	case err == nil && !running:
		return ErrAlreadyFinished
	case errors.Is(err, ErrNotFound):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO jobs (uuid, in_progress, status, job_json) VALUES (?,?,?,?);`, uuid, true, status, jobJSON,
		)
		if err != nil {
			return fmt.Errorf("executing sql insert failed: %w", err)
		}
	default:
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction failed: %w", err)
	}
	return nil
}

// Get returns info about a job identified by 'uuid' on success,
// ErrNotFound when job identified by 'uuid' does not exist,
// error otherwise.
func Get(ctx context.Context, db *sql.DB, uuid string) (JobRow, error) {
	var row JobRow
	err := db.QueryRowContext(ctx,
		`SELECT id, uuid, in_progress, status, job_json, success, failure_reason FROM jobs WHERE uuid=?`, uuid,
	).Scan(
		&row.ID,
		&row.UUID,
		&row.InProgress,
		&row.Status,
		&row.JobJSON,
		&row.Success,
		&row.FailureReason,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return JobRow{}, ErrNotFound
	case err != nil:
		return JobRow{}, fmt.Errorf("executing sql query failed: %w", err)
	}
	return row, nil
}

// List returns all jobs in the order of submission, optionally only those in progress.
func List(ctx context.Context, db *sql.DB, inProgressOnly bool) ([]JobRow, error) {
	query := `SELECT id, uuid, in_progress, status, job_json, success, failure_reason FROM jobs`
	if inProgressOnly {
		query += ` WHERE in_progress = true`
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("executing sql query failed: %w", err)
	}
	defer rows.Close()

	var ret []JobRow
	for rows.Next() {
		var row JobRow
		if err := rows.Scan(
			&row.ID,
			&row.UUID,
			&row.InProgress,
			&row.Status,
			&row.JobJSON,
			&row.Success,
			&row.FailureReason,
		); err != nil {
			return nil, fmt.Errorf("scanning sql row failed: %w", err)
		}
		ret = append(ret, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sql rows failed: %w", err)
	}
	return ret, nil
}

// FinishOK on success stores information that job, identified by 'uuid', has finished
// successfully together with its final serialized form,
// if the job has already finished, ErrAlreadyFinished is returned,
// error otherwise.
func FinishOK(ctx context.Context, db *sql.DB, uuid, status, jobJSON string) error {
	return finish(ctx, db, uuid, status, jobJSON, true, nil)
}

// FinishErr stores information that job, identified by 'uuid', has failed
// and stores the failure reason with it,
// error otherwise.
func FinishErr(ctx context.Context, db *sql.DB, uuid, status, jobJSON, reason string) error {
	return finish(ctx, db, uuid, status, jobJSON, false, &reason)
}

func finish(ctx context.Context, db *sql.DB, uuid, status, jobJSON string, success bool, reason *string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx, uuid)

	running, err := inProgress(ctx, tx, uuid)
	switch {
	case err != nil:
		return err
	case !running:
		return ErrAlreadyFinished
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs
		 SET
			in_progress = false,
			status = ?,
			job_json = ?,
			success = ?,
			failure_reason = ?
		WHERE uuid = ?;
		`, status, jobJSON, success, reason, uuid,
	)
	if err != nil {
		return fmt.Errorf("executing sql update failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction failed: %w", err)
	}
	return nil
}

func Delete(ctx context.Context, db *sql.DB, uuid string) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM jobs WHERE uuid=?`, uuid,
	)
	if err != nil {
		return fmt.Errorf("executing sql delete failed: %w", err)
	}

	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("fetching affected rows failed: %w", err)
	}
	if ra != 1 {
		return ErrNotFound
	}
	return nil
}
