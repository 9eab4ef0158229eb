package ledger_test

import (
	"errors"
	"testing"

	"github.com/CZERTAINLY/Polymarker/internal/ledger"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var errDisk = errors.New("disk I/O error")

func TestLedger_Rollback(t *testing.T) {
	t.Parallel()
	const id = "0b5bd2b4-3c0e-4b8a-9d0e-3a1f0f7c2f11"

	var testCases = []struct {
		scenario string
		given    func(mock sqlmock.Sqlmock)
		then     string
	}{
		{
			scenario: "insert",
			given: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT in_progress FROM jobs`).
					WithArgs(id).
					WillReturnRows(sqlmock.NewRows([]string{"in_progress"}))
				mock.ExpectExec(`INSERT INTO jobs`).WillReturnError(errDisk)
				mock.ExpectRollback()
			},
			then: "executing sql insert failed",
		},
		{
			scenario: "lookup",
			given: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT in_progress FROM jobs`).
					WithArgs(id).
					WillReturnError(errDisk)
				mock.ExpectRollback()
			},
			then: "executing sql query failed",
		},
		{
			scenario: "commit",
			given: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT in_progress FROM jobs`).
					WithArgs(id).
					WillReturnRows(sqlmock.NewRows([]string{"in_progress"}).AddRow(true))
				mock.ExpectExec(`UPDATE jobs SET status`).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit().WillReturnError(errDisk)
			},
			then: "committing transaction failed",
		},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })

			tt.given(mock)
			err = ledger.Start(t.Context(), db, id, "started", `{}`)
			require.ErrorContains(t, err, tt.then)
			require.ErrorIs(t, err, errDisk)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLedger_FinishUnknown(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT in_progress FROM jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"in_progress"}))
	mock.ExpectRollback()

	err = ledger.FinishErr(t.Context(), db, "nope", "failed", `{}`, "exit 2")
	require.ErrorIs(t, err, ledger.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
