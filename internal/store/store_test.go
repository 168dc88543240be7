package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/apperr"
	"github.com/dukerupert/hearth/internal/model"
)

func TestStoreErrorsAreWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM space_penalty_settings").
		WillReturnError(errors.New("disk I/O error"))

	_, err = NewSettingsStore(db).GetPenaltySettings(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error")
	}
	if apperr.Retryable(err) {
		t.Error("generic driver errors should not be marked retryable")
	}
	if got := err.Error(); got != "get penalty settings: disk I/O error" {
		t.Errorf("error = %q", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO point_transactions").
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err = InTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := NewPointsStore(db).WithTx(tx).InsertTransaction(context.Background(), &model.PointTransaction{})
		return err
	})
	if err == nil {
		t.Fatal("expected error from InTx")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPenaltyStoreWithTxCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO late_penalties").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	penalties := NewPenaltyStore(db)
	var inserted bool
	err = InTx(context.Background(), db, func(tx *sql.Tx) error {
		var err error
		inserted, err = penalties.WithTx(tx).Insert(context.Background(), &model.LatePenalty{
			ChoreID: uuid.New(),
			UserID:  uuid.New(),
			SpaceID: uuid.New(),
		})
		return err
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if !inserted {
		t.Error("expected insert to report a new row")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
