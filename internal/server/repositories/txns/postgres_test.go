package txns

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/farekeeper/internal/common"
	"github.com/dmitrijs2005/farekeeper/internal/server/models"
	"github.com/dmitrijs2005/farekeeper/internal/syncapi"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var txnCols = []string{"id", "card_id", "terminal_id", "kind", "amount", "seq", "status", "reason", "created_at", "recorded_at"}

func TestGetByID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(txnCols).
		AddRow("tx-1", "CARD1", "term-1", "debit", int64(250), int64(1), "CONFIRMED", "", now, now)
	mock.ExpectQuery(`(?s)^select\s+.*\s+from\s+transactions\s+where\s+id\s*=\s*\$1\s*$`).
		WithArgs("tx-1").WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "tx-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Kind != models.KindDebit || got.Status != syncapi.StatusConfirmed || got.Amount != 250 {
		t.Fatalf("unexpected transaction: %+v", got)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^select\s+.*\s+from\s+transactions\s+where\s+id\s*=\s*\$1\s*$`).
		WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "nope")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected common.ErrNotFound, got %v", err)
	}
}

func TestInsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	txn := &models.Transaction{
		ID:         "tx-1",
		CardID:     "CARD1",
		TerminalID: "term-1",
		Kind:       models.KindDebit,
		Amount:     250,
		Seq:        1,
		Status:     syncapi.StatusConfirmed,
		CreatedAt:  now,
		RecordedAt: now,
	}

	mock.ExpectExec(`(?s)^insert\s+into\s+transactions\s*\(.*\)\s*values\s*\(\$1,.*\$10\)\s*$`).
		WithArgs("tx-1", "CARD1", "term-1", models.KindDebit, int64(250), int64(1),
			syncapi.StatusConfirmed, "", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Insert(context.Background(), txn); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListByCard(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(txnCols).
		AddRow("tx-1", "CARD1", "term-1", "debit", int64(250), int64(1), "CONFIRMED", "", now, now).
		AddRow("tx-2", "CARD1", "", "topup", int64(1000), int64(0), "CONFIRMED", "", now, now)
	mock.ExpectQuery(`(?s)^select\s+.*\s+from\s+transactions\s+where\s+card_id\s*=\s*\$1\s+order\s+by\s+recorded_at,\s*seq\s*$`).
		WithArgs("CARD1").WillReturnRows(rows)

	got, err := repo.ListByCard(context.Background(), "CARD1")
	if err != nil {
		t.Fatalf("ListByCard error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(got))
	}
	if got[1].Kind != models.KindTopup {
		t.Fatalf("unexpected second row: %+v", got[1])
	}
}
