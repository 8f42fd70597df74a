package repositories

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"league-coordinator/internal/models"
)

func TestRoundRepositoryCreateTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	repo := NewRoundRepository(db)
	round := &models.Round{ID: "round-1", LeagueID: "league-1", RoundNumber: 1, Status: models.RoundPending}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO rounds").
		WithArgs(round.ID, round.LeagueID, round.RoundNumber, round.Status).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.CreateTx(tx, round); err != nil {
		t.Fatalf("CreateTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoundRepositoryListByLeague(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	repo := NewRoundRepository(db)
	rows := sqlmock.NewRows([]string{"round_id", "league_id", "round_number", "status"}).
		AddRow("round-1", "league-1", 1, models.RoundPending).
		AddRow("round-2", "league-1", 2, models.RoundPending)
	mock.ExpectQuery("SELECT round_id, league_id, round_number, status").
		WithArgs("league-1").
		WillReturnRows(rows)

	rounds, err := repo.ListByLeague(context.Background(), "league-1")
	if err != nil {
		t.Fatalf("ListByLeague: %v", err)
	}
	if len(rounds) != 2 || rounds[0].RoundNumber != 1 || rounds[1].RoundNumber != 2 {
		t.Fatalf("ListByLeague = %+v", rounds)
	}
}

func TestRoundRepositoryUpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	repo := NewRoundRepository(db)
	mock.ExpectExec("UPDATE rounds SET status").
		WithArgs(models.RoundActive, "round-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateStatus(context.Background(), "round-1", models.RoundActive); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoundRepositoryAllMatchesTerminal(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	repo := NewRoundRepository(db)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM matches").
		WithArgs("round-1", models.MatchCompleted, models.MatchFailed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	done, err := repo.AllMatchesTerminal(context.Background(), "round-1")
	if err != nil {
		t.Fatalf("AllMatchesTerminal: %v", err)
	}
	if !done {
		t.Fatal("expected AllMatchesTerminal to report true when no non-terminal rows remain")
	}
}

func TestRoundRepositoryExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	repo := NewRoundRepository(db)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM rounds WHERE round_id").
		WithArgs("round-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := repo.Exists(context.Background(), "round-1")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Fatal("expected Exists to report true")
	}
}
