package repositories

import (
	"context"
	"database/sql"

	"league-coordinator/internal/models"
)

// RoundRepository persists rounds. Rounds and their matches are always
// created together inside one transaction by the scheduler.
type RoundRepository struct {
	db *sql.DB
}

func NewRoundRepository(db *sql.DB) *RoundRepository {
	return &RoundRepository{db: db}
}

func (r *RoundRepository) CreateTx(tx *sql.Tx, round *models.Round) error {
	const query = `
		INSERT INTO rounds (round_id, league_id, round_number, status)
		VALUES (?, ?, ?, ?)
	`
	_, err := tx.ExecContext(context.Background(), query, round.ID, round.LeagueID, round.RoundNumber, round.Status)
	return err
}

func (r *RoundRepository) ListByLeague(ctx context.Context, leagueID string) ([]*models.Round, error) {
	const query = `
		SELECT round_id, league_id, round_number, status
		FROM rounds WHERE league_id = ? ORDER BY round_number ASC
	`
	rows, err := r.db.QueryContext(ctx, query, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []*models.Round
	for rows.Next() {
		var rd models.Round
		if err := rows.Scan(&rd.ID, &rd.LeagueID, &rd.RoundNumber, &rd.Status); err != nil {
			return nil, err
		}
		rounds = append(rounds, &rd)
	}
	return rounds, rows.Err()
}

func (r *RoundRepository) UpdateStatus(ctx context.Context, id string, status models.RoundStatus) error {
	const query = `UPDATE rounds SET status = ? WHERE round_id = ?`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

// AllMatchesTerminal reports whether every match in the round is in a
// final status (COMPLETED or FAILED), used to gate round N+1 assignment
// and league COMPLETED detection.
func (r *RoundRepository) AllMatchesTerminal(ctx context.Context, roundID string) (bool, error) {
	const query = `
		SELECT COUNT(*) FROM matches
		WHERE round_id = ? AND status NOT IN (?, ?)
	`
	var n int
	err := r.db.QueryRowContext(ctx, query, roundID, models.MatchCompleted, models.MatchFailed).Scan(&n)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Exists reports whether round_id refers to a persisted round, used by
// the envelope codec's IDResolver to accept round_id values that are
// not shaped as UUID v4 (round keys are a league_id/round_number
// composite, see services.roundKey).
func (r *RoundRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT COUNT(*) FROM rounds WHERE round_id = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
