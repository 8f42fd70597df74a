package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"league-coordinator/internal/models"
)

// LeagueRepository persists the singleton League row.
type LeagueRepository struct {
	db *sql.DB
}

func NewLeagueRepository(db *sql.DB) *LeagueRepository {
	return &LeagueRepository{db: db}
}

func (r *LeagueRepository) Create(ctx context.Context, league *models.League) error {
	const query = `
		INSERT INTO leagues (league_id, status, created_at, config)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, league.ID, league.Status, league.CreatedAt, league.Config)
	return err
}

func (r *LeagueRepository) GetByID(ctx context.Context, id string) (*models.League, error) {
	const query = `SELECT league_id, status, created_at, config FROM leagues WHERE league_id = ?`
	var l models.League
	err := r.db.QueryRowContext(ctx, query, id).Scan(&l.ID, &l.Status, &l.CreatedAt, &l.Config)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("league not found: %w", err)
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// UpdateStatus moves the league forward. Callers must have already
// checked LeagueStatus.CanTransition; this only persists the result.
func (r *LeagueRepository) UpdateStatus(ctx context.Context, id string, status models.LeagueStatus) error {
	const query = `UPDATE leagues SET status = ? WHERE league_id = ?`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

func (r *LeagueRepository) UpdateStatusTx(tx *sql.Tx, id string, status models.LeagueStatus) error {
	const query = `UPDATE leagues SET status = ? WHERE league_id = ?`
	_, err := tx.ExecContext(context.Background(), query, status, id)
	return err
}
