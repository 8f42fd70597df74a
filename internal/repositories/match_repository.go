package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"league-coordinator/internal/models"
)

// MatchRepository handles match data access.
type MatchRepository struct {
	db *sql.DB
}

func NewMatchRepository(db *sql.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) CreateTx(tx *sql.Tx, m *models.Match) error {
	const query = `
		INSERT INTO matches (match_id, round_id, league_id, referee_id, game_type, players, status, assigned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(context.Background(), query,
		m.ID, m.RoundID, m.LeagueID, m.RefereeID, m.GameType, m.Players, m.Status, m.AssignedAt,
	)
	return err
}

const matchColumns = `match_id, round_id, league_id, referee_id, game_type, players, status, assigned_at`

func scanMatch(row interface{ Scan(...interface{}) error }) (*models.Match, error) {
	var m models.Match
	err := row.Scan(&m.ID, &m.RoundID, &m.LeagueID, &m.RefereeID, &m.GameType, &m.Players, &m.Status, &m.AssignedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	query := fmt.Sprintf(`SELECT %s FROM matches WHERE match_id = ?`, matchColumns)
	m, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("match not found: %s", id)
	}
	return m, err
}

// GetByIDTx reads a match inside a transaction, used by the result
// processor to check current status before flipping it.
func (r *MatchRepository) GetByIDTx(tx *sql.Tx, id string) (*models.Match, error) {
	query := fmt.Sprintf(`SELECT %s FROM matches WHERE match_id = ? FOR UPDATE`, matchColumns)
	m, err := scanMatch(tx.QueryRowContext(context.Background(), query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("match not found: %s", id)
	}
	return m, err
}

func (r *MatchRepository) ListByRound(ctx context.Context, roundID string) ([]*models.Match, error) {
	query := fmt.Sprintf(`SELECT %s FROM matches WHERE round_id = ? ORDER BY match_id ASC`, matchColumns)
	return r.queryMatches(ctx, query, roundID)
}

func (r *MatchRepository) ListPendingByRound(ctx context.Context, roundID string) ([]*models.Match, error) {
	query := fmt.Sprintf(`SELECT %s FROM matches WHERE round_id = ? AND status = ? ORDER BY match_id ASC`, matchColumns)
	return r.queryMatches(ctx, query, roundID, models.MatchPending)
}

func (r *MatchRepository) ListByLeague(ctx context.Context, leagueID string) ([]*models.Match, error) {
	query := fmt.Sprintf(`SELECT %s FROM matches WHERE league_id = ? ORDER BY match_id ASC`, matchColumns)
	return r.queryMatches(ctx, query, leagueID)
}

func (r *MatchRepository) queryMatches(ctx context.Context, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// AssignReferee flips a PENDING match to ASSIGNED and binds a referee,
// within the transaction the assigner holds while it also flips the
// referee's busy flag.
func (r *MatchRepository) AssignReferee(ctx context.Context, matchID, refereeID string) error {
	const query = `
		UPDATE matches SET referee_id = ?, status = ?, assigned_at = ?
		WHERE match_id = ? AND status = ?
	`
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query, refereeID, models.MatchAssigned, now, matchID, models.MatchPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("match %s was not PENDING", matchID)
	}
	return nil
}

func (r *MatchRepository) UpdateStatus(ctx context.Context, id string, status models.MatchStatus) error {
	const query = `UPDATE matches SET status = ? WHERE match_id = ?`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

func (r *MatchRepository) UpdateStatusTx(tx *sql.Tx, id string, status models.MatchStatus) error {
	const query = `UPDATE matches SET status = ? WHERE match_id = ?`
	_, err := tx.ExecContext(context.Background(), query, status, id)
	return err
}
