package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"league-coordinator/internal/models"
)

// ErrDuplicateResult is returned when an INSERT hits the UNIQUE(match_id)
// constraint, the authoritative exactly-once gate.
var ErrDuplicateResult = errors.New("result already recorded for this match")

// ResultRepository persists MatchResult rows. match_id is UNIQUE;
// results are immutable after insert.
type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// CreateTx inserts a result inside the caller's transaction. A duplicate
// insert (same match_id) returns ErrDuplicateResult; the caller (the
// result processor) must treat this as a successful idempotent ACK, not
// a failure.
func (r *ResultRepository) CreateTx(tx *sql.Tx, res *models.MatchResult) error {
	const query = `
		INSERT INTO match_results (result_id, match_id, outcome, points, game_metadata, reported_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(context.Background(), query,
		res.ID, res.MatchID, res.Outcome, res.Points, res.GameMetadata, res.ReportedAt,
	)
	if err != nil && isDuplicateKeyError(err) {
		return ErrDuplicateResult
	}
	return err
}

func (r *ResultRepository) GetByMatchID(ctx context.Context, matchID string) (*models.MatchResult, error) {
	const query = `
		SELECT result_id, match_id, outcome, points, game_metadata, reported_at
		FROM match_results WHERE match_id = ?
	`
	var res models.MatchResult
	err := r.db.QueryRowContext(ctx, query, matchID).Scan(
		&res.ID, &res.MatchID, &res.Outcome, &res.Points, &res.GameMetadata, &res.ReportedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListByRound joins through matches to fetch every completed result
// within a round, the standings engine's per-round aggregation input.
func (r *ResultRepository) ListByRound(ctx context.Context, roundID string) ([]*models.MatchResult, error) {
	const query = `
		SELECT mr.result_id, mr.match_id, mr.outcome, mr.points, mr.game_metadata, mr.reported_at
		FROM match_results mr
		JOIN matches m ON m.match_id = mr.match_id
		WHERE m.round_id = ?
	`
	return r.queryResults(ctx, query, roundID)
}

// ListByLeagueThroughRound fetches every result in rounds 1..roundNumber,
// the input for a per-round standings snapshot through round N.
func (r *ResultRepository) ListByLeagueThroughRound(ctx context.Context, leagueID string, roundNumber int) ([]*models.MatchResult, error) {
	const query = `
		SELECT mr.result_id, mr.match_id, mr.outcome, mr.points, mr.game_metadata, mr.reported_at
		FROM match_results mr
		JOIN matches m ON m.match_id = mr.match_id
		JOIN rounds rd ON rd.round_id = m.round_id
		WHERE m.league_id = ? AND rd.round_number <= ?
	`
	return r.queryResults(ctx, query, leagueID, roundNumber)
}

func (r *ResultRepository) ListByLeague(ctx context.Context, leagueID string) ([]*models.MatchResult, error) {
	const query = `
		SELECT mr.result_id, mr.match_id, mr.outcome, mr.points, mr.game_metadata, mr.reported_at
		FROM match_results mr
		JOIN matches m ON m.match_id = mr.match_id
		WHERE m.league_id = ?
	`
	return r.queryResults(ctx, query, leagueID)
}

func (r *ResultRepository) queryResults(ctx context.Context, query string, args ...interface{}) ([]*models.MatchResult, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.MatchResult
	for rows.Next() {
		var res models.MatchResult
		if err := rows.Scan(&res.ID, &res.MatchID, &res.Outcome, &res.Points, &res.GameMetadata, &res.ReportedAt); err != nil {
			return nil, err
		}
		out = append(out, &res)
	}
	return out, rows.Err()
}

// isDuplicateKeyError recognizes MySQL's duplicate-key error (1062)
// without importing the driver's error type directly, so repositories
// stay testable against any database/sql-compatible mock.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "1062")
}
