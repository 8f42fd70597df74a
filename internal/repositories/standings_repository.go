package repositories

import (
	"context"
	"database/sql"

	"league-coordinator/internal/models"
)

// StandingsRepository persists immutable StandingsSnapshot/PlayerRanking
// rows. New recomputations always create new snapshots; the
// latest snapshot per round (or overall) is the canonical answer to
// QUERY_STANDINGS.
type StandingsRepository struct {
	db *sql.DB
}

func NewStandingsRepository(db *sql.DB) *StandingsRepository {
	return &StandingsRepository{db: db}
}

func (r *StandingsRepository) CreateSnapshotTx(tx *sql.Tx, snap *models.StandingsSnapshot, rankings []models.PlayerRanking) error {
	const insertSnap = `
		INSERT INTO standings_snapshots (snapshot_id, league_id, round_id, computed_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(context.Background(), insertSnap, snap.ID, snap.LeagueID, snap.RoundID, snap.ComputedAt); err != nil {
		return err
	}

	const insertRank = "INSERT INTO player_rankings (snapshot_id, player_id, `rank`, points, wins, draws, losses, matches_played) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	for _, pr := range rankings {
		if _, err := tx.ExecContext(context.Background(), insertRank,
			pr.SnapshotID, pr.PlayerID, pr.Rank, pr.Points, pr.Wins, pr.Draws, pr.Losses, pr.MatchesPlayed,
		); err != nil {
			return err
		}
	}
	return nil
}

// LatestForRound returns the most recent snapshot for a round, or the
// most recent overall snapshot when roundID is nil.
func (r *StandingsRepository) LatestForRound(ctx context.Context, leagueID string, roundID *string) (*models.StandingsSnapshot, []models.PlayerRanking, error) {
	var snap models.StandingsSnapshot
	var query string
	var args []interface{}
	if roundID != nil {
		query = `
			SELECT snapshot_id, league_id, round_id, computed_at
			FROM standings_snapshots
			WHERE league_id = ? AND round_id = ?
			ORDER BY computed_at DESC LIMIT 1
		`
		args = []interface{}{leagueID, *roundID}
	} else {
		query = `
			SELECT snapshot_id, league_id, round_id, computed_at
			FROM standings_snapshots
			WHERE league_id = ? AND round_id IS NULL
			ORDER BY computed_at DESC LIMIT 1
		`
		args = []interface{}{leagueID}
	}

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&snap.ID, &snap.LeagueID, &snap.RoundID, &snap.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	const rankQuery = "SELECT snapshot_id, player_id, `rank`, points, wins, draws, losses, matches_played FROM player_rankings WHERE snapshot_id = ? ORDER BY `rank` ASC"
	rows, err := r.db.QueryContext(ctx, rankQuery, snap.ID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var rankings []models.PlayerRanking
	for rows.Next() {
		var pr models.PlayerRanking
		if err := rows.Scan(&pr.SnapshotID, &pr.PlayerID, &pr.Rank, &pr.Points, &pr.Wins, &pr.Draws, &pr.Losses, &pr.MatchesPlayed); err != nil {
			return nil, nil, err
		}
		rankings = append(rankings, pr)
	}
	return &snap, rankings, rows.Err()
}

// CountSnapshotsForRound reports how many snapshots a round has —
// the count must not grow on a duplicate result retry.
func (r *StandingsRepository) CountSnapshotsForRound(ctx context.Context, leagueID, roundID string) (int, error) {
	const query = `
		SELECT COUNT(*) FROM standings_snapshots WHERE league_id = ? AND round_id = ?
	`
	var n int
	err := r.db.QueryRowContext(ctx, query, leagueID, roundID).Scan(&n)
	return n, err
}
