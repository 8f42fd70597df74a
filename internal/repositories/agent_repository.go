package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"league-coordinator/internal/models"
)

// AgentRepository persists both referee and player registrations, which
// share one shape and one sub-state machine. agent_id is unique
// within (league_id, agent_type); auth_token is unique globally.
type AgentRepository struct {
	db *sql.DB
}

func NewAgentRepository(db *sql.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

func (r *AgentRepository) Create(ctx context.Context, a *models.AgentRegistration) error {
	const query = `
		INSERT INTO agents (agent_id, agent_type, league_id, auth_token, status, callback_url, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, a.AgentID, a.AgentType, a.LeagueID, a.AuthToken, a.Status, a.CallbackURL, a.RegisteredAt)
	return err
}

func (r *AgentRepository) GetByID(ctx context.Context, leagueID string, agentType models.AgentType, agentID string) (*models.AgentRegistration, error) {
	const query = `
		SELECT agent_id, agent_type, league_id, auth_token, status, callback_url, registered_at
		FROM agents WHERE league_id = ? AND agent_type = ? AND agent_id = ?
	`
	var a models.AgentRegistration
	err := r.db.QueryRowContext(ctx, query, leagueID, agentType, agentID).Scan(
		&a.AgentID, &a.AgentType, &a.LeagueID, &a.AuthToken, &a.Status, &a.CallbackURL, &a.RegisteredAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AgentRepository) GetByToken(ctx context.Context, token string) (*models.AgentRegistration, error) {
	const query = `
		SELECT agent_id, agent_type, league_id, auth_token, status, callback_url, registered_at
		FROM agents WHERE auth_token = ?
	`
	var a models.AgentRegistration
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&a.AgentID, &a.AgentType, &a.LeagueID, &a.AuthToken, &a.Status, &a.CallbackURL, &a.RegisteredAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no agent for token")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AgentRepository) UpdateStatus(ctx context.Context, leagueID string, agentType models.AgentType, agentID string, status models.AgentStatus) error {
	const query = `
		UPDATE agents SET status = ?
		WHERE league_id = ? AND agent_type = ? AND agent_id = ?
	`
	_, err := r.db.ExecContext(ctx, query, status, leagueID, agentType, agentID)
	return err
}

// CountActive returns the number of ACTIVE agents of the given type,
// used by the league state machine's SCHEDULING precondition.
func (r *AgentRepository) CountActive(ctx context.Context, leagueID string, agentType models.AgentType) (int, error) {
	const query = `SELECT COUNT(*) FROM agents WHERE league_id = ? AND agent_type = ? AND status = ?`
	var n int
	err := r.db.QueryRowContext(ctx, query, leagueID, agentType, models.AgentActive).Scan(&n)
	return n, err
}

// CountAll returns the total registered count regardless of status, used
// to enforce "player may not register while count(referees) == 0".
func (r *AgentRepository) CountAll(ctx context.Context, leagueID string, agentType models.AgentType) (int, error) {
	const query = `SELECT COUNT(*) FROM agents WHERE league_id = ? AND agent_type = ?`
	var n int
	err := r.db.QueryRowContext(ctx, query, leagueID, agentType).Scan(&n)
	return n, err
}

// ListActiveIDs returns agent_ids of ACTIVE agents of the given type,
// sorted lexicographically, the scheduler's required input ordering.
func (r *AgentRepository) ListActiveIDs(ctx context.Context, leagueID string, agentType models.AgentType) ([]string, error) {
	const query = `
		SELECT agent_id FROM agents
		WHERE league_id = ? AND agent_type = ? AND status = ?
		ORDER BY agent_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, leagueID, agentType, models.AgentActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListActiveRefereeIDs returns ACTIVE referee IDs, sorted — the assigner
// consumes these in order and filters busy ones via its lock.
func (r *AgentRepository) ListActiveRefereeIDs(ctx context.Context, leagueID string) ([]string, error) {
	return r.ListActiveIDs(ctx, leagueID, models.AgentReferee)
}
