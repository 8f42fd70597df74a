// Package repositories implements the persistence layer over raw
// database/sql against MySQL: one struct per entity, a Container for
// wiring, and BeginTx for the multi-row transactions the scheduler and
// result processor need.
package repositories

import (
	"context"
	"database/sql"

	"league-coordinator/internal/database"
)

// Container holds all repository instances. A single *sql.DB backs
// every repository; the store is a shared writer, so repositories
// rely on BeginTx for anything that must commit atomically.
type Container struct {
	League    *LeagueRepository
	Agent     *AgentRepository
	Round     *RoundRepository
	Match     *MatchRepository
	Result    *ResultRepository
	Standings *StandingsRepository
	db        *sql.DB
}

// NewContainer creates a new repository container bound to the League
// Manager's MySQL connection.
func NewContainer(conn *database.Connections) *Container {
	return &Container{
		League:    NewLeagueRepository(conn.MySQL),
		Agent:     NewAgentRepository(conn.MySQL),
		Round:     NewRoundRepository(conn.MySQL),
		Match:     NewMatchRepository(conn.MySQL),
		Result:    NewResultRepository(conn.MySQL),
		Standings: NewStandingsRepository(conn.MySQL),
		db:        conn.MySQL,
	}
}

// BeginTx starts a new database transaction, used by the scheduler (one
// commit for rounds+matches) and the result processor (one commit for
// the result, match status flip, and standings snapshot).
func (c *Container) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, nil)
}
