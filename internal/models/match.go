package models

import "time"

// MatchStatus is a match's own lifecycle, distinct from the referee
// executor's internal per-match state machine; only
// PENDING/ASSIGNED/IN_PROGRESS/COMPLETED/FAILED are visible to the
// League.
type MatchStatus string

const (
	MatchPending     MatchStatus = "PENDING"
	MatchAssigned    MatchStatus = "ASSIGNED"
	MatchInProgress  MatchStatus = "IN_PROGRESS"
	MatchCompleted   MatchStatus = "COMPLETED"
	MatchFailed      MatchStatus = "FAILED"
)

// Match is one game between exactly two players. RefereeID is null
// until the assigner binds it.
type Match struct {
	ID         string      `json:"match_id" db:"match_id"`
	RoundID    string      `json:"round_id" db:"round_id"`
	LeagueID   string      `json:"league_id" db:"league_id"`
	RefereeID  *string     `json:"referee_id,omitempty" db:"referee_id"`
	GameType   string      `json:"game_type" db:"game_type"`
	Players    StringSet   `json:"players" db:"players"`
	Status     MatchStatus `json:"status" db:"status"`
	AssignedAt *time.Time  `json:"assigned_at,omitempty" db:"assigned_at"`
}
