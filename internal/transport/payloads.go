// Package transport implements the shared JSON-RPC/HTTP plumbing:
// the POST /mcp server every role process runs, the blocking retrying
// client used for all outbound traffic, and the wire payload shape for
// each message_type.
package transport

import "time"

// RegisterRequestPayload is REGISTER_REFEREE_REQUEST/REGISTER_PLAYER_REQUEST's
// payload: the caller-chosen agent id.
type RegisterRequestPayload struct {
	RefereeID string `json:"referee_id,omitempty"`
	PlayerID  string `json:"player_id,omitempty"`
	// CallbackURL is the base URL this agent's own transport server
	// listens on, needed so the League Manager can route
	// MATCH_ASSIGNMENT/GAME_INVITATION back to the right process (see
	// models.AgentRegistration.CallbackURL).
	CallbackURL string `json:"callback_url"`
}

// RegisterResponsePayload answers either register request.
type RegisterResponsePayload struct {
	Status    string `json:"status"`
	AuthToken string `json:"auth_token"`
	LeagueID  string `json:"league_id"`
}

// AgentReadyResponsePayload answers AGENT_READY_REQUEST.
type AgentReadyResponsePayload struct {
	Status string `json:"status"`
}

// AdminStartLeagueRequestPayload carries an optional game_type override
// for the one game every match in this league's single round-robin
// plays. Omitted, it defaults to "tictactoe"; the default is not
// configurable.
type AdminStartLeagueRequestPayload struct {
	GameType string `json:"game_type,omitempty"`
}

// AdminStartLeagueResponsePayload answers ADMIN_START_LEAGUE_REQUEST.
type AdminStartLeagueResponsePayload struct {
	LeagueStatus string `json:"league_status"`
}

// StatusCountersPayload is the counters block shared by ADMIN_GET_STATUS_RESPONSE
// and GET /status for the League Manager role.
type StatusCountersPayload struct {
	LeagueStatus     string `json:"league_status"`
	RefereesActive   int    `json:"referees_active"`
	PlayersActive    int    `json:"players_active"`
	RegisteredTotal  int    `json:"registered_total"`
	MatchesPending   int    `json:"matches_pending"`
	MatchesCompleted int    `json:"matches_completed"`
}

// RefereeStatusPayload is the referee role's /status and ADMIN_GET_STATUS_RESPONSE
// analogue counters: busy flag plus the match it is running.
type RefereeStatusPayload struct {
	Busy           bool   `json:"busy"`
	CurrentMatchID string `json:"current_match_id,omitempty"`
}

// PlayerStatusPayload is the player role's /status counters.
type PlayerStatusPayload struct {
	Registered bool `json:"registered"`
	Active     bool `json:"active"`
}

// PlayerEndpoint pairs a player_id with the callback URL its own
// transport server listens on. A referee process holds no persisted
// league state and has no other way to find the two players it must
// invite, so the League Manager resolves and carries their endpoints
// here.
type PlayerEndpoint struct {
	PlayerID    string `json:"player_id"`
	CallbackURL string `json:"callback_url"`
}

// MatchAssignmentPayload is MATCH_ASSIGNMENT's payload: the players
// plus the fields a standalone referee process needs to run the match
// without its own agent registry — the match/round identity, the game
// to play, and each player's callback URL.
type MatchAssignmentPayload struct {
	MatchID   string           `json:"match_id"`
	RoundID   string           `json:"round_id"`
	GameType  string           `json:"game_type"`
	Players   []string         `json:"players"`
	Endpoints []PlayerEndpoint `json:"endpoints"`
}

// MatchAssignmentAckPayload is the referee's MATCH_ASSIGNMENT_ACK reply.
type MatchAssignmentAckPayload struct {
	Accepted bool `json:"accepted"`
}

// GameInvitationPayload is GAME_INVITATION's payload.
type GameInvitationPayload struct {
	Players []string `json:"players"`
}

// RequestMovePayload is REQUEST_MOVE's payload.
type RequestMovePayload struct {
	StepNumber  int         `json:"step_number"`
	StepContext interface{} `json:"step_context"`
}

// MoveResponsePayload is MOVE_RESPONSE's payload.
type MoveResponsePayload struct {
	MovePayload interface{} `json:"move_payload"`
}

// OutcomeDTO is one player's outcome as it crosses the wire in GAME_OVER
// and MATCH_RESULT_REPORT.
type OutcomeDTO struct {
	Result string `json:"result"`
	Points int    `json:"points"`
}

// GameOverPayload is GAME_OVER's payload.
type GameOverPayload struct {
	Outcome    map[string]OutcomeDTO `json:"outcome"`
	FinalState interface{}           `json:"final_state"`
}

// MatchResultReportPayload is MATCH_RESULT_REPORT's payload.
type MatchResultReportPayload struct {
	Players      []string               `json:"players"`
	Outcome      map[string]string      `json:"outcome"`
	Points       map[string]int         `json:"points"`
	GameMetadata map[string]interface{} `json:"game_metadata,omitempty"`
}

// MatchResultAckPayload is the LM's idempotent ACK for a result report,
// always referencing the stored result_id even on a duplicate.
type MatchResultAckPayload struct {
	ResultID string `json:"result_id"`
}

// PlayerRankingDTO is one row of STANDINGS_RESPONSE's standings array.
type PlayerRankingDTO struct {
	PlayerID      string `json:"player_id"`
	Rank          int    `json:"rank"`
	Points        int    `json:"points"`
	Wins          int    `json:"wins"`
	Draws         int    `json:"draws"`
	Losses        int    `json:"losses"`
	MatchesPlayed int    `json:"matches_played"`
}

// StandingsResponsePayload is QUERY_STANDINGS's response.
type StandingsResponsePayload struct {
	RoundID   string             `json:"round_id,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
	Standings []PlayerRankingDTO `json:"standings"`
}
