package models

import "time"

// AgentType distinguishes referee and player registrations, which share
// one shape and one sub-state machine.
type AgentType string

const (
	AgentReferee AgentType = "referee"
	AgentPlayer  AgentType = "player"
)

// AgentStatus is the per-agent sub-state machine: REGISTERED → ACTIVE,
// plus the operational SUSPENDED/SHUTDOWN terminal states.
type AgentStatus string

const (
	AgentRegistered AgentStatus = "REGISTERED"
	AgentActive     AgentStatus = "ACTIVE"
	AgentSuspended  AgentStatus = "SUSPENDED"
	AgentShutdown   AgentStatus = "SHUTDOWN"
)

// AgentRegistration is a referee or player registration row. referee_id/
// player_id is unique within its league and type; auth_token is unique
// globally (enforced at the store).
type AgentRegistration struct {
	AgentID      string      `json:"agent_id" db:"agent_id"`
	AgentType    AgentType   `json:"agent_type" db:"agent_type"`
	LeagueID     string      `json:"league_id" db:"league_id"`
	AuthToken    string      `json:"auth_token" db:"auth_token"`
	Status       AgentStatus `json:"status" db:"status"`
	// CallbackURL is the base URL ("http://host:port") this agent's own
	// transport server listens on. A single-host, multi-process league
	// still needs a way to route MATCH_ASSIGNMENT/GAME_INVITATION to the
	// right process, so registration carries it.
	CallbackURL  string      `json:"callback_url" db:"callback_url"`
	RegisteredAt time.Time   `json:"registered_at" db:"registered_at"`
}

// Sender is the envelope sender string this agent must present, e.g.
// "referee:r1" or "player:alice".
func (a *AgentRegistration) Sender() string {
	return string(a.AgentType) + ":" + a.AgentID
}
