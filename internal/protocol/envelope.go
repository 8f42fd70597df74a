// Package protocol implements the league.v2 wire envelope and JSON-RPC 2.0
// frame that every role process (league manager, referee, player) exchanges
// over POST /mcp.
package protocol

// ProtocolVersion is the only envelope.protocol value this build accepts.
const ProtocolVersion = "league.v2"

// Method is the single JSON-RPC method name every frame routes through.
// Routing within the system is by envelope.message_type, never by method.
const Method = "league.handle"

// Message types. Request/response pairs share a
// verb stem; fire-and-forget notifications have no _RESPONSE.
const (
	MsgRegisterRefereeRequest  = "REGISTER_REFEREE_REQUEST"
	MsgRegisterRefereeResponse = "REGISTER_REFEREE_RESPONSE"
	MsgRegisterPlayerRequest   = "REGISTER_PLAYER_REQUEST"
	MsgRegisterPlayerResponse  = "REGISTER_PLAYER_RESPONSE"
	MsgAgentReadyRequest       = "AGENT_READY_REQUEST"
	MsgAgentReadyResponse      = "AGENT_READY_RESPONSE"
	MsgAdminStartLeagueRequest = "ADMIN_START_LEAGUE_REQUEST"
	MsgAdminStartLeagueResp    = "ADMIN_START_LEAGUE_RESPONSE"
	MsgAdminGetStatusRequest   = "ADMIN_GET_STATUS_REQUEST"
	MsgAdminGetStatusResponse  = "ADMIN_GET_STATUS_RESPONSE"
	MsgMatchAssignment         = "MATCH_ASSIGNMENT"
	MsgMatchAssignmentAck      = "MATCH_ASSIGNMENT_ACK"
	MsgGameInvitation          = "GAME_INVITATION"
	MsgGameJoinAck             = "GAME_JOIN_ACK"
	MsgRequestMove             = "REQUEST_MOVE"
	MsgMoveResponse            = "MOVE_RESPONSE"
	MsgGameOver                = "GAME_OVER"
	MsgMatchResultReport       = "MATCH_RESULT_REPORT"
	MsgMatchResultAck          = "MATCH_RESULT_ACK"
	MsgQueryStandings          = "QUERY_STANDINGS"
	MsgStandingsResponse       = "STANDINGS_RESPONSE"
)

// contextualFields lists, per message type, the envelope fields required
// beyond the base five (protocol, message_type, sender, timestamp,
// conversation_id). Decode checks presence against this table last,
// after the base fields have validated.
var contextualFields = map[string][]string{
	MsgRegisterRefereeRequest:  {},
	MsgRegisterRefereeResponse: {"auth_token", "league_id"},
	MsgRegisterPlayerRequest:   {},
	MsgRegisterPlayerResponse:  {"auth_token", "league_id"},
	MsgAgentReadyRequest:       {"auth_token", "league_id"},
	MsgAgentReadyResponse:      {"auth_token", "league_id"},
	MsgAdminStartLeagueRequest: {},
	MsgAdminStartLeagueResp:    {},
	MsgAdminGetStatusRequest:   {},
	MsgAdminGetStatusResponse:  {},
	MsgMatchAssignment:         {"auth_token", "league_id", "round_id", "match_id", "game_type"},
	MsgMatchAssignmentAck:      {"auth_token", "league_id", "round_id", "match_id", "game_type"},
	MsgGameInvitation:          {"match_id", "game_type"},
	MsgGameJoinAck:             {"match_id"},
	MsgRequestMove:             {"match_id", "game_type"},
	MsgMoveResponse:            {"match_id"},
	MsgGameOver:                {"match_id", "game_type"},
	MsgMatchResultReport:       {"auth_token", "league_id", "round_id", "match_id", "game_type"},
	MsgMatchResultAck:          {"auth_token", "league_id", "round_id", "match_id", "game_type"},
	MsgQueryStandings:          {"auth_token", "league_id"},
	MsgStandingsResponse:       {"auth_token", "league_id"},
}

// Envelope is the protocol header carried inside a JSON-RPC request's
// params.
type Envelope struct {
	Protocol       string `json:"protocol"`
	MessageType    string `json:"message_type"`
	Sender         string `json:"sender"`
	Timestamp      string `json:"timestamp"`
	ConversationID string `json:"conversation_id"`

	AuthToken string `json:"auth_token,omitempty"`
	LeagueID  string `json:"league_id,omitempty"`
	RoundID   string `json:"round_id,omitempty"`
	MatchID   string `json:"match_id,omitempty"`
	GameType  string `json:"game_type,omitempty"`
}

// IsKnownMessageType reports whether message_type appears in the catalog.
func IsKnownMessageType(t string) bool {
	_, ok := contextualFields[t]
	return ok
}

// RequiredContextFields returns the contextual fields this message type
// demands, beyond the base five. Callers must not mutate the result.
func RequiredContextFields(messageType string) []string {
	return contextualFields[messageType]
}

// Field reads an envelope field by its wire name, used to check presence
// generically during validation.
func (e *Envelope) Field(name string) string {
	switch name {
	case "auth_token":
		return e.AuthToken
	case "league_id":
		return e.LeagueID
	case "round_id":
		return e.RoundID
	case "match_id":
		return e.MatchID
	case "game_type":
		return e.GameType
	default:
		return ""
	}
}
