package transport

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"

	"league-coordinator/internal/config"
	"league-coordinator/internal/gameengine"
	"league-coordinator/internal/protocol"
	"league-coordinator/internal/referee"
)

// RefereeRuntime is the referee role process's own state: its identity
// and auth token with the League Manager, the executor it drives one
// match at a time, and the /status busy flag. It also implements
// referee.PlayerClient and referee.ResultReporter, the two outbound
// legs the executor calls through.
type RefereeRuntime struct {
	RefereeID string
	LeagueID  string
	AuthToken string
	LMBaseURL string

	client   *Client
	logger   *log.Logger
	executor *referee.Executor

	mu              sync.Mutex
	busy            bool
	currentMatchID  string
	currentRoundID  string
	currentGameType string
	endpoints       map[string]string // player_id -> callback_url, for the in-flight match
}

func NewRefereeRuntime(refereeID, leagueID, authToken, lmBaseURL string, client *Client, logger *log.Logger) *RefereeRuntime {
	return &RefereeRuntime{
		RefereeID: refereeID,
		LeagueID:  leagueID,
		AuthToken: authToken,
		LMBaseURL: lmBaseURL,
		client:    client,
		logger:    logger,
	}
}

// Bind completes construction once the executor (which needs this
// runtime as its PlayerClient/ResultReporter) exists.
func (r *RefereeRuntime) Bind(engines *gameengine.Registry, cfg *config.Config) {
	r.executor = referee.NewExecutor(engines, r, r, cfg, r.logger)
}

// Status answers the referee's GET /status and ADMIN_GET_STATUS-style
// query.
func (r *RefereeRuntime) Status() RefereeStatusPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RefereeStatusPayload{Busy: r.busy, CurrentMatchID: r.currentMatchID}
}

// StatusHandler answers GET /status for the referee role.
func (r *RefereeRuntime) StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, r.Status())
	}
}

// Handlers returns the message_type -> HandlerFunc table for the
// referee role: only MATCH_ASSIGNMENT is inbound.
func (r *RefereeRuntime) Handlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		protocol.MsgMatchAssignment: r.handleMatchAssignment,
	}
}

func (r *RefereeRuntime) handleMatchAssignment(ctx context.Context, req *protocol.Request, env *protocol.Envelope) (interface{}, error) {
	var payload MatchAssignmentPayload
	if err := req.DecodePayload(&payload); err != nil {
		return nil, protocol.NewCodedError(protocol.CodeValidationError, "malformed payload").Wrap(err)
	}
	if len(payload.Players) != 2 {
		return nil, protocol.NewCodedError(protocol.CodeValidationError, "match assignment must carry exactly two players")
	}

	r.mu.Lock()
	if r.busy {
		r.mu.Unlock()
		return MatchAssignmentAckPayload{Accepted: false}, nil
	}
	r.busy = true
	r.currentMatchID = payload.MatchID
	r.currentRoundID = payload.RoundID
	r.currentGameType = payload.GameType
	r.endpoints = make(map[string]string, len(payload.Endpoints))
	for _, ep := range payload.Endpoints {
		r.endpoints[ep.PlayerID] = ep.CallbackURL
	}
	r.mu.Unlock()

	assignment := referee.Assignment{
		MatchID:  payload.MatchID,
		RoundID:  payload.RoundID,
		GameType: payload.GameType,
		Players:  [2]string{payload.Players[0], payload.Players[1]},
	}
	go r.run(assignment)

	return MatchAssignmentAckPayload{Accepted: true}, nil
}

// run drives one match to completion in the background; ServeMCP has
// already returned MATCH_ASSIGNMENT_ACK by the time this starts; the
// whole match runs after the assignment handshake completes.
func (r *RefereeRuntime) run(a referee.Assignment) {
	ctx := context.Background()
	if err := r.executor.ExecuteMatch(ctx, a); err != nil {
		r.logger.Printf("referee %s: match %s failed: %v", r.RefereeID, a.MatchID, err)
	}
	r.mu.Lock()
	r.busy = false
	r.currentMatchID = ""
	r.currentRoundID = ""
	r.currentGameType = ""
	r.endpoints = nil
	r.mu.Unlock()
}

func (r *RefereeRuntime) playerEndpoint(playerID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	url, ok := r.endpoints[playerID]
	return url, ok
}

// matchPlayers lists the in-flight match's players, sorted for a stable
// wire order.
func (r *RefereeRuntime) matchPlayers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	players := make([]string, 0, len(r.endpoints))
	for id := range r.endpoints {
		players = append(players, id)
	}
	sort.Strings(players)
	return players
}

// Invite implements referee.PlayerClient: GAME_INVITATION.
func (r *RefereeRuntime) Invite(ctx context.Context, playerID, matchID, gameType string) error {
	endpoint, ok := r.playerEndpoint(playerID)
	if !ok {
		return fmt.Errorf("referee: no callback_url on file for player %s", playerID)
	}
	env := protocol.Envelope{
		Protocol:    protocol.ProtocolVersion,
		MessageType: protocol.MsgGameInvitation,
		Sender:      "referee:" + r.RefereeID,
		MatchID:     matchID,
		GameType:    gameType,
	}
	resp, err := r.client.Send(ctx, endpoint, env, GameInvitationPayload{Players: r.matchPlayers()})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("player %s rejected invitation: %s", playerID, resp.Error.Message)
	}
	return nil
}

// RequestMove implements referee.PlayerClient: REQUEST_MOVE.
func (r *RefereeRuntime) RequestMove(ctx context.Context, playerID, matchID, gameType string, stepNumber int, stepContext interface{}) (interface{}, error) {
	endpoint, ok := r.playerEndpoint(playerID)
	if !ok {
		return nil, fmt.Errorf("referee: no callback_url on file for player %s", playerID)
	}
	env := protocol.Envelope{
		Protocol:    protocol.ProtocolVersion,
		MessageType: protocol.MsgRequestMove,
		Sender:      "referee:" + r.RefereeID,
		MatchID:     matchID,
		GameType:    gameType,
	}
	resp, err := r.client.Send(ctx, endpoint, env, RequestMovePayload{StepNumber: stepNumber, StepContext: stepContext})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("player %s returned error: %s", playerID, resp.Error.Message)
	}
	var move MoveResponsePayload
	if err := unmarshalResult(resp, &move); err != nil {
		return nil, fmt.Errorf("malformed move_response from %s: %w", playerID, err)
	}
	return move.MovePayload, nil
}

// NotifyGameOver implements referee.PlayerClient: GAME_OVER. Best
// effort — a player unreachable at game end does not change the
// outcome already decided.
func (r *RefereeRuntime) NotifyGameOver(ctx context.Context, playerID, matchID, gameType string, outcome map[string]gameengine.Outcome, finalState interface{}) {
	endpoint, ok := r.playerEndpoint(playerID)
	if !ok {
		return
	}
	env := protocol.Envelope{
		Protocol:    protocol.ProtocolVersion,
		MessageType: protocol.MsgGameOver,
		Sender:      "referee:" + r.RefereeID,
		MatchID:     matchID,
		GameType:    gameType,
	}
	dto := make(map[string]OutcomeDTO, len(outcome))
	for player, o := range outcome {
		dto[player] = OutcomeDTO{Result: o.Result, Points: o.Points}
	}
	if _, err := r.client.Send(ctx, endpoint, env, GameOverPayload{Outcome: dto, FinalState: finalState}); err != nil {
		r.logger.Printf("referee %s: GAME_OVER delivery to %s failed: %v", r.RefereeID, playerID, err)
	}
}

// ReportResult implements referee.ResultReporter: MATCH_RESULT_REPORT
// to the League Manager, retried internally via SendIdempotent.
func (r *RefereeRuntime) ReportResult(ctx context.Context, roundID, matchID string, outcome map[string]gameengine.Outcome, metadata map[string]interface{}) error {
	r.mu.Lock()
	gameType := r.currentGameType
	r.mu.Unlock()

	env := protocol.Envelope{
		Protocol:    protocol.ProtocolVersion,
		MessageType: protocol.MsgMatchResultReport,
		Sender:      "referee:" + r.RefereeID,
		AuthToken:   r.AuthToken,
		LeagueID:    r.LeagueID,
		RoundID:     roundID,
		MatchID:     matchID,
		GameType:    gameType,
	}
	players := make([]string, 0, len(outcome))
	outcomeStrs := make(map[string]string, len(outcome))
	points := make(map[string]int, len(outcome))
	for player, o := range outcome {
		players = append(players, player)
		outcomeStrs[player] = o.Result
		points[player] = o.Points
	}
	payload := MatchResultReportPayload{Players: players, Outcome: outcomeStrs, Points: points, GameMetadata: metadata}

	resp, err := r.client.SendIdempotent(ctx, r.LMBaseURL, env, payload)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("league manager rejected result report: %s", resp.Error.Message)
	}
	return nil
}
