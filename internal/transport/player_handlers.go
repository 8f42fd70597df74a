package transport

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"league-coordinator/internal/player"
	"league-coordinator/internal/protocol"
)

// PlayerRuntime is the player role process's own state: its identity
// and auth token with the League Manager, and the mailbox it routes
// GAME_INVITATION/REQUEST_MOVE/GAME_OVER through.
type PlayerRuntime struct {
	PlayerID  string
	LeagueID  string
	AuthToken string
	LMBaseURL string

	client  *Client
	logger  *log.Logger
	mailbox *player.Mailbox

	mu     sync.Mutex
	active bool
}

func NewPlayerRuntime(playerID, leagueID, authToken, lmBaseURL string, strategy player.Strategy, client *Client, logger *log.Logger) *PlayerRuntime {
	return &PlayerRuntime{
		PlayerID:  playerID,
		LeagueID:  leagueID,
		AuthToken: authToken,
		LMBaseURL: lmBaseURL,
		client:    client,
		logger:    logger,
		mailbox:   player.NewMailbox(strategy),
	}
}

// SetActive records that AGENT_READY_REQUEST succeeded, for /status.
func (p *PlayerRuntime) SetActive(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = active
}

// Status answers GET /status.
func (p *PlayerRuntime) Status() PlayerStatusPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PlayerStatusPayload{Registered: p.AuthToken != "", Active: p.active}
}

func (p *PlayerRuntime) StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, p.Status())
	}
}

// Handlers returns the message_type -> HandlerFunc table for the
// player role: GAME_INVITATION, REQUEST_MOVE, GAME_OVER.
func (p *PlayerRuntime) Handlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		protocol.MsgGameInvitation: p.handleInvitation,
		protocol.MsgRequestMove:    p.handleRequestMove,
		protocol.MsgGameOver:       p.handleGameOver,
	}
}

func (p *PlayerRuntime) handleInvitation(ctx context.Context, req *protocol.Request, env *protocol.Envelope) (interface{}, error) {
	if err := p.mailbox.Invite(env.MatchID, env.GameType); err != nil {
		return nil, protocol.NewCodedError(protocol.CodeInternalError, "could not join match").Wrap(err)
	}
	return struct{}{}, nil
}

func (p *PlayerRuntime) handleRequestMove(ctx context.Context, req *protocol.Request, env *protocol.Envelope) (interface{}, error) {
	var payload RequestMovePayload
	if err := req.DecodePayload(&payload); err != nil {
		return nil, protocol.NewCodedError(protocol.CodeValidationError, "malformed payload").Wrap(err)
	}
	move, err := p.mailbox.RequestMove(env.MatchID, payload.StepContext)
	if err != nil {
		return nil, protocol.NewCodedError(protocol.CodeValidationError, "could not compute move").Wrap(err)
	}
	return MoveResponsePayload{MovePayload: move}, nil
}

func (p *PlayerRuntime) handleGameOver(ctx context.Context, req *protocol.Request, env *protocol.Envelope) (interface{}, error) {
	p.mailbox.GameOver(env.MatchID)
	return struct{}{}, nil
}
