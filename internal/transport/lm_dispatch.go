package transport

import (
	"context"
	"fmt"

	"league-coordinator/internal/models"
	"league-coordinator/internal/protocol"
	"league-coordinator/internal/repositories"
)

// RefereeDispatcher is the League Manager's services.Dispatcher
// implementation: it resolves the assigned referee's and both players'
// callback URLs from the agent registry and delivers MATCH_ASSIGNMENT
// over HTTP, blocking until the referee's MATCH_ASSIGNMENT_ACK arrives
// before the match is considered handed off.
type RefereeDispatcher struct {
	repos  *repositories.Container
	client *Client
}

func NewRefereeDispatcher(repos *repositories.Container, client *Client) *RefereeDispatcher {
	return &RefereeDispatcher{repos: repos, client: client}
}

// SendMatchAssignment implements services.Dispatcher.
func (d *RefereeDispatcher) SendMatchAssignment(ctx context.Context, refereeID string, match *models.Match) error {
	referee, err := d.repos.Agent.GetByID(ctx, match.LeagueID, models.AgentReferee, refereeID)
	if err != nil || referee == nil {
		return fmt.Errorf("dispatcher: unknown referee %s: %w", refereeID, err)
	}
	if referee.CallbackURL == "" {
		return fmt.Errorf("dispatcher: referee %s has no callback_url on file", refereeID)
	}

	endpoints := make([]PlayerEndpoint, 0, len(match.Players))
	for _, playerID := range match.Players {
		player, err := d.repos.Agent.GetByID(ctx, match.LeagueID, models.AgentPlayer, playerID)
		if err != nil || player == nil {
			return fmt.Errorf("dispatcher: unknown player %s: %w", playerID, err)
		}
		endpoints = append(endpoints, PlayerEndpoint{PlayerID: playerID, CallbackURL: player.CallbackURL})
	}

	env := protocol.Envelope{
		Protocol:    protocol.ProtocolVersion,
		MessageType: protocol.MsgMatchAssignment,
		Sender:      "league_manager",
		AuthToken:   referee.AuthToken,
		LeagueID:    match.LeagueID,
		RoundID:     match.RoundID,
		MatchID:     match.ID,
		GameType:    match.GameType,
	}
	payload := MatchAssignmentPayload{
		MatchID:   match.ID,
		RoundID:   match.RoundID,
		GameType:  match.GameType,
		Players:   []string(match.Players),
		Endpoints: endpoints,
	}

	resp, err := d.client.SendIdempotent(ctx, referee.CallbackURL, env, payload)
	if err != nil {
		return fmt.Errorf("dispatcher: could not reach referee %s: %w", refereeID, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("dispatcher: referee %s rejected assignment: %s", refereeID, resp.Error.Message)
	}
	var ack MatchAssignmentAckPayload
	if err := unmarshalResult(resp, &ack); err != nil {
		return fmt.Errorf("dispatcher: malformed ack from referee %s: %w", refereeID, err)
	}
	if !ack.Accepted {
		return fmt.Errorf("dispatcher: referee %s declined assignment", refereeID)
	}
	return nil
}
