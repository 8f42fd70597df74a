package transport

import (
	"context"

	"league-coordinator/internal/models"
	"league-coordinator/internal/protocol"
	"league-coordinator/internal/services"
	"league-coordinator/internal/utils"
)

// defaultLeagueID is used when an envelope omits league_id. Each
// League Manager process owns one singleton League; the envelope schema
// still carries league_id on every frame for forward compatibility with
// a multi-league deployment.
const defaultLeagueID = "default"

func leagueIDOf(env *protocol.Envelope) string {
	if env.LeagueID != "" {
		return env.LeagueID
	}
	return defaultLeagueID
}

// NewLeagueManagerHandlers returns the message_type -> HandlerFunc table
// for the league_manager role.
func NewLeagueManagerHandlers(svc *services.Container) map[string]HandlerFunc {
	return map[string]HandlerFunc{
		protocol.MsgRegisterRefereeRequest:  handleRegisterReferee(svc),
		protocol.MsgRegisterPlayerRequest:   handleRegisterPlayer(svc),
		protocol.MsgAgentReadyRequest:       handleAgentReady(svc),
		protocol.MsgAdminStartLeagueRequest: handleAdminStartLeague(svc),
		protocol.MsgAdminGetStatusRequest:   handleAdminGetStatus(svc),
		protocol.MsgMatchResultReport:       handleMatchResultReport(svc),
		protocol.MsgQueryStandings:          handleQueryStandings(svc),
	}
}

func handleRegisterReferee(svc *services.Container) HandlerFunc {
	return func(ctx context.Context, req *protocol.Request, env *protocol.Envelope) (interface{}, error) {
		var payload RegisterRequestPayload
		if err := req.DecodePayload(&payload); err != nil {
			return nil, protocol.NewCodedError(protocol.CodeValidationError, "malformed payload").Wrap(err)
		}
		if err := utils.ValidateAgentID(payload.RefereeID); err != nil {
			return nil, protocol.NewCodedError(protocol.CodeValidationError, "invalid referee_id").Wrap(err)
		}
		leagueID := leagueIDOf(env)
		if _, err := svc.League.EnsureLeague(ctx, leagueID); err != nil {
			return nil, err
		}
		token, err := svc.League.RegisterReferee(ctx, leagueID, payload.RefereeID, payload.CallbackURL)
		if err != nil {
			return nil, err
		}
		return RegisterResponsePayload{Status: string(models.AgentRegistered), AuthToken: token, LeagueID: leagueID}, nil
	}
}

func handleRegisterPlayer(svc *services.Container) HandlerFunc {
	return func(ctx context.Context, req *protocol.Request, env *protocol.Envelope) (interface{}, error) {
		var payload RegisterRequestPayload
		if err := req.DecodePayload(&payload); err != nil {
			return nil, protocol.NewCodedError(protocol.CodeValidationError, "malformed payload").Wrap(err)
		}
		if err := utils.ValidateAgentID(payload.PlayerID); err != nil {
			return nil, protocol.NewCodedError(protocol.CodeValidationError, "invalid player_id").Wrap(err)
		}
		leagueID := leagueIDOf(env)
		if _, err := svc.League.EnsureLeague(ctx, leagueID); err != nil {
			return nil, err
		}
		token, err := svc.League.RegisterPlayer(ctx, leagueID, payload.PlayerID, payload.CallbackURL)
		if err != nil {
			return nil, err
		}
		return RegisterResponsePayload{Status: string(models.AgentRegistered), AuthToken: token, LeagueID: leagueID}, nil
	}
}

func handleAgentReady(svc *services.Container) HandlerFunc {
	return func(ctx context.Context, req *protocol.Request, env *protocol.Envelope) (interface{}, error) {
		identity, err := svc.Auth.VerifySender(ctx, env.AuthToken, env.Sender)
		if err != nil {
			return nil, err
		}
		if err := svc.League.AgentReady(ctx, identity, leagueIDOf(env)); err != nil {
			return nil, err
		}
		return AgentReadyResponsePayload{Status: string(models.AgentActive)}, nil
	}
}

func handleAdminStartLeague(svc *services.Container) HandlerFunc {
	return func(ctx context.Context, req *protocol.Request, env *protocol.Envelope) (interface{}, error) {
		var payload AdminStartLeagueRequestPayload
		if err := req.DecodePayload(&payload); err != nil {
			return nil, protocol.NewCodedError(protocol.CodeValidationError, "malformed payload").Wrap(err)
		}
		gameType := payload.GameType
		if gameType == "" {
			gameType = "tictactoe"
		}
		if err := utils.ValidateGameType(gameType); err != nil {
			return nil, protocol.NewCodedError(protocol.CodeValidationError, "invalid game_type").Wrap(err)
		}
		leagueID := leagueIDOf(env)
		if err := svc.League.StartLeague(ctx, leagueID, gameType); err != nil {
			return nil, err
		}
		return AdminStartLeagueResponsePayload{LeagueStatus: string(models.LeagueActive)}, nil
	}
}

func handleAdminGetStatus(svc *services.Container) HandlerFunc {
	return func(ctx context.Context, req *protocol.Request, env *protocol.Envelope) (interface{}, error) {
		counters, err := svc.League.Status(ctx, leagueIDOf(env))
		if err != nil {
			return nil, err
		}
		return StatusCountersPayloadFrom(counters), nil
	}
}

// StatusCountersPayloadFrom adapts the league service's status counters
// into the wire shape shared by ADMIN_GET_STATUS_RESPONSE and GET
// /status (used directly by cmd/leaguemanager for the latter).
func StatusCountersPayloadFrom(c *services.StatusCounters) StatusCountersPayload {
	return StatusCountersPayload{
		LeagueStatus:     string(c.LeagueStatus),
		RefereesActive:   c.ActiveReferees,
		PlayersActive:    c.ActivePlayers,
		RegisteredTotal:  c.RegisteredTotal,
		MatchesPending:   c.PendingMatches,
		MatchesCompleted: c.CompletedMatches,
	}
}

func handleMatchResultReport(svc *services.Container) HandlerFunc {
	return func(ctx context.Context, req *protocol.Request, env *protocol.Envelope) (interface{}, error) {
		identity, err := svc.Auth.VerifySender(ctx, env.AuthToken, env.Sender)
		if err != nil {
			return nil, err
		}
		var payload MatchResultReportPayload
		if err := req.DecodePayload(&payload); err != nil {
			return nil, protocol.NewCodedError(protocol.CodeValidationError, "malformed payload").Wrap(err)
		}
		outcome := models.OutcomeMap(payload.Outcome)
		points := models.PointsMap(payload.Points)
		metadata := models.JSONBlob(payload.GameMetadata)
		result, err := svc.Result.ReportResult(ctx, identity, env.MatchID, outcome, points, metadata)
		if err != nil {
			return nil, err
		}
		return MatchResultAckPayload{ResultID: result.ID}, nil
	}
}

func handleQueryStandings(svc *services.Container) HandlerFunc {
	return func(ctx context.Context, req *protocol.Request, env *protocol.Envelope) (interface{}, error) {
		if _, err := svc.Auth.VerifySender(ctx, env.AuthToken, env.Sender); err != nil {
			return nil, err
		}
		var roundID *string
		if env.RoundID != "" {
			roundID = &env.RoundID
		}
		snap, rankings, err := svc.Standings.Latest(ctx, leagueIDOf(env), roundID)
		if err != nil {
			return nil, protocol.NewCodedError(protocol.CodeDatabaseError, "could not load standings").Wrap(err)
		}
		if snap == nil {
			return nil, protocol.NewCodedError(protocol.CodeValidationError, "no standings snapshot exists yet")
		}
		out := StandingsResponsePayload{UpdatedAt: snap.ComputedAt, Standings: make([]PlayerRankingDTO, len(rankings))}
		if snap.RoundID != nil {
			out.RoundID = *snap.RoundID
		}
		for i, r := range rankings {
			out.Standings[i] = PlayerRankingDTO{
				PlayerID:      r.PlayerID,
				Rank:          r.Rank,
				Points:        r.Points,
				Wins:          r.Wins,
				Draws:         r.Draws,
				Losses:        r.Losses,
				MatchesPlayed: r.MatchesPlayed,
			}
		}
		return out, nil
	}
}
