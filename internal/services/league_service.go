package services

import (
	"context"
	"log"
	"strconv"
	"time"

	"league-coordinator/internal/auth"
	"league-coordinator/internal/config"
	"league-coordinator/internal/models"
	"league-coordinator/internal/protocol"
	"league-coordinator/internal/repositories"
	"league-coordinator/internal/scheduler"
)

// LeagueService implements the league state machine: the forward-only
// INIT -> REGISTRATION -> SCHEDULING -> ACTIVE -> COMPLETED
// lifecycle, the referee/player registration handlers, and the
// AGENT_READY / ADMIN_START_LEAGUE / ADMIN_GET_STATUS admin surface.
type LeagueService struct {
	repos    *repositories.Container
	auth     *auth.Manager
	assigner *AssignerService
	cfg      *config.Config
	logger   *log.Logger
}

func NewLeagueService(repos *repositories.Container, authMgr *auth.Manager, assigner *AssignerService, cfg *config.Config, logger *log.Logger) *LeagueService {
	return &LeagueService{repos: repos, auth: authMgr, assigner: assigner, cfg: cfg, logger: logger}
}

// EnsureLeague creates the singleton League row on first contact and
// opens registration immediately (a league starts life accepting
// registrations, there is no separate "open registration" command).
func (s *LeagueService) EnsureLeague(ctx context.Context, leagueID string) (*models.League, error) {
	league, err := s.repos.League.GetByID(ctx, leagueID)
	if err == nil && league != nil {
		return league, nil
	}

	league = &models.League{
		ID:        leagueID,
		Status:    models.LeagueInit,
		CreatedAt: time.Now().UTC(),
		Config:    models.JSONBlob{},
	}
	if err := s.repos.League.Create(ctx, league); err != nil {
		return nil, protocol.NewCodedError(protocol.CodeDatabaseError, "could not create league").Wrap(err)
	}
	if err := s.transition(ctx, league, models.LeagueRegistration); err != nil {
		return nil, err
	}
	return league, nil
}

func (s *LeagueService) transition(ctx context.Context, league *models.League, next models.LeagueStatus) error {
	if !league.Status.CanTransition(next) {
		return protocol.NewCodedError(protocol.CodePreconditionFailed, "illegal league state transition").
			WithData(map[string]interface{}{"from": string(league.Status), "to": string(next)})
	}
	if err := s.repos.League.UpdateStatus(ctx, league.ID, next); err != nil {
		return protocol.NewCodedError(protocol.CodeDatabaseError, "could not persist league transition").Wrap(err)
	}
	league.Status = next
	return nil
}

// RegisterReferee admits a referee during REGISTRATION and issues its
// auth token. Re-registering the same referee_id returns the same token
// so registration retries are safe.
func (s *LeagueService) RegisterReferee(ctx context.Context, leagueID, refereeID, callbackURL string) (string, error) {
	return s.register(ctx, leagueID, models.AgentReferee, refereeID, callbackURL)
}

// RegisterPlayer admits a player during REGISTRATION. A player may only
// register once at least one referee has registered — a league with
// zero referees can never complete a match.
func (s *LeagueService) RegisterPlayer(ctx context.Context, leagueID, playerID, callbackURL string) (string, error) {
	refereeCount, err := s.repos.Agent.CountAll(ctx, leagueID, models.AgentReferee)
	if err != nil {
		return "", protocol.NewCodedError(protocol.CodeDatabaseError, "could not check referee count").Wrap(err)
	}
	if refereeCount == 0 {
		return "", protocol.NewCodedError(protocol.CodePreconditionFailed, "no referee has registered yet")
	}
	return s.register(ctx, leagueID, models.AgentPlayer, playerID, callbackURL)
}

func (s *LeagueService) register(ctx context.Context, leagueID string, agentType models.AgentType, agentID, callbackURL string) (string, error) {
	league, err := s.repos.League.GetByID(ctx, leagueID)
	if err != nil {
		return "", protocol.NewCodedError(protocol.CodeValidationError, "unknown league").Wrap(err)
	}
	if league.Status != models.LeagueRegistration {
		return "", protocol.NewCodedError(protocol.CodeRegistrationClosed, "league is not accepting registrations").
			WithData(map[string]interface{}{"status": string(league.Status)})
	}

	existing, err := s.repos.Agent.GetByID(ctx, leagueID, agentType, agentID)
	if err != nil {
		return "", protocol.NewCodedError(protocol.CodeDatabaseError, "could not check existing registration").Wrap(err)
	}
	token, err := s.auth.Issue(ctx, leagueID, agentType, agentID)
	if err != nil {
		return "", protocol.NewCodedError(protocol.CodeInternalError, "could not issue auth token").Wrap(err)
	}
	if existing != nil {
		return token, nil
	}

	reg := &models.AgentRegistration{
		AgentID:      agentID,
		AgentType:    agentType,
		LeagueID:     leagueID,
		AuthToken:    token,
		Status:       models.AgentRegistered,
		CallbackURL:  callbackURL,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.repos.Agent.Create(ctx, reg); err != nil {
		return "", protocol.NewCodedError(protocol.CodeDuplicateRegistration, "agent_id already registered").Wrap(err)
	}
	return token, nil
}

// AgentReady promotes REGISTERED -> ACTIVE for the calling agent, the
// handshake that lets ADMIN_START_LEAGUE's precondition see it as ready
// (the League Manager never auto-promotes on registration alone).
func (s *LeagueService) AgentReady(ctx context.Context, identity *auth.Identity, leagueID string) error {
	reg, err := s.repos.Agent.GetByID(ctx, leagueID, identity.AgentType, identity.AgentID)
	if err != nil || reg == nil {
		return protocol.NewCodedError(protocol.CodeValidationError, "agent is not registered in this league")
	}
	if reg.Status != models.AgentRegistered {
		return protocol.NewCodedError(protocol.CodePreconditionFailed, "agent is not in REGISTERED status").
			WithData(map[string]interface{}{"status": string(reg.Status)})
	}
	if err := s.repos.Agent.UpdateStatus(ctx, leagueID, identity.AgentType, identity.AgentID, models.AgentActive); err != nil {
		return protocol.NewCodedError(protocol.CodeDatabaseError, "could not mark agent active").Wrap(err)
	}
	return nil
}

// StartLeague implements ADMIN_START_LEAGUE_REQUEST: checks the
// minimum-agent and all-ACTIVE preconditions, and only once they pass
// transitions REGISTRATION -> SCHEDULING, generates the deterministic
// round-robin schedule, persists it in one transaction, transitions
// SCHEDULING -> ACTIVE, and kicks off assignment of round 1. A failed
// precondition leaves the league in REGISTRATION so agents can keep
// registering and the admin can retry.
func (s *LeagueService) StartLeague(ctx context.Context, leagueID, gameType string) error {
	league, err := s.repos.League.GetByID(ctx, leagueID)
	if err != nil {
		return protocol.NewCodedError(protocol.CodeValidationError, "unknown league").Wrap(err)
	}

	playerIDs, err := s.repos.Agent.ListActiveIDs(ctx, leagueID, models.AgentPlayer)
	if err != nil {
		return protocol.NewCodedError(protocol.CodeDatabaseError, "could not list active players").Wrap(err)
	}
	refereeIDs, err := s.repos.Agent.ListActiveRefereeIDs(ctx, leagueID)
	if err != nil {
		return protocol.NewCodedError(protocol.CodeDatabaseError, "could not list active referees").Wrap(err)
	}
	if len(refereeIDs) < s.cfg.Registration.MinReferees || len(playerIDs) < s.cfg.Registration.MinPlayers {
		return protocol.NewCodedError(protocol.CodePreconditionFailed, "league does not meet minimum active agent counts").
			WithData(map[string]interface{}{"active_referees": len(refereeIDs), "active_players": len(playerIDs)})
	}
	totalReferees, err := s.repos.Agent.CountAll(ctx, leagueID, models.AgentReferee)
	if err != nil {
		return protocol.NewCodedError(protocol.CodeDatabaseError, "could not count referees").Wrap(err)
	}
	totalPlayers, err := s.repos.Agent.CountAll(ctx, leagueID, models.AgentPlayer)
	if err != nil {
		return protocol.NewCodedError(protocol.CodeDatabaseError, "could not count players").Wrap(err)
	}
	if totalReferees != len(refereeIDs) || totalPlayers != len(playerIDs) {
		return protocol.NewCodedError(protocol.CodePreconditionFailed, "not every registered agent has completed the ready handshake").
			WithData(map[string]interface{}{
				"registered_referees": totalReferees, "active_referees": len(refereeIDs),
				"registered_players": totalPlayers, "active_players": len(playerIDs),
			})
	}

	if err := s.transition(ctx, league, models.LeagueScheduling); err != nil {
		return err
	}

	generated, err := scheduler.Generate(leagueID, playerIDs)
	if err != nil {
		return protocol.NewCodedError(protocol.CodeInternalError, "schedule generation failed").Wrap(err)
	}

	tx, err := s.repos.BeginTx(ctx)
	if err != nil {
		return protocol.NewCodedError(protocol.CodeDatabaseError, "could not begin transaction").Wrap(err)
	}

	roundIDs := make(map[int]string)
	for roundNumber := 1; roundNumber <= scheduler.RoundCount(len(playerIDs)); roundNumber++ {
		round := &models.Round{
			ID:          roundKey(leagueID, roundNumber),
			LeagueID:    leagueID,
			RoundNumber: roundNumber,
			Status:      models.RoundPending,
		}
		if err := s.repos.Round.CreateTx(tx, round); err != nil {
			tx.Rollback()
			return protocol.NewCodedError(protocol.CodeDatabaseError, "could not persist round").Wrap(err)
		}
		roundIDs[roundNumber] = round.ID
	}
	for _, gm := range generated {
		match := scheduler.ToMatchModel(leagueID, roundIDs[gm.RoundNumber], gameType, gm)
		if err := s.repos.Match.CreateTx(tx, match); err != nil {
			tx.Rollback()
			return protocol.NewCodedError(protocol.CodeDatabaseError, "could not persist match").Wrap(err)
		}
	}
	if err := s.repos.League.UpdateStatusTx(tx, leagueID, models.LeagueActive); err != nil {
		tx.Rollback()
		return protocol.NewCodedError(protocol.CodeDatabaseError, "could not activate league").Wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return protocol.NewCodedError(protocol.CodeDatabaseError, "could not commit schedule").Wrap(err)
	}
	league.Status = models.LeagueActive

	if firstRound, ok := roundIDs[1]; ok {
		if err := s.assigner.AssignRound(ctx, leagueID, firstRound); err != nil {
			s.logger.Printf("league %s: round 1 assignment failed: %v", leagueID, err)
		}
	}
	return nil
}

// ReleaseReferee frees a referee's busy slot immediately after its match
// reaches a terminal status, ahead of AdvanceAfterMatch's reassignment
// pass.
func (s *LeagueService) ReleaseReferee(ctx context.Context, refereeID string) {
	s.assigner.Release(ctx, refereeID)
}

// AdvanceAfterMatch is called once a match reaches a terminal status: it
// lets the assigner hand the freed referee the round's next PENDING
// match, and once a round is entirely terminal it marks the round
// COMPLETED and either opens assignment on the next round or, if this
// was the last round, transitions the league to COMPLETED.
func (s *LeagueService) AdvanceAfterMatch(ctx context.Context, leagueID, roundID string) error {
	if err := s.assigner.AssignRound(ctx, leagueID, roundID); err != nil {
		s.logger.Printf("league %s: re-assignment within round %s failed: %v", leagueID, roundID, err)
	}

	done, err := s.repos.Round.AllMatchesTerminal(ctx, roundID)
	if err != nil {
		return protocol.NewCodedError(protocol.CodeDatabaseError, "could not check round completion").Wrap(err)
	}
	if !done {
		return nil
	}
	if err := s.repos.Round.UpdateStatus(ctx, roundID, models.RoundDone); err != nil {
		return protocol.NewCodedError(protocol.CodeDatabaseError, "could not mark round completed").Wrap(err)
	}

	rounds, err := s.repos.Round.ListByLeague(ctx, leagueID)
	if err != nil {
		return protocol.NewCodedError(protocol.CodeDatabaseError, "could not list rounds").Wrap(err)
	}
	var current, next *models.Round
	for _, r := range rounds {
		if r.ID == roundID {
			current = r
		}
	}
	if current == nil {
		return nil
	}
	for _, r := range rounds {
		if r.RoundNumber == current.RoundNumber+1 {
			next = r
		}
	}
	if next == nil {
		league, err := s.repos.League.GetByID(ctx, leagueID)
		if err != nil {
			return protocol.NewCodedError(protocol.CodeDatabaseError, "could not load league").Wrap(err)
		}
		return s.transition(ctx, league, models.LeagueCompleted)
	}
	if err := s.assigner.AssignRound(ctx, leagueID, next.ID); err != nil {
		s.logger.Printf("league %s: opening round %d failed: %v", leagueID, next.RoundNumber, err)
	}
	return nil
}

func roundKey(leagueID string, roundNumber int) string {
	return leagueID + "-round-" + strconv.Itoa(roundNumber)
}

// StatusCounters answers ADMIN_GET_STATUS_REQUEST / GET /status:
// current league state plus agent and match counters.
type StatusCounters struct {
	LeagueStatus     models.LeagueStatus
	ActiveReferees   int
	ActivePlayers    int
	RegisteredTotal  int
	PendingMatches   int
	CompletedMatches int
}

func (s *LeagueService) Status(ctx context.Context, leagueID string) (*StatusCounters, error) {
	league, err := s.repos.League.GetByID(ctx, leagueID)
	if err != nil {
		return nil, protocol.NewCodedError(protocol.CodeValidationError, "unknown league").Wrap(err)
	}
	activeReferees, err := s.repos.Agent.CountActive(ctx, leagueID, models.AgentReferee)
	if err != nil {
		return nil, protocol.NewCodedError(protocol.CodeDatabaseError, "database error").Wrap(err)
	}
	activePlayers, err := s.repos.Agent.CountActive(ctx, leagueID, models.AgentPlayer)
	if err != nil {
		return nil, protocol.NewCodedError(protocol.CodeDatabaseError, "database error").Wrap(err)
	}
	refCount, _ := s.repos.Agent.CountAll(ctx, leagueID, models.AgentReferee)
	playerCount, _ := s.repos.Agent.CountAll(ctx, leagueID, models.AgentPlayer)

	matches, err := s.repos.Match.ListByLeague(ctx, leagueID)
	if err != nil {
		return nil, protocol.NewCodedError(protocol.CodeDatabaseError, "database error").Wrap(err)
	}
	pending, completed := 0, 0
	for _, m := range matches {
		switch m.Status {
		case models.MatchPending, models.MatchAssigned, models.MatchInProgress:
			pending++
		case models.MatchCompleted:
			completed++
		}
	}

	return &StatusCounters{
		LeagueStatus:     league.Status,
		ActiveReferees:   activeReferees,
		ActivePlayers:    activePlayers,
		RegisteredTotal:  refCount + playerCount,
		PendingMatches:   pending,
		CompletedMatches: completed,
	}, nil
}
