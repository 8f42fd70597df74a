package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"league-coordinator/internal/auth"
	"league-coordinator/internal/models"
	"league-coordinator/internal/protocol"
	"league-coordinator/internal/repositories"
)

// ResultService implements the result processor: the five-step sequence
// that turns a MATCH_RESULT_REPORT into a persisted, immutable
// MatchResult and a fresh standings snapshot, exactly once per match.
type ResultService struct {
	repos     *repositories.Container
	standings *StandingsService
	league    *LeagueService
	logger    *log.Logger
}

func NewResultService(repos *repositories.Container, standings *StandingsService, league *LeagueService, logger *log.Logger) *ResultService {
	return &ResultService{repos: repos, standings: standings, league: league, logger: logger}
}

// ReportResult runs the five steps:
//  1. verify the reporting identity is the referee assigned to the match
//  2. check the match is in a reportable status
//  3. validate the result's shape against the match's two players
//  4. persist result + flip match COMPLETED, one transaction
//  5. recompute standings through this round
//
// A duplicate report (same match_id, already COMPLETED) is answered as
// an idempotent success referencing the stored result, never an error,
// so referee retries are safe.
func (s *ResultService) ReportResult(ctx context.Context, identity *auth.Identity, matchID string, outcome models.OutcomeMap, points models.PointsMap, metadata models.JSONBlob) (*models.MatchResult, error) {
	match, err := s.repos.Match.GetByID(ctx, matchID)
	if err != nil {
		return nil, protocol.NewCodedError(protocol.CodeValidationError, "unknown match").Wrap(err)
	}

	if match.RefereeID == nil || identity.AgentType != models.AgentReferee || identity.AgentID != *match.RefereeID {
		return nil, protocol.NewCodedError(protocol.CodeAuthSenderMismatch, "only the assigned referee may report this match's result")
	}

	if match.Status == models.MatchCompleted || match.Status == models.MatchFailed {
		existing, err := s.repos.Result.GetByMatchID(ctx, matchID)
		if err != nil {
			return nil, protocol.NewCodedError(protocol.CodeInternalError, "database error").Wrap(err)
		}
		if existing != nil {
			return existing, nil
		}
		return nil, protocol.NewCodedError(protocol.CodeDuplicateResult, "match is already terminal with no recorded result")
	}
	if match.Status != models.MatchAssigned && match.Status != models.MatchInProgress {
		return nil, protocol.NewCodedError(protocol.CodeValidationError, "match is not awaiting a result").
			WithData(map[string]interface{}{"status": string(match.Status)})
	}

	result := &models.MatchResult{
		ID:           uuid.New().String(),
		MatchID:      matchID,
		Outcome:      outcome,
		Points:       points,
		GameMetadata: metadata,
		ReportedAt:   time.Now().UTC(),
	}
	if err := result.ValidateShape([]string(match.Players)); err != nil {
		return nil, protocol.NewCodedError(protocol.CodeValidationError, "result shape invalid").Wrap(err)
	}

	tx, err := s.repos.BeginTx(ctx)
	if err != nil {
		return nil, protocol.NewCodedError(protocol.CodeDatabaseError, "could not begin transaction").Wrap(err)
	}
	if err := s.repos.Result.CreateTx(tx, result); err != nil {
		tx.Rollback()
		if err == repositories.ErrDuplicateResult {
			existing, getErr := s.repos.Result.GetByMatchID(ctx, matchID)
			if getErr != nil {
				return nil, protocol.NewCodedError(protocol.CodeInternalError, "database error").Wrap(getErr)
			}
			return existing, nil
		}
		return nil, protocol.NewCodedError(protocol.CodeDatabaseError, "could not persist result").Wrap(err)
	}
	if err := s.repos.Match.UpdateStatusTx(tx, matchID, models.MatchCompleted); err != nil {
		tx.Rollback()
		return nil, protocol.NewCodedError(protocol.CodeDatabaseError, "could not mark match completed").Wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, protocol.NewCodedError(protocol.CodeDatabaseError, "could not commit result").Wrap(err)
	}

	if match.RefereeID != nil {
		s.league.ReleaseReferee(ctx, *match.RefereeID)
	}

	round, err := s.roundOf(ctx, match)
	if err == nil && round != nil {
		if _, err := s.standings.RecomputeRound(ctx, match.LeagueID, round.ID, round.RoundNumber); err != nil {
			s.logger.Printf("result processor: standings recompute failed for round %s: %v", round.ID, err)
		}
		if _, err := s.standings.RecomputeOverall(ctx, match.LeagueID); err != nil {
			s.logger.Printf("result processor: overall standings recompute failed for league %s: %v", match.LeagueID, err)
		}
		if err := s.league.AdvanceAfterMatch(ctx, match.LeagueID, match.RoundID); err != nil {
			s.logger.Printf("result processor: round advance failed for round %s: %v", round.ID, err)
		}
	}

	return result, nil
}

func (s *ResultService) roundOf(ctx context.Context, match *models.Match) (*models.Round, error) {
	rounds, err := s.repos.Round.ListByLeague(ctx, match.LeagueID)
	if err != nil {
		return nil, err
	}
	for _, r := range rounds {
		if r.ID == match.RoundID {
			return r, nil
		}
	}
	return nil, nil
}
