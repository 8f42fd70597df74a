package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"league-coordinator/internal/config"
	"league-coordinator/internal/models"
	"league-coordinator/internal/protocol"
	"league-coordinator/internal/repositories"
)

// refereeLockTTL bounds how long a referee can sit claimed without its
// match reaching a terminal status before the lock expires and another
// process could, in principle, reclaim it. Set comfortably above the
// longest plausible match (join + every move + result report timeout).
const refereeLockTTL = 10 * time.Minute

// Dispatcher sends a MATCH_ASSIGNMENT frame to a referee and reports
// whether it was accepted. The concrete implementation lives in the
// transport package's HTTP client; AssignerService only needs the
// narrow send operation.
type Dispatcher interface {
	SendMatchAssignment(ctx context.Context, refereeID string, match *models.Match) error
}

// refereeLocker is the narrow slice of CacheService the assigner needs
// for its distributed busy-referee lock. Extracting
// this interface, rather than depending on *CacheService directly, lets
// tests exercise the assigner's claim/release logic against a simple
// in-memory fake instead of a live Redis connection.
type refereeLocker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// AssignerService implements the match assigner: a Redis-backed
// short-leased per-referee lock that hands PENDING matches to idle
// ACTIVE referees in deterministic match_id order, one round at a time.
// The lock is SetNX-based rather than a bare in-memory map so a second
// League Manager process restarted mid-round (or, in a future
// multi-process deployment the Non-goals currently exclude) never
// double-assigns a referee still marked busy by another process.
type AssignerService struct {
	repos      *repositories.Container
	dispatcher Dispatcher
	locker     refereeLocker
	cfg        *config.Config
	logger     *log.Logger
}

func NewAssignerService(repos *repositories.Container, dispatcher Dispatcher, locker refereeLocker, cfg *config.Config, logger *log.Logger) *AssignerService {
	return &AssignerService{
		repos:      repos,
		dispatcher: dispatcher,
		locker:     locker,
		cfg:        cfg,
		logger:     logger,
	}
}

func refereeLockKey(refereeID string) string {
	return "referee_lock:" + refereeID
}

// AssignRound walks a round's PENDING matches in match_id order and
// assigns each to the first idle ACTIVE referee. When
// ConcurrentMatchesPerRound is false, it stops after the first
// assignment — the round drains one match at a time.
func (a *AssignerService) AssignRound(ctx context.Context, leagueID, roundID string) error {
	matches, err := a.repos.Match.ListPendingByRound(ctx, roundID)
	if err != nil {
		return fmt.Errorf("assigner: list pending matches: %w", err)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	assigned := false
	for _, m := range matches {
		refereeID, ok := a.claimIdleReferee(ctx, leagueID)
		if !ok {
			break
		}
		if err := a.assign(ctx, m, refereeID); err != nil {
			a.release(ctx, refereeID)
			return err
		}
		assigned = true
		if !a.cfg.Scheduling.ConcurrentMatchesPerRound {
			break
		}
	}
	if assigned {
		if err := a.repos.Round.UpdateStatus(ctx, roundID, models.RoundActive); err != nil {
			a.logger.Printf("assigner: could not mark round %s active: %v", roundID, err)
		}
	}
	return nil
}

func (a *AssignerService) claimIdleReferee(ctx context.Context, leagueID string) (string, bool) {
	refereeIDs, err := a.repos.Agent.ListActiveRefereeIDs(ctx, leagueID)
	if err != nil {
		a.logger.Printf("assigner: list active referees: %v", err)
		return "", false
	}

	for _, id := range refereeIDs {
		claimed, err := a.locker.SetNX(ctx, refereeLockKey(id), true, refereeLockTTL)
		if err != nil {
			a.logger.Printf("assigner: referee lock check for %s failed: %v", id, err)
			continue
		}
		if claimed {
			return id, true
		}
	}
	return "", false
}

func (a *AssignerService) release(ctx context.Context, refereeID string) {
	if err := a.locker.Delete(ctx, refereeLockKey(refereeID)); err != nil {
		a.logger.Printf("assigner: referee lock release for %s failed: %v", refereeID, err)
	}
}

func (a *AssignerService) assign(ctx context.Context, m *models.Match, refereeID string) error {
	if err := a.repos.Match.AssignReferee(ctx, m.ID, refereeID); err != nil {
		return protocol.NewCodedError(protocol.CodeRefereeUnavailable, "could not assign referee to match").Wrap(err)
	}
	m.RefereeID = &refereeID
	m.Status = models.MatchAssigned

	if err := a.dispatcher.SendMatchAssignment(ctx, refereeID, m); err != nil {
		return protocol.NewCodedError(protocol.CodeRefereeUnavailable, "referee rejected match assignment").Wrap(err)
	}
	return nil
}

// Release frees a referee's busy slot after its match reaches a
// terminal status, letting it pick up the next PENDING match in this
// or the next round.
func (a *AssignerService) Release(ctx context.Context, refereeID string) {
	a.release(ctx, refereeID)
}

// ReadyForNextRound reports whether every match in the given round has
// reached a terminal status, the gate for advancing assignment to round
// N+1. Assignment never spans rounds concurrently.
func (a *AssignerService) ReadyForNextRound(ctx context.Context, roundID string) (bool, error) {
	return a.repos.Round.AllMatchesTerminal(ctx, roundID)
}
