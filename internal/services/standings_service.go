package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"league-coordinator/internal/config"
	"league-coordinator/internal/models"
	"league-coordinator/internal/repositories"
)

// StandingsService implements the standings engine: aggregate
// points/wins/draws/losses/matches_played per player over COMPLETED
// results, rank with the deterministic tie-break, and snapshot the
// result immutably per round. QUERY_STANDINGS reads are served through
// a short-lived Redis cache, invalidated whenever a new snapshot is
// written.
type StandingsService struct {
	repos  *repositories.Container
	cache  *CacheService
	cfg    *config.Config
	logger *log.Logger
}

func NewStandingsService(repos *repositories.Container, cache *CacheService, cfg *config.Config, logger *log.Logger) *StandingsService {
	return &StandingsService{repos: repos, cache: cache, cfg: cfg, logger: logger}
}

const standingsCacheTTL = 5 * time.Second

func standingsCacheKey(leagueID string, roundID *string) string {
	if roundID == nil {
		return "standings:" + leagueID + ":overall"
	}
	return "standings:" + leagueID + ":" + *roundID
}

// cachedStandings is the read-through cache's wire shape; *models.StandingsSnapshot
// and []models.PlayerRanking round-trip cleanly through it via JSON.
type cachedStandings struct {
	Snapshot models.StandingsSnapshot `json:"snapshot"`
	Rankings []models.PlayerRanking   `json:"rankings"`
}

type aggregate struct {
	points, wins, draws, losses, played int
}

// RecomputeRound aggregates every result through the given round
// (inclusive) and writes a new immutable snapshot for that round. Called
// by the result processor after each accepted result.
func (s *StandingsService) RecomputeRound(ctx context.Context, leagueID, roundID string, roundNumber int) (*models.StandingsSnapshot, error) {
	results, err := s.repos.Result.ListByLeagueThroughRound(ctx, leagueID, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("standings: list results: %w", err)
	}
	return s.snapshot(ctx, leagueID, &roundID, results)
}

// RecomputeOverall snapshots the latest standings across the whole
// league, answering QUERY_STANDINGS when round_id is omitted.
func (s *StandingsService) RecomputeOverall(ctx context.Context, leagueID string) (*models.StandingsSnapshot, error) {
	results, err := s.repos.Result.ListByLeague(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("standings: list results: %w", err)
	}
	return s.snapshot(ctx, leagueID, nil, results)
}

func (s *StandingsService) snapshot(ctx context.Context, leagueID string, roundID *string, results []*models.MatchResult) (*models.StandingsSnapshot, error) {
	agg := aggregateResults(results)
	rankings := rank(agg)

	snap := &models.StandingsSnapshot{
		ID:         uuid.New().String(),
		LeagueID:   leagueID,
		RoundID:    roundID,
		ComputedAt: time.Now().UTC(),
	}
	for i := range rankings {
		rankings[i].SnapshotID = snap.ID
	}

	tx, err := s.repos.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("standings: begin tx: %w", err)
	}
	if err := s.repos.Standings.CreateSnapshotTx(tx, snap, rankings); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("standings: create snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("standings: commit snapshot: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, standingsCacheKey(leagueID, roundID), cachedStandings{Snapshot: *snap, Rankings: rankings}, standingsCacheTTL); err != nil {
			s.logger.Printf("standings: cache refresh for %s failed: %v", leagueID, err)
		}
		if roundID != nil {
			if err := s.cache.Delete(ctx, standingsCacheKey(leagueID, nil)); err != nil {
				s.logger.Printf("standings: overall cache invalidation for %s failed: %v", leagueID, err)
			}
		}
	}
	return snap, nil
}

func aggregateResults(results []*models.MatchResult) map[string]*aggregate {
	agg := make(map[string]*aggregate)
	for _, r := range results {
		for playerID, outcome := range r.Outcome {
			a, ok := agg[playerID]
			if !ok {
				a = &aggregate{}
				agg[playerID] = a
			}
			a.played++
			a.points += r.Points[playerID]
			switch outcome {
			case "win":
				a.wins++
			case "draw":
				a.draws++
			case "loss":
				a.losses++
			}
		}
	}
	return agg
}

// rank sorts by (-points, -wins, -draws, player_id asc) and assigns
// dense 1-based ranks. Ties never share a rank.
func rank(agg map[string]*aggregate) []models.PlayerRanking {
	playerIDs := make([]string, 0, len(agg))
	for id := range agg {
		playerIDs = append(playerIDs, id)
	}
	sort.Slice(playerIDs, func(i, j int) bool {
		a, b := agg[playerIDs[i]], agg[playerIDs[j]]
		if a.points != b.points {
			return a.points > b.points
		}
		if a.wins != b.wins {
			return a.wins > b.wins
		}
		if a.draws != b.draws {
			return a.draws > b.draws
		}
		return playerIDs[i] < playerIDs[j]
	})

	out := make([]models.PlayerRanking, len(playerIDs))
	for i, id := range playerIDs {
		a := agg[id]
		out[i] = models.PlayerRanking{
			PlayerID:      id,
			Rank:          i + 1,
			Points:        a.points,
			Wins:          a.wins,
			Draws:         a.draws,
			Losses:        a.losses,
			MatchesPlayed: a.played,
		}
	}
	return out
}

// Latest returns the canonical standings for the given round (or overall
// when roundID is nil), backing QUERY_STANDINGS. Served from the Redis
// read-through cache when warm; falls through to the database and
// repopulates the cache on a miss.
func (s *StandingsService) Latest(ctx context.Context, leagueID string, roundID *string) (*models.StandingsSnapshot, []models.PlayerRanking, error) {
	if s.cache != nil {
		var cached cachedStandings
		if err := s.cache.Get(ctx, standingsCacheKey(leagueID, roundID), &cached); err == nil {
			return &cached.Snapshot, cached.Rankings, nil
		}
	}

	snap, rankings, err := s.repos.Standings.LatestForRound(ctx, leagueID, roundID)
	if err != nil {
		return nil, nil, err
	}

	if s.cache != nil && snap != nil {
		if err := s.cache.Set(ctx, standingsCacheKey(leagueID, roundID), cachedStandings{Snapshot: *snap, Rankings: rankings}, standingsCacheTTL); err != nil {
			s.logger.Printf("standings: cache populate for %s failed: %v", leagueID, err)
		}
	}
	return snap, rankings, nil
}
