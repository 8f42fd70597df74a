// Package scheduler implements the deterministic round-robin schedule
// generator: the circle method, grouping matches into rounds with
// disjoint player sets rather than one flat fixture list.
package scheduler

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"league-coordinator/internal/models"
)

// byeSentinel marks the idle seat when N is odd.
const byeSentinel = ""

// matchIDNamespace is the fixed namespace used to derive deterministic
// match IDs:
// match_id = uuid.NewSHA1(namespace, league_id + round + sorted pair).
// A name-based UUID (v5, not a random v4) keeps match_id a well-formed
// UUID while making two schedule generations over the same input
// produce byte-identical match_id values.
var matchIDNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// DeriveMatchID computes the deterministic match_id for a pairing within
// a league and round. Pair must already be sorted.
func DeriveMatchID(leagueID string, roundNumber int, pair [2]string) string {
	key := fmt.Sprintf("%s|%d|%s|%s", leagueID, roundNumber, pair[0], pair[1])
	return uuid.NewSHA1(matchIDNamespace, []byte(key)).String()
}

// GeneratedMatch is one pairing produced by Generate, ready for the
// caller to turn into a models.Match row within the scheduler's
// transaction.
type GeneratedMatch struct {
	RoundNumber int
	MatchID     string
	Players     [2]string
}

// Generate produces the full round-robin schedule for a set of distinct
// player IDs, using the standard circle method. Player IDs are
// sorted lexicographically first so two calls with the same input
// produce identical output.
func Generate(leagueID string, playerIDs []string) ([]GeneratedMatch, error) {
	n := len(playerIDs)
	if n == 0 || n == 1 {
		return nil, nil
	}

	sorted := make([]string, n)
	copy(sorted, playerIDs)
	sort.Strings(sorted)
	if err := requireDistinct(sorted); err != nil {
		return nil, err
	}

	seats := sorted
	odd := n%2 == 1
	if odd {
		seats = append(append([]string{}, sorted...), byeSentinel)
	}
	seatCount := len(seats)
	rounds := seatCount - 1

	var matches []GeneratedMatch
	rotating := make([]string, seatCount)
	copy(rotating, seats)

	for round := 0; round < rounds; round++ {
		roundNumber := round + 1
		for i := 0; i < seatCount/2; i++ {
			a := rotating[i]
			b := rotating[seatCount-1-i]
			if a == byeSentinel || b == byeSentinel {
				continue
			}
			pair := sortedPair(a, b)
			matches = append(matches, GeneratedMatch{
				RoundNumber: roundNumber,
				MatchID:     DeriveMatchID(leagueID, roundNumber, pair),
				Players:     pair,
			})
		}
		rotating = rotateFixedFirst(rotating)
	}

	if err := verifyPostconditions(sorted, matches, rounds); err != nil {
		return nil, err
	}
	return matches, nil
}

// rotateFixedFirst implements one circle-method step: seat 0 stays
// fixed, the rest rotate by one position.
func rotateFixedFirst(seats []string) []string {
	n := len(seats)
	out := make([]string, n)
	out[0] = seats[0]
	out[1] = seats[n-1]
	copy(out[2:], seats[1:n-1])
	return out
}

func sortedPair(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

func requireDistinct(ids []string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("duplicate player id: %s", id)
		}
		seen[id] = true
	}
	return nil
}

// verifyPostconditions asserts the schedule invariants before the
// caller commits the schedule: N(N-1)/2 matches, N-1 matches per player,
// no duplicate player within a round, and the complete pairwise set.
func verifyPostconditions(players []string, matches []GeneratedMatch, expectedRounds int) error {
	n := len(players)
	wantMatches := n * (n - 1) / 2
	if len(matches) != wantMatches {
		return fmt.Errorf("scheduler postcondition failed: got %d matches, want %d", len(matches), wantMatches)
	}

	perPlayer := make(map[string]int, n)
	perRoundSeen := make(map[int]map[string]bool)
	pairsSeen := make(map[[2]string]bool, wantMatches)

	for _, m := range matches {
		perPlayer[m.Players[0]]++
		perPlayer[m.Players[1]]++

		if perRoundSeen[m.RoundNumber] == nil {
			perRoundSeen[m.RoundNumber] = make(map[string]bool)
		}
		for _, p := range m.Players {
			if perRoundSeen[m.RoundNumber][p] {
				return fmt.Errorf("scheduler postcondition failed: player %s appears twice in round %d", p, m.RoundNumber)
			}
			perRoundSeen[m.RoundNumber][p] = true
		}

		if pairsSeen[m.Players] {
			return fmt.Errorf("scheduler postcondition failed: duplicate pair %v", m.Players)
		}
		pairsSeen[m.Players] = true
	}

	for _, p := range players {
		if perPlayer[p] != n-1 {
			return fmt.Errorf("scheduler postcondition failed: player %s appears in %d matches, want %d", p, perPlayer[p], n-1)
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !pairsSeen[sortedPair(players[i], players[j])] {
				return fmt.Errorf("scheduler postcondition failed: pair (%s,%s) missing", players[i], players[j])
			}
		}
	}

	return nil
}

// RoundCount returns the number of rounds for N players:
// N-1 when even, N when odd.
func RoundCount(n int) int {
	if n <= 1 {
		return 0
	}
	if n%2 == 0 {
		return n - 1
	}
	return n
}

// ToMatchModel builds a persistable models.Match from a generated pair,
// given the round's persisted ID.
func ToMatchModel(leagueID, roundID, gameType string, gm GeneratedMatch) *models.Match {
	return &models.Match{
		ID:       gm.MatchID,
		RoundID:  roundID,
		LeagueID: leagueID,
		GameType: gameType,
		Players:  models.StringSet{gm.Players[0], gm.Players[1]},
		Status:   models.MatchPending,
	}
}
