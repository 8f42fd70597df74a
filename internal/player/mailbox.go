package player

import (
	"fmt"
	"sync"
)

// matchState is the mailbox's only per-match bookkeeping: which
// game_type the match is playing, kept just long enough to route a
// MOVE_RESPONSE back through the right Strategy call. No league-visible
// state is kept beyond the lifetime of a single match.
type matchState struct {
	gameType string
}

// Mailbox is the player's inbound handler: GAME_INVITATION and
// REQUEST_MOVE arrive, the mailbox replies GAME_JOIN_ACK and
// MOVE_RESPONSE using the configured Strategy. It holds no state the
// league can observe — only enough bookkeeping to answer the next
// REQUEST_MOVE for a match it already joined.
type Mailbox struct {
	strategy Strategy

	mu      sync.Mutex
	matches map[string]*matchState
}

func NewMailbox(strategy Strategy) *Mailbox {
	return &Mailbox{strategy: strategy, matches: make(map[string]*matchState)}
}

// Invite handles GAME_INVITATION by recording the match; the caller
// answers with the empty GAME_JOIN_ACK. The mailbox accepts every
// invitation from its referee; only a game engine rejects moves.
func (m *Mailbox) Invite(matchID, gameType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[matchID] = &matchState{gameType: gameType}
	return nil
}

// RequestMove handles REQUEST_MOVE for an already-joined match, asking
// the Strategy to produce a move_payload for the given step_context.
func (m *Mailbox) RequestMove(matchID string, stepContext interface{}) (interface{}, error) {
	m.mu.Lock()
	state, ok := m.matches[matchID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("player: move requested for unknown match %s", matchID)
	}
	return m.strategy.ComputeMove(stepContext, state.gameType)
}

// GameOver releases the mailbox's bookkeeping for a finished match.
func (m *Mailbox) GameOver(matchID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.matches, matchID)
}
