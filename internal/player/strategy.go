// Package player implements the player mailbox: it receives
// GAME_INVITATION/REQUEST_MOVE and answers with a Strategy's computed
// move, carrying no cross-match state visible to the league.
package player

// Strategy is the opaque decision-making contract the mailbox calls
// through. Implementations never see anything beyond the
// step_context the engine produced for this player.
type Strategy interface {
	ComputeMove(stepContext interface{}, gameType string) (interface{}, error)
}
