// internal/utils/validators.go
// Validation utility functions

package utils

import (
	"fmt"
	"regexp"
)

var agentIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
var gameTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ValidateAgentID checks the shape a referee_id/player_id must take
// before it is ever persisted: a short identifier safe to embed in the
// envelope sender string "referee:<id>" / "player:<id>".
func ValidateAgentID(id string) error {
	if !agentIDPattern.MatchString(id) {
		return fmt.Errorf("invalid agent id format: %q", id)
	}
	return nil
}

// ValidateGameType checks that a game_type is a lowercase identifier
// suitable for both a config key (SCORING_<GAME_TYPE>) and a
// gameengine.Registry lookup key.
func ValidateGameType(gameType string) error {
	if !gameTypePattern.MatchString(gameType) {
		return fmt.Errorf("invalid game_type format: %q", gameType)
	}
	return nil
}
