package models

import "errors"

var (
	errWrongPlayerCount = errors.New("a match must have exactly two players")
	errOutcomeShape     = errors.New("outcome must cover both players with one win and one loss, or two draws")
	errPointsShape      = errors.New("points must be a non-negative integer for both players")
)
