// Package tictactoe is the reference game engine:
// a complete, minimal implementation of the gameengine.Engine
// contract so the referee executor has a concrete game to run
// end-to-end without depending on any external rules package.
package tictactoe

import (
	"fmt"

	"league-coordinator/internal/gameengine"
)

// GameType is the game_type string this engine registers under.
const GameType = "tictactoe"

const boardSize = 9

// board cell values: 0 empty, 1 player[0] (X), 2 player[1] (O).
type engine struct {
	matchID string
	players [2]string
	board   [boardSize]int
	turn    int // index into players: whose turn it is
	winner  int // 0 none, 1 players[0], 2 players[1], 3 draw
}

// New is a gameengine.Factory for tic-tac-toe. config is unused — the
// reference game has no tunable rules.
func New(matchID string, players [2]string, config map[string]interface{}) (gameengine.Engine, error) {
	return &engine{matchID: matchID, players: players, turn: 0}, nil
}

// StepContext is the opaque payload handed to the mover: the full
// board plus which mark they play as. Opaque to the referee, but a
// concrete shape here since this is the reference implementation both
// sides of the protocol agree on.
type StepContext struct {
	Board [boardSize]int `json:"board"`
	Mark  int            `json:"mark"`
}

// MovePayload is the shape a strategy must produce: the board index to
// mark, 0-8.
type MovePayload struct {
	Cell int `json:"cell"`
}

func (e *engine) CurrentMover() string {
	return e.players[e.turn]
}

func (e *engine) StepContext(playerID string) interface{} {
	return StepContext{Board: e.board, Mark: e.markFor(playerID)}
}

func (e *engine) markFor(playerID string) int {
	if playerID == e.players[0] {
		return 1
	}
	return 2
}

func (e *engine) ValidateMove(playerID string, movePayload interface{}) bool {
	if e.winner != 0 {
		return false
	}
	if playerID != e.CurrentMover() {
		return false
	}
	move, ok := asMovePayload(movePayload)
	if !ok {
		return false
	}
	return move.Cell >= 0 && move.Cell < boardSize && e.board[move.Cell] == 0
}

func (e *engine) ApplyMove(playerID string, movePayload interface{}) error {
	move, ok := asMovePayload(movePayload)
	if !ok {
		return fmt.Errorf("tictactoe: malformed move payload")
	}
	e.board[move.Cell] = e.markFor(playerID)
	e.winner = e.detectWinner()
	e.turn = 1 - e.turn
	return nil
}

func (e *engine) IsTerminal() bool {
	return e.winner != 0
}

func (e *engine) Outcome() map[string]gameengine.Outcome {
	switch e.winner {
	case 1:
		return map[string]gameengine.Outcome{
			e.players[0]: {Result: "win"},
			e.players[1]: {Result: "loss"},
		}
	case 2:
		return map[string]gameengine.Outcome{
			e.players[0]: {Result: "loss"},
			e.players[1]: {Result: "win"},
		}
	default:
		return map[string]gameengine.Outcome{
			e.players[0]: {Result: "draw"},
			e.players[1]: {Result: "draw"},
		}
	}
}

func (e *engine) FinalState() interface{} {
	return e.board
}

var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// detectWinner returns 1/2 for a winning mark, 3 for a full draw board,
// or 0 if the game continues.
func (e *engine) detectWinner() int {
	for _, line := range winLines {
		a, b, c := e.board[line[0]], e.board[line[1]], e.board[line[2]]
		if a != 0 && a == b && b == c {
			return a
		}
	}
	for _, cell := range e.board {
		if cell == 0 {
			return 0
		}
	}
	return 3
}

func asMovePayload(v interface{}) (MovePayload, bool) {
	switch m := v.(type) {
	case MovePayload:
		return m, true
	case map[string]interface{}:
		cellVal, ok := m["cell"]
		if !ok {
			return MovePayload{}, false
		}
		switch n := cellVal.(type) {
		case float64:
			return MovePayload{Cell: int(n)}, true
		case int:
			return MovePayload{Cell: n}, true
		}
	}
	return MovePayload{}, false
}
