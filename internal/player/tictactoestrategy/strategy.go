// Package tictactoestrategy is a reference player strategy:
// a simple, deterministic tic-tac-toe player. Win if
// possible, else block, else take the center, else the first open
// corner, else any open cell. It exists to exercise the player mailbox
// end-to-end against the reference gameengine/tictactoe engine.
package tictactoestrategy

import (
	"fmt"

	"league-coordinator/internal/gameengine/tictactoe"
)

const gameType = tictactoe.GameType

type Strategy struct{}

func New() *Strategy { return &Strategy{} }

// ComputeMove implements player.Strategy for tic-tac-toe step contexts.
func (s *Strategy) ComputeMove(stepContext interface{}, gt string) (interface{}, error) {
	if gt != gameType {
		return nil, fmt.Errorf("tictactoestrategy: unsupported game type %q", gt)
	}
	ctx, ok := stepContext.(tictactoe.StepContext)
	if !ok {
		ctx, ok = coerceStepContext(stepContext)
		if !ok {
			return nil, fmt.Errorf("tictactoestrategy: malformed step_context")
		}
	}

	if cell, ok := winningMove(ctx.Board, ctx.Mark); ok {
		return tictactoe.MovePayload{Cell: cell}, nil
	}
	opponent := 1
	if ctx.Mark == 1 {
		opponent = 2
	}
	if cell, ok := winningMove(ctx.Board, opponent); ok {
		return tictactoe.MovePayload{Cell: cell}, nil
	}
	if ctx.Board[4] == 0 {
		return tictactoe.MovePayload{Cell: 4}, nil
	}
	for _, corner := range []int{0, 2, 6, 8} {
		if ctx.Board[corner] == 0 {
			return tictactoe.MovePayload{Cell: corner}, nil
		}
	}
	for i, cell := range ctx.Board {
		if cell == 0 {
			return tictactoe.MovePayload{Cell: i}, nil
		}
	}
	return nil, fmt.Errorf("tictactoestrategy: no legal move available")
}

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// winningMove returns a cell that completes a line for mark, if one
// exists among the currently empty cells.
func winningMove(board [9]int, mark int) (int, bool) {
	for _, line := range lines {
		a, b, c := board[line[0]], board[line[1]], board[line[2]]
		cells := []int{line[0], line[1], line[2]}
		values := []int{a, b, c}
		filled, empty := 0, -1
		for i, v := range values {
			if v == mark {
				filled++
			} else if v == 0 {
				empty = cells[i]
			}
		}
		if filled == 2 && empty != -1 {
			return empty, true
		}
	}
	return 0, false
}

// coerceStepContext handles the case where stepContext arrived via the
// wire as a generic map (e.g. decoded from JSON by a transport layer
// rather than passed as a Go value directly within one process).
func coerceStepContext(v interface{}) (tictactoe.StepContext, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return tictactoe.StepContext{}, false
	}
	var ctx tictactoe.StepContext
	boardRaw, ok := m["board"].([]interface{})
	if !ok || len(boardRaw) != 9 {
		return tictactoe.StepContext{}, false
	}
	for i, v := range boardRaw {
		n, ok := v.(float64)
		if !ok {
			return tictactoe.StepContext{}, false
		}
		ctx.Board[i] = int(n)
	}
	markRaw, ok := m["mark"].(float64)
	if !ok {
		return tictactoe.StepContext{}, false
	}
	ctx.Mark = int(markRaw)
	return ctx, true
}
