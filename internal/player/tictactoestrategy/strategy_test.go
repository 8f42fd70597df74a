package tictactoestrategy

import (
	"testing"

	"league-coordinator/internal/gameengine/tictactoe"
)

func TestTakesWinningMoveOverBlock(t *testing.T) {
	s := New()
	// mark 1 (us) has two in a row at 0,1; mark 2 has two in a row at 3,4.
	board := [9]int{1, 1, 0, 2, 2, 0, 0, 0, 0}
	move, err := s.ComputeMove(tictactoe.StepContext{Board: board, Mark: 1}, tictactoe.GameType)
	if err != nil {
		t.Fatalf("compute move: %v", err)
	}
	if move.(tictactoe.MovePayload).Cell != 2 {
		t.Errorf("expected winning move at cell 2, got %+v", move)
	}
}

func TestBlocksOpponentWinWhenNoWinAvailable(t *testing.T) {
	s := New()
	board := [9]int{0, 0, 0, 2, 2, 0, 0, 0, 0}
	move, err := s.ComputeMove(tictactoe.StepContext{Board: board, Mark: 1}, tictactoe.GameType)
	if err != nil {
		t.Fatalf("compute move: %v", err)
	}
	if move.(tictactoe.MovePayload).Cell != 5 {
		t.Errorf("expected block at cell 5, got %+v", move)
	}
}

func TestTakesCenterOnEmptyBoard(t *testing.T) {
	s := New()
	var board [9]int
	move, err := s.ComputeMove(tictactoe.StepContext{Board: board, Mark: 1}, tictactoe.GameType)
	if err != nil {
		t.Fatalf("compute move: %v", err)
	}
	if move.(tictactoe.MovePayload).Cell != 4 {
		t.Errorf("expected center opening, got %+v", move)
	}
}

func TestRejectsUnsupportedGameType(t *testing.T) {
	s := New()
	if _, err := s.ComputeMove(tictactoe.StepContext{}, "chess"); err == nil {
		t.Fatal("expected error for unsupported game type")
	}
}
