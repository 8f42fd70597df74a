package models

import "testing"

func TestValidateShapeAcceptsOneWinOneLoss(t *testing.T) {
	r := &MatchResult{
		Outcome: OutcomeMap{"p1": "win", "p2": "loss"},
		Points:  PointsMap{"p1": 3, "p2": 0},
	}
	if err := r.ValidateShape([]string{"p1", "p2"}); err != nil {
		t.Fatalf("expected a one-win-one-loss result to validate, got: %v", err)
	}
}

func TestValidateShapeAcceptsTwoDraws(t *testing.T) {
	r := &MatchResult{
		Outcome: OutcomeMap{"p1": "draw", "p2": "draw"},
		Points:  PointsMap{"p1": 1, "p2": 1},
	}
	if err := r.ValidateShape([]string{"p1", "p2"}); err != nil {
		t.Fatalf("expected a two-draw result to validate, got: %v", err)
	}
}

func TestValidateShapeRejectsTwoWins(t *testing.T) {
	r := &MatchResult{
		Outcome: OutcomeMap{"p1": "win", "p2": "win"},
		Points:  PointsMap{"p1": 3, "p2": 3},
	}
	if err := r.ValidateShape([]string{"p1", "p2"}); err == nil {
		t.Fatal("expected two wins to be rejected")
	}
}

func TestValidateShapeRejectsMissingPlayer(t *testing.T) {
	r := &MatchResult{
		Outcome: OutcomeMap{"p1": "win", "p3": "loss"},
		Points:  PointsMap{"p1": 3, "p3": 0},
	}
	if err := r.ValidateShape([]string{"p1", "p2"}); err == nil {
		t.Fatal("expected an outcome naming a player not in the match to be rejected")
	}
}

func TestValidateShapeRejectsNegativePoints(t *testing.T) {
	r := &MatchResult{
		Outcome: OutcomeMap{"p1": "win", "p2": "loss"},
		Points:  PointsMap{"p1": 3, "p2": -1},
	}
	if err := r.ValidateShape([]string{"p1", "p2"}); err == nil {
		t.Fatal("expected negative points to be rejected")
	}
}
