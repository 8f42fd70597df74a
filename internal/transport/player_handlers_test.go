package transport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"league-coordinator/internal/config"
	"league-coordinator/internal/player/tictactoestrategy"
	"league-coordinator/internal/protocol"
)

func newTestPlayerRuntime(playerID string) *PlayerRuntime {
	return NewPlayerRuntime(playerID, "league1", "tok", "http://lm.invalid", tictactoestrategy.New(), NewClient(time.Second, config.RetryConfig{MaxAttempts: 1, BackoffMS: 1}), discardLogger())
}

func TestPlayerHandleInvitationThenRequestMove(t *testing.T) {
	p := newTestPlayerRuntime("p1")

	inviteEnv := &protocol.Envelope{MatchID: "m1", GameType: "tictactoe"}
	if _, err := p.handleInvitation(context.Background(), &protocol.Request{}, inviteEnv); err != nil {
		t.Fatalf("invitation: %v", err)
	}

	stepCtx := map[string]interface{}{
		"board": []interface{}{float64(0), float64(0), float64(0), float64(0), float64(0), float64(0), float64(0), float64(0), float64(0)},
		"mark":  float64(1),
	}
	payload := RequestMovePayload{StepNumber: 0, StepContext: stepCtx}
	body, _ := json.Marshal(payload)
	req := &protocol.Request{Params: protocol.Params{Payload: body}}
	moveEnv := &protocol.Envelope{MatchID: "m1", GameType: "tictactoe"}

	out, err := p.handleRequestMove(context.Background(), req, moveEnv)
	if err != nil {
		t.Fatalf("request_move: %v", err)
	}
	if _, ok := out.(MoveResponsePayload); !ok {
		t.Fatalf("expected MoveResponsePayload, got %T", out)
	}
}

func TestPlayerHandleRequestMoveBeforeInvitationFails(t *testing.T) {
	p := newTestPlayerRuntime("p1")
	body, _ := json.Marshal(RequestMovePayload{})
	req := &protocol.Request{Params: protocol.Params{Payload: body}}
	env := &protocol.Envelope{MatchID: "never-joined", GameType: "tictactoe"}

	if _, err := p.handleRequestMove(context.Background(), req, env); err == nil {
		t.Fatal("expected an error requesting a move before joining the match")
	}
}

func TestPlayerHandleGameOverClearsMailbox(t *testing.T) {
	p := newTestPlayerRuntime("p1")
	inviteEnv := &protocol.Envelope{MatchID: "m1", GameType: "tictactoe"}
	if _, err := p.handleInvitation(context.Background(), &protocol.Request{}, inviteEnv); err != nil {
		t.Fatalf("invitation: %v", err)
	}
	if _, err := p.handleGameOver(context.Background(), &protocol.Request{}, inviteEnv); err != nil {
		t.Fatalf("game_over: %v", err)
	}

	body, _ := json.Marshal(RequestMovePayload{})
	req := &protocol.Request{Params: protocol.Params{Payload: body}}
	if _, err := p.handleRequestMove(context.Background(), req, inviteEnv); err == nil {
		t.Fatal("expected move request to fail after GAME_OVER cleared the match")
	}
}

func TestPlayerStatusReflectsActiveFlag(t *testing.T) {
	p := newTestPlayerRuntime("p1")
	if got := p.Status(); !got.Registered || got.Active {
		t.Fatalf("expected registered=true, active=false before SetActive, got %+v", got)
	}
	p.SetActive(true)
	if got := p.Status(); !got.Active {
		t.Fatal("expected active=true after SetActive(true)")
	}
}
