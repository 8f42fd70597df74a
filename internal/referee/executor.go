// Package referee implements the match executor: the per-match state
// machine NEW -> INVITING -> WAITING_JOIN -> MOVE_LOOP
// -> TERMINAL/FORFEIT -> REPORTING -> DONE. The executor is a pure
// protocol conductor plus timeout enforcer — it never inspects
// step_context or move_payload, only passes them between the game
// engine and the player clients.
package referee

import (
	"context"
	"log"

	"league-coordinator/internal/config"
	"league-coordinator/internal/gameengine"
	"league-coordinator/internal/protocol"
)

// PlayerClient is the referee's outbound connection to one player.
// Each call blocks for at most the context's deadline; a deadline
// exceeded or non-nil error is treated as a forfeit-causing failure by
// the executor, never retried within a match.
type PlayerClient interface {
	Invite(ctx context.Context, playerID, matchID, gameType string) error
	RequestMove(ctx context.Context, playerID, matchID, gameType string, stepNumber int, stepContext interface{}) (movePayload interface{}, err error)
	NotifyGameOver(ctx context.Context, playerID, matchID, gameType string, outcome map[string]gameengine.Outcome, finalState interface{})
}

// ResultReporter delivers MATCH_RESULT_REPORT to the League Manager,
// retrying internally up to the configured attempt cap.
type ResultReporter interface {
	ReportResult(ctx context.Context, roundID, matchID string, outcome map[string]gameengine.Outcome, metadata map[string]interface{}) error
}

// Assignment is the inbound MATCH_ASSIGNMENT the executor runs.
type Assignment struct {
	MatchID  string
	RoundID  string
	GameType string
	Players  [2]string
}

// Executor runs one match at a time per instance; the referee process
// that embeds it is responsible for calling ExecuteMatch only while
// marked busy.
type Executor struct {
	engines  *gameengine.Registry
	players  PlayerClient
	reporter ResultReporter
	cfg      *config.Config
	logger   *log.Logger
}

func NewExecutor(engines *gameengine.Registry, players PlayerClient, reporter ResultReporter, cfg *config.Config, logger *log.Logger) *Executor {
	return &Executor{engines: engines, players: players, reporter: reporter, cfg: cfg, logger: logger}
}

// ExecuteMatch runs the full state machine for one assignment and
// returns once MATCH_RESULT_REPORT has been sent (or retries are
// exhausted, per step 7).
func (e *Executor) ExecuteMatch(ctx context.Context, a Assignment) error {
	engine, supported, err := e.engines.New(a.GameType, a.MatchID, a.Players, nil)
	if err != nil {
		return protocol.NewCodedError(protocol.CodeMatchExecutionFailed, "engine initialization failed").Wrap(err)
	}
	if !supported {
		return protocol.NewCodedError(protocol.CodeUnsupportedGameType, "no engine registered for game_type").
			WithData(map[string]interface{}{"game_type": a.GameType})
	}

	offender, forfeited := e.inviteAndAwaitJoin(ctx, a)
	if !forfeited {
		offender, forfeited = e.runMoveLoop(ctx, a, engine)
	}

	var outcome map[string]gameengine.Outcome
	if forfeited {
		outcome = forfeitOutcome(a.Players, offender, e.cfg.ScoreRuleFor(a.GameType))
	} else {
		outcome = applyScoreRule(engine.Outcome(), e.cfg.ScoreRuleFor(a.GameType))
	}

	finalState := interface{}(nil)
	if !forfeited {
		finalState = engine.FinalState()
	}
	for _, p := range a.Players {
		e.players.NotifyGameOver(ctx, p, a.MatchID, a.GameType, outcome, finalState)
	}

	if err := e.reporter.ReportResult(ctx, a.RoundID, a.MatchID, outcome, map[string]interface{}{"forfeit": forfeited}); err != nil {
		return protocol.NewCodedError(protocol.CodeTransportTimeout, "could not deliver match result to league manager").Wrap(err)
	}
	return nil
}

// inviteAndAwaitJoin sends GAME_INVITATION to both players in parallel
// and waits for GAME_JOIN_ACK from each within match_join_ack_ms
// of the assignment. The first player to miss its ack forfeits.
func (e *Executor) inviteAndAwaitJoin(ctx context.Context, a Assignment) (offender string, forfeited bool) {
	type joinResult struct {
		player string
		err    error
	}
	results := make(chan joinResult, len(a.Players))
	for _, p := range a.Players {
		go func(playerID string) {
			joinCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.MatchJoinAck())
			defer cancel()
			err := e.players.Invite(joinCtx, playerID, a.MatchID, a.GameType)
			results <- joinResult{player: playerID, err: err}
		}(p)
	}
	for range a.Players {
		r := <-results
		if r.err != nil && !forfeited {
			offender, forfeited = r.player, true
		}
	}
	return offender, forfeited
}

// runMoveLoop is the heart of the match: ask the engine who moves, send
// REQUEST_MOVE, validate the response, apply it, and loop until the
// engine reports terminal or a player forfeits by timeout/invalid move.
func (e *Executor) runMoveLoop(ctx context.Context, a Assignment, engine gameengine.Engine) (offender string, forfeited bool) {
	stepNumber := 0
	for !engine.IsTerminal() {
		mover := engine.CurrentMover()
		stepContext := engine.StepContext(mover)

		moveCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.MoveResponse())
		move, err := e.players.RequestMove(moveCtx, mover, a.MatchID, a.GameType, stepNumber, stepContext)
		cancel()
		if err != nil {
			return mover, true
		}
		if !engine.ValidateMove(mover, move) {
			return mover, true
		}
		if err := engine.ApplyMove(mover, move); err != nil {
			e.logger.Printf("referee: apply_move failed for match %s: %v", a.MatchID, err)
			return mover, true
		}
		stepNumber++
	}
	return "", false
}

// applyScoreRule overlays the configured points table onto an engine's
// raw win/loss/draw result. Engines report only the outcome, never
// points — the scoring table is a config concern the engine never
// reads, so the referee fills points in before reporting.
func applyScoreRule(outcome map[string]gameengine.Outcome, rule config.ScoreRule) map[string]gameengine.Outcome {
	out := make(map[string]gameengine.Outcome, len(outcome))
	for player, o := range outcome {
		switch o.Result {
		case "win":
			out[player] = gameengine.Outcome{Result: "win", Points: rule.Win}
		case "draw":
			out[player] = gameengine.Outcome{Result: "draw", Points: rule.Draw}
		default:
			out[player] = gameengine.Outcome{Result: "loss", Points: rule.Loss}
		}
	}
	return out
}

// forfeitOutcome awards the non-offending player a full win and the
// offender a zero-point loss.
func forfeitOutcome(players [2]string, offender string, rule config.ScoreRule) map[string]gameengine.Outcome {
	out := make(map[string]gameengine.Outcome, 2)
	for _, p := range players {
		if p == offender {
			out[p] = gameengine.Outcome{Result: "loss", Points: 0}
		} else {
			out[p] = gameengine.Outcome{Result: "win", Points: rule.Win}
		}
	}
	return out
}
