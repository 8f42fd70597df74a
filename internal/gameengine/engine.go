// Package gameengine defines the opaque rule-engine contract the
// referee executor consumes. The engine owns all game semantics;
// the referee never inspects state, step_context, or move_payload — it
// only calls through this interface and enforces timeouts.
package gameengine

// Outcome is one player's result plus its awarded points. The referee
// keeps an engine's Result but replaces Points from the configured
// scoring table before building MATCH_RESULT_REPORT.
type Outcome struct {
	Result string // "win", "loss", or "draw"
	Points int
}

// Engine is instantiated once per match by a Factory. All state is
// private to the implementation; the referee only ever holds the
// Engine value and calls its methods.
type Engine interface {
	// CurrentMover returns the player_id who must move next.
	CurrentMover() string

	// StepContext returns the opaque payload sent to the mover inside
	// REQUEST_MOVE. Its shape is private to the engine implementation.
	StepContext(playerID string) interface{}

	// ValidateMove reports whether movePayload is legal for playerID in
	// the engine's current state.
	ValidateMove(playerID string, movePayload interface{}) bool

	// ApplyMove advances the engine's state with an already-validated
	// move. The referee never calls this without a prior true
	// ValidateMove for the same move.
	ApplyMove(playerID string, movePayload interface{}) error

	// IsTerminal reports whether the match has reached an end state.
	IsTerminal() bool

	// Outcome computes the final per-player result. Only valid once
	// IsTerminal reports true; any Points it sets are overwritten by
	// the referee's scoring table.
	Outcome() map[string]Outcome

	// FinalState returns an opaque snapshot for GAME_OVER's final_state
	// field.
	FinalState() interface{}
}

// Factory constructs a fresh Engine for one match. game_type selects
// which Factory is used; unknown game types are rejected by the
// referee with UNSUPPORTED_GAME_TYPE before a Factory is ever invoked.
type Factory func(matchID string, players [2]string, config map[string]interface{}) (Engine, error)

// Registry maps game_type to the Factory that builds it.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a game_type to its Factory. Intended to be called
// once per supported game at process startup.
func (r *Registry) Register(gameType string, f Factory) {
	r.factories[gameType] = f
}

// New instantiates the engine for gameType, or returns (nil, false, nil)
// if no Factory is registered for it.
func (r *Registry) New(gameType, matchID string, players [2]string, config map[string]interface{}) (Engine, bool, error) {
	f, ok := r.factories[gameType]
	if !ok {
		return nil, false, nil
	}
	engine, err := f(matchID, players, config)
	return engine, true, err
}

// Supports reports whether gameType has a registered Factory.
func (r *Registry) Supports(gameType string) bool {
	_, ok := r.factories[gameType]
	return ok
}
