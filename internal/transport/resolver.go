package transport

import (
	"context"

	"league-coordinator/internal/repositories"
)

// Resolver implements protocol.IDResolver against the League Manager's
// persistence, so the codec's step-7 validation can accept league_id,
// round_id, and match_id values that are not UUID v4 by construction:
// round_id is a league_id/round_number composite key and match_id is a
// deterministic UUID v5, neither of which passes a bare UUID-v4 shape
// check.
type Resolver struct {
	repos *repositories.Container
}

func NewResolver(repos *repositories.Container) *Resolver {
	return &Resolver{repos: repos}
}

func (r *Resolver) KnownID(field, value string) bool {
	ctx := context.Background()
	switch field {
	case "league_id":
		league, err := r.repos.League.GetByID(ctx, value)
		return err == nil && league != nil
	case "round_id":
		ok, err := r.repos.Round.Exists(ctx, value)
		return err == nil && ok
	case "match_id":
		m, err := r.repos.Match.GetByID(ctx, value)
		return err == nil && m != nil
	default:
		return false
	}
}

// PermissiveResolver backs Referee and Player processes, which hold no
// persisted league state of their own and
// so cannot look an id up anywhere — they accept any non-empty value
// for the non-UUID-v4 id schemes (round_id, match_id) and trust the
// League Manager's auth-token-bound sender identity for everything
// else.
type PermissiveResolver struct{}

func (PermissiveResolver) KnownID(field, value string) bool {
	return value != ""
}
