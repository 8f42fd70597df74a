// internal/services/container.go
// Service container provides dependency injection for all business logic services.
// This pattern makes testing easier and keeps services loosely coupled.

package services

import (
	"log"

	"league-coordinator/internal/auth"
	"league-coordinator/internal/config"
	"league-coordinator/internal/database"
	"league-coordinator/internal/repositories"
)

// Container holds every League Manager service, constructed in
// dependency order: Standings has no service dependencies, Assigner
// needs a Dispatcher (supplied by the transport layer), League needs
// Assigner, and Result needs both Standings and League.
type Container struct {
	Repos     *repositories.Container
	Auth      *auth.Manager
	Cache     *CacheService
	Standings *StandingsService
	Assigner  *AssignerService
	League    *LeagueService
	Result    *ResultService
}

// NewContainer creates a new service container with all dependencies.
// dispatcher is the transport-layer client used to deliver
// MATCH_ASSIGNMENT frames to referees.
func NewContainer(db *database.Connections, cfg *config.Config, dispatcher Dispatcher, logger *log.Logger) *Container {
	repos := repositories.NewContainer(db)
	authMgr := auth.NewManager(repos.Agent)
	cache := NewCacheService(db.Redis, logger)

	standings := NewStandingsService(repos, cache, cfg, logger)
	assigner := NewAssignerService(repos, dispatcher, cache, cfg, logger)
	league := NewLeagueService(repos, authMgr, assigner, cfg, logger)
	result := NewResultService(repos, standings, league, logger)

	return &Container{
		Repos:     repos,
		Auth:      authMgr,
		Cache:     cache,
		Standings: standings,
		Assigner:  assigner,
		League:    league,
		Result:    result,
	}
}
