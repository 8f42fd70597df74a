// Command leaguemanager runs the League Manager role process: the
// single coordination point owning league state, agent registration,
// the scheduler, the match assigner, and the standings engine.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"league-coordinator/internal/audit"
	"league-coordinator/internal/config"
	"league-coordinator/internal/database"
	"league-coordinator/internal/repositories"
	"league-coordinator/internal/services"
	"league-coordinator/internal/transport"
)

func main() {
	logger := log.New(os.Stdout, "[league_manager] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if err := cfg.RequireLeagueManagerStorage(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Initialize(ctx, database.Config{
		MySQL: database.MySQLConfig{
			DSN:             cfg.Database.MySQL.DSN,
			MaxOpenConns:    cfg.Database.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.MySQL.ConnMaxLifetime,
			MaxRetries:      cfg.Retries.MaxAttempts,
			RetryBackoff:    time.Duration(cfg.Retries.BackoffMS) * time.Millisecond,
		},
		MongoDB: database.MongoConfig{
			URI:      cfg.Database.MongoDB.URI,
			Database: cfg.Database.MongoDB.Database,
		},
		Redis: database.RedisConfig{
			Addr:     cfg.Database.Redis.Addr,
			Password: cfg.Database.Redis.Password,
			DB:       cfg.Database.Redis.DB,
		},
	}, logger)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer db.Close()

	// RefereeDispatcher needs repositories ahead of services.NewContainer,
	// which builds its own Container over the same *sql.DB — two thin
	// wrappers over one connection pool, not two pools.
	repos := repositories.NewContainer(db)
	client := transport.NewClient(cfg.Timeouts.ResultReport(), cfg.Retries)
	dispatcher := transport.NewRefereeDispatcher(repos, client)

	svc := services.NewContainer(db, cfg, dispatcher, logger)
	auditLog := audit.New(db.MongoDB, logger)

	mcpDispatcher := &transport.Dispatcher{
		Role:     "league_manager",
		Handlers: transport.NewLeagueManagerHandlers(svc),
		Resolver: transport.NewResolver(repos),
		Audit:    auditLog,
		Logger:   logger,
	}

	statusHandler := func(c *gin.Context) {
		counters, err := svc.League.Status(c.Request.Context(), "default")
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"league_status": "INIT"})
			return
		}
		c.JSON(http.StatusOK, transport.StatusCountersPayloadFrom(counters))
	}

	server := transport.NewServer(cfg, "league_manager", mcpDispatcher, statusHandler, svc.Cache, logger, db.HealthCheck)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server: %v", err)
		}
	}()
	logger.Printf("league manager listening on :%s", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("server shutdown: %v", err)
	}
}
