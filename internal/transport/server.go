package transport

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"league-coordinator/internal/config"
	"league-coordinator/internal/middleware"
	"league-coordinator/internal/services"
)

// Server is the HTTP front door every role process runs: POST /mcp,
// GET /health, GET /status, nothing else. A *gin.Engine behind an
// *http.Server with explicit Start/Shutdown, parameterized by whichever
// dispatch table and status handler the calling role process supplies.
type Server struct {
	router *gin.Engine
	http   *http.Server
	logger *log.Logger
	drain  *middleware.DrainGate
}

// NewServer builds the role-agnostic transport: Gin's recovery
// middleware, request-id/logging middleware, permissive CORS allowing
// every origin (the system is closed and single-host, so permissive is safe), POST
// /mcp bound to dispatcher.ServeMCP, and GET /health / GET /status.
// cache is optional: when non-nil (the League Manager role, which alone
// holds a Redis connection) requests are additionally rate-limited.
// healthCheck is optional: when non-nil it is consulted by GET /health so
// a liveness probe actually observes backing-store health rather than
// just process liveness (only the League Manager role, which alone owns
// storage, has one to give).
func NewServer(cfg *config.Config, role string, dispatcher *Dispatcher, statusHandler gin.HandlerFunc, cache *services.CacheService, logger *log.Logger, healthCheck func(context.Context) error) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	drain := middleware.NewDrainGate()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.RequestID())
	router.Use(drain.Middleware())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"POST", "GET"},
		AllowHeaders:    []string{"Origin", "Content-Type", "X-Request-ID"},
	}))
	if cache != nil {
		router.Use(middleware.RateLimiter(cache))
	}

	router.POST("/mcp", dispatcher.ServeMCP)
	router.GET("/health", healthHandler(role, healthCheck))
	router.GET("/status", statusHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{router: router, http: httpServer, logger: logger, drain: drain}
}

func healthHandler(role string, healthCheck func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if healthCheck != nil {
			if err := healthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "role": role, "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "role": role})
	}
}

// Start begins listening for HTTP requests; it blocks until Shutdown
// closes the listener, at which point it returns http.ErrServerClosed.
func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

// Shutdown drains in-progress requests within ctx's deadline so
// in-progress matches get to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Println("shutting down transport server...")
	s.drain.BeginDraining()
	return s.http.Shutdown(ctx)
}
