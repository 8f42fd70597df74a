// Command player runs the Player role process: a standalone agent that
// registers with a League Manager, then answers GAME_INVITATION,
// REQUEST_MOVE, and GAME_OVER for whatever matches a referee assigns it
// to.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"league-coordinator/internal/config"
	"league-coordinator/internal/player/tictactoestrategy"
	"league-coordinator/internal/protocol"
	"league-coordinator/internal/transport"
)

func main() {
	logger := log.New(os.Stdout, "[player] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	playerID := os.Getenv("PLAYER_ID")
	if playerID == "" {
		logger.Fatal("PLAYER_ID is required")
	}
	leagueID := getEnvOrDefault("LEAGUE_ID", "default")
	lmBaseURL := os.Getenv("LEAGUE_MANAGER_URL")
	if lmBaseURL == "" {
		logger.Fatal("LEAGUE_MANAGER_URL is required")
	}
	selfURL := os.Getenv("SELF_CALLBACK_URL")
	if selfURL == "" {
		logger.Fatal("SELF_CALLBACK_URL is required")
	}

	client := transport.NewClient(cfg.Timeouts.MoveResponse(), cfg.Retries)

	// A deployment playing a different game_type would swap
	// tictactoestrategy for its own player.Strategy implementation.
	strategy := tictactoestrategy.New()
	runtime := transport.NewPlayerRuntime(playerID, leagueID, "", lmBaseURL, strategy, client, logger)

	dispatcher := &transport.Dispatcher{
		Role:     "player:" + playerID,
		Handlers: runtime.Handlers(),
		Resolver: transport.PermissiveResolver{},
		Logger:   logger,
	}

	server := transport.NewServer(cfg, "player", dispatcher, runtime.StatusHandler(), nil, logger, nil)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server: %v", err)
		}
	}()
	logger.Printf("player %s listening on :%s", playerID, cfg.Server.Port)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.RegistrationResponse()+5*time.Second)
	authToken, err := register(ctx, client, lmBaseURL, playerID, leagueID, selfURL)
	cancel()
	if err != nil {
		logger.Fatalf("registration: %v", err)
	}
	runtime.AuthToken = authToken
	logger.Printf("player %s registered with league %s", playerID, leagueID)

	readyCtx, readyCancel := context.WithTimeout(context.Background(), cfg.Timeouts.RegistrationResponse()+5*time.Second)
	if err := sendAgentReady(readyCtx, client, lmBaseURL, playerID, leagueID, authToken); err != nil {
		readyCancel()
		logger.Fatalf("agent_ready: %v", err)
	}
	readyCancel()
	runtime.SetActive(true)
	logger.Printf("player %s ready", playerID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("server shutdown: %v", err)
	}
}

func unmarshalResponse(resp *protocol.Response, dest interface{}) error {
	if len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, dest)
}

func register(ctx context.Context, client *transport.Client, lmBaseURL, playerID, leagueID, selfURL string) (string, error) {
	env := protocol.Envelope{
		Protocol:    protocol.ProtocolVersion,
		MessageType: protocol.MsgRegisterPlayerRequest,
		Sender:      "player:" + playerID,
		LeagueID:    leagueID,
	}
	resp, err := client.SendIdempotent(ctx, lmBaseURL, env, transport.RegisterRequestPayload{PlayerID: playerID, CallbackURL: selfURL})
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("league manager rejected registration: %s", resp.Error.Message)
	}
	var out transport.RegisterResponsePayload
	if err := unmarshalResponse(resp, &out); err != nil {
		return "", err
	}
	return out.AuthToken, nil
}

func sendAgentReady(ctx context.Context, client *transport.Client, lmBaseURL, playerID, leagueID, authToken string) error {
	env := protocol.Envelope{
		Protocol:    protocol.ProtocolVersion,
		MessageType: protocol.MsgAgentReadyRequest,
		Sender:      "player:" + playerID,
		AuthToken:   authToken,
		LeagueID:    leagueID,
	}
	resp, err := client.SendIdempotent(ctx, lmBaseURL, env, struct{}{})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("league manager rejected agent_ready: %s", resp.Error.Message)
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
