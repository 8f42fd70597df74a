// Command referee runs the Referee role process: a standalone, stateless
// match executor that registers with a League Manager, then waits for
// MATCH_ASSIGNMENT frames and drives each match to a reported result.
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
	"league-coordinator/internal/gameengine"
	"league-coordinator/internal/gameengine/tictactoe"
	"league-coordinator/internal/protocol"
	"league-coordinator/internal/transport"
)

// unmarshalResponse decodes a successful JSON-RPC response's result
// field; the transport client keeps the equivalent helper unexported
// since only role processes outside the transport package (this one)
// need it at the call site rather than inside a HandlerFunc.
func unmarshalResponse(resp *protocol.Response, dest interface{}) error {
	if len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, dest)
}

func main() {
	logger := log.New(os.Stdout, "[referee] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	refereeID := os.Getenv("REFEREE_ID")
	if refereeID == "" {
		logger.Fatal("REFEREE_ID is required")
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

	client := transport.NewClient(cfg.Timeouts.MatchJoinAck(), cfg.Retries)

	engines := gameengine.NewRegistry()
	engines.Register(tictactoe.GameType, tictactoe.New)

	runtime := transport.NewRefereeRuntime(refereeID, leagueID, "", lmBaseURL, client, logger)
	runtime.Bind(engines, cfg)

	dispatcher := &transport.Dispatcher{
		Role:     "referee:" + refereeID,
		Handlers: runtime.Handlers(),
		Resolver: transport.PermissiveResolver{},
		Logger:   logger,
	}

	server := transport.NewServer(cfg, "referee", dispatcher, runtime.StatusHandler(), nil, logger, nil)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server: %v", err)
		}
	}()
	logger.Printf("referee %s listening on :%s", refereeID, cfg.Server.Port)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.RegistrationResponse()+5*time.Second)
	authToken, err := register(ctx, client, lmBaseURL, refereeID, leagueID, selfURL)
	cancel()
	if err != nil {
		logger.Fatalf("registration: %v", err)
	}
	runtime.AuthToken = authToken
	logger.Printf("referee %s registered with league %s", refereeID, leagueID)

	readyCtx, readyCancel := context.WithTimeout(context.Background(), cfg.Timeouts.RegistrationResponse()+5*time.Second)
	if err := sendAgentReady(readyCtx, client, lmBaseURL, refereeID, leagueID, authToken); err != nil {
		readyCancel()
		logger.Fatalf("agent_ready: %v", err)
	}
	readyCancel()
	logger.Printf("referee %s ready", refereeID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("server shutdown: %v", err)
	}
}

func register(ctx context.Context, client *transport.Client, lmBaseURL, refereeID, leagueID, selfURL string) (string, error) {
	env := protocol.Envelope{
		Protocol:    protocol.ProtocolVersion,
		MessageType: protocol.MsgRegisterRefereeRequest,
		Sender:      "referee:" + refereeID,
		LeagueID:    leagueID,
	}
	resp, err := client.SendIdempotent(ctx, lmBaseURL, env, transport.RegisterRequestPayload{RefereeID: refereeID, CallbackURL: selfURL})
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

func sendAgentReady(ctx context.Context, client *transport.Client, lmBaseURL, refereeID, leagueID, authToken string) error {
	env := protocol.Envelope{
		Protocol:    protocol.ProtocolVersion,
		MessageType: protocol.MsgAgentReadyRequest,
		Sender:      "referee:" + refereeID,
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
