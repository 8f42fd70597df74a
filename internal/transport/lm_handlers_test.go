package transport

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"league-coordinator/internal/auth"
	"league-coordinator/internal/config"
	"league-coordinator/internal/database"
	"league-coordinator/internal/models"
	"league-coordinator/internal/protocol"
	"league-coordinator/internal/repositories"
	"league-coordinator/internal/services"
)

// fakeLocker is an in-memory stand-in for the assigner's Redis lock,
// satisfying services' unexported refereeLocker interface structurally.
type fakeLocker struct {
	mu     sync.Mutex
	locked map[string]bool
}

func newFakeLocker() *fakeLocker { return &fakeLocker{locked: make(map[string]bool)} }

func (f *fakeLocker) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked[key] {
		return false, nil
	}
	f.locked[key] = true
	return true, nil
}

func (f *fakeLocker) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locked, key)
	return nil
}

// fakeDispatcher always accepts a match assignment, satisfying
// services.Dispatcher.
type fakeDispatcher struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeDispatcher) SendMatchAssignment(ctx context.Context, refereeID string, match *models.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, refereeID+":"+match.ID)
	return nil
}

func newTestServiceContainer(t *testing.T, cfg *config.Config) (*services.Container, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	repos := repositories.NewContainer(&database.Connections{MySQL: db})
	authMgr := auth.NewManager(repos.Agent)
	logger := log.New(os.Stderr, "", 0)

	standings := services.NewStandingsService(repos, nil, cfg, logger)
	assigner := services.NewAssignerService(repos, &fakeDispatcher{}, newFakeLocker(), cfg, logger)
	league := services.NewLeagueService(repos, authMgr, assigner, cfg, logger)
	result := services.NewResultService(repos, standings, league, logger)

	svc := &services.Container{
		Repos:     repos,
		Auth:      authMgr,
		Standings: standings,
		Assigner:  assigner,
		League:    league,
		Result:    result,
	}
	return svc, mock, func() { db.Close() }
}

func reqWithPayload(t *testing.T, payload interface{}) *protocol.Request {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &protocol.Request{Params: protocol.Params{Payload: raw}}
}

func envelopeFor(sender, authToken, leagueID string) *protocol.Envelope {
	return &protocol.Envelope{
		Protocol: protocol.ProtocolVersion, Sender: sender, AuthToken: authToken, LeagueID: leagueID,
	}
}

func leagueRowsRegistration(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"league_id", "status", "created_at", "config"}).
		AddRow("league-1", models.LeagueRegistration, now, []byte("{}"))
}

func agentRow(agentID string, agentType models.AgentType, token string, status models.AgentStatus, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"agent_id", "agent_type", "league_id", "auth_token", "status", "callback_url", "registered_at"}).
		AddRow(agentID, agentType, "league-1", token, status, "http://"+agentID, now)
}

var matchCols = []string{"match_id", "round_id", "league_id", "referee_id", "game_type", "players", "status", "assigned_at"}

func emptyAgentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"agent_id", "agent_type", "league_id", "auth_token", "status", "callback_url", "registered_at"})
}

// TestRegisterPlayerBeforeRefereeIsRejected covers scenario 6: a player
// may not register before any referee has registered for the league.
func TestRegisterPlayerBeforeRefereeIsRejected(t *testing.T) {
	svc, mock, closeDB := newTestServiceContainer(t, defaultTestCfg())
	defer closeDB()

	// EnsureLeague finds the league already open for registration.
	mock.ExpectQuery("SELECT league_id, status, created_at, config FROM leagues").
		WithArgs("league-1").WillReturnRows(leagueRowsRegistration(time.Now().UTC()))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM agents WHERE league_id = \\? AND agent_type = \\?").
		WithArgs("league-1", models.AgentReferee).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	handlers := NewLeagueManagerHandlers(svc)
	req := reqWithPayload(t, RegisterRequestPayload{PlayerID: "p1", CallbackURL: "http://p1"})
	env := envelopeFor("player:p1", "", "league-1")

	_, err := handlers[protocol.MsgRegisterPlayerRequest](context.Background(), req, env)
	if err == nil {
		t.Fatal("expected registration to be rejected with zero referees registered")
	}
}

func defaultTestCfg() *config.Config {
	return &config.Config{
		Registration: config.RegistrationConfig{MinPlayers: 2, MinReferees: 1},
		Scheduling:   config.SchedulingConfig{ConcurrentMatchesPerRound: true},
	}
}

// TestTwoPlayerLeagueLifecycle exercises scenario 1 (the minimum viable
// league: one referee, two players) end to end through the handler
// layer: register referee, register two players, mark all three ready,
// then start the league and confirm it reaches ACTIVE.
func TestTwoPlayerLeagueLifecycle(t *testing.T) {
	cfg := defaultTestCfg()
	svc, mock, closeDB := newTestServiceContainer(t, cfg)
	defer closeDB()
	handlers := NewLeagueManagerHandlers(svc)
	now := time.Now().UTC()

	// --- register referee r1: EnsureLeague creates the league, then register() ---
	mock.ExpectQuery("SELECT league_id, status, created_at, config FROM leagues").
		WithArgs("league-1").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO leagues").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE leagues SET status").
		WithArgs(models.LeagueRegistration, "league-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT league_id, status, created_at, config FROM leagues").
		WithArgs("league-1").WillReturnRows(leagueRowsRegistration(now))
	mock.ExpectQuery("SELECT agent_id, agent_type, league_id, auth_token, status, callback_url, registered_at FROM agents WHERE league_id = \\? AND agent_type = \\? AND agent_id = \\?").
		WithArgs("league-1", models.AgentReferee, "r1").WillReturnRows(emptyAgentRows())
	mock.ExpectQuery("SELECT agent_id, agent_type, league_id, auth_token, status, callback_url, registered_at FROM agents WHERE league_id = \\? AND agent_type = \\? AND agent_id = \\?").
		WithArgs("league-1", models.AgentReferee, "r1").WillReturnRows(emptyAgentRows())
	mock.ExpectExec("INSERT INTO agents").WillReturnResult(sqlmock.NewResult(1, 1))

	refReq := reqWithPayload(t, RegisterRequestPayload{RefereeID: "r1", CallbackURL: "http://r1"})
	refEnv := envelopeFor("referee:r1", "", "league-1")
	refResp, err := handlers[protocol.MsgRegisterRefereeRequest](context.Background(), refReq, refEnv)
	if err != nil {
		t.Fatalf("register referee: %v", err)
	}
	refToken := refResp.(RegisterResponsePayload).AuthToken

	// --- register player p1: league already exists (EnsureLeague no-op) ---
	mock.ExpectQuery("SELECT league_id, status, created_at, config FROM leagues").
		WithArgs("league-1").WillReturnRows(leagueRowsRegistration(now))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM agents WHERE league_id = \\? AND agent_type = \\?").
		WithArgs("league-1", models.AgentReferee).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT league_id, status, created_at, config FROM leagues").
		WithArgs("league-1").WillReturnRows(leagueRowsRegistration(now))
	mock.ExpectQuery("SELECT agent_id, agent_type, league_id, auth_token, status, callback_url, registered_at FROM agents WHERE league_id = \\? AND agent_type = \\? AND agent_id = \\?").
		WithArgs("league-1", models.AgentPlayer, "p1").WillReturnRows(emptyAgentRows())
	mock.ExpectQuery("SELECT agent_id, agent_type, league_id, auth_token, status, callback_url, registered_at FROM agents WHERE league_id = \\? AND agent_type = \\? AND agent_id = \\?").
		WithArgs("league-1", models.AgentPlayer, "p1").WillReturnRows(emptyAgentRows())
	mock.ExpectExec("INSERT INTO agents").WillReturnResult(sqlmock.NewResult(1, 1))

	p1Req := reqWithPayload(t, RegisterRequestPayload{PlayerID: "p1", CallbackURL: "http://p1"})
	p1Env := envelopeFor("player:p1", "", "league-1")
	p1Resp, err := handlers[protocol.MsgRegisterPlayerRequest](context.Background(), p1Req, p1Env)
	if err != nil {
		t.Fatalf("register player p1: %v", err)
	}
	p1Token := p1Resp.(RegisterResponsePayload).AuthToken

	// --- register player p2 ---
	mock.ExpectQuery("SELECT league_id, status, created_at, config FROM leagues").
		WithArgs("league-1").WillReturnRows(leagueRowsRegistration(now))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM agents WHERE league_id = \\? AND agent_type = \\?").
		WithArgs("league-1", models.AgentReferee).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT league_id, status, created_at, config FROM leagues").
		WithArgs("league-1").WillReturnRows(leagueRowsRegistration(now))
	mock.ExpectQuery("SELECT agent_id, agent_type, league_id, auth_token, status, callback_url, registered_at FROM agents WHERE league_id = \\? AND agent_type = \\? AND agent_id = \\?").
		WithArgs("league-1", models.AgentPlayer, "p2").WillReturnRows(emptyAgentRows())
	mock.ExpectQuery("SELECT agent_id, agent_type, league_id, auth_token, status, callback_url, registered_at FROM agents WHERE league_id = \\? AND agent_type = \\? AND agent_id = \\?").
		WithArgs("league-1", models.AgentPlayer, "p2").WillReturnRows(emptyAgentRows())
	mock.ExpectExec("INSERT INTO agents").WillReturnResult(sqlmock.NewResult(1, 1))

	p2Req := reqWithPayload(t, RegisterRequestPayload{PlayerID: "p2", CallbackURL: "http://p2"})
	p2Env := envelopeFor("player:p2", "", "league-1")
	p2Resp, err := handlers[protocol.MsgRegisterPlayerRequest](context.Background(), p2Req, p2Env)
	if err != nil {
		t.Fatalf("register player p2: %v", err)
	}
	p2Token := p2Resp.(RegisterResponsePayload).AuthToken

	// --- agent_ready for all three ---
	for _, agent := range []struct {
		id, token string
		typ       models.AgentType
	}{
		{"r1", refToken, models.AgentReferee},
		{"p1", p1Token, models.AgentPlayer},
		{"p2", p2Token, models.AgentPlayer},
	} {
		mock.ExpectQuery("SELECT agent_id, agent_type, league_id, auth_token, status, callback_url, registered_at FROM agents WHERE auth_token").
			WithArgs(agent.token).
			WillReturnRows(agentRow(agent.id, agent.typ, agent.token, models.AgentRegistered, now))
		mock.ExpectQuery("SELECT agent_id, agent_type, league_id, auth_token, status, callback_url, registered_at FROM agents WHERE league_id = \\? AND agent_type = \\? AND agent_id = \\?").
			WithArgs("league-1", agent.typ, agent.id).
			WillReturnRows(agentRow(agent.id, agent.typ, agent.token, models.AgentRegistered, now))
		mock.ExpectExec("UPDATE agents SET status").
			WithArgs(models.AgentActive, "league-1", agent.typ, agent.id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		sender := string(agent.typ) + ":" + agent.id
		readyReq := reqWithPayload(t, struct{}{})
		readyEnv := envelopeFor(sender, agent.token, "league-1")
		if _, err := handlers[protocol.MsgAgentReadyRequest](context.Background(), readyReq, readyEnv); err != nil {
			t.Fatalf("agent_ready for %s: %v", agent.id, err)
		}
	}

	// --- admin_start_league: preconditions checked first, then the
	// REGISTRATION -> SCHEDULING transition, then the schedule commit ---
	mock.ExpectQuery("SELECT league_id, status, created_at, config FROM leagues").
		WithArgs("league-1").WillReturnRows(leagueRowsRegistration(now))
	mock.ExpectQuery("SELECT agent_id FROM agents WHERE league_id = \\? AND agent_type = \\? AND status = \\?").
		WithArgs("league-1", models.AgentPlayer, models.AgentActive).
		WillReturnRows(sqlmock.NewRows([]string{"agent_id"}).AddRow("p1").AddRow("p2"))
	mock.ExpectQuery("SELECT agent_id FROM agents WHERE league_id = \\? AND agent_type = \\? AND status = \\?").
		WithArgs("league-1", models.AgentReferee, models.AgentActive).
		WillReturnRows(sqlmock.NewRows([]string{"agent_id"}).AddRow("r1"))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM agents WHERE league_id = \\? AND agent_type = \\?").
		WithArgs("league-1", models.AgentReferee).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM agents WHERE league_id = \\? AND agent_type = \\?").
		WithArgs("league-1", models.AgentPlayer).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec("UPDATE leagues SET status").
		WithArgs(models.LeagueScheduling, "league-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO rounds").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO matches").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE leagues SET status").
		WithArgs(models.LeagueActive, "league-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT match_id, round_id, league_id, referee_id, game_type, players, status, assigned_at FROM matches WHERE round_id = \\? AND status").
		WillReturnRows(sqlmock.NewRows(matchCols).
			AddRow("fixture-match-1", "fixture-round-1", "league-1", nil, "tictactoe", []byte(`["p1","p2"]`), models.MatchPending, nil))
	mock.ExpectQuery("SELECT agent_id FROM agents WHERE league_id = \\? AND agent_type = \\? AND status = \\?").
		WithArgs("league-1", models.AgentReferee, models.AgentActive).
		WillReturnRows(sqlmock.NewRows([]string{"agent_id"}).AddRow("r1"))
	mock.ExpectExec("UPDATE matches SET referee_id = \\?, status = \\?, assigned_at = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE rounds SET status = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))

	startReq := reqWithPayload(t, AdminStartLeagueRequestPayload{})
	startEnv := envelopeFor("league_manager", "", "league-1")
	startResp, err := handlers[protocol.MsgAdminStartLeagueRequest](context.Background(), startReq, startEnv)
	if err != nil {
		t.Fatalf("admin_start_league: %v", err)
	}
	if startResp.(AdminStartLeagueResponsePayload).LeagueStatus != string(models.LeagueActive) {
		t.Fatalf("league status = %+v, want ACTIVE", startResp)
	}
}
