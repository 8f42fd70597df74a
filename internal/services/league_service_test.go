package services

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"league-coordinator/internal/auth"
	"league-coordinator/internal/config"
	"league-coordinator/internal/database"
	"league-coordinator/internal/models"
	"league-coordinator/internal/repositories"
)

func testLeagueService(t *testing.T, cfg *config.Config) (*LeagueService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	repos := repositories.NewContainer(&database.Connections{MySQL: db})
	authMgr := auth.NewManager(repos.Agent)
	logger := log.New(os.Stderr, "", 0)
	svc := NewLeagueService(repos, authMgr, nil, cfg, logger)
	return svc, mock, func() { db.Close() }
}

func defaultTestConfig() *config.Config {
	return &config.Config{
		Registration: config.RegistrationConfig{MinPlayers: 2, MinReferees: 1},
		Scheduling:   config.SchedulingConfig{ConcurrentMatchesPerRound: true},
	}
}

func TestLeagueServiceRegisterPlayerRequiresReferee(t *testing.T) {
	svc, mock, closeDB := testLeagueService(t, defaultTestConfig())
	defer closeDB()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM agents WHERE league_id = \\? AND agent_type = \\?").
		WithArgs("league-1", models.AgentReferee).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	if _, err := svc.RegisterPlayer(context.Background(), "league-1", "p1", "http://p1"); err == nil {
		t.Fatal("expected an error when no referee has registered yet")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLeagueServiceRegisterRefereeIsIdempotent(t *testing.T) {
	svc, mock, closeDB := testLeagueService(t, defaultTestConfig())
	defer closeDB()

	now := time.Now().UTC()
	leagueRow := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"league_id", "status", "created_at", "config"}).
			AddRow("league-1", models.LeagueRegistration, now, []byte("{}"))
	}
	agentCols := []string{"agent_id", "agent_type", "league_id", "auth_token", "status", "callback_url", "registered_at"}

	// First registration: league lookup, two not-found agent lookups
	// (register()'s own check, then auth.Issue's), then Create.
	mock.ExpectQuery("SELECT league_id, status, created_at, config FROM leagues").
		WithArgs("league-1").WillReturnRows(leagueRow())
	mock.ExpectQuery("SELECT agent_id, agent_type, league_id, auth_token, status, callback_url, registered_at FROM agents WHERE league_id = \\? AND agent_type = \\? AND agent_id = \\?").
		WithArgs("league-1", models.AgentReferee, "r1").
		WillReturnRows(sqlmock.NewRows(agentCols))
	mock.ExpectQuery("SELECT agent_id, agent_type, league_id, auth_token, status, callback_url, registered_at FROM agents WHERE league_id = \\? AND agent_type = \\? AND agent_id = \\?").
		WithArgs("league-1", models.AgentReferee, "r1").
		WillReturnRows(sqlmock.NewRows(agentCols))
	mock.ExpectExec("INSERT INTO agents").
		WillReturnResult(sqlmock.NewResult(1, 1))

	token1, err := svc.RegisterReferee(context.Background(), "league-1", "r1", "http://r1")
	if err != nil {
		t.Fatalf("first RegisterReferee: %v", err)
	}
	if token1 == "" {
		t.Fatal("expected a non-empty token")
	}

	// Second registration for the same referee: league lookup, then the
	// agent is now found so auth.Issue's in-memory fast path is hit and
	// no further agent query or Create happens.
	mock.ExpectQuery("SELECT league_id, status, created_at, config FROM leagues").
		WithArgs("league-1").WillReturnRows(leagueRow())
	mock.ExpectQuery("SELECT agent_id, agent_type, league_id, auth_token, status, callback_url, registered_at FROM agents WHERE league_id = \\? AND agent_type = \\? AND agent_id = \\?").
		WithArgs("league-1", models.AgentReferee, "r1").
		WillReturnRows(sqlmock.NewRows(agentCols).AddRow("r1", models.AgentReferee, "league-1", token1, models.AgentRegistered, "http://r1", now))

	token2, err := svc.RegisterReferee(context.Background(), "league-1", "r1", "http://r1")
	if err != nil {
		t.Fatalf("second RegisterReferee: %v", err)
	}
	if token2 != token1 {
		t.Fatalf("expected idempotent token, got %q then %q", token1, token2)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLeagueServiceStartLeagueRespectsConfiguredMinimums(t *testing.T) {
	cfg := &config.Config{
		Registration: config.RegistrationConfig{MinPlayers: 5, MinReferees: 2},
		Scheduling:   config.SchedulingConfig{ConcurrentMatchesPerRound: true},
	}
	svc, mock, closeDB := testLeagueService(t, cfg)
	defer closeDB()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT league_id, status, created_at, config FROM leagues").
		WithArgs("league-1").
		WillReturnRows(sqlmock.NewRows([]string{"league_id", "status", "created_at", "config"}).
			AddRow("league-1", models.LeagueRegistration, now, []byte("{}")))
	mock.ExpectQuery("SELECT agent_id FROM agents WHERE league_id = \\? AND agent_type = \\? AND status = \\?").
		WithArgs("league-1", models.AgentPlayer, models.AgentActive).
		WillReturnRows(sqlmock.NewRows([]string{"agent_id"}).AddRow("p1").AddRow("p2"))
	mock.ExpectQuery("SELECT agent_id FROM agents WHERE league_id = \\? AND agent_type = \\? AND status = \\?").
		WithArgs("league-1", models.AgentReferee, models.AgentActive).
		WillReturnRows(sqlmock.NewRows([]string{"agent_id"}).AddRow("r1"))

	err := svc.StartLeague(context.Background(), "league-1", "tic-tac-toe")
	if err == nil {
		t.Fatal("expected StartLeague to reject a league below the configured minimums")
	}
	// the rejection must leave the league in REGISTRATION: no UPDATE was
	// expected, and none may have happened.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLeagueServiceStartLeagueRequiresAllAgentsActive(t *testing.T) {
	svc, mock, closeDB := testLeagueService(t, defaultTestConfig())
	defer closeDB()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT league_id, status, created_at, config FROM leagues").
		WithArgs("league-1").
		WillReturnRows(sqlmock.NewRows([]string{"league_id", "status", "created_at", "config"}).
			AddRow("league-1", models.LeagueRegistration, now, []byte("{}")))
	mock.ExpectQuery("SELECT agent_id FROM agents WHERE league_id = \\? AND agent_type = \\? AND status = \\?").
		WithArgs("league-1", models.AgentPlayer, models.AgentActive).
		WillReturnRows(sqlmock.NewRows([]string{"agent_id"}).AddRow("p1").AddRow("p2"))
	mock.ExpectQuery("SELECT agent_id FROM agents WHERE league_id = \\? AND agent_type = \\? AND status = \\?").
		WithArgs("league-1", models.AgentReferee, models.AgentActive).
		WillReturnRows(sqlmock.NewRows([]string{"agent_id"}).AddRow("r1"))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM agents WHERE league_id = \\? AND agent_type = \\?").
		WithArgs("league-1", models.AgentReferee).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	// a third player registered but never sent AGENT_READY_REQUEST
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM agents WHERE league_id = \\? AND agent_type = \\?").
		WithArgs("league-1", models.AgentPlayer).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	err := svc.StartLeague(context.Background(), "league-1", "tic-tac-toe")
	if err == nil {
		t.Fatal("expected StartLeague to reject a league with an agent still in REGISTERED")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLeagueServiceRegisterRefusedAfterRegistrationCloses(t *testing.T) {
	svc, mock, closeDB := testLeagueService(t, defaultTestConfig())
	defer closeDB()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT league_id, status, created_at, config FROM leagues").
		WithArgs("league-1").
		WillReturnRows(sqlmock.NewRows([]string{"league_id", "status", "created_at", "config"}).
			AddRow("league-1", models.LeagueActive, now, []byte("{}")))

	if _, err := svc.RegisterReferee(context.Background(), "league-1", "r1", "http://r1"); err == nil {
		t.Fatal("expected registration to be refused once the league has left REGISTRATION")
	}
}
