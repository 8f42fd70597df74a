package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"league-coordinator/internal/config"
	"league-coordinator/internal/database"
	"league-coordinator/internal/models"
	"league-coordinator/internal/repositories"
)

// fakeLocker is an in-memory refereeLocker, letting assigner tests exercise
// claim/release without a live Redis connection.
type fakeLocker struct {
	mu     sync.Mutex
	locked map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locked: make(map[string]bool)}
}

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

// fakeDispatcher records every match assignment sent to a referee.
type fakeDispatcher struct {
	mu       sync.Mutex
	sent     []string
	failFor  string
}

func (f *fakeDispatcher) SendMatchAssignment(ctx context.Context, refereeID string, match *models.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if refereeID == f.failFor {
		return fmt.Errorf("referee %s rejected assignment", refereeID)
	}
	f.sent = append(f.sent, refereeID+":"+match.ID)
	return nil
}

func testAssignerService(t *testing.T, cfg *config.Config, dispatcher Dispatcher, locker refereeLocker) (*AssignerService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	repos := repositories.NewContainer(&database.Connections{MySQL: db})
	logger := log.New(os.Stderr, "", 0)
	svc := NewAssignerService(repos, dispatcher, locker, cfg, logger)
	return svc, mock, func() { db.Close() }
}

func concurrentCfg(concurrent bool) *config.Config {
	return &config.Config{Scheduling: config.SchedulingConfig{ConcurrentMatchesPerRound: concurrent}}
}

func TestAssignerServiceAssignsIdleReferee(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	locker := newFakeLocker()
	svc, mock, closeDB := testAssignerService(t, concurrentCfg(true), dispatcher, locker)
	defer closeDB()

	matchCols := []string{"match_id", "round_id", "league_id", "referee_id", "game_type", "players", "status", "assigned_at"}
	mock.ExpectQuery("SELECT match_id, round_id, league_id, referee_id, game_type, players, status, assigned_at FROM matches WHERE round_id = \\? AND status").
		WithArgs("round-1", models.MatchPending).
		WillReturnRows(sqlmock.NewRows(matchCols).
			AddRow("match-1", "round-1", "league-1", nil, "tic-tac-toe", []byte(`["p1","p2"]`), models.MatchPending, nil))
	mock.ExpectQuery("SELECT agent_id FROM agents WHERE league_id = \\? AND agent_type = \\? AND status = \\?").
		WithArgs("league-1", models.AgentReferee, models.AgentActive).
		WillReturnRows(sqlmock.NewRows([]string{"agent_id"}).AddRow("r1"))
	mock.ExpectExec("UPDATE matches SET referee_id = \\?, status = \\?, assigned_at = \\?").
		WithArgs("r1", models.MatchAssigned, sqlmock.AnyArg(), "match-1", models.MatchPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE rounds SET status = \\?").
		WithArgs(models.RoundActive, "round-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := svc.AssignRound(context.Background(), "league-1", "round-1"); err != nil {
		t.Fatalf("AssignRound: %v", err)
	}
	if len(dispatcher.sent) != 1 || dispatcher.sent[0] != "r1:match-1" {
		t.Fatalf("dispatcher.sent = %v", dispatcher.sent)
	}
	if !locker.locked["referee_lock:r1"] {
		t.Fatal("expected referee r1 to remain locked after a successful assignment")
	}
}

func TestAssignerServiceSkipsAlreadyBusyReferee(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	locker := newFakeLocker()
	locker.locked["referee_lock:r1"] = true // r1 already has a match in flight
	svc, mock, closeDB := testAssignerService(t, concurrentCfg(true), dispatcher, locker)
	defer closeDB()

	matchCols := []string{"match_id", "round_id", "league_id", "referee_id", "game_type", "players", "status", "assigned_at"}
	mock.ExpectQuery("SELECT match_id, round_id, league_id, referee_id, game_type, players, status, assigned_at FROM matches WHERE round_id = \\? AND status").
		WithArgs("round-1", models.MatchPending).
		WillReturnRows(sqlmock.NewRows(matchCols).
			AddRow("match-1", "round-1", "league-1", nil, "tic-tac-toe", []byte(`["p1","p2"]`), models.MatchPending, nil))
	mock.ExpectQuery("SELECT agent_id FROM agents WHERE league_id = \\? AND agent_type = \\? AND status = \\?").
		WithArgs("league-1", models.AgentReferee, models.AgentActive).
		WillReturnRows(sqlmock.NewRows([]string{"agent_id"}).AddRow("r1"))

	if err := svc.AssignRound(context.Background(), "league-1", "round-1"); err != nil {
		t.Fatalf("AssignRound: %v", err)
	}
	if len(dispatcher.sent) != 0 {
		t.Fatalf("expected no assignment while the only referee is busy, got %v", dispatcher.sent)
	}
}

func TestAssignerServiceStopsAfterFirstWhenNotConcurrent(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	locker := newFakeLocker()
	svc, mock, closeDB := testAssignerService(t, concurrentCfg(false), dispatcher, locker)
	defer closeDB()

	matchCols := []string{"match_id", "round_id", "league_id", "referee_id", "game_type", "players", "status", "assigned_at"}
	mock.ExpectQuery("SELECT match_id, round_id, league_id, referee_id, game_type, players, status, assigned_at FROM matches WHERE round_id = \\? AND status").
		WithArgs("round-1", models.MatchPending).
		WillReturnRows(sqlmock.NewRows(matchCols).
			AddRow("match-1", "round-1", "league-1", nil, "tic-tac-toe", []byte(`["p1","p2"]`), models.MatchPending, nil).
			AddRow("match-2", "round-1", "league-1", nil, "tic-tac-toe", []byte(`["p3","p4"]`), models.MatchPending, nil))
	mock.ExpectQuery("SELECT agent_id FROM agents WHERE league_id = \\? AND agent_type = \\? AND status = \\?").
		WithArgs("league-1", models.AgentReferee, models.AgentActive).
		WillReturnRows(sqlmock.NewRows([]string{"agent_id"}).AddRow("r1"))
	mock.ExpectExec("UPDATE matches SET referee_id = \\?, status = \\?, assigned_at = \\?").
		WithArgs("r1", models.MatchAssigned, sqlmock.AnyArg(), "match-1", models.MatchPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE rounds SET status = \\?").
		WithArgs(models.RoundActive, "round-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := svc.AssignRound(context.Background(), "league-1", "round-1"); err != nil {
		t.Fatalf("AssignRound: %v", err)
	}
	if len(dispatcher.sent) != 1 {
		t.Fatalf("expected exactly one assignment in non-concurrent mode, got %v", dispatcher.sent)
	}
}

func TestAssignerServiceReleaseFreesTheLock(t *testing.T) {
	locker := newFakeLocker()
	locker.locked["referee_lock:r1"] = true
	svc, _, closeDB := testAssignerService(t, concurrentCfg(true), &fakeDispatcher{}, locker)
	defer closeDB()

	svc.Release(context.Background(), "r1")

	if locker.locked["referee_lock:r1"] {
		t.Fatal("expected Release to clear the referee's lock")
	}
}
