package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"live-fixture-service/database"
	"live-fixture-service/models"
	"live-fixture-service/pkg/clock"
	"live-fixture-service/pkg/common"
	"live-fixture-service/services"
)

var (
	_ services.Store        = (*database.SQLStore)(nil)
	_ services.Transactor   = (*database.SQLStore)(nil)
	_ services.RosterSource = (*database.SQLStore)(nil)
	_ services.Store        = (*database.MemoryStore)(nil)
	_ services.RosterSource = (*database.MemoryStore)(nil)
)

func openStore(t *testing.T) *database.SQLStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.db")
	db, err := database.Connect(database.DialectSQLite, "file:"+path)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db, database.DialectSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := database.NewSQLStore(db, database.DialectSQLite)
	if err := store.CreateFixture(context.Background(), &models.Fixture{
		ID:          "fx-1",
		HomeTeam:    "lions",
		AwayTeam:    "tigers",
		Competition: "league",
	}); err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	return store
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	db, err := database.Connect(database.DialectSQLite, "file:"+path)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	for i := 0; i < 2; i++ {
		if err := database.Migrate(db, database.DialectSQLite); err != nil {
			t.Fatalf("migrate run %d: %v", i+1, err)
		}
	}
}

func TestRebind(t *testing.T) {
	got := database.DialectPostgres.Rebind("UPDATE t SET a = ? WHERE b = ? AND c = '?'")
	want := "UPDATE t SET a = $1 WHERE b = $2 AND c = '?'"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if database.DialectSQLite.Rebind("a = ?") != "a = ?" {
		t.Error("Expected sqlite query unchanged")
	}
}

func TestSQLStoreFixtureRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	since := time.Date(2026, 5, 2, 15, 0, 0, 0, time.UTC)
	err := store.SaveClockState(ctx, "fx-1", models.ClockState{
		Status:          models.StatusLive,
		ClockCheckpoint: 600,
		RunningSince:    &since,
	})
	if err != nil {
		t.Fatalf("save clock: %v", err)
	}

	f, err := store.GetFixture(ctx, "fx-1")
	if err != nil {
		t.Fatalf("get fixture: %v", err)
	}
	if f.Status != models.StatusLive || f.ClockCheckpoint != 600 || f.RunningSince == nil || !f.RunningSince.Equal(since) {
		t.Errorf("Unexpected clock state %+v", f.ClockState())
	}
	if f.Competition != "league" {
		t.Errorf("Expected metadata preserved, got %q", f.Competition)
	}

	_, err = store.GetFixture(ctx, "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.SaveClockState(ctx, "missing", models.ClockState{Status: models.StatusLive}); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound saving unknown fixture, got %v", err)
	}
}

func TestSQLStoreScoreFloorsAtZero(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	score, err := store.AdjustScore(ctx, "fx-1", models.TeamAway, 2)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if score.Away != 2 || score.Home != 0 {
		t.Errorf("Expected 0-2, got %+v", score)
	}

	score, err = store.AdjustScore(ctx, "fx-1", models.TeamAway, -5)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if score.Away != 0 {
		t.Errorf("Expected away floored at 0, got %d", score.Away)
	}

	if err := store.SetScoreDiverged(ctx, "fx-1", true); err != nil {
		t.Fatalf("flag: %v", err)
	}
	f, _ := store.GetFixture(ctx, "fx-1")
	if !f.ScoreDiverged {
		t.Error("Expected diverged flag persisted")
	}
}

func TestSQLStoreEventsOrderedByMatchTime(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	inserts := []struct {
		id      string
		elapsed int
	}{
		{"e1", 900}, {"e2", 120}, {"e3", 120}, {"e4", 30},
	}
	for _, in := range inserts {
		err := store.InsertEvent(ctx, &models.MatchEvent{
			ID:             in.id,
			FixtureID:      "fx-1",
			Kind:           models.EventGoal,
			Team:           models.TeamHome,
			ElapsedSeconds: in.elapsed,
			Minute:         clock.Minute(in.elapsed),
		})
		if err != nil {
			t.Fatalf("insert %s: %v", in.id, err)
		}
	}

	events, err := store.ListEvents(ctx, "fx-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"e4", "e2", "e3", "e1"}
	for i, id := range want {
		if events[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, events[i].ID)
		}
	}

	if err := store.DeleteEvent(ctx, "fx-1", "e2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteEvent(ctx, "fx-1", "e2"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
	if _, err := store.GetEvent(ctx, "fx-1", "e2"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected deleted event gone, got %v", err)
	}
}

func TestSQLStorePlayerStats(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.GetPlayerStat(ctx, "p1"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("Expected no stat row yet, got %v", err)
	}

	store.AdjustPlayerStat(ctx, "p1", models.StatGoals, 1)
	store.AdjustPlayerStat(ctx, "p1", models.StatMinorCautions, 1)
	stat, err := store.AdjustPlayerStat(ctx, "p1", models.StatGoals, -3)
	if err != nil {
		t.Fatalf("adjust stat: %v", err)
	}
	if stat.Goals != 0 || stat.MinorCautions != 1 {
		t.Errorf("Unexpected stat %+v", stat)
	}
}

func TestSQLStoreRoster(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	store.UpsertPlayer(ctx, models.Player{ID: "p2", TeamID: "lions", Name: "Cy", ShirtNumber: 10})
	store.UpsertPlayer(ctx, models.Player{ID: "p1", TeamID: "lions", Name: "Ada", ShirtNumber: 1})
	store.UpsertPlayer(ctx, models.Player{ID: "p1", TeamID: "lions", Name: "Ada L.", ShirtNumber: 1})

	players, err := store.TeamPlayers(ctx, "lions")
	if err != nil {
		t.Fatalf("team players: %v", err)
	}
	if len(players) != 2 || players[0].Name != "Ada L." {
		t.Errorf("Unexpected roster %+v", players)
	}
	if _, err := store.GetPlayer(ctx, "nobody"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestWithinTxRollsBackBothSteps(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	boom := errors.New("second step failed")

	err := store.WithinTx(ctx, func(tx services.Store) error {
		if err := tx.InsertEvent(ctx, &models.MatchEvent{
			ID: "e1", FixtureID: "fx-1", Kind: models.EventGoal, Team: models.TeamHome,
		}); err != nil {
			return err
		}
		if _, err := tx.AdjustScore(ctx, "fx-1", models.TeamHome, 1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected tx error, got %v", err)
	}

	events, _ := store.ListEvents(ctx, "fx-1")
	if len(events) != 0 {
		t.Errorf("Expected event rolled back, got %d", len(events))
	}
	f, _ := store.GetFixture(ctx, "fx-1")
	if f.Score.Home != 0 {
		t.Errorf("Expected score rolled back, got %d", f.Score.Home)
	}
}

func TestControllerOverSQLStoreIsAtomic(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	manual := clock.NewManual(time.Date(2026, 5, 2, 15, 0, 0, 0, time.UTC))
	controller := services.NewLiveMatchController(store,
		services.WithClock(manual),
		services.WithLogger(common.NopLogger{}),
	)

	controller.Start(ctx, "fx-1")
	manual.Advance(3 * time.Minute)
	event, err := controller.RecordGoal(ctx, "fx-1", models.TeamAway, nil)
	if err != nil {
		t.Fatalf("record goal: %v", err)
	}
	if event.Minute != 3 || event.Seq == 0 {
		t.Errorf("Unexpected event %+v", event)
	}

	report, err := controller.CheckConsistency(ctx, "fx-1")
	if err != nil {
		t.Fatalf("consistency: %v", err)
	}
	if !report.Consistent || report.Stored.Away != 1 {
		t.Errorf("Expected consistent 0-1, got %+v", report)
	}

	if _, err := controller.CancelGoal(ctx, "fx-1", event.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	snapshot, err := controller.Snapshot(ctx, "fx-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.Fixture.Score.Away != 0 || len(snapshot.Events) != 0 || snapshot.ElapsedSeconds != 180 {
		t.Errorf("Unexpected snapshot %+v", snapshot)
	}
}
