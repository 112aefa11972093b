package services_test

import (
	"context"
	"testing"
	"time"

	"live-fixture-service/database"
	"live-fixture-service/models"
	"live-fixture-service/pkg/clock"
	"live-fixture-service/pkg/common"
	"live-fixture-service/services"
)

func newMachine(t *testing.T) (*services.MatchStateMachine, *database.MemoryStore, *clock.Manual) {
	t.Helper()
	store := database.NewMemoryStore()
	newFixture(t, store, "fx-1")
	manual := clock.NewManual(kickoff)
	return services.NewMatchStateMachine(store, manual), store, manual
}

func TestStartPauseScenario(t *testing.T) {
	m, store, manual := newMachine(t)
	ctx := context.Background()

	f, err := m.Start(ctx, "fx-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if f.Status != models.StatusLive || f.RunningSince == nil {
		t.Fatalf("Expected live and running, got %s running=%v", f.Status, f.Running())
	}

	manual.Advance(125 * time.Second)
	stored := mustFixture(t, store, "fx-1")
	elapsed := clock.ElapsedNow(stored.ClockCheckpoint, stored.RunningSince, true, manual.Now())
	if elapsed != 125 {
		t.Fatalf("Expected 125 elapsed, got %d", elapsed)
	}
	if got := clock.Format(elapsed); got != "2:05" {
		t.Errorf("Expected 2:05, got %s", got)
	}

	if _, err := m.Pause(ctx, "fx-1"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	stored = mustFixture(t, store, "fx-1")
	if stored.ClockCheckpoint != 125 {
		t.Errorf("Expected checkpoint 125, got %d", stored.ClockCheckpoint)
	}
	if stored.RunningSince != nil {
		t.Errorf("Expected runningSince cleared")
	}
	if stored.Status != models.StatusLive {
		t.Errorf("Expected status live after pause, got %s", stored.Status)
	}
}

func TestPauseWhenPausedIsNoop(t *testing.T) {
	m, store, manual := newMachine(t)
	ctx := context.Background()

	m.Start(ctx, "fx-1")
	manual.Advance(40 * time.Second)
	m.Pause(ctx, "fx-1")
	before := mustFixture(t, store, "fx-1")

	manual.Advance(time.Minute)
	if _, err := m.Pause(ctx, "fx-1"); err != nil {
		t.Fatalf("Expected no error pausing twice, got %v", err)
	}
	after := mustFixture(t, store, "fx-1")
	if after.ClockCheckpoint != before.ClockCheckpoint || after.Status != before.Status || after.RunningSince != nil {
		t.Errorf("Expected no change, before=%+v after=%+v", before.ClockState(), after.ClockState())
	}
}

func TestEndWhileRunningFreezesClock(t *testing.T) {
	m, store, manual := newMachine(t)
	ctx := context.Background()

	since := kickoff
	store.SaveClockState(ctx, "fx-1", models.ClockState{
		Status:          models.StatusLive,
		ClockCheckpoint: 600,
		RunningSince:    &since,
	})
	manual.Advance(30 * time.Second)

	f, err := m.End(ctx, "fx-1")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if f.ClockCheckpoint != 630 {
		t.Errorf("Expected checkpoint 630, got %d", f.ClockCheckpoint)
	}
	if f.Status != models.StatusFinished {
		t.Errorf("Expected finished, got %s", f.Status)
	}
	if f.RunningSince != nil {
		t.Errorf("Expected runningSince cleared")
	}

	stored := mustFixture(t, store, "fx-1")
	if stored.ClockCheckpoint != 630 || stored.Status != models.StatusFinished {
		t.Errorf("Expected persisted 630/finished, got %d/%s", stored.ClockCheckpoint, stored.Status)
	}
}

func TestPauseStartPauseAccumulates(t *testing.T) {
	m, store, manual := newMachine(t)
	ctx := context.Background()

	m.Start(ctx, "fx-1")
	manual.Advance(45 * time.Second)
	m.Pause(ctx, "fx-1")
	manual.Advance(10 * time.Minute)
	m.Start(ctx, "fx-1")
	manual.Advance(20 * time.Second)
	m.Pause(ctx, "fx-1")

	if got := mustFixture(t, store, "fx-1").ClockCheckpoint; got != 65 {
		t.Errorf("Expected checkpoint 65, got %d", got)
	}
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("pause scheduled", func(t *testing.T) {
		m, _, _ := newMachine(t)
		_, err := m.Pause(ctx, "fx-1")
		expectCode(t, err, common.CodeInvalidTransition)
	})

	t.Run("end scheduled", func(t *testing.T) {
		m, _, _ := newMachine(t)
		_, err := m.End(ctx, "fx-1")
		expectCode(t, err, common.CodeInvalidTransition)
	})

	t.Run("start while running", func(t *testing.T) {
		m, _, _ := newMachine(t)
		m.Start(ctx, "fx-1")
		_, err := m.Start(ctx, "fx-1")
		expectCode(t, err, common.CodeInvalidTransition)
	})

	t.Run("end finished", func(t *testing.T) {
		m, _, _ := newMachine(t)
		m.Start(ctx, "fx-1")
		m.End(ctx, "fx-1")
		_, err := m.End(ctx, "fx-1")
		expectCode(t, err, common.CodeInvalidTransition)
	})

	t.Run("unknown fixture", func(t *testing.T) {
		m, _, _ := newMachine(t)
		_, err := m.Start(ctx, "missing")
		expectCode(t, err, common.CodeValidation)
	})
}

func TestReopenFinishedFixture(t *testing.T) {
	m, _, manual := newMachine(t)
	ctx := context.Background()

	m.Start(ctx, "fx-1")
	manual.Advance(90 * time.Minute)
	m.End(ctx, "fx-1")

	manual.Advance(5 * time.Minute)
	f, err := m.Start(ctx, "fx-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if f.Status != models.StatusLive || !f.Running() {
		t.Fatalf("Expected live and running after reopen, got %s", f.Status)
	}

	manual.Advance(10 * time.Second)
	if got := clock.ElapsedNow(f.ClockCheckpoint, f.RunningSince, true, manual.Now()); got != 90*60+10 {
		t.Errorf("Expected clock to resume from 5400, got %d", got)
	}
}

func TestAdjustCheckpoint(t *testing.T) {
	ctx := context.Background()

	t.Run("paused", func(t *testing.T) {
		m, _, manual := newMachine(t)
		m.Start(ctx, "fx-1")
		manual.Advance(100 * time.Second)
		m.Pause(ctx, "fx-1")

		f, err := m.AdjustCheckpoint(ctx, "fx-1", 30)
		if err != nil {
			t.Fatalf("adjust: %v", err)
		}
		if f.ClockCheckpoint != 130 || f.RunningSince != nil {
			t.Errorf("Expected 130 paused, got %d running=%v", f.ClockCheckpoint, f.Running())
		}
	})

	t.Run("running keeps running", func(t *testing.T) {
		m, _, manual := newMachine(t)
		m.Start(ctx, "fx-1")
		manual.Advance(100 * time.Second)

		f, err := m.AdjustCheckpoint(ctx, "fx-1", -40)
		if err != nil {
			t.Fatalf("adjust: %v", err)
		}
		if f.ClockCheckpoint != 60 {
			t.Errorf("Expected checkpoint 60, got %d", f.ClockCheckpoint)
		}
		if f.RunningSince == nil || !f.RunningSince.Equal(manual.Now()) {
			t.Errorf("Expected runningSince reset to now")
		}

		manual.Advance(5 * time.Second)
		if got := clock.ElapsedNow(f.ClockCheckpoint, f.RunningSince, true, manual.Now()); got != 65 {
			t.Errorf("Expected 65, got %d", got)
		}
	})

	t.Run("floors at zero", func(t *testing.T) {
		m, _, _ := newMachine(t)
		f, err := m.AdjustCheckpoint(ctx, "fx-1", -1000000)
		if err != nil {
			t.Fatalf("adjust: %v", err)
		}
		if f.ClockCheckpoint != 0 {
			t.Errorf("Expected 0, got %d", f.ClockCheckpoint)
		}
	})

	t.Run("zero delta rejected", func(t *testing.T) {
		m, _, _ := newMachine(t)
		_, err := m.AdjustCheckpoint(ctx, "fx-1", 0)
		expectCode(t, err, common.CodeValidation)
	})
}

func TestResetCheckpointRequiresConfirmation(t *testing.T) {
	m, store, manual := newMachine(t)
	ctx := context.Background()

	m.Start(ctx, "fx-1")
	manual.Advance(300 * time.Second)

	_, err := m.ResetCheckpoint(ctx, "fx-1", false)
	expectCode(t, err, common.CodeValidation)
	if stored := mustFixture(t, store, "fx-1"); stored.ClockCheckpoint != 0 || stored.RunningSince == nil || !stored.RunningSince.Equal(kickoff) {
		t.Fatalf("Expected unconfirmed reset to change nothing")
	}

	f, err := m.ResetCheckpoint(ctx, "fx-1", true)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if f.ClockCheckpoint != 0 || !f.RunningSince.Equal(manual.Now()) {
		t.Errorf("Expected clock restarted from zero at now")
	}
}

func TestPureTransitionsDoNotTouchStore(t *testing.T) {
	f := &models.Fixture{ID: "fx", Status: models.StatusScheduled}
	if err := services.StartClock(f, kickoff); err != nil {
		t.Fatalf("start: %v", err)
	}
	changed, err := services.PauseClock(f, kickoff.Add(59*time.Second+999*time.Millisecond))
	if err != nil || !changed {
		t.Fatalf("pause: changed=%v err=%v", changed, err)
	}
	if f.ClockCheckpoint != 59 {
		t.Errorf("Expected floor to 59, got %d", f.ClockCheckpoint)
	}
}
