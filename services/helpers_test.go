package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"live-fixture-service/database"
	"live-fixture-service/models"
	"live-fixture-service/pkg/clock"
	"live-fixture-service/pkg/common"
	"live-fixture-service/services"
)

var kickoff = time.Date(2026, 5, 2, 15, 0, 0, 0, time.UTC)

var errStoreDown = errors.New("store unavailable")

func newFixture(t *testing.T, store *database.MemoryStore, id string) {
	t.Helper()
	err := store.CreateFixture(context.Background(), &models.Fixture{
		ID:       id,
		HomeTeam: "lions",
		AwayTeam: "tigers",
	})
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
}

func strPtr(s string) *string { return &s }

func mustFixture(t *testing.T, store services.FixtureStore, id string) *models.Fixture {
	t.Helper()
	f, err := store.GetFixture(context.Background(), id)
	if err != nil {
		t.Fatalf("get fixture %s: %v", id, err)
	}
	return f
}

func statOf(t *testing.T, store services.StatStore, playerID string) models.PlayerSeasonStat {
	t.Helper()
	stat, err := store.GetPlayerStat(context.Background(), playerID)
	if errors.Is(err, common.ErrNotFound) {
		return models.PlayerSeasonStat{PlayerID: playerID}
	}
	if err != nil {
		t.Fatalf("get stat %s: %v", playerID, err)
	}
	return *stat
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", code)
	}
	if got := common.CodeOf(err); got != code {
		t.Fatalf("Expected %s error, got %s (%v)", code, got, err)
	}
}

// recordingSink 记录收到的快照
type recordingSink struct {
	mu        sync.Mutex
	snapshots []*models.Snapshot
	err       error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) PublishSnapshot(_ context.Context, snapshot *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshot)
	return s.err
}

func (s *recordingSink) last() *models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots) == 0 {
		return nil
	}
	return s.snapshots[len(s.snapshots)-1]
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

type recordingAlerter struct {
	mu       sync.Mutex
	partials []string
	errors   []string
}

func (a *recordingAlerter) AlertPartialFailure(fixtureID, action string, err error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.partials = append(a.partials, fixtureID+":"+action)
	return nil
}

func (a *recordingAlerter) AlertError(component, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors = append(a.errors, component)
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	keys     []string
	messages []interface{}
	err      error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, routingKey string, v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, routingKey)
	p.messages = append(p.messages, v)
	return nil
}

type harness struct {
	store      *database.MemoryStore
	clock      *clock.Manual
	sink       *recordingSink
	alerter    *recordingAlerter
	controller *services.LiveMatchController
}

func newHarness(t *testing.T, opts ...services.ControllerOption) *harness {
	t.Helper()
	h := &harness{
		store:   database.NewMemoryStore(),
		clock:   clock.NewManual(kickoff),
		sink:    &recordingSink{},
		alerter: &recordingAlerter{},
	}
	newFixture(t, h.store, "fx-1")

	base := []services.ControllerOption{
		services.WithClock(h.clock),
		services.WithSinks(h.sink),
		services.WithAlerter(h.alerter),
		services.WithLogger(common.NopLogger{}),
	}
	h.controller = services.NewLiveMatchController(h.store, append(base, opts...)...)
	return h
}
