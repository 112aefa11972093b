package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"live-fixture-service/models"
)

func TestNewClockTickRunning(t *testing.T) {
	since := kickoff
	f := models.Fixture{ID: "fx-1", Status: models.StatusLive, ClockCheckpoint: 2700, RunningSince: &since}

	tick := NewClockTick(f, kickoff.Add(65*time.Second))
	if tick.ElapsedSeconds != 2765 || tick.Clock != "46:05" || tick.Minute != 46 || tick.MinuteLabel != "46'" || !tick.Running {
		t.Errorf("Unexpected tick %+v", tick)
	}
}

func TestNewClockTickFinishedIgnoresTimestamp(t *testing.T) {
	since := kickoff
	f := models.Fixture{ID: "fx-1", Status: models.StatusFinished, ClockCheckpoint: 5400, RunningSince: &since}

	tick := NewClockTick(f, kickoff.Add(time.Hour))
	if tick.ElapsedSeconds != 5400 || tick.Running {
		t.Errorf("Unexpected tick %+v", tick)
	}
}

func TestHubSendsCachedSnapshotOnSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(time.Hour)
	go hub.Run(ctx)

	snap := &models.Snapshot{Fixture: models.Fixture{ID: "fx-1", Score: models.Score{Home: 2}}}
	if err := hub.PublishSnapshot(ctx, snap); err != nil {
		t.Fatalf("publish: %v", err)
	}

	server := &Server{wsHub: hub}
	ts := httptest.NewServer(http.HandlerFunc(server.handleWebSocket))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]interface{}{"type": "subscribe", "fixture_ids": []string{"fx-1"}}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type      string          `json:"type"`
		FixtureID string          `json:"fixture_id"`
		Data      models.Snapshot `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != MessageTypeFixture || msg.FixtureID != "fx-1" || msg.Data.Fixture.Score.Home != 2 {
		t.Errorf("Unexpected message %+v", msg)
	}
}

func TestShouldReceiveFilters(t *testing.T) {
	c := &Client{}
	if !c.shouldReceive("any") {
		t.Error("Expected unfiltered client to receive everything")
	}
	c.setFixtures([]string{"fx-1"})
	if c.shouldReceive("fx-2") || !c.shouldReceive("fx-1") {
		t.Error("Expected filter on fx-1 only")
	}
}

func TestMarshalMessage(t *testing.T) {
	raw := marshalMessage(&WSMessage{Type: MessageTypeClock, FixtureID: "fx-1"})
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["type"] != "clock" {
		t.Errorf("Expected clock, got %v", decoded["type"])
	}
}

func TestUnsubscribeStopsAllFixtures(t *testing.T) {
	c := &Client{}
	c.setFixtures([]string{"fx-1"})
	c.clearFixtures()
	if c.shouldReceive("fx-1") || c.shouldReceive("fx-other") {
		t.Error("Expected unsubscribed client to receive nothing")
	}
	if len(c.subscribed()) != 0 {
		t.Errorf("Expected no clock subscriptions, got %v", c.subscribed())
	}

	c.setFixtures([]string{"fx-2"})
	if !c.shouldReceive("fx-2") || c.shouldReceive("fx-1") {
		t.Error("Expected resubscribe to fx-2 only")
	}
}

func TestHubUnsubscribeMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(time.Hour)
	go hub.Run(ctx)

	c := &Client{hub: hub, send: make(chan []byte, 8), fixtureIDs: make(map[string]bool)}
	if !hub.registerClient(c) {
		t.Fatal("Expected register to succeed while hub is running")
	}
	c.handleMessage([]byte(`{"type":"subscribe","fixture_ids":["fx-1"]}`))
	c.handleMessage([]byte(`{"type":"unsubscribe"}`))

	// subscribe 通道无缓冲, 再发一次可确认上一条已被 Run 处理
	hub.subscribeClient(subscription{client: &Client{}})

	if c.shouldReceive("fx-other") || c.shouldReceive("fx-1") {
		t.Error("Expected client to receive nothing after unsubscribe")
	}
}

func TestHubStoppedDoesNotBlockClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(time.Hour)
	go hub.Run(ctx)

	c := &Client{hub: hub, send: make(chan []byte, 8), fixtureIDs: make(map[string]bool)}
	if !hub.registerClient(c) {
		t.Fatal("Expected register to succeed while hub is running")
	}

	cancel()
	select {
	case <-hub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Expected hub to stop after cancel")
	}
	if _, ok := <-c.send; ok {
		t.Error("Expected send channel closed on shutdown")
	}

	returned := make(chan struct{})
	go func() {
		hub.unregisterClient(c)
		c.handleMessage([]byte(`{"type":"subscribe","fixture_ids":["fx-1"]}`))
		if hub.registerClient(&Client{hub: hub, send: make(chan []byte, 1)}) {
			t.Error("Expected register to fail after shutdown")
		}
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected client calls to return once the hub stopped")
	}
}
