package web

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"live-fixture-service/logger"
	"live-fixture-service/models"
	"live-fixture-service/pkg/clock"
)

// 消息类型
const (
	MessageTypeFixture = "fixture"
	MessageTypeClock   = "clock"
)

// ErrHubBusy 广播队列已满
var ErrHubBusy = errors.New("websocket hub broadcast queue full")

// WSMessage WebSocket消息结构
type WSMessage struct {
	Type      string      `json:"type"`
	FixtureID string      `json:"fixture_id,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// ClockTick 客户端本地计时推送, 由缓存的时钟状态在服务端现算
type ClockTick struct {
	Status         models.FixtureStatus `json:"status"`
	ElapsedSeconds int                  `json:"elapsed_seconds"`
	Clock          string               `json:"clock"`
	MinuteLabel    string               `json:"minute_label"`
	Minute         int                  `json:"minute"`
	Running        bool                 `json:"running"`
}

// Client WebSocket客户端
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu         sync.RWMutex
	fixtureIDs map[string]bool // 比赛过滤器
	filtered   bool            // false 时接收全部; 退订后为 true 且过滤器为空, 不接收任何比赛
}

type subscription struct {
	client      *Client
	fixtureIDs  []string
	unsubscribe bool
}

// Hub WebSocket Hub, 同时是比赛快照的推送目标.
// 每场比赛缓存最新快照, 新订阅者立即收到.
type Hub struct {
	clients     map[*Client]bool
	broadcast   chan *WSMessage
	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	done        chan struct{} // Run 退出时关闭
	clientCount int
	mu          sync.RWMutex

	snapshots map[string]*models.Snapshot
	snapMu    sync.RWMutex

	tick time.Duration
	now  func() time.Time
}

// NewHub 创建新的Hub, tick 为客户端时钟推送间隔
func NewHub(tick time.Duration) *Hub {
	if tick <= 0 {
		tick = time.Second
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *WSMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		done:       make(chan struct{}),
		snapshots:  make(map[string]*models.Snapshot),
		tick:       tick,
		now:        time.Now,
	}
}

// Run 运行Hub, ctx 结束时断开所有客户端并关闭 done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.setCount()
			logger.Printf("[WebSocket] Client registered. Total clients: %d", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
			logger.Printf("[WebSocket] Client unregistered. Total clients: %d", len(h.clients))

		case sub := <-h.subscribe:
			if _, ok := h.clients[sub.client]; !ok {
				continue
			}
			if sub.unsubscribe {
				sub.client.clearFixtures()
				logger.Printf("[WebSocket] Client unsubscribed from all fixtures")
				continue
			}
			sub.client.setFixtures(sub.fixtureIDs)
			for _, id := range sub.fixtureIDs {
				if snap := h.cached(id); snap != nil {
					h.deliver(sub.client, h.fixtureMessage(snap))
				}
			}
			logger.Printf("[WebSocket] Client subscribed to fixtures: %v", sub.fixtureIDs)

		case message := <-h.broadcast:
			for client := range h.clients {
				if !client.shouldReceive(message.FixtureID) {
					continue
				}
				h.deliver(client, message)
			}
		}
	}
}

// Done Run 退出后关闭
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// registerClient Hub 已停止时返回 false
func (h *Hub) registerClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) subscribeClient(sub subscription) {
	select {
	case h.subscribe <- sub:
	case <-h.done:
	}
}

// deliver 只在 Run 协程中调用, 发送队列满时断开慢客户端
func (h *Hub) deliver(client *Client, message *WSMessage) {
	select {
	case client.send <- marshalMessage(message):
	default:
		logger.Printf("[WebSocket] ⚠️ Dropping slow client")
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.clientCount = len(h.clients)
	h.mu.Unlock()
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clientCount
}

// Name 实现 ProjectionSink
func (h *Hub) Name() string {
	return "websocket"
}

// PublishSnapshot 实现 ProjectionSink: 更新缓存并广播给订阅者
func (h *Hub) PublishSnapshot(_ context.Context, snapshot *models.Snapshot) error {
	h.snapMu.Lock()
	h.snapshots[snapshot.Fixture.ID] = snapshot
	h.snapMu.Unlock()

	select {
	case h.broadcast <- h.fixtureMessage(snapshot):
		return nil
	default:
		return ErrHubBusy
	}
}

// Cached 最新快照
func (h *Hub) cached(fixtureID string) *models.Snapshot {
	h.snapMu.RLock()
	defer h.snapMu.RUnlock()
	return h.snapshots[fixtureID]
}

func (h *Hub) fixtureMessage(snapshot *models.Snapshot) *WSMessage {
	return &WSMessage{
		Type:      MessageTypeFixture,
		FixtureID: snapshot.Fixture.ID,
		Timestamp: h.now().UnixMilli(),
		Data:      snapshot,
	}
}

// clockMessage 由缓存的 checkpoint/runningSince 计算当前读数
func (h *Hub) clockMessage(fixtureID string) *WSMessage {
	snap := h.cached(fixtureID)
	if snap == nil {
		return nil
	}
	now := h.now()
	return &WSMessage{
		Type:      MessageTypeClock,
		FixtureID: fixtureID,
		Timestamp: now.UnixMilli(),
		Data:      NewClockTick(snap.Fixture, now),
	}
}

// NewClockTick 计算某一时刻的时钟读数
func NewClockTick(f models.Fixture, now time.Time) ClockTick {
	elapsed := clock.ElapsedNow(f.ClockCheckpoint, f.RunningSince, f.Status == models.StatusLive, now)
	return ClockTick{
		Status:         f.Status,
		ElapsedSeconds: elapsed,
		Clock:          clock.Format(elapsed),
		MinuteLabel:    clock.FormatMinutes(elapsed),
		Minute:         clock.Minute(elapsed),
		Running:        f.Running(),
	}
}

func marshalMessage(message *WSMessage) []byte {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Errorf("[WebSocket] Failed to marshal message: %v", err)
		return []byte("{}")
	}
	return data
}

// setFixtures 空列表表示接收全部
func (c *Client) setFixtures(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fixtureIDs = make(map[string]bool, len(ids))
	for _, id := range ids {
		c.fixtureIDs[id] = true
	}
	c.filtered = len(ids) > 0
}

// clearFixtures 退订全部, 之后不再接收任何比赛
func (c *Client) clearFixtures() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fixtureIDs = make(map[string]bool)
	c.filtered = true
}

func (c *Client) subscribed() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.fixtureIDs))
	for id := range c.fixtureIDs {
		ids = append(ids, id)
	}
	return ids
}

// shouldReceive 没有过滤器时接收所有比赛
func (c *Client) shouldReceive(fixtureID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.filtered {
		return true
	}
	return c.fixtureIDs[fixtureID]
}

// readPump 读取客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("[WebSocket] error: %v", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// writePump 写入推送消息, 并按 tick 为已订阅的比赛推送时钟
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.tick)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			for _, id := range c.subscribed() {
				msg := c.hub.clockMessage(id)
				if msg == nil {
					continue
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, marshalMessage(msg)); err != nil {
					return
				}
			}
		}
	}
}

type clientMessage struct {
	Type       string   `json:"type"`
	FixtureIDs []string `json:"fixture_ids"`
}

// handleMessage 处理客户端发送的订阅消息
func (c *Client) handleMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Errorf("[WebSocket] Failed to unmarshal client message: %v", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.hub.subscribeClient(subscription{client: c, fixtureIDs: msg.FixtureIDs})
	case "unsubscribe":
		c.hub.subscribeClient(subscription{client: c, unsubscribe: true})
	}
}
