package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"live-fixture-service/logger"
	"live-fixture-service/models"
)

// 路由键
const (
	RoutingKeyLineupSubstitution = "lineup.substitution"
	routingKeyFixtureUpdated     = "fixture.%s.updated"
)

// ErrAMQPNotConnected 通道不可用 (断线重连中)
var ErrAMQPNotConnected = errors.New("amqp channel not connected")

// ReconnectConfig 重连配置
type ReconnectConfig struct {
	MaxRetries    int           // 最大重试次数 (0 = 无限重试)
	InitialDelay  time.Duration // 初始延迟
	MaxDelay      time.Duration // 最大延迟
	BackoffFactor float64       // 退避因子
}

// DefaultReconnectConfig 默认重连配置
func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		MaxRetries:    0,
		InitialDelay:  1 * time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
	}
}

// nextDelay 指数退避, 不超过 MaxDelay
func (r *ReconnectConfig) nextDelay(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * r.BackoffFactor)
	if next > r.MaxDelay {
		return r.MaxDelay
	}
	return next
}

// AMQPPublisher 向 topic exchange 发布 JSON 消息, 断线自动重连
type AMQPPublisher struct {
	url      string
	exchange string

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	reconnect *ReconnectConfig
	done      chan struct{}
	closeOnce sync.Once
}

// NewAMQPPublisher 创建发布器, 调用 Connect 后可用
func NewAMQPPublisher(url, exchange string) *AMQPPublisher {
	return &AMQPPublisher{
		url:       url,
		exchange:  exchange,
		reconnect: DefaultReconnectConfig(),
		done:      make(chan struct{}),
	}
}

// Connect 建立连接并声明 exchange, 之后在后台监控连接
func (p *AMQPPublisher) Connect() error {
	if err := p.connect(); err != nil {
		return err
	}
	go p.monitorConnection()
	return nil
}

func (p *AMQPPublisher) connect() error {
	logger.Printf("[AMQP] Connecting to broker (exchange: %s)...", p.exchange)

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = channel
	p.mu.Unlock()

	logger.Printf("[AMQP] ✅ Connected, exchange %s ready", p.exchange)
	return nil
}

// monitorConnection 连接关闭后按指数退避重连
func (p *AMQPPublisher) monitorConnection() {
	for {
		p.mu.RLock()
		conn := p.conn
		p.mu.RUnlock()
		if conn == nil {
			return
		}

		closed := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-p.done:
			return
		case amqpErr := <-closed:
			logger.Errorf("[AMQP] ⚠️ Connection closed: %v", amqpErr)
		}

		p.mu.Lock()
		p.conn = nil
		p.channel = nil
		p.mu.Unlock()

		if !p.reconnectLoop() {
			return
		}
	}
}

func (p *AMQPPublisher) reconnectLoop() bool {
	delay := p.reconnect.InitialDelay
	for attempt := 1; p.reconnect.MaxRetries == 0 || attempt <= p.reconnect.MaxRetries; attempt++ {
		select {
		case <-p.done:
			return false
		case <-time.After(delay):
		}

		logger.Printf("[AMQP] 🔄 Reconnect attempt %d...", attempt)
		if err := p.connect(); err != nil {
			logger.Errorf("[AMQP] ❌ Reconnect attempt %d failed: %v", attempt, err)
			delay = p.reconnect.nextDelay(delay)
			continue
		}
		return true
	}
	logger.Errorf("[AMQP] ❌ Giving up after %d reconnect attempts", p.reconnect.MaxRetries)
	return false
}

// PublishJSON 序列化并发布一条持久化消息
func (p *AMQPPublisher) PublishJSON(ctx context.Context, routingKey string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	p.mu.RLock()
	channel := p.channel
	p.mu.RUnlock()
	if channel == nil {
		return ErrAMQPNotConnected
	}

	if err := channel.Publish(
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

// Name 实现 ProjectionSink
func (p *AMQPPublisher) Name() string {
	return "amqp"
}

// PublishSnapshot 实现 ProjectionSink, 路由键 fixture.<id>.updated
func (p *AMQPPublisher) PublishSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	return p.PublishJSON(ctx, FixtureRoutingKey(snapshot.Fixture.ID), snapshot)
}

// FixtureRoutingKey 比赛快照的路由键
func FixtureRoutingKey(fixtureID string) string {
	return fmt.Sprintf(routingKeyFixtureUpdated, fixtureID)
}

// Close 关闭连接并停止重连
func (p *AMQPPublisher) Close() {
	p.closeOnce.Do(func() {
		logger.Println("[AMQP] Stopping publisher...")
		close(p.done)

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.channel != nil {
			p.channel.Close()
		}
		if p.conn != nil {
			p.conn.Close()
		}
		p.conn = nil
		p.channel = nil
	})
}
