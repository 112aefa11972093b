package services

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"live-fixture-service/logger"
	"live-fixture-service/models"
)

// QoSAtLeastOnce 快照以 QoS 1 发布
const QoSAtLeastOnce = 1

// MQTTPublisher 把比赛快照作为保留消息发布到 <prefix>/<fixture_id>,
// 新订阅者立即拿到最新状态.
type MQTTPublisher struct {
	broker   string
	username string
	password string
	prefix   string
	client   mqtt.Client
	timeout  time.Duration
}

// NewMQTTPublisher 创建 MQTT 发布器
func NewMQTTPublisher(broker, username, password, prefix string) *MQTTPublisher {
	if prefix == "" {
		prefix = "fixtures"
	}
	return &MQTTPublisher{
		broker:   broker,
		username: username,
		password: password,
		prefix:   strings.TrimSuffix(prefix, "/"),
		timeout:  5 * time.Second,
	}
}

// Connect 连接 broker
func (p *MQTTPublisher) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.broker)
	if p.username != "" {
		opts.SetUsername(p.username)
		opts.SetPassword(p.password)
	}
	opts.SetClientID(fmt.Sprintf("live_fixture_%d", time.Now().UnixNano()))

	if strings.HasPrefix(p.broker, "ssl://") || strings.HasPrefix(p.broker, "tls://") {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Printf("[MQTT] ✅ Connected to %s", p.broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Errorf("[MQTT] ⚠️ Connection lost: %v", err)
	})

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)

	p.client = mqtt.NewClient(opts)

	token := p.client.Connect()
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("failed to connect to %s: timeout", p.broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

// Disconnect 断开连接
func (p *MQTTPublisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// IsConnected 是否已连接
func (p *MQTTPublisher) IsConnected() bool {
	return p.client != nil && p.client.IsConnected()
}

// Topic 比赛快照主题
func (p *MQTTPublisher) Topic(fixtureID string) string {
	return p.prefix + "/" + fixtureID
}

// Name 实现 ProjectionSink
func (p *MQTTPublisher) Name() string {
	return "mqtt"
}

// PublishSnapshot 实现 ProjectionSink
func (p *MQTTPublisher) PublishSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	if !p.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	topic := p.Topic(snapshot.Fixture.ID)
	token := p.client.Publish(topic, QoSAtLeastOnce, true, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}
