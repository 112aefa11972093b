package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"live-fixture-service/logger"
)

// BrokerMessage 在 Broker 中传输的消息
type BrokerMessage struct {
	Topic string
	Value []byte // JSON 消息体
}

// InMemoryBroker 进程内的 topic 广播, 未配置 AMQP 时代替发布器 (本地开发与测试)
type InMemoryBroker struct {
	consumers map[string][]chan BrokerMessage
	mu        sync.RWMutex
}

// NewInMemoryBroker 创建 InMemoryBroker 实例
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		consumers: make(map[string][]chan BrokerMessage),
	}
}

// PublishJSON 实现 JSONPublisher, 路由键即 topic
func (b *InMemoryBroker) PublishJSON(_ context.Context, routingKey string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return b.Produce(BrokerMessage{Topic: routingKey, Value: body})
}

// Produce 发给该 topic 的每个消费者, 通道满时丢弃
func (b *InMemoryBroker) Produce(msg BrokerMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	consumerChans := b.consumers[msg.Topic]
	if len(consumerChans) == 0 {
		logger.Printf("[InMemoryBroker] ⚠️ Topic %s has no active consumers. Message dropped.", msg.Topic)
		return nil
	}

	for _, ch := range consumerChans {
		select {
		case ch <- msg:
		default:
			logger.Printf("[InMemoryBroker] ⚠️ Topic %s consumer channel full. Message dropped.", msg.Topic)
		}
	}
	return nil
}

// Consume 订阅 topic
func (b *InMemoryBroker) Consume(topic string) (<-chan BrokerMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	consumerChan := make(chan BrokerMessage, 1000)
	b.consumers[topic] = append(b.consumers[topic], consumerChan)

	logger.Printf("[InMemoryBroker] Consumer subscribed to topic %s. Total consumers for topic: %d", topic, len(b.consumers[topic]))
	return consumerChan, nil
}

// Close 关闭所有消费者通道
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, chans := range b.consumers {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.consumers = make(map[string][]chan BrokerMessage)

	logger.Println("[InMemoryBroker] Closed all channels.")
	return nil
}
