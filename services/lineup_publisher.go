package services

import (
	"context"
	"fmt"
)

// JSONPublisher 按路由键发布 JSON 消息
type JSONPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, v interface{}) error
}

// LineupPublisher 把换人通知发给阵容系统 (lineup.substitution)
type LineupPublisher struct {
	publisher JSONPublisher
}

// NewLineupPublisher 创建阵容通知发布器
func NewLineupPublisher(publisher JSONPublisher) *LineupPublisher {
	return &LineupPublisher{publisher: publisher}
}

// NotifySubstitution 实现 LineupNotifier
func (l *LineupPublisher) NotifySubstitution(ctx context.Context, notice SubstitutionNotice) error {
	if err := l.publisher.PublishJSON(ctx, RoutingKeyLineupSubstitution, notice); err != nil {
		return fmt.Errorf("notify substitution %s: %w", notice.EventID, err)
	}
	return nil
}
