package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"live-fixture-service/models"
	"live-fixture-service/pkg/clock"
	"live-fixture-service/pkg/common"
)

// AppendRequest 追加一条比赛事件
type AppendRequest struct {
	FixtureID      string
	Kind           models.EventKind
	Team           models.Team
	PlayerID       *string
	PlayerOutID    *string
	PlayerInID     *string
	ElapsedSeconds int
}

// EventLedger 比赛事件账本, "发生了什么" 的唯一来源.
// 不修改比分和球员统计.
type EventLedger struct {
	store Store
	newID func() string
}

// NewEventLedger 创建事件账本
func NewEventLedger(store Store) *EventLedger {
	return &EventLedger{
		store: store,
		newID: uuid.NewString,
	}
}

// WithStore 返回绑定到另一个存储 (通常是事务) 的账本
func (l *EventLedger) WithStore(store Store) *EventLedger {
	return &EventLedger{store: store, newID: l.newID}
}

// Append 追加事件
func (l *EventLedger) Append(ctx context.Context, req AppendRequest) (*models.MatchEvent, error) {
	if err := validateAppend(req); err != nil {
		return nil, err
	}

	if _, err := l.store.GetFixture(ctx, req.FixtureID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Validation("unknown fixture %q", req.FixtureID)
		}
		return nil, fmt.Errorf("load fixture %s: %w", req.FixtureID, err)
	}

	event := &models.MatchEvent{
		ID:             l.newID(),
		FixtureID:      req.FixtureID,
		Kind:           req.Kind,
		Team:           req.Team,
		Minute:         clock.Minute(req.ElapsedSeconds),
		ElapsedSeconds: req.ElapsedSeconds,
		PlayerID:       req.PlayerID,
		PlayerOutID:    req.PlayerOutID,
		PlayerInID:     req.PlayerInID,
	}
	if err := l.store.InsertEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("append %s event: %w", req.Kind, err)
	}
	return event, nil
}

// Remove 删除一个进球事件, 返回删除前读到的事件
func (l *EventLedger) Remove(ctx context.Context, fixtureID, eventID string) (*models.MatchEvent, error) {
	event, err := l.store.GetEvent(ctx, fixtureID, eventID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFound("event %q not found", eventID)
		}
		return nil, fmt.Errorf("load event %s: %w", eventID, err)
	}

	// 牌和换人不可撤销
	if event.Kind != models.EventGoal {
		return nil, common.Validation("only goal events can be removed, event %q is %s", eventID, event.Kind)
	}

	if err := l.store.DeleteEvent(ctx, fixtureID, eventID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFound("event %q not found", eventID)
		}
		return nil, fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return event, nil
}

// List 按比赛时间升序列出事件, 同一秒按写入顺序
func (l *EventLedger) List(ctx context.Context, fixtureID string) ([]models.MatchEvent, error) {
	events, err := l.store.ListEvents(ctx, fixtureID)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", fixtureID, err)
	}
	return events, nil
}

func validateAppend(req AppendRequest) error {
	if req.FixtureID == "" {
		return common.Validation("fixture id is required")
	}
	if !req.Kind.Valid() {
		return common.Validation("invalid event kind %q", req.Kind)
	}
	if !req.Team.Valid() {
		return common.Validation("invalid team %q", req.Team)
	}
	if req.ElapsedSeconds < 0 {
		return common.Validation("elapsed seconds must not be negative")
	}

	if req.Kind == models.EventSubstitution {
		if isBlank(req.PlayerOutID) || isBlank(req.PlayerInID) {
			return common.Validation("substitution requires both player out and player in")
		}
		if *req.PlayerOutID == *req.PlayerInID {
			return common.Validation("player out and player in must differ")
		}
		if req.PlayerID != nil {
			return common.Validation("substitution does not take a single player")
		}
		return nil
	}

	if req.PlayerOutID != nil || req.PlayerInID != nil {
		return common.Validation("%s event does not take a player pair", req.Kind)
	}
	if req.PlayerID != nil && *req.PlayerID == "" {
		return common.Validation("player id must not be empty, omit it for an unknown player")
	}
	return nil
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}
