package services

import (
	"context"
	"time"

	"live-fixture-service/models"
	"live-fixture-service/pkg/clock"
	"live-fixture-service/pkg/common"
)

// ProjectionSink 接收比赛快照并推送给观众 (websocket, MQTT, AMQP)
type ProjectionSink interface {
	Name() string
	PublishSnapshot(ctx context.Context, snapshot *models.Snapshot) error
}

// Alerter 操作员告警通道
type Alerter interface {
	AlertPartialFailure(fixtureID, action string, err error) error
	AlertError(component, message string) error
}

// SubstitutionNotice 发给阵容系统的换人通知
type SubstitutionNotice struct {
	FixtureID      string      `json:"fixture_id"`
	EventID        string      `json:"event_id"`
	Team           models.Team `json:"team"`
	TeamID         string      `json:"team_id"`
	PlayerOutID    string      `json:"player_out_id"`
	PlayerInID     string      `json:"player_in_id"`
	Minute         int         `json:"minute"`
	ElapsedSeconds int         `json:"elapsed_seconds"`
}

// LineupNotifier 阵容系统, 拥有首发/替补存储
type LineupNotifier interface {
	NotifySubstitution(ctx context.Context, notice SubstitutionNotice) error
}

// PlayerResolver 名单查询 (只读)
type PlayerResolver interface {
	Player(ctx context.Context, playerID string) (*models.Player, error)
}

// BuildSnapshot 组装快照, 纯函数
func BuildSnapshot(f models.Fixture, events []models.MatchEvent, now time.Time) *models.Snapshot {
	elapsed := clock.ElapsedNow(f.ClockCheckpoint, f.RunningSince, f.Status == models.StatusLive, now)
	if events == nil {
		events = []models.MatchEvent{}
	}
	return &models.Snapshot{
		Fixture:        f,
		Events:         events,
		ElapsedSeconds: elapsed,
		Clock:          clock.Format(elapsed),
		Minute:         clock.Minute(elapsed),
		ServerTime:     now.UTC(),
	}
}

// projectionFanout 把快照分发给所有 sink. 失败只记录日志.
type projectionFanout struct {
	sinks  []ProjectionSink
	logger common.Logger
}

func (p *projectionFanout) publish(ctx context.Context, snapshot *models.Snapshot) {
	for _, sink := range p.sinks {
		if err := sink.PublishSnapshot(ctx, snapshot); err != nil {
			p.logger.Error("❌ Sink %s failed for fixture %s: %v", sink.Name(), snapshot.Fixture.ID, err)
		}
	}
}
