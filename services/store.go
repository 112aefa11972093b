package services

import (
	"context"

	"live-fixture-service/models"
)

// FixtureStore 比赛记录的读写
type FixtureStore interface {
	GetFixture(ctx context.Context, id string) (*models.Fixture, error)
	// SaveClockState 覆盖写入状态与时钟字段 (后写者胜)
	SaveClockState(ctx context.Context, id string, state models.ClockState) error
	// AdjustScore 在存储端原子地加减比分, 结果不小于 0
	AdjustScore(ctx context.Context, id string, team models.Team, delta int) (models.Score, error)
	// SetScore 覆盖比分并设置不一致标记
	SetScore(ctx context.Context, id string, score models.Score, diverged bool) error
	SetScoreDiverged(ctx context.Context, id string, diverged bool) error
}

// EventStore 比赛事件子集合
type EventStore interface {
	// InsertEvent 写入事件并回填 Seq
	InsertEvent(ctx context.Context, event *models.MatchEvent) error
	GetEvent(ctx context.Context, fixtureID, eventID string) (*models.MatchEvent, error)
	DeleteEvent(ctx context.Context, fixtureID, eventID string) error
	// ListEvents 按 ElapsedSeconds 升序, 同秒按写入顺序
	ListEvents(ctx context.Context, fixtureID string) ([]models.MatchEvent, error)
}

// StatStore 球员赛季统计
type StatStore interface {
	// AdjustPlayerStat 原子加减一个计数, 结果不小于 0, 不存在时创建
	AdjustPlayerStat(ctx context.Context, playerID string, field models.StatField, delta int) (*models.PlayerSeasonStat, error)
	GetPlayerStat(ctx context.Context, playerID string) (*models.PlayerSeasonStat, error)
}

// Store 核心需要的全部持久化能力
type Store interface {
	FixtureStore
	EventStore
	StatStore
}

// Transactor 支持跨文档事务的存储.
// 控制器在可用时把账本与聚合两步放进同一事务.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// RosterSource 名单数据来源
type RosterSource interface {
	TeamPlayers(ctx context.Context, teamID string) ([]models.Player, error)
	GetPlayer(ctx context.Context, playerID string) (*models.Player, error)
}
