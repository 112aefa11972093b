package services

import (
	"context"
	"errors"
	"fmt"

	"live-fixture-service/models"
	"live-fixture-service/pkg/common"
)

// AggregateProjector 维护派生字段 (比分, 球员赛季统计).
// 只有它可以修改这些字段. 所有减法在存储端下限为 0.
type AggregateProjector struct {
	store Store
}

// NewAggregateProjector 创建聚合投影器
func NewAggregateProjector(store Store) *AggregateProjector {
	return &AggregateProjector{store: store}
}

// WithStore 返回绑定到另一个存储的投影器
func (p *AggregateProjector) WithStore(store Store) *AggregateProjector {
	return &AggregateProjector{store: store}
}

// ApplyGoal 比分 +1, 指定球员时其赛季进球 +1
func (p *AggregateProjector) ApplyGoal(ctx context.Context, fixtureID string, team models.Team, playerID *string) (models.Score, error) {
	return p.shiftGoal(ctx, fixtureID, team, playerID, 1)
}

// RevertGoal 比分 -1, 指定球员时其赛季进球 -1
func (p *AggregateProjector) RevertGoal(ctx context.Context, fixtureID string, team models.Team, playerID *string) (models.Score, error) {
	return p.shiftGoal(ctx, fixtureID, team, playerID, -1)
}

func (p *AggregateProjector) shiftGoal(ctx context.Context, fixtureID string, team models.Team, playerID *string, delta int) (models.Score, error) {
	if !team.Valid() {
		return models.Score{}, common.Validation("invalid team %q", team)
	}

	score, err := p.store.AdjustScore(ctx, fixtureID, team, delta)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return models.Score{}, common.Validation("unknown fixture %q", fixtureID)
		}
		return models.Score{}, fmt.Errorf("adjust %s score: %w", team, err)
	}

	if playerID != nil {
		if _, err := p.store.AdjustPlayerStat(ctx, *playerID, models.StatGoals, delta); err != nil {
			return score, &StatUpdateError{PlayerID: *playerID, Field: models.StatGoals, Score: score, Err: err}
		}
	}
	return score, nil
}

// StatUpdateError 比分已经写入, 只有球员统计失败. Score 为已生效的比分.
type StatUpdateError struct {
	PlayerID string
	Field    models.StatField
	Score    models.Score
	Err      error
}

func (e *StatUpdateError) Error() string {
	return fmt.Sprintf("adjust %s for player %s: %v", e.Field, e.PlayerID, e.Err)
}

func (e *StatUpdateError) Unwrap() error {
	return e.Err
}

// ApplyCard 指定球员时对应的牌计数 +1, 不影响比分
func (p *AggregateProjector) ApplyCard(ctx context.Context, playerID *string, kind models.CardKind) error {
	field, err := cardStatField(kind)
	if err != nil {
		return err
	}
	if playerID == nil {
		return nil
	}
	if _, err := p.store.AdjustPlayerStat(ctx, *playerID, field, 1); err != nil {
		return fmt.Errorf("adjust %s for player %s: %w", field, *playerID, err)
	}
	return nil
}

// NudgeScore 不经账本直接调整某一方比分, 下限为 0
func (p *AggregateProjector) NudgeScore(ctx context.Context, fixtureID string, team models.Team, delta int) (models.Score, error) {
	if !team.Valid() {
		return models.Score{}, common.Validation("invalid team %q", team)
	}
	if delta == 0 {
		return models.Score{}, common.Validation("score delta must not be zero")
	}
	score, err := p.store.AdjustScore(ctx, fixtureID, team, delta)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return models.Score{}, common.Validation("unknown fixture %q", fixtureID)
		}
		return models.Score{}, fmt.Errorf("adjust %s score: %w", team, err)
	}
	return score, nil
}

// FlagDiverged 标记比分可能与账本不一致, 直到下次 Recompute
func (p *AggregateProjector) FlagDiverged(ctx context.Context, fixtureID string) error {
	if err := p.store.SetScoreDiverged(ctx, fixtureID, true); err != nil {
		return fmt.Errorf("flag score diverged for %s: %w", fixtureID, err)
	}
	return nil
}

// Recompute 用账本中的进球重算比分并清除不一致标记
func (p *AggregateProjector) Recompute(ctx context.Context, fixtureID string) (models.Score, error) {
	events, err := p.store.ListEvents(ctx, fixtureID)
	if err != nil {
		return models.Score{}, fmt.Errorf("list events for %s: %w", fixtureID, err)
	}

	score := DeriveScore(events)
	if err := p.store.SetScore(ctx, fixtureID, score, false); err != nil {
		return models.Score{}, fmt.Errorf("write score for %s: %w", fixtureID, err)
	}
	return score, nil
}

// DeriveScore 统计账本中的进球
func DeriveScore(events []models.MatchEvent) models.Score {
	var score models.Score
	for _, e := range events {
		if e.Kind != models.EventGoal {
			continue
		}
		switch e.Team {
		case models.TeamHome:
			score.Home++
		case models.TeamAway:
			score.Away++
		}
	}
	return score
}

func cardStatField(kind models.CardKind) (models.StatField, error) {
	switch kind {
	case models.CardMinor:
		return models.StatMinorCautions, nil
	case models.CardMajor:
		return models.StatMajorCautions, nil
	}
	return "", common.Validation("invalid card kind %q", kind)
}
