package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"live-fixture-service/models"
	"live-fixture-service/pkg/clock"
	"live-fixture-service/pkg/common"
)

// MatchStateMachine 比赛生命周期 scheduled → live → finished (finished → live 为重开)
// 以及它和比赛时钟的关系.
type MatchStateMachine struct {
	store FixtureStore
	clock clock.Clock
}

// NewMatchStateMachine 创建状态机
func NewMatchStateMachine(store FixtureStore, c clock.Clock) *MatchStateMachine {
	if c == nil {
		c = clock.System{}
	}
	return &MatchStateMachine{store: store, clock: c}
}

// Start 开始或继续计时. 允许: scheduled, finished (重开), live 且已暂停.
func (m *MatchStateMachine) Start(ctx context.Context, fixtureID string) (*models.Fixture, error) {
	return m.transition(ctx, fixtureID, func(f *models.Fixture, now time.Time) (bool, error) {
		return true, StartClock(f, now)
	})
}

// Pause 冻结时钟. 已暂停时为空操作.
func (m *MatchStateMachine) Pause(ctx context.Context, fixtureID string) (*models.Fixture, error) {
	return m.transition(ctx, fixtureID, PauseClock)
}

// End 结束比赛, 计时中先冻结.
func (m *MatchStateMachine) End(ctx context.Context, fixtureID string) (*models.Fixture, error) {
	return m.transition(ctx, fixtureID, func(f *models.Fixture, now time.Time) (bool, error) {
		return true, EndMatch(f, now)
	})
}

// AdjustCheckpoint 时钟加减 deltaSeconds
func (m *MatchStateMachine) AdjustCheckpoint(ctx context.Context, fixtureID string, deltaSeconds int) (*models.Fixture, error) {
	if deltaSeconds == 0 {
		return nil, common.Validation("clock adjustment must not be zero")
	}
	return m.transition(ctx, fixtureID, func(f *models.Fixture, now time.Time) (bool, error) {
		AdjustClock(f, deltaSeconds, now)
		return true, nil
	})
}

// ResetCheckpoint 时钟归零, 需要显式确认
func (m *MatchStateMachine) ResetCheckpoint(ctx context.Context, fixtureID string, confirmed bool) (*models.Fixture, error) {
	if !confirmed {
		return nil, common.Validation("clock reset requires confirmation")
	}
	return m.transition(ctx, fixtureID, func(f *models.Fixture, now time.Time) (bool, error) {
		ResetClock(f, now)
		return true, nil
	})
}

func (m *MatchStateMachine) transition(ctx context.Context, fixtureID string, apply func(*models.Fixture, time.Time) (bool, error)) (*models.Fixture, error) {
	f, err := m.store.GetFixture(ctx, fixtureID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Validation("unknown fixture %q", fixtureID)
		}
		return nil, fmt.Errorf("load fixture %s: %w", fixtureID, err)
	}

	changed, err := apply(f, m.clock.Now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return f, nil
	}

	if err := m.store.SaveClockState(ctx, fixtureID, f.ClockState()); err != nil {
		return nil, fmt.Errorf("save clock for %s: %w", fixtureID, err)
	}
	return f, nil
}

// StartClock scheduled/finished/live-paused → live 且计时
func StartClock(f *models.Fixture, now time.Time) error {
	if f.Running() {
		return common.InvalidTransition("fixture %s clock is already running", f.ID)
	}
	switch f.Status {
	case models.StatusScheduled, models.StatusFinished, models.StatusLive:
	default:
		return common.InvalidTransition("cannot start fixture %s from status %q", f.ID, f.Status)
	}
	f.Status = models.StatusLive
	t := now
	f.RunningSince = &t
	return nil
}

// PauseClock 把当前读数写回 checkpoint 并停表. 返回是否有变化.
func PauseClock(f *models.Fixture, now time.Time) (bool, error) {
	if f.Status != models.StatusLive {
		return false, common.InvalidTransition("cannot pause fixture %s in status %q", f.ID, f.Status)
	}
	if f.RunningSince == nil {
		return false, nil
	}
	freeze(f, now)
	return true, nil
}

// EndMatch live → finished
func EndMatch(f *models.Fixture, now time.Time) error {
	if f.Status != models.StatusLive {
		return common.InvalidTransition("cannot end fixture %s in status %q", f.ID, f.Status)
	}
	if f.RunningSince != nil {
		freeze(f, now)
	}
	f.Status = models.StatusFinished
	return nil
}

// AdjustClock 时钟加减, 下限为 0. 计时中把已走时间并入 checkpoint 再从 now 起算.
func AdjustClock(f *models.Fixture, deltaSeconds int, now time.Time) {
	base := clock.ElapsedNow(f.ClockCheckpoint, f.RunningSince, f.Status == models.StatusLive, now)
	f.ClockCheckpoint = base + deltaSeconds
	if f.ClockCheckpoint < 0 {
		f.ClockCheckpoint = 0
	}
	restartIfRunning(f, now)
}

// ResetClock checkpoint 归零, 计时中从 now 重新起算
func ResetClock(f *models.Fixture, now time.Time) {
	f.ClockCheckpoint = 0
	restartIfRunning(f, now)
}

func freeze(f *models.Fixture, now time.Time) {
	f.ClockCheckpoint = clock.ElapsedNow(f.ClockCheckpoint, f.RunningSince, true, now)
	f.RunningSince = nil
}

func restartIfRunning(f *models.Fixture, now time.Time) {
	if f.Running() {
		t := now
		f.RunningSince = &t
		return
	}
	// 非 live 时不允许残留计时点
	f.RunningSince = nil
}
