package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"live-fixture-service/models"
	"live-fixture-service/pkg/clock"
	"live-fixture-service/pkg/common"
)

const tracerName = "live-fixture-service/services"

// LiveMatchController 操作员入口. 每个动作对调用方是一个整体:
// 先写账本, 再写聚合, 最后推送快照.
type LiveMatchController struct {
	store     Store
	ledger    *EventLedger
	projector *AggregateProjector
	machine   *MatchStateMachine
	clock     clock.Clock
	roster    PlayerResolver
	lineup    LineupNotifier
	alerter   Alerter
	sinks     []ProjectionSink
	fanout    *projectionFanout
	logger    common.Logger
	tracer    trace.Tracer
}

// ControllerOption 控制器选项
type ControllerOption func(*LiveMatchController)

// WithClock 指定时钟来源
func WithClock(c clock.Clock) ControllerOption {
	return func(ctrl *LiveMatchController) { ctrl.clock = c }
}

// WithRoster 启用球员校验
func WithRoster(r PlayerResolver) ControllerOption {
	return func(ctrl *LiveMatchController) { ctrl.roster = r }
}

// WithLineup 换人时通知阵容系统
func WithLineup(l LineupNotifier) ControllerOption {
	return func(ctrl *LiveMatchController) { ctrl.lineup = l }
}

// WithAlerter 部分失败时告警
func WithAlerter(a Alerter) ControllerOption {
	return func(ctrl *LiveMatchController) { ctrl.alerter = a }
}

// WithSinks 注册快照推送目标
func WithSinks(sinks ...ProjectionSink) ControllerOption {
	return func(ctrl *LiveMatchController) { ctrl.sinks = append(ctrl.sinks, sinks...) }
}

// WithLogger 指定日志器
func WithLogger(l common.Logger) ControllerOption {
	return func(ctrl *LiveMatchController) { ctrl.logger = l }
}

// NewLiveMatchController 创建控制器
func NewLiveMatchController(store Store, opts ...ControllerOption) *LiveMatchController {
	c := &LiveMatchController{
		store:  store,
		clock:  clock.System{},
		logger: common.NewLogger("Controller"),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.ledger = NewEventLedger(store)
	c.projector = NewAggregateProjector(store)
	c.machine = NewMatchStateMachine(store, c.clock)
	c.fanout = &projectionFanout{sinks: c.sinks, logger: c.logger}
	return c
}

// RecordGoal 记录进球: 账本追加, 然后比分与球员进球 +1
func (c *LiveMatchController) RecordGoal(ctx context.Context, fixtureID string, team models.Team, playerID *string) (event *models.MatchEvent, err error) {
	ctx, span := c.startSpan(ctx, "RecordGoal", fixtureID)
	defer func() { endSpan(span, err) }()

	f, err := c.loadFixture(ctx, fixtureID, team)
	if err != nil {
		return nil, err
	}
	if err := c.resolvePlayer(ctx, f, team, playerID); err != nil {
		return nil, err
	}

	var recorded *models.MatchEvent
	err = c.twoStep(ctx, fixtureID, "record goal",
		func(s Store) error {
			e, err := c.ledger.WithStore(s).Append(ctx, AppendRequest{
				FixtureID:      fixtureID,
				Kind:           models.EventGoal,
				Team:           team,
				PlayerID:       playerID,
				ElapsedSeconds: c.elapsed(f),
			})
			recorded = e
			return err
		},
		func(s Store) error {
			_, err := c.projector.WithStore(s).ApplyGoal(ctx, fixtureID, team, playerID)
			return err
		},
		goalPartialMessage(
			"goal recorded but score not updated, check manually",
			"goal recorded and score updated but player season goals not updated, check manually",
		),
	)
	c.publishAfter(ctx, fixtureID, err)
	if err != nil {
		return recordedIfPartial(recorded, err), err
	}

	c.logger.Info("⚽ Goal %s for %s at %d' (fixture %s)", recorded.ID, team, recorded.Minute, fixtureID)
	return recorded, nil
}

// CancelGoal 撤销进球: 先删账本, 再用删除前读到的 team/player 回退聚合
func (c *LiveMatchController) CancelGoal(ctx context.Context, fixtureID, eventID string) (event *models.MatchEvent, err error) {
	ctx, span := c.startSpan(ctx, "CancelGoal", fixtureID)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("event.id", eventID))

	if eventID == "" {
		return nil, common.Validation("event id is required")
	}

	var removed *models.MatchEvent
	err = c.twoStep(ctx, fixtureID, "cancel goal",
		func(s Store) error {
			e, err := c.ledger.WithStore(s).Remove(ctx, fixtureID, eventID)
			removed = e
			return err
		},
		func(s Store) error {
			_, err := c.projector.WithStore(s).RevertGoal(ctx, fixtureID, removed.Team, removed.PlayerID)
			return err
		},
		goalPartialMessage(
			"goal removed but score not reverted, check manually",
			"goal removed and score reverted but player season goals not reverted, check manually",
		),
	)
	c.publishAfter(ctx, fixtureID, err)
	if err != nil {
		return recordedIfPartial(removed, err), err
	}

	c.logger.Info("↩️ Goal %s cancelled for %s (fixture %s)", eventID, removed.Team, fixtureID)
	return removed, nil
}

// RecordCard 记录黄牌/红牌, 指定球员时其牌计数 +1
func (c *LiveMatchController) RecordCard(ctx context.Context, fixtureID string, team models.Team, playerID *string, kind models.CardKind) (event *models.MatchEvent, err error) {
	ctx, span := c.startSpan(ctx, "RecordCard", fixtureID)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("card.kind", string(kind)))

	eventKind, ok := kind.EventKind()
	if !ok {
		return nil, common.Validation("invalid card kind %q", kind)
	}
	f, err := c.loadFixture(ctx, fixtureID, team)
	if err != nil {
		return nil, err
	}
	if err := c.resolvePlayer(ctx, f, team, playerID); err != nil {
		return nil, err
	}

	var recorded *models.MatchEvent
	err = c.twoStep(ctx, fixtureID, "record card",
		func(s Store) error {
			e, err := c.ledger.WithStore(s).Append(ctx, AppendRequest{
				FixtureID:      fixtureID,
				Kind:           eventKind,
				Team:           team,
				PlayerID:       playerID,
				ElapsedSeconds: c.elapsed(f),
			})
			recorded = e
			return err
		},
		func(s Store) error {
			return c.projector.WithStore(s).ApplyCard(ctx, playerID, kind)
		},
		staticMessage("card recorded but player statistics not updated, check manually"),
	)
	c.publishAfter(ctx, fixtureID, err)
	if err != nil {
		return recordedIfPartial(recorded, err), err
	}

	c.logger.Info("🟨 %s card %s for %s at %d' (fixture %s)", kind, recorded.ID, team, recorded.Minute, fixtureID)
	return recorded, nil
}

// RecordSubstitution 记录换人, 无聚合副作用, 之后通知阵容系统
func (c *LiveMatchController) RecordSubstitution(ctx context.Context, fixtureID string, team models.Team, playerOutID, playerInID string) (event *models.MatchEvent, err error) {
	ctx, span := c.startSpan(ctx, "RecordSubstitution", fixtureID)
	defer func() { endSpan(span, err) }()

	f, err := c.loadFixture(ctx, fixtureID, team)
	if err != nil {
		return nil, err
	}
	if playerOutID == "" || playerInID == "" {
		return nil, common.Validation("substitution requires both player out and player in")
	}
	if err := c.resolvePlayer(ctx, f, team, &playerOutID); err != nil {
		return nil, err
	}
	if err := c.resolvePlayer(ctx, f, team, &playerInID); err != nil {
		return nil, err
	}

	recorded, err := c.ledger.Append(ctx, AppendRequest{
		FixtureID:      fixtureID,
		Kind:           models.EventSubstitution,
		Team:           team,
		PlayerOutID:    &playerOutID,
		PlayerInID:     &playerInID,
		ElapsedSeconds: c.elapsed(f),
	})
	if err != nil {
		return nil, err
	}
	c.publishAfter(ctx, fixtureID, nil)

	if c.lineup != nil {
		notice := SubstitutionNotice{
			FixtureID:      fixtureID,
			EventID:        recorded.ID,
			Team:           team,
			TeamID:         f.TeamID(team),
			PlayerOutID:    playerOutID,
			PlayerInID:     playerInID,
			Minute:         recorded.Minute,
			ElapsedSeconds: recorded.ElapsedSeconds,
		}
		if err := c.lineup.NotifySubstitution(ctx, notice); err != nil {
			// 换人已记录, 阵容系统需要人工同步
			c.logger.Error("❌ Lineup notification failed for substitution %s: %v", recorded.ID, err)
			c.alert("Lineup", fmt.Sprintf("substitution %s recorded on fixture %s but lineup not notified: %v", recorded.ID, fixtureID, err))
		}
	}

	c.logger.Info("🔁 Substitution %s for %s: %s → %s (fixture %s)", recorded.ID, team, playerOutID, playerInID, fixtureID)
	return recorded, nil
}

// AdjustScoreDirectly 降级路径: 不写账本直接改比分, 并标记比分可能与账本不一致
func (c *LiveMatchController) AdjustScoreDirectly(ctx context.Context, fixtureID string, team models.Team, delta int) (score models.Score, err error) {
	ctx, span := c.startSpan(ctx, "AdjustScoreDirectly", fixtureID)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("score.delta", delta))

	if delta == 0 {
		return models.Score{}, common.Validation("score delta must not be zero")
	}
	if _, err := c.loadFixture(ctx, fixtureID, team); err != nil {
		return models.Score{}, err
	}

	err = c.twoStep(ctx, fixtureID, "adjust score",
		func(s Store) error {
			adjusted, err := c.projector.WithStore(s).NudgeScore(ctx, fixtureID, team, delta)
			score = adjusted
			return err
		},
		func(s Store) error {
			return c.projector.WithStore(s).FlagDiverged(ctx, fixtureID)
		},
		staticMessage("score adjusted but divergence flag not set, check manually"),
	)
	c.publishAfter(ctx, fixtureID, err)
	if err != nil {
		return score, err
	}

	c.logger.Warn("⚠️ Score for fixture %s adjusted directly (%s %+d) without a ledger entry, now %d-%d",
		fixtureID, team, delta, score.Home, score.Away)
	return score, nil
}

// ReconcileScore 用账本重算比分, 清除不一致标记
func (c *LiveMatchController) ReconcileScore(ctx context.Context, fixtureID string) (score models.Score, err error) {
	ctx, span := c.startSpan(ctx, "ReconcileScore", fixtureID)
	defer func() { endSpan(span, err) }()

	if _, err := c.loadFixture(ctx, fixtureID, models.TeamHome); err != nil {
		return models.Score{}, err
	}

	recompute := func(s Store) error {
		recomputed, err := c.projector.WithStore(s).Recompute(ctx, fixtureID)
		score = recomputed
		return err
	}
	if tx, ok := c.store.(Transactor); ok {
		err = tx.WithinTx(ctx, recompute)
	} else {
		err = recompute(c.store)
	}
	if err != nil {
		return models.Score{}, err
	}
	c.publishAfter(ctx, fixtureID, nil)

	c.logger.Info("✅ Score for fixture %s reconciled from ledger: %d-%d", fixtureID, score.Home, score.Away)
	return score, nil
}

// ConsistencyReport 存储比分与账本推导比分的对比
type ConsistencyReport struct {
	FixtureID     string       `json:"fixture_id"`
	Stored        models.Score `json:"stored"`
	Derived       models.Score `json:"derived"`
	Consistent    bool         `json:"consistent"`
	ScoreDiverged bool         `json:"score_diverged"`
}

// CheckConsistency 检查比分是否等于未删除进球数
func (c *LiveMatchController) CheckConsistency(ctx context.Context, fixtureID string) (*ConsistencyReport, error) {
	f, err := c.loadFixture(ctx, fixtureID, models.TeamHome)
	if err != nil {
		return nil, err
	}
	events, err := c.ledger.List(ctx, fixtureID)
	if err != nil {
		return nil, err
	}
	derived := DeriveScore(events)
	return &ConsistencyReport{
		FixtureID:     fixtureID,
		Stored:        f.Score,
		Derived:       derived,
		Consistent:    derived == f.Score,
		ScoreDiverged: f.ScoreDiverged,
	}, nil
}

// Snapshot 当前比赛快照
func (c *LiveMatchController) Snapshot(ctx context.Context, fixtureID string) (*models.Snapshot, error) {
	f, err := c.loadFixture(ctx, fixtureID, models.TeamHome)
	if err != nil {
		return nil, err
	}
	events, err := c.ledger.List(ctx, fixtureID)
	if err != nil {
		return nil, err
	}
	return BuildSnapshot(*f, events, c.clock.Now()), nil
}

// Events 按比赛时间升序的事件
func (c *LiveMatchController) Events(ctx context.Context, fixtureID string) ([]models.MatchEvent, error) {
	if _, err := c.loadFixture(ctx, fixtureID, models.TeamHome); err != nil {
		return nil, err
	}
	return c.ledger.List(ctx, fixtureID)
}

// PlayerStat 球员赛季统计, 从未计数的球员返回全 0
func (c *LiveMatchController) PlayerStat(ctx context.Context, playerID string) (*models.PlayerSeasonStat, error) {
	if playerID == "" {
		return nil, common.Validation("player id is required")
	}
	stat, err := c.store.GetPlayerStat(ctx, playerID)
	if errors.Is(err, common.ErrNotFound) {
		return &models.PlayerSeasonStat{PlayerID: playerID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load player stat %s: %w", playerID, err)
	}
	return stat, nil
}

// Start 开始/继续/重开计时
func (c *LiveMatchController) Start(ctx context.Context, fixtureID string) (*models.Fixture, error) {
	return c.clockAction(ctx, "Start", fixtureID, func(ctx context.Context) (*models.Fixture, error) {
		return c.machine.Start(ctx, fixtureID)
	})
}

// Pause 暂停计时
func (c *LiveMatchController) Pause(ctx context.Context, fixtureID string) (*models.Fixture, error) {
	return c.clockAction(ctx, "Pause", fixtureID, func(ctx context.Context) (*models.Fixture, error) {
		return c.machine.Pause(ctx, fixtureID)
	})
}

// End 结束比赛
func (c *LiveMatchController) End(ctx context.Context, fixtureID string) (*models.Fixture, error) {
	return c.clockAction(ctx, "End", fixtureID, func(ctx context.Context) (*models.Fixture, error) {
		return c.machine.End(ctx, fixtureID)
	})
}

// AdjustCheckpoint 时钟 +/- 秒
func (c *LiveMatchController) AdjustCheckpoint(ctx context.Context, fixtureID string, deltaSeconds int) (*models.Fixture, error) {
	return c.clockAction(ctx, "AdjustCheckpoint", fixtureID, func(ctx context.Context) (*models.Fixture, error) {
		return c.machine.AdjustCheckpoint(ctx, fixtureID, deltaSeconds)
	})
}

// ResetCheckpoint 时钟归零 (需要确认)
func (c *LiveMatchController) ResetCheckpoint(ctx context.Context, fixtureID string, confirmed bool) (*models.Fixture, error) {
	return c.clockAction(ctx, "ResetCheckpoint", fixtureID, func(ctx context.Context) (*models.Fixture, error) {
		return c.machine.ResetCheckpoint(ctx, fixtureID, confirmed)
	})
}

func (c *LiveMatchController) clockAction(ctx context.Context, op, fixtureID string, fn func(context.Context) (*models.Fixture, error)) (f *models.Fixture, err error) {
	ctx, span := c.startSpan(ctx, op, fixtureID)
	defer func() { endSpan(span, err) }()

	f, err = fn(ctx)
	if err != nil {
		return nil, err
	}
	c.publishAfter(ctx, fixtureID, nil)

	c.logger.Info("⏱️ %s fixture %s: status=%s checkpoint=%d running=%v", op, fixtureID, f.Status, f.ClockCheckpoint, f.Running())
	return f, nil
}

// partialMessage 按第二步的失败原因给出操作员提示
type partialMessage func(cause error) string

func staticMessage(msg string) partialMessage {
	return func(error) string { return msg }
}

// goalPartialMessage 区分比分未动, 与比分已动但球员进球未动
func goalPartialMessage(scoreMissed, statMissed string) partialMessage {
	return func(cause error) string {
		var statErr *StatUpdateError
		if errors.As(cause, &statErr) {
			return statMissed
		}
		return scoreMissed
	}
}

// twoStep 账本一步 + 聚合一步.
// 存储支持事务时两步同事务提交; 否则第二步失败返回 PartialFailure, 不回滚不重试.
func (c *LiveMatchController) twoStep(ctx context.Context, fixtureID, action string, first, second func(Store) error, message partialMessage) error {
	if tx, ok := c.store.(Transactor); ok {
		return tx.WithinTx(ctx, func(s Store) error {
			if err := first(s); err != nil {
				return err
			}
			return second(s)
		})
	}

	if err := first(c.store); err != nil {
		return err
	}
	if err := second(c.store); err != nil {
		return c.partialFailure(fixtureID, action, message(err), err)
	}
	return nil
}

func (c *LiveMatchController) partialFailure(fixtureID, action, message string, cause error) error {
	perr := common.Partial(message, cause)
	c.logger.Error("🚨 PARTIAL FAILURE on fixture %s (%s): %v", fixtureID, action, perr)
	if c.alerter != nil {
		if err := c.alerter.AlertPartialFailure(fixtureID, action, perr); err != nil {
			c.logger.Error("❌ Failed to send partial failure alert: %v", err)
		}
	}
	return perr
}

func (c *LiveMatchController) alert(component, message string) {
	if c.alerter == nil {
		return
	}
	if err := c.alerter.AlertError(component, message); err != nil {
		c.logger.Error("❌ Failed to send alert: %v", err)
	}
}

// loadFixture 校验 team 并读取比赛, 未知比赛为 ValidationError
func (c *LiveMatchController) loadFixture(ctx context.Context, fixtureID string, team models.Team) (*models.Fixture, error) {
	if fixtureID == "" {
		return nil, common.Validation("fixture id is required")
	}
	if !team.Valid() {
		return nil, common.Validation("invalid team %q", team)
	}
	f, err := c.store.GetFixture(ctx, fixtureID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Validation("unknown fixture %q", fixtureID)
		}
		return nil, fmt.Errorf("load fixture %s: %w", fixtureID, err)
	}
	return f, nil
}

// resolvePlayer 配置了名单时校验球员存在且属于该队
func (c *LiveMatchController) resolvePlayer(ctx context.Context, f *models.Fixture, team models.Team, playerID *string) error {
	if c.roster == nil || playerID == nil {
		return nil
	}
	p, err := c.roster.Player(ctx, *playerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.NotFound("player %q not found", *playerID)
		}
		return fmt.Errorf("resolve player %s: %w", *playerID, err)
	}
	if p.TeamID != f.TeamID(team) {
		return common.Validation("player %q does not play for %s", *playerID, f.TeamID(team))
	}
	return nil
}

func (c *LiveMatchController) elapsed(f *models.Fixture) int {
	return clock.ElapsedNow(f.ClockCheckpoint, f.RunningSince, f.Status == models.StatusLive, c.clock.Now())
}

// publishAfter 状态有变化时推送快照 (成功或部分失败)
func (c *LiveMatchController) publishAfter(ctx context.Context, fixtureID string, actionErr error) {
	if actionErr != nil && !errors.Is(actionErr, common.ErrPartialFailure) {
		return
	}
	if len(c.fanout.sinks) == 0 {
		return
	}
	snapshot, err := c.Snapshot(ctx, fixtureID)
	if err != nil {
		c.logger.Error("❌ Failed to build snapshot for fixture %s: %v", fixtureID, err)
		return
	}
	c.fanout.publish(ctx, snapshot)
}

func recordedIfPartial(event *models.MatchEvent, err error) *models.MatchEvent {
	if errors.Is(err, common.ErrPartialFailure) {
		return event
	}
	return nil
}

func (c *LiveMatchController) startSpan(ctx context.Context, op, fixtureID string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "LiveMatchController."+op,
		trace.WithAttributes(attribute.String("fixture.id", fixtureID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}
