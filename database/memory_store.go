package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"live-fixture-service/models"
	"live-fixture-service/pkg/common"
)

// MemoryStore 内存实现, 无事务. 用于测试和本地演示.
// 每个方法单独加锁, 和只保证单文档原子性的文档库行为一致.
type MemoryStore struct {
	mu       sync.RWMutex
	fixtures map[string]*models.Fixture
	events   map[string][]models.MatchEvent
	stats    map[string]*models.PlayerSeasonStat
	players  map[string]models.Player
	seq      int64
	failures map[string]error
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fixtures: make(map[string]*models.Fixture),
		events:   make(map[string][]models.MatchEvent),
		stats:    make(map[string]*models.PlayerSeasonStat),
		players:  make(map[string]models.Player),
		failures: make(map[string]error),
	}
}

// FailNext 让下一次调用 op (方法名) 返回 err
func (m *MemoryStore) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

// takeFailure 必须持有写锁
func (m *MemoryStore) takeFailure(op string) error {
	err, ok := m.failures[op]
	if !ok {
		return nil
	}
	delete(m.failures, op)
	return err
}

// CreateFixture 新建比赛
func (m *MemoryStore) CreateFixture(_ context.Context, f *models.Fixture) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.fixtures[f.ID]; exists {
		return fmt.Errorf("fixture %s already exists", f.ID)
	}
	if f.Status == "" {
		f.Status = models.StatusScheduled
	}
	f.UpdatedAt = time.Now().UTC()
	copied := *f
	m.fixtures[f.ID] = &copied
	return nil
}

// GetFixture 读取比赛 (返回副本)
func (m *MemoryStore) GetFixture(_ context.Context, id string) (*models.Fixture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("GetFixture"); err != nil {
		return nil, err
	}
	f, ok := m.fixtures[id]
	if !ok {
		return nil, fmt.Errorf("fixture %s: %w", id, common.ErrNotFound)
	}
	copied := *f
	if f.RunningSince != nil {
		t := *f.RunningSince
		copied.RunningSince = &t
	}
	return &copied, nil
}

// SaveClockState 写入时钟
func (m *MemoryStore) SaveClockState(_ context.Context, id string, state models.ClockState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("SaveClockState"); err != nil {
		return err
	}
	f, ok := m.fixtures[id]
	if !ok {
		return fmt.Errorf("fixture %s: %w", id, common.ErrNotFound)
	}
	f.Status = state.Status
	f.ClockCheckpoint = state.ClockCheckpoint
	f.RunningSince = nil
	if state.RunningSince != nil {
		t := *state.RunningSince
		f.RunningSince = &t
	}
	f.UpdatedAt = time.Now().UTC()
	return nil
}

// AdjustScore 比分加减, 下限为 0
func (m *MemoryStore) AdjustScore(_ context.Context, id string, team models.Team, delta int) (models.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("AdjustScore"); err != nil {
		return models.Score{}, err
	}
	f, ok := m.fixtures[id]
	if !ok {
		return models.Score{}, fmt.Errorf("fixture %s: %w", id, common.ErrNotFound)
	}
	switch team {
	case models.TeamHome:
		f.Score.Home = floorZero(f.Score.Home + delta)
	case models.TeamAway:
		f.Score.Away = floorZero(f.Score.Away + delta)
	default:
		return models.Score{}, fmt.Errorf("unknown team %q", team)
	}
	f.UpdatedAt = time.Now().UTC()
	return f.Score, nil
}

// SetScore 覆盖比分
func (m *MemoryStore) SetScore(_ context.Context, id string, score models.Score, diverged bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("SetScore"); err != nil {
		return err
	}
	f, ok := m.fixtures[id]
	if !ok {
		return fmt.Errorf("fixture %s: %w", id, common.ErrNotFound)
	}
	f.Score = score
	f.ScoreDiverged = diverged
	f.UpdatedAt = time.Now().UTC()
	return nil
}

// SetScoreDiverged 设置不一致标记
func (m *MemoryStore) SetScoreDiverged(_ context.Context, id string, diverged bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("SetScoreDiverged"); err != nil {
		return err
	}
	f, ok := m.fixtures[id]
	if !ok {
		return fmt.Errorf("fixture %s: %w", id, common.ErrNotFound)
	}
	f.ScoreDiverged = diverged
	return nil
}

// InsertEvent 写入事件
func (m *MemoryStore) InsertEvent(_ context.Context, event *models.MatchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("InsertEvent"); err != nil {
		return err
	}
	if _, ok := m.fixtures[event.FixtureID]; !ok {
		return fmt.Errorf("fixture %s: %w", event.FixtureID, common.ErrNotFound)
	}
	m.seq++
	event.Seq = m.seq
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	m.events[event.FixtureID] = append(m.events[event.FixtureID], *event)
	return nil
}

// GetEvent 读取事件
func (m *MemoryStore) GetEvent(_ context.Context, fixtureID, eventID string) (*models.MatchEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("GetEvent"); err != nil {
		return nil, err
	}
	for _, e := range m.events[fixtureID] {
		if e.ID == eventID {
			copied := e
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("event %s: %w", eventID, common.ErrNotFound)
}

// DeleteEvent 删除事件
func (m *MemoryStore) DeleteEvent(_ context.Context, fixtureID, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("DeleteEvent"); err != nil {
		return err
	}
	events := m.events[fixtureID]
	for i, e := range events {
		if e.ID == eventID {
			m.events[fixtureID] = append(events[:i:i], events[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("event %s: %w", eventID, common.ErrNotFound)
}

// ListEvents 按比赛时间升序列出
func (m *MemoryStore) ListEvents(_ context.Context, fixtureID string) ([]models.MatchEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("ListEvents"); err != nil {
		return nil, err
	}
	events := make([]models.MatchEvent, len(m.events[fixtureID]))
	copy(events, m.events[fixtureID])
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].ElapsedSeconds != events[j].ElapsedSeconds {
			return events[i].ElapsedSeconds < events[j].ElapsedSeconds
		}
		return events[i].Seq < events[j].Seq
	})
	return events, nil
}

// AdjustPlayerStat 球员统计加减
func (m *MemoryStore) AdjustPlayerStat(_ context.Context, playerID string, field models.StatField, delta int) (*models.PlayerSeasonStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("AdjustPlayerStat"); err != nil {
		return nil, err
	}
	stat, ok := m.stats[playerID]
	if !ok {
		stat = &models.PlayerSeasonStat{PlayerID: playerID}
		m.stats[playerID] = stat
	}
	switch field {
	case models.StatGoals:
		stat.Goals = floorZero(stat.Goals + delta)
	case models.StatMinorCautions:
		stat.MinorCautions = floorZero(stat.MinorCautions + delta)
	case models.StatMajorCautions:
		stat.MajorCautions = floorZero(stat.MajorCautions + delta)
	default:
		return nil, fmt.Errorf("unknown stat field %q", field)
	}
	stat.UpdatedAt = time.Now().UTC()
	copied := *stat
	return &copied, nil
}

// GetPlayerStat 读取球员统计
func (m *MemoryStore) GetPlayerStat(_ context.Context, playerID string) (*models.PlayerSeasonStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stat, ok := m.stats[playerID]
	if !ok {
		return nil, fmt.Errorf("player stat %s: %w", playerID, common.ErrNotFound)
	}
	copied := *stat
	return &copied, nil
}

// UpsertPlayer 写入名单
func (m *MemoryStore) UpsertPlayer(_ context.Context, p models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[p.ID] = p
	return nil
}

// TeamPlayers 球队名单
func (m *MemoryStore) TeamPlayers(_ context.Context, teamID string) ([]models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	players := make([]models.Player, 0)
	for _, p := range m.players {
		if p.TeamID == teamID {
			players = append(players, p)
		}
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].ShirtNumber != players[j].ShirtNumber {
			return players[i].ShirtNumber < players[j].ShirtNumber
		}
		return strings.Compare(players[i].Name, players[j].Name) < 0
	})
	return players, nil
}

// GetPlayer 按 id 查球员
func (m *MemoryStore) GetPlayer(_ context.Context, playerID string) (*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.players[playerID]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", playerID, common.ErrNotFound)
	}
	return &p, nil
}

func floorZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
