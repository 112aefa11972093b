package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"live-fixture-service/logger"
	"live-fixture-service/models"
	"live-fixture-service/pkg/common"
)

// RosterService 球队名单查询 (只读), 结果按 TTL 缓存
type RosterService struct {
	source RosterSource
	cache  *QueryCache
}

// NewRosterService 创建名单服务
func NewRosterService(source RosterSource, ttl time.Duration) *RosterService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RosterService{
		source: source,
		cache:  NewQueryCache(ttl),
	}
}

// TeamPlayers 某球队的球员列表
func (s *RosterService) TeamPlayers(ctx context.Context, teamID string) ([]models.Player, error) {
	if teamID == "" {
		return nil, common.Validation("team id is required")
	}

	key := "team:" + teamID
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]models.Player), nil
	}

	players, err := s.source.TeamPlayers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("load roster for team %s: %w", teamID, err)
	}
	if players == nil {
		players = []models.Player{}
	}
	s.cache.Set(key, players)
	logger.Printf("[RosterService] ✅ Loaded %d players for team %s", len(players), teamID)
	return players, nil
}

// Player 按 ID 查询球员, 不存在时返回 NotFoundError
func (s *RosterService) Player(ctx context.Context, playerID string) (*models.Player, error) {
	if playerID == "" {
		return nil, common.Validation("player id is required")
	}

	key := "player:" + playerID
	if cached, ok := s.cache.Get(key); ok {
		p := cached.(models.Player)
		return &p, nil
	}

	p, err := s.source.GetPlayer(ctx, playerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFound("player %q not found", playerID)
		}
		return nil, fmt.Errorf("load player %s: %w", playerID, err)
	}
	s.cache.Set(key, *p)
	return p, nil
}

// Invalidate 名单变更后清空缓存
func (s *RosterService) Invalidate() {
	s.cache.Clear()
}

// Close 停止缓存清理
func (s *RosterService) Close() {
	s.cache.Close()
}
