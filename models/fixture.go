package models

import (
	"strings"
	"time"
)

// Team 比赛中的一方
type Team string

const (
	TeamHome Team = "home"
	TeamAway Team = "away"
)

// ParseTeam 解析 home/away, 大小写不敏感
func ParseTeam(s string) (Team, bool) {
	switch Team(strings.ToLower(strings.TrimSpace(s))) {
	case TeamHome:
		return TeamHome, true
	case TeamAway:
		return TeamAway, true
	}
	return "", false
}

// Valid 是否为合法的一方
func (t Team) Valid() bool {
	return t == TeamHome || t == TeamAway
}

// FixtureStatus 比赛状态
type FixtureStatus string

const (
	StatusScheduled FixtureStatus = "scheduled"
	StatusLive      FixtureStatus = "live"
	StatusFinished  FixtureStatus = "finished"
)

// Score 比分缓存 (由未删除的进球事件推导)
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Fixture 一场比赛
type Fixture struct {
	ID       string `json:"id" db:"id"`
	HomeTeam string `json:"home_team" db:"home_team"`
	AwayTeam string `json:"away_team" db:"away_team"`

	Score  Score         `json:"score"`
	Status FixtureStatus `json:"status" db:"status"`

	// 比赛时钟: 已累计秒数 + 开始计时的时间点 (暂停时为 nil)
	ClockCheckpoint int        `json:"clock_checkpoint" db:"clock_checkpoint"`
	RunningSince    *time.Time `json:"running_since,omitempty" db:"running_since"`

	// 比分被直接调整过, 可能与事件账本不一致
	ScoreDiverged bool `json:"score_diverged" db:"score_diverged"`

	// 元数据, 原样保留
	Competition string `json:"competition,omitempty" db:"competition"`
	Venue       string `json:"venue,omitempty" db:"venue"`
	HomeManager string `json:"home_manager,omitempty" db:"home_manager"`
	AwayManager string `json:"away_manager,omitempty" db:"away_manager"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Running 时钟是否正在走
func (f *Fixture) Running() bool {
	return f.Status == StatusLive && f.RunningSince != nil
}

// TeamID 返回某一方的球队标识
func (f *Fixture) TeamID(team Team) string {
	if team == TeamAway {
		return f.AwayTeam
	}
	return f.HomeTeam
}

// ClockState 需要持久化的时钟与状态字段
type ClockState struct {
	Status          FixtureStatus
	ClockCheckpoint int
	RunningSince    *time.Time
}

// ClockState 提取时钟字段
func (f *Fixture) ClockState() ClockState {
	return ClockState{
		Status:          f.Status,
		ClockCheckpoint: f.ClockCheckpoint,
		RunningSince:    f.RunningSince,
	}
}

// Snapshot 推送给观众的比赛快照
type Snapshot struct {
	Fixture        Fixture      `json:"fixture"`
	Events         []MatchEvent `json:"events"`
	ElapsedSeconds int          `json:"elapsed_seconds"`
	Clock          string       `json:"clock"`
	Minute         int          `json:"minute"`
	ServerTime     time.Time    `json:"server_time"`
}
