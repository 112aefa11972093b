package models

import (
	"time"
)

// EventKind 比赛事件类型
type EventKind string

const (
	EventGoal         EventKind = "goal"
	EventCautionMinor EventKind = "caution_minor"
	EventCautionMajor EventKind = "caution_major"
	EventSubstitution EventKind = "substitution"
)

// Valid 是否为已知事件类型
func (k EventKind) Valid() bool {
	switch k {
	case EventGoal, EventCautionMinor, EventCautionMajor, EventSubstitution:
		return true
	}
	return false
}

// CardKind 牌的类型
type CardKind string

const (
	CardMinor CardKind = "minor"
	CardMajor CardKind = "major"
)

// EventKind 返回牌对应的事件类型
func (c CardKind) EventKind() (EventKind, bool) {
	switch c {
	case CardMinor:
		return EventCautionMinor, true
	case CardMajor:
		return EventCautionMajor, true
	}
	return "", false
}

// MatchEvent 比赛事件 (只新增或删除, 不修改)
type MatchEvent struct {
	ID        string    `json:"id" db:"id"`
	FixtureID string    `json:"fixture_id" db:"fixture_id"`
	Seq       int64     `json:"seq" db:"seq"`
	Kind      EventKind `json:"kind" db:"kind"`
	Team      Team      `json:"team" db:"team"`

	// 记录时的比赛时间
	Minute         int `json:"minute" db:"minute"`
	ElapsedSeconds int `json:"elapsed_seconds" db:"elapsed_seconds"`

	// 进球/牌: PlayerID, 可为空 (未知球员)
	// 换人: PlayerOutID + PlayerInID
	PlayerID    *string `json:"player_id,omitempty" db:"player_id"`
	PlayerOutID *string `json:"player_out_id,omitempty" db:"player_out_id"`
	PlayerInID  *string `json:"player_in_id,omitempty" db:"player_in_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
