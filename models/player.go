package models

import "time"

// StatField 赛季统计字段 (同时是列名)
type StatField string

const (
	StatGoals         StatField = "goals"
	StatMinorCautions StatField = "minor_cautions"
	StatMajorCautions StatField = "major_cautions"
)

// Valid 是否为已知统计字段
func (f StatField) Valid() bool {
	switch f {
	case StatGoals, StatMinorCautions, StatMajorCautions:
		return true
	}
	return false
}

// PlayerSeasonStat 球员赛季累计统计
type PlayerSeasonStat struct {
	PlayerID      string    `json:"player_id" db:"player_id"`
	Goals         int       `json:"goals" db:"goals"`
	MinorCautions int       `json:"minor_cautions" db:"minor_cautions"`
	MajorCautions int       `json:"major_cautions" db:"major_cautions"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Get 读取某个统计字段
func (s PlayerSeasonStat) Get(field StatField) int {
	switch field {
	case StatGoals:
		return s.Goals
	case StatMinorCautions:
		return s.MinorCautions
	case StatMajorCautions:
		return s.MajorCautions
	}
	return 0
}

// Player 名单中的球员
type Player struct {
	ID          string `json:"id" db:"player_id"`
	TeamID      string `json:"team_id" db:"team_id"`
	Name        string `json:"name" db:"name"`
	ShirtNumber int    `json:"shirt_number,omitempty" db:"shirt_number"`
}
