package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"live-fixture-service/models"
	"live-fixture-service/pkg/common"
	"live-fixture-service/services"
)

// queryer 同时由 *sql.DB 和 *sql.Tx 实现
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLStore 基于 database/sql 的存储, 支持 postgres 和 sqlite
type SQLStore struct {
	db      *sql.DB
	q       queryer
	dialect Dialect
	now     func() time.Time
}

// NewSQLStore 创建 SQL 存储
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, q: db, dialect: dialect, now: time.Now}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.q.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

// WithinTx 在一个事务中执行 fn, fn 返回错误时回滚
func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx services.Store) error) error {
	if s.db == nil {
		// 已经在事务里
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLStore{q: tx, dialect: s.dialect, now: s.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CreateFixture 新建一场比赛 (赛程系统使用)
func (s *SQLStore) CreateFixture(ctx context.Context, f *models.Fixture) error {
	if f.Status == "" {
		f.Status = models.StatusScheduled
	}
	f.UpdatedAt = s.now().UTC()

	_, err := s.exec(ctx, `
		INSERT INTO fixtures (
			id, home_team, away_team, home_score, away_score, status,
			clock_checkpoint, running_since, score_diverged,
			competition, venue, home_manager, away_manager, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		f.ID, f.HomeTeam, f.AwayTeam, f.Score.Home, f.Score.Away, string(f.Status),
		f.ClockCheckpoint, nullableMillis(f.RunningSince), f.ScoreDiverged,
		f.Competition, f.Venue, f.HomeManager, f.AwayManager, toMillis(f.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert fixture %s: %w", f.ID, err)
	}
	return nil
}

// GetFixture 读取比赛
func (s *SQLStore) GetFixture(ctx context.Context, id string) (*models.Fixture, error) {
	var (
		f            models.Fixture
		status       string
		runningSince sql.NullInt64
		updatedAt    int64
	)

	err := s.queryRow(ctx, `
		SELECT id, home_team, away_team, home_score, away_score, status,
		       clock_checkpoint, running_since, score_diverged,
		       competition, venue, home_manager, away_manager, updated_at
		FROM fixtures
		WHERE id = ?
	`, id).Scan(
		&f.ID, &f.HomeTeam, &f.AwayTeam, &f.Score.Home, &f.Score.Away, &status,
		&f.ClockCheckpoint, &runningSince, &f.ScoreDiverged,
		&f.Competition, &f.Venue, &f.HomeManager, &f.AwayManager, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fixture %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query fixture %s: %w", id, err)
	}

	f.Status = models.FixtureStatus(status)
	if runningSince.Valid {
		t := fromMillis(runningSince.Int64)
		f.RunningSince = &t
	}
	f.UpdatedAt = fromMillis(updatedAt)
	return &f, nil
}

// SaveClockState 写入状态与时钟
func (s *SQLStore) SaveClockState(ctx context.Context, id string, state models.ClockState) error {
	result, err := s.exec(ctx, `
		UPDATE fixtures
		SET status = ?, clock_checkpoint = ?, running_since = ?, updated_at = ?
		WHERE id = ?
	`, string(state.Status), state.ClockCheckpoint, nullableMillis(state.RunningSince), toMillis(s.now()), id)
	if err != nil {
		return fmt.Errorf("update clock for %s: %w", id, err)
	}
	return expectOneRow(result, "fixture", id)
}

// AdjustScore 比分加减, 下限为 0
func (s *SQLStore) AdjustScore(ctx context.Context, id string, team models.Team, delta int) (models.Score, error) {
	column, err := scoreColumn(team)
	if err != nil {
		return models.Score{}, err
	}

	var score models.Score
	err = s.queryRow(ctx, `
		UPDATE fixtures
		SET `+column+` = CASE WHEN `+column+` + ? < 0 THEN 0 ELSE `+column+` + ? END,
		    updated_at = ?
		WHERE id = ?
		RETURNING home_score, away_score
	`, delta, delta, toMillis(s.now()), id).Scan(&score.Home, &score.Away)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Score{}, fmt.Errorf("fixture %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return models.Score{}, fmt.Errorf("adjust %s for %s: %w", column, id, err)
	}
	return score, nil
}

// SetScore 覆盖比分
func (s *SQLStore) SetScore(ctx context.Context, id string, score models.Score, diverged bool) error {
	result, err := s.exec(ctx, `
		UPDATE fixtures
		SET home_score = ?, away_score = ?, score_diverged = ?, updated_at = ?
		WHERE id = ?
	`, score.Home, score.Away, diverged, toMillis(s.now()), id)
	if err != nil {
		return fmt.Errorf("set score for %s: %w", id, err)
	}
	return expectOneRow(result, "fixture", id)
}

// SetScoreDiverged 设置比分不一致标记
func (s *SQLStore) SetScoreDiverged(ctx context.Context, id string, diverged bool) error {
	result, err := s.exec(ctx, `
		UPDATE fixtures SET score_diverged = ?, updated_at = ? WHERE id = ?
	`, diverged, toMillis(s.now()), id)
	if err != nil {
		return fmt.Errorf("flag score for %s: %w", id, err)
	}
	return expectOneRow(result, "fixture", id)
}

// InsertEvent 写入事件
func (s *SQLStore) InsertEvent(ctx context.Context, event *models.MatchEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}

	err := s.queryRow(ctx, `
		INSERT INTO match_events (
			id, fixture_id, kind, team, minute, elapsed_seconds,
			player_id, player_out_id, player_in_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq
	`,
		event.ID, event.FixtureID, string(event.Kind), string(event.Team),
		event.Minute, event.ElapsedSeconds,
		nullableString(event.PlayerID), nullableString(event.PlayerOutID), nullableString(event.PlayerInID),
		toMillis(event.CreatedAt),
	).Scan(&event.Seq)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", event.ID, err)
	}
	return nil
}

const eventColumns = `seq, id, fixture_id, kind, team, minute, elapsed_seconds,
	player_id, player_out_id, player_in_id, created_at`

// GetEvent 读取单个事件
func (s *SQLStore) GetEvent(ctx context.Context, fixtureID, eventID string) (*models.MatchEvent, error) {
	row := s.queryRow(ctx, `
		SELECT `+eventColumns+`
		FROM match_events
		WHERE fixture_id = ? AND id = ?
	`, fixtureID, eventID)

	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", eventID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query event %s: %w", eventID, err)
	}
	return event, nil
}

// DeleteEvent 删除事件
func (s *SQLStore) DeleteEvent(ctx context.Context, fixtureID, eventID string) error {
	result, err := s.exec(ctx, `
		DELETE FROM match_events WHERE fixture_id = ? AND id = ?
	`, fixtureID, eventID)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return expectOneRow(result, "event", eventID)
}

// ListEvents 按比赛时间升序列出事件
func (s *SQLStore) ListEvents(ctx context.Context, fixtureID string) ([]models.MatchEvent, error) {
	rows, err := s.query(ctx, `
		SELECT `+eventColumns+`
		FROM match_events
		WHERE fixture_id = ?
		ORDER BY elapsed_seconds ASC, seq ASC
	`, fixtureID)
	if err != nil {
		return nil, fmt.Errorf("query events for %s: %w", fixtureID, err)
	}
	defer rows.Close()

	events := make([]models.MatchEvent, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// AdjustPlayerStat 球员统计加减, 下限为 0
func (s *SQLStore) AdjustPlayerStat(ctx context.Context, playerID string, field models.StatField, delta int) (*models.PlayerSeasonStat, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("unknown stat field %q", field)
	}
	now := toMillis(s.now())
	column := string(field)

	if _, err := s.exec(ctx, `
		INSERT INTO player_season_stats (player_id, goals, minor_cautions, major_cautions, updated_at)
		VALUES (?, 0, 0, 0, ?)
		ON CONFLICT (player_id) DO NOTHING
	`, playerID, now); err != nil {
		return nil, fmt.Errorf("ensure stat row for %s: %w", playerID, err)
	}

	var (
		stat      models.PlayerSeasonStat
		updatedAt int64
	)
	err := s.queryRow(ctx, `
		UPDATE player_season_stats
		SET `+column+` = CASE WHEN `+column+` + ? < 0 THEN 0 ELSE `+column+` + ? END,
		    updated_at = ?
		WHERE player_id = ?
		RETURNING player_id, goals, minor_cautions, major_cautions, updated_at
	`, delta, delta, now, playerID).Scan(
		&stat.PlayerID, &stat.Goals, &stat.MinorCautions, &stat.MajorCautions, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("adjust %s for %s: %w", column, playerID, err)
	}
	stat.UpdatedAt = fromMillis(updatedAt)
	return &stat, nil
}

// GetPlayerStat 读取球员统计
func (s *SQLStore) GetPlayerStat(ctx context.Context, playerID string) (*models.PlayerSeasonStat, error) {
	var (
		stat      models.PlayerSeasonStat
		updatedAt int64
	)
	err := s.queryRow(ctx, `
		SELECT player_id, goals, minor_cautions, major_cautions, updated_at
		FROM player_season_stats
		WHERE player_id = ?
	`, playerID).Scan(&stat.PlayerID, &stat.Goals, &stat.MinorCautions, &stat.MajorCautions, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player stat %s: %w", playerID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query player stat %s: %w", playerID, err)
	}
	stat.UpdatedAt = fromMillis(updatedAt)
	return &stat, nil
}

// UpsertPlayer 写入名单中的球员
func (s *SQLStore) UpsertPlayer(ctx context.Context, p models.Player) error {
	_, err := s.exec(ctx, `
		INSERT INTO players (player_id, team_id, name, shirt_number)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (player_id)
		DO UPDATE SET team_id = excluded.team_id, name = excluded.name, shirt_number = excluded.shirt_number
	`, p.ID, p.TeamID, p.Name, p.ShirtNumber)
	if err != nil {
		return fmt.Errorf("upsert player %s: %w", p.ID, err)
	}
	return nil
}

// TeamPlayers 球队名单
func (s *SQLStore) TeamPlayers(ctx context.Context, teamID string) ([]models.Player, error) {
	rows, err := s.query(ctx, `
		SELECT player_id, team_id, name, shirt_number
		FROM players
		WHERE team_id = ?
		ORDER BY shirt_number, name
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("query players for %s: %w", teamID, err)
	}
	defer rows.Close()

	players := make([]models.Player, 0)
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.TeamID, &p.Name, &p.ShirtNumber); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// GetPlayer 按 id 查球员
func (s *SQLStore) GetPlayer(ctx context.Context, playerID string) (*models.Player, error) {
	var p models.Player
	err := s.queryRow(ctx, `
		SELECT player_id, team_id, name, shirt_number FROM players WHERE player_id = ?
	`, playerID).Scan(&p.ID, &p.TeamID, &p.Name, &p.ShirtNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %s: %w", playerID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query player %s: %w", playerID, err)
	}
	return &p, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.MatchEvent, error) {
	var (
		e                     models.MatchEvent
		kind, team            string
		playerID, outID, inID sql.NullString
		createdAt             int64
	)
	if err := row.Scan(
		&e.Seq, &e.ID, &e.FixtureID, &kind, &team, &e.Minute, &e.ElapsedSeconds,
		&playerID, &outID, &inID, &createdAt,
	); err != nil {
		return nil, err
	}
	e.Kind = models.EventKind(kind)
	e.Team = models.Team(team)
	e.PlayerID = stringPtr(playerID)
	e.PlayerOutID = stringPtr(outID)
	e.PlayerInID = stringPtr(inID)
	e.CreatedAt = fromMillis(createdAt)
	return &e, nil
}

func scoreColumn(team models.Team) (string, error) {
	switch team {
	case models.TeamHome:
		return "home_score", nil
	case models.TeamAway:
		return "away_score", nil
	}
	return "", fmt.Errorf("unknown team %q", team)
}

func expectOneRow(result sql.Result, what, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, common.ErrNotFound)
	}
	return nil
}

func nullableMillis(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
