package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect SQL 方言
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect 解析 DATABASE_DRIVER
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// Rebind 把 ? 占位符改写成方言的形式 (postgres 为 $n), 字符串字面量内的 ? 保留
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for _, r := range query {
		if r == '\'' {
			quoted = !quoted
		}
		if r == '?' && !quoted {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Connect 连接到数据库
func Connect(dialect Dialect, databaseURL string) (*sql.DB, error) {
	dsn := databaseURL
	if dialect == DialectSQLite && !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 设置连接池
	if dialect == DialectSQLite {
		// SQLite 单写者
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	return db, nil
}

// Migrate 运行数据库迁移
func Migrate(db *sql.DB, dialect Dialect) error {
	for _, migration := range Migrations(dialect) {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Migrations 返回方言对应的建表语句
func Migrations(dialect Dialect) []string {
	seqColumn := "seq BIGSERIAL UNIQUE,\n\t\t\tid VARCHAR(64) PRIMARY KEY"
	boolType := "BOOLEAN NOT NULL DEFAULT FALSE"
	if dialect == DialectSQLite {
		seqColumn = "seq INTEGER PRIMARY KEY AUTOINCREMENT,\n\t\t\tid VARCHAR(64) NOT NULL UNIQUE"
		boolType = "INTEGER NOT NULL DEFAULT 0"
	}

	return []string{
		// 比赛表, 时间字段统一存毫秒
		`CREATE TABLE IF NOT EXISTS fixtures (
			id VARCHAR(64) PRIMARY KEY,
			home_team VARCHAR(100) NOT NULL,
			away_team VARCHAR(100) NOT NULL,
			home_score INTEGER NOT NULL DEFAULT 0,
			away_score INTEGER NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'scheduled',
			clock_checkpoint INTEGER NOT NULL DEFAULT 0,
			running_since BIGINT,
			score_diverged ` + boolType + `,
			competition VARCHAR(200) NOT NULL DEFAULT '',
			venue VARCHAR(200) NOT NULL DEFAULT '',
			home_manager VARCHAR(200) NOT NULL DEFAULT '',
			away_manager VARCHAR(200) NOT NULL DEFAULT '',
			updated_at BIGINT NOT NULL
		)`,

		// 比赛事件表
		`CREATE TABLE IF NOT EXISTS match_events (
			` + seqColumn + `,
			fixture_id VARCHAR(64) NOT NULL REFERENCES fixtures(id),
			kind VARCHAR(20) NOT NULL,
			team VARCHAR(10) NOT NULL,
			minute INTEGER NOT NULL,
			elapsed_seconds INTEGER NOT NULL,
			player_id VARCHAR(64),
			player_out_id VARCHAR(64),
			player_in_id VARCHAR(64),
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_events_fixture ON match_events(fixture_id, elapsed_seconds, seq)`,

		// 球员赛季统计表
		`CREATE TABLE IF NOT EXISTS player_season_stats (
			player_id VARCHAR(64) PRIMARY KEY,
			goals INTEGER NOT NULL DEFAULT 0,
			minor_cautions INTEGER NOT NULL DEFAULT 0,
			major_cautions INTEGER NOT NULL DEFAULT 0,
			updated_at BIGINT NOT NULL
		)`,

		// 名单表
		`CREATE TABLE IF NOT EXISTS players (
			player_id VARCHAR(64) PRIMARY KEY,
			team_id VARCHAR(100) NOT NULL,
			name VARCHAR(200) NOT NULL,
			shirt_number INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_players_team ON players(team_id)`,
	}
}
