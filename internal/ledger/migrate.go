package ledger

import (
	"database/sql"
	"fmt"
)

// baseSchema は初期スキーマ
// CREATE ... IF NOT EXISTS のみで構成され、何度実行しても安全
const baseSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	profile     TEXT NOT NULL,
	date        TEXT NOT NULL,
	schedule    TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'active',
	start_time  INTEGER NOT NULL,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	image_count INTEGER NOT NULL DEFAULT 0,
	lux_min     REAL,
	lux_max     REAL,
	lux_avg     REAL,
	lux_count   INTEGER NOT NULL DEFAULT 0,
	iso_min     INTEGER,
	iso_max     INTEGER,
	wb_min      INTEGER,
	wb_max      INTEGER
);

CREATE TABLE IF NOT EXISTS captures (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id            TEXT NOT NULL REFERENCES sessions(id),
	filename              TEXT NOT NULL,
	timestamp             INTEGER NOT NULL,
	iso                   INTEGER,
	shutter_speed         REAL,
	exposure_compensation REAL,
	lux                   REAL,
	wb_temp               INTEGER,
	awb_mode              TEXT,
	analog_gain           REAL,
	digital_gain          REAL,
	created_at            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS timelapses (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id       TEXT NOT NULL REFERENCES sessions(id),
	filename         TEXT NOT NULL,
	file_path        TEXT NOT NULL,
	file_size_mb     REAL NOT NULL DEFAULT 0,
	profile          TEXT NOT NULL,
	schedule         TEXT NOT NULL,
	date             TEXT NOT NULL,
	duration_seconds REAL NOT NULL DEFAULT 0,
	frame_count      INTEGER NOT NULL DEFAULT 0,
	fps              INTEGER NOT NULL DEFAULT 0,
	quality          INTEGER NOT NULL DEFAULT 0,
	created_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_captures_session ON captures(session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_status_updated ON sessions(status, updated_at);
`

// additiveColumns は後から追加されたカラム
// 既存デプロイのデータベースにも適用できるよう、存在確認してから追加する
var additiveColumns = []struct {
	table  string
	column string
	ddl    string
}{
	{"sessions", "was_active", "INTEGER NOT NULL DEFAULT 0"},
	{"captures", "is_bracket", "INTEGER NOT NULL DEFAULT 0"},
	{"captures", "bracket_index", "INTEGER"},
	{"captures", "bracket_ev_offset", "REAL"},
	{"captures", "is_hdr_result", "INTEGER NOT NULL DEFAULT 0"},
	{"captures", "hdr_result_id", "INTEGER REFERENCES captures(id)"},
	{"captures", "source_bracket_ids", "TEXT"},
	{"timelapses", "quality_tier", "TEXT NOT NULL DEFAULT ''"},
}

// additiveIndexes は後から追加されたインデックス
var additiveIndexes = []struct {
	name string
	ddl  string
}{
	{"idx_timelapses_created", "CREATE INDEX idx_timelapses_created ON timelapses(created_at DESC, id DESC)"},
	{"idx_timelapses_profile", "CREATE INDEX idx_timelapses_profile ON timelapses(profile, schedule, date)"},
}

// Migrate はスキーマを最新化する
// 追加のみの冪等なマイグレーションであり、起動時以外に運用ツールからも呼び出せる
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(baseSchema); err != nil {
		return fmt.Errorf("基本スキーマの適用に失敗: %w", err)
	}

	for _, c := range additiveColumns {
		exists, err := tableHasColumn(db, c.table, c.column)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.column, c.ddl)
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("カラム %s.%s の追加に失敗: %w", c.table, c.column, err)
		}
	}

	for _, idx := range additiveIndexes {
		exists, err := indexExists(db, idx.name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := db.Exec(idx.ddl); err != nil {
			return fmt.Errorf("インデックス %s の作成に失敗: %w", idx.name, err)
		}
	}

	return nil
}

// tableHasColumn は指定テーブルにカラムが存在するか確認する
func tableHasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("テーブル情報の取得に失敗 (%s): %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("テーブル情報の読み取りに失敗 (%s): %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// indexExists は指定インデックスが存在するか確認する
func indexExists(db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?", name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("インデックス情報の取得に失敗 (%s): %w", name, err)
	}
	return count > 0, nil
}
