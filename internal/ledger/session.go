package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// sessionColumns はSELECT時のカラム並び
// scanSessionと対応しているため、変更時は両方を揃えること
const sessionColumns = `id, profile, date, schedule, status, start_time, created_at, updated_at,
	image_count, lux_min, lux_max, lux_avg, lux_count, iso_min, iso_max, wb_min, wb_max, was_active`

// SessionKey は自然キーからセッションIDを導出する
// 純粋関数であり、ストアを参照せずに計算できる
// 例: ("a", "2025-10-03", "sunrise") → "a_20251003_sunrise"
func SessionKey(profile, date, schedule string) string {
	return fmt.Sprintf("%s_%s_%s", profile, strings.ReplaceAll(date, "-", ""), schedule)
}

// validateKey は自然キーの構成要素を検証する
func validateKey(profile, date, schedule string) error {
	if profile == "" {
		return fmt.Errorf("%w: profileが空です", ErrValidation)
	}
	if date == "" {
		return fmt.Errorf("%w: dateが空です", ErrValidation)
	}
	if schedule == "" {
		return fmt.Errorf("%w: scheduleが空です", ErrValidation)
	}
	return nil
}

// GetOrCreateSession はセッションを取得し、存在しなければ作成する
//
// 同一の自然キーで何度（並行に）呼ばれても、作成される行は常に1つであり、
// 全ての呼び出しが同じセッションを返す。挿入はON CONFLICT DO NOTHINGの
// 条件付きINSERTを即時排他トランザクション内で行うため、
// check-then-insertの競合は発生しない。
func (l *Ledger) GetOrCreateSession(ctx context.Context, profile, date, schedule string) (*Session, error) {
	if err := validateKey(profile, date, schedule); err != nil {
		return nil, err
	}
	id := SessionKey(profile, date, schedule)

	var sess *Session
	err := l.withWriteTx(ctx, func(tx *sql.Tx) error {
		now := l.now().Unix()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, profile, date, schedule, status, start_time, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, id, profile, date, schedule, StatusActive, now, now, now)
		if err != nil {
			return fmt.Errorf("セッションの挿入に失敗: %w", err)
		}

		// 挿入の成否に関わらず確定済みの行を読み直す
		s, err := scanSession(tx.QueryRowContext(ctx,
			"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id))
		if err != nil {
			return fmt.Errorf("セッションの確認読み取りに失敗: %w", err)
		}
		sess = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSession はセッションIDで1件取得する
// 存在しない場合はErrNotFoundを返す
func (l *Ledger) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	s, err := scanSession(l.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", sessionID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗: %w", err)
	}
	return s, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSession は1行をSessionに変換する
func scanSession(row rowScanner) (*Session, error) {
	var (
		s                      Session
		status                 string
		startTime, createdAt   int64
		updatedAt              int64
		luxMin, luxMax, luxAvg sql.NullFloat64
		isoMin, isoMax         sql.NullInt64
		wbMin, wbMax           sql.NullInt64
		wasActive              int
	)

	err := row.Scan(
		&s.ID, &s.Profile, &s.Date, &s.Schedule, &status,
		&startTime, &createdAt, &updatedAt,
		&s.ImageCount, &luxMin, &luxMax, &luxAvg, &s.LuxCount,
		&isoMin, &isoMax, &wbMin, &wbMax, &wasActive,
	)
	if err != nil {
		return nil, err
	}

	s.Status = Status(status)
	s.StartTime = time.Unix(startTime, 0)
	s.CreatedAt = time.Unix(createdAt, 0)
	s.UpdatedAt = time.Unix(updatedAt, 0)
	s.WasActive = wasActive != 0

	if luxMin.Valid {
		s.LuxMin = &luxMin.Float64
	}
	if luxMax.Valid {
		s.LuxMax = &luxMax.Float64
	}
	if luxAvg.Valid {
		s.LuxAvg = &luxAvg.Float64
	}
	if isoMin.Valid {
		v := int(isoMin.Int64)
		s.ISOMin = &v
	}
	if isoMax.Valid {
		v := int(isoMax.Int64)
		s.ISOMax = &v
	}
	if wbMin.Valid {
		v := int(wbMin.Int64)
		s.WBMin = &v
	}
	if wbMax.Valid {
		v := int(wbMax.Int64)
		s.WBMax = &v
	}

	return &s, nil
}

// sessionAggregates はSessionから集計値を取り出す
func sessionAggregates(s *Session) aggregates {
	return aggregates{
		luxMin:   s.LuxMin,
		luxMax:   s.LuxMax,
		luxAvg:   s.LuxAvg,
		luxCount: s.LuxCount,
		isoMin:   s.ISOMin,
		isoMax:   s.ISOMax,
		wbMin:    s.WBMin,
		wbMax:    s.WBMax,
	}
}
