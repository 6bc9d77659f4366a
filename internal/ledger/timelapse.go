package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// RecordTimelapse は生成されたタイムラプス動画を記録する
//
// 無条件の追記であり、同一ファイル名・同一セッションの重複チェックはしない。
// 同じセッションから品質ティア違いで複数回記録されることは正常な運用である。
func (l *Ledger) RecordTimelapse(ctx context.Context, rec TimelapseRecord) (*Timelapse, error) {
	var tl *Timelapse
	err := l.withWriteTx(ctx, func(tx *sql.Tx) error {
		now := l.now().Unix()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO timelapses (
				session_id, filename, file_path, file_size_mb,
				profile, schedule, date,
				duration_seconds, frame_count, fps, quality, quality_tier,
				created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.SessionID, rec.Filename, rec.FilePath, rec.FileSizeMB,
			rec.Profile, rec.Schedule, rec.Date,
			rec.DurationSeconds, rec.FrameCount, rec.FPS, rec.Quality, rec.QualityTier,
			now,
		)
		if err != nil {
			return fmt.Errorf("タイムラプスの記録に失敗: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("タイムラプスIDの取得に失敗: %w", err)
		}

		tl = &Timelapse{
			ID:              id,
			SessionID:       rec.SessionID,
			Filename:        rec.Filename,
			FilePath:        rec.FilePath,
			FileSizeMB:      rec.FileSizeMB,
			Profile:         rec.Profile,
			Schedule:        rec.Schedule,
			Date:            rec.Date,
			DurationSeconds: rec.DurationSeconds,
			FrameCount:      rec.FrameCount,
			FPS:             rec.FPS,
			Quality:         rec.Quality,
			QualityTier:     rec.QualityTier,
			CreatedAt:       time.Unix(now, 0),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tl, nil
}

// GetTimelapses はタイムラプス動画を検索する
//
// フィルタはAND結合で、空のフィールドは条件を課さない。
// 結果は新しい順（created_at降順、同時刻はID降順）で決定的に並ぶ。
func (l *Ledger) GetTimelapses(ctx context.Context, filter TimelapseFilter) ([]Timelapse, error) {
	query := `
		SELECT id, session_id, filename, file_path, file_size_mb,
			profile, schedule, date,
			duration_seconds, frame_count, fps, quality, quality_tier,
			created_at
		FROM timelapses
	`

	var conds []string
	var args []any
	if filter.Profile != "" {
		conds = append(conds, "profile = ?")
		args = append(args, filter.Profile)
	}
	if filter.Schedule != "" {
		conds = append(conds, "schedule = ?")
		args = append(args, filter.Schedule)
	}
	if filter.Date != "" {
		conds = append(conds, "date = ?")
		args = append(args, filter.Date)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("タイムラプスの検索に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var timelapses []Timelapse
	for rows.Next() {
		var (
			tl        Timelapse
			createdAt int64
		)
		err := rows.Scan(
			&tl.ID, &tl.SessionID, &tl.Filename, &tl.FilePath, &tl.FileSizeMB,
			&tl.Profile, &tl.Schedule, &tl.Date,
			&tl.DurationSeconds, &tl.FrameCount, &tl.FPS, &tl.Quality, &tl.QualityTier,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("タイムラプスの読み取りに失敗: %w", err)
		}
		tl.CreatedAt = time.Unix(createdAt, 0)
		timelapses = append(timelapses, tl)
	}
	return timelapses, rows.Err()
}

// CountByStatus はステータス毎のセッション数を返す
// ダッシュボードのステータス表示用
func (l *Ledger) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM sessions GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("セッション数の集計に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("集計結果の読み取りに失敗: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

// Counts は台帳全体の件数サマリ
type Counts struct {
	Sessions   map[Status]int `json:"sessions"`
	Captures   int            `json:"captures"`
	Timelapses int            `json:"timelapses"`
}

// GetCounts は台帳全体の件数サマリを返す
func (l *Ledger) GetCounts(ctx context.Context) (*Counts, error) {
	sessions, err := l.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	c := &Counts{Sessions: sessions}
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM captures").Scan(&c.Captures); err != nil {
		return nil, fmt.Errorf("撮影数の集計に失敗: %w", err)
	}
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM timelapses").Scan(&c.Timelapses); err != nil {
		return nil, fmt.Errorf("タイムラプス数の集計に失敗: %w", err)
	}
	return c, nil
}
