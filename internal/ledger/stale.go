package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// GetStaleSessions はアイドル状態のアクティブセッションを列挙する
//
// status == active かつ最終更新からidleMinutes分以上経過したセッションを返す。
// idleMinutes == 0 の場合は、呼び出し時点で更新されていない全ての
// アクティブセッションに一致する。これは呼び出し時点のスナップショットであり、
// クレームではない。二重処理を防ぐには続けてClaimSessionを呼ぶこと。
func (l *Ledger) GetStaleSessions(ctx context.Context, idleMinutes int) ([]Session, error) {
	cutoff := l.now().Unix() - int64(idleMinutes)*60

	rows, err := l.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE status = ? AND updated_at <= ? ORDER BY updated_at ASC",
		StatusActive, cutoff)
	if err != nil {
		return nil, fmt.Errorf("アイドルセッションの検索に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("セッションの読み取りに失敗: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ClaimSession はセッションの処理権を獲得する
//
// active状態のセッションのみをclaimedに遷移させる条件付きUPDATEであり、
// 更新行数で勝敗が決まる。同一セッションに対して並行してクレームを試みても、
// 成功するのは必ず1つの呼び出しだけとなる。セッションが存在しない場合や
// 既にクレーム済み・完了済みの場合はfalseを返す。
func (l *Ledger) ClaimSession(ctx context.Context, sessionID string) (bool, error) {
	claimed := false
	err := l.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE sessions SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
			StatusClaimed, l.now().Unix(), sessionID, StatusActive)
		if err != nil {
			return fmt.Errorf("クレームの更新に失敗: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("更新行数の取得に失敗: %w", err)
		}
		claimed = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}
