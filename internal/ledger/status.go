package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// MarkSessionComplete はセッションを撮影完了状態にする
// 冪等であり、既に後段の状態にある場合は何もしない
func (l *Ledger) MarkSessionComplete(ctx context.Context, sessionID string) error {
	return l.advanceStatus(ctx, sessionID, StatusComplete)
}

// MarkTimelapseGenerated はセッションを動画生成済み状態にする
// 冪等であり、ステータスが後退することはない
func (l *Ledger) MarkTimelapseGenerated(ctx context.Context, sessionID string) error {
	return l.advanceStatus(ctx, sessionID, StatusTimelapseGenerated)
}

// advanceStatus はステータスを前方にのみ遷移させる
//
// 現在の状態と目標状態の順序比較をトランザクション内で行うため、
// 並行する遷移要求があっても後退は起こらない。目標より先の状態に
// ある場合は更新せず正常終了する。セッションが存在しない場合はErrNotFound。
func (l *Ledger) advanceStatus(ctx context.Context, sessionID string, target Status) error {
	return l.withWriteTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			"SELECT status FROM sessions WHERE id = ?", sessionID).Scan(&current)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		if err != nil {
			return fmt.Errorf("ステータスの読み取りに失敗: %w", err)
		}

		if statusRank(Status(current)) >= statusRank(target) {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?",
			target, l.now().Unix(), sessionID)
		if err != nil {
			return fmt.Errorf("ステータスの更新に失敗: %w", err)
		}
		return nil
	})
}

// UpdateWasActive はスケジュール窓の稼働フラグを更新する
// 対象の自然キーに対応するセッションが存在しない場合はErrNotFoundを返す
func (l *Ledger) UpdateWasActive(ctx context.Context, profile, date, schedule string, wasActive bool) error {
	if err := validateKey(profile, date, schedule); err != nil {
		return err
	}
	id := SessionKey(profile, date, schedule)

	return l.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE sessions SET was_active = ? WHERE id = ?",
			boolToInt(wasActive), id)
		if err != nil {
			return fmt.Errorf("稼働フラグの更新に失敗: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("更新行数の取得に失敗: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil
	})
}

// GetWasActive はスケジュール窓の稼働フラグを取得する
// セッションが存在しない（フラグ未定義の）キーに対してはfalseを返す
func (l *Ledger) GetWasActive(ctx context.Context, profile, date, schedule string) (bool, error) {
	if err := validateKey(profile, date, schedule); err != nil {
		return false, err
	}
	id := SessionKey(profile, date, schedule)

	var wasActive int
	err := l.db.QueryRowContext(ctx,
		"SELECT was_active FROM sessions WHERE id = ?", id).Scan(&wasActive)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("稼働フラグの取得に失敗: %w", err)
	}
	return wasActive != 0, nil
}
