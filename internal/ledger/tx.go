package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// withWriteTx は即時排他トランザクションのスコープでfnを実行する
//
// fnがnilを返した場合のみコミットされ、エラー（パニックを含む）時は
// 必ずロールバックしてから伝播する。SQLITE_BUSY / SQLITE_LOCKED は
// 指数バックオフ付きでリトライし、上限を超えるとErrBusyを返す。
func (l *Ledger) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	backoff := l.retryBackoff
	var lastErr error

	for attempt := 0; attempt < l.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		err := l.runWriteTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%w: %d回リトライしても取得できませんでした: %v",
		ErrBusy, l.retryAttempts, lastErr)
}

// runWriteTx は1回分のトランザクション実行
// DSNの_txlock=immediateにより、BeginTxの時点で書き込みロックが取得される
func (l *Ledger) runWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// isBusy はロック競合による一時的なエラーか判定する
func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	// 拡張エラーコード（SQLITE_BUSY_SNAPSHOT等）も下位8bitで判定できる
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
