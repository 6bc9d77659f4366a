package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// デフォルトのリトライ設定
const (
	defaultRetryAttempts = 5
	defaultRetryBackoff  = 20 * time.Millisecond
)

// Options はLedgerの動作設定
type Options struct {
	BusyRetryAttempts int           // ロック競合時のリトライ回数（0ならデフォルト）
	BusyRetryBackoff  time.Duration // 初回リトライまでの待機時間（以降は倍々）
}

// Ledger はSQLiteを背後に持つ撮影台帳
// 複数のゴルーチン・プロセスから同時に呼び出せる
type Ledger struct {
	db            *sql.DB
	retryAttempts int
	retryBackoff  time.Duration

	// 現在時刻の取得関数（テストで差し替える）
	now func() time.Time
}

// Open は指定パスの台帳データベースを開く
// ファイルが存在しない場合は作成し、スキーママイグレーションを適用する
func Open(path string, opts Options) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("台帳ディレクトリの作成に失敗: %w", err)
		}
	}

	// _txlock=immediate により全ての書き込みトランザクションが
	// 開始時点で排他ロックを取得する（遅延取得によるrow-absent競合を防ぐ）
	dsn := fmt.Sprintf(
		"file:%s?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("台帳データベースのオープンに失敗: %w", err)
	}

	// 接続を検証
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("台帳データベースへの接続に失敗: %w", err)
	}

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}

	l := &Ledger{
		db:            db,
		retryAttempts: opts.BusyRetryAttempts,
		retryBackoff:  opts.BusyRetryBackoff,
		now:           time.Now,
	}
	if l.retryAttempts <= 0 {
		l.retryAttempts = defaultRetryAttempts
	}
	if l.retryBackoff <= 0 {
		l.retryBackoff = defaultRetryBackoff
	}

	return l, nil
}

// Close は台帳データベースを閉じる
func (l *Ledger) Close() error {
	return l.db.Close()
}
