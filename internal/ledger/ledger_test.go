package ledger

import (
	"path/filepath"
	"testing"
	"time"
)

// newTestLedger はテスト用の台帳を一時ディレクトリに作成する
func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("台帳のオープンに失敗しました: %v", err)
	}
	t.Cleanup(func() {
		if err := l.Close(); err != nil {
			t.Errorf("台帳のクローズに失敗しました: %v", err)
		}
	})
	return l
}

// TestOpenIsIdempotent は同じパスを複数回開けることをテストする
func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	first, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("1回目のオープンに失敗しました: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("1回目のクローズに失敗しました: %v", err)
	}

	// 2回目のオープンでマイグレーションが再実行されてもエラーにならない
	second, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("2回目のオープンに失敗しました: %v", err)
	}
	if err := second.Close(); err != nil {
		t.Fatalf("2回目のクローズに失敗しました: %v", err)
	}
}

// TestOptionsDefaults はリトライ設定のデフォルト値をテストする
func TestOptionsDefaults(t *testing.T) {
	l := newTestLedger(t)

	if l.retryAttempts != defaultRetryAttempts {
		t.Errorf("リトライ回数が一致しません: got %d, want %d", l.retryAttempts, defaultRetryAttempts)
	}
	if l.retryBackoff != defaultRetryBackoff {
		t.Errorf("バックオフが一致しません: got %v, want %v", l.retryBackoff, defaultRetryBackoff)
	}
}

// fixedClock は台帳の現在時刻を固定する
func fixedClock(l *Ledger, at time.Time) {
	l.now = func() time.Time { return at }
}
