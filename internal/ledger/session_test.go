package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// TestSessionKey は自然キーからのID導出をテストする
func TestSessionKey(t *testing.T) {
	testCases := []struct {
		name     string
		profile  string
		date     string
		schedule string
		want     string
	}{
		{
			name:     "日付のハイフンが除去される",
			profile:  "a",
			date:     "2025-10-03",
			schedule: "sunrise",
			want:     "a_20251003_sunrise",
		},
		{
			name:     "別プロファイル・別スケジュール",
			profile:  "f",
			date:     "2025-12-31",
			schedule: "sunset",
			want:     "f_20251231_sunset",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := SessionKey(tc.profile, tc.date, tc.schedule)
			if got != tc.want {
				t.Errorf("セッションキーが一致しません: got %s, want %s", got, tc.want)
			}
		})
	}
}

// TestGetOrCreateSession はセッションの取得・作成をテストする
func TestGetOrCreateSession(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	sess, err := l.GetOrCreateSession(ctx, "a", "2025-10-03", "sunrise")
	if err != nil {
		t.Fatalf("セッションの作成に失敗しました: %v", err)
	}

	if sess.ID != "a_20251003_sunrise" {
		t.Errorf("セッションIDが一致しません: got %s", sess.ID)
	}
	if sess.Status != StatusActive {
		t.Errorf("新規セッションのステータスがactiveではありません: %s", sess.Status)
	}
	if sess.ImageCount != 0 {
		t.Errorf("新規セッションの撮影枚数が0ではありません: %d", sess.ImageCount)
	}
	if sess.LuxMin != nil || sess.LuxMax != nil || sess.LuxAvg != nil {
		t.Error("新規セッションの照度集計値がnilではありません")
	}
	if sess.ISOMin != nil || sess.WBMin != nil {
		t.Error("新規セッションのISO/WB集計値がnilではありません")
	}
}

// TestGetOrCreateSessionIdempotent は繰り返し呼び出しの冪等性をテストする
func TestGetOrCreateSessionIdempotent(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	first, err := l.GetOrCreateSession(ctx, "b", "2025-10-03", "sunset")
	if err != nil {
		t.Fatalf("1回目の作成に失敗しました: %v", err)
	}

	for i := 0; i < 3; i++ {
		again, err := l.GetOrCreateSession(ctx, "b", "2025-10-03", "sunset")
		if err != nil {
			t.Fatalf("%d回目の呼び出しに失敗しました: %v", i+2, err)
		}
		if again.ID != first.ID {
			t.Errorf("セッションIDが一致しません: got %s, want %s", again.ID, first.ID)
		}
		if !again.CreatedAt.Equal(first.CreatedAt) {
			t.Error("作成時刻が変化しています（再作成されている疑い）")
		}
	}

	var count int
	if err := l.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		t.Fatalf("セッション数の取得に失敗しました: %v", err)
	}
	if count != 1 {
		t.Errorf("セッション行数が一致しません: got %d, want 1", count)
	}
}

// TestGetOrCreateSessionConcurrent は並行呼び出しで行が1つしか作られないことをテストする
func TestGetOrCreateSessionConcurrent(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	const workers = 5
	ids := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sess, err := l.GetOrCreateSession(ctx, "a", "2025-10-03", "sunrise")
			if err != nil {
				errs[n] = err
				return
			}
			ids[n] = sess.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("並行呼び出し%dがエラーになりました: %v", i, errs[i])
		}
		if ids[i] != "a_20251003_sunrise" {
			t.Errorf("並行呼び出し%dのIDが一致しません: got %s", i, ids[i])
		}
	}

	var count int
	if err := l.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		t.Fatalf("セッション数の取得に失敗しました: %v", err)
	}
	if count != 1 {
		t.Errorf("セッション行数が一致しません: got %d, want 1", count)
	}
}

// TestGetOrCreateSessionValidation は自然キーの検証をテストする
func TestGetOrCreateSessionValidation(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	testCases := []struct {
		name     string
		profile  string
		date     string
		schedule string
	}{
		{name: "プロファイルが空", profile: "", date: "2025-10-03", schedule: "sunrise"},
		{name: "日付が空", profile: "a", date: "", schedule: "sunrise"},
		{name: "スケジュールが空", profile: "a", date: "2025-10-03", schedule: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.GetOrCreateSession(ctx, tc.profile, tc.date, tc.schedule)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ErrValidationが期待されましたが: %v", err)
			}
		})
	}
}

// TestGetSessionNotFound は存在しないセッションの取得をテストする
func TestGetSessionNotFound(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.GetSession(context.Background(), "x_20250101_noon")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ErrNotFoundが期待されましたが: %v", err)
	}
}
