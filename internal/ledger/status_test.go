package ledger

import (
	"context"
	"errors"
	"testing"
)

// TestStatusTransitions はステータス遷移の単方向性をテストする
func TestStatusTransitions(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	sess, err := l.GetOrCreateSession(ctx, "a", "2025-10-03", "sunrise")
	if err != nil {
		t.Fatalf("セッションの作成に失敗しました: %v", err)
	}

	if err := l.MarkSessionComplete(ctx, sess.ID); err != nil {
		t.Fatalf("完了への遷移に失敗しました: %v", err)
	}
	if err := l.MarkTimelapseGenerated(ctx, sess.ID); err != nil {
		t.Fatalf("生成済みへの遷移に失敗しました: %v", err)
	}

	got, err := l.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("セッションの再取得に失敗しました: %v", err)
	}
	if got.Status != StatusTimelapseGenerated {
		t.Errorf("ステータスが一致しません: got %s, want %s", got.Status, StatusTimelapseGenerated)
	}

	// 生成済みの後に完了を呼んでも後退しない
	if err := l.MarkSessionComplete(ctx, sess.ID); err != nil {
		t.Fatalf("後退方向の呼び出しがエラーになりました: %v", err)
	}
	got, err = l.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("セッションの再取得に失敗しました: %v", err)
	}
	if got.Status != StatusTimelapseGenerated {
		t.Errorf("ステータスが後退しています: got %s", got.Status)
	}
}

// TestStatusTransitionIdempotent は同じ遷移の繰り返しをテストする
func TestStatusTransitionIdempotent(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	sess, err := l.GetOrCreateSession(ctx, "b", "2025-10-03", "sunset")
	if err != nil {
		t.Fatalf("セッションの作成に失敗しました: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := l.MarkSessionComplete(ctx, sess.ID); err != nil {
			t.Fatalf("%d回目の完了遷移に失敗しました: %v", i+1, err)
		}
	}

	got, err := l.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("セッションの再取得に失敗しました: %v", err)
	}
	if got.Status != StatusComplete {
		t.Errorf("ステータスが一致しません: got %s, want %s", got.Status, StatusComplete)
	}
}

// TestStatusTransitionNotFound は存在しないセッションへの遷移をテストする
func TestStatusTransitionNotFound(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.MarkSessionComplete(ctx, "ghost_20250101_noon"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ErrNotFoundが期待されましたが: %v", err)
	}
	if err := l.MarkTimelapseGenerated(ctx, "ghost_20250101_noon"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ErrNotFoundが期待されましたが: %v", err)
	}
}

// TestClaimedSessionCanComplete はクレーム済みセッションの確定をテストする
func TestClaimedSessionCanComplete(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	sess, err := l.GetOrCreateSession(ctx, "c", "2025-10-03", "sunrise")
	if err != nil {
		t.Fatalf("セッションの作成に失敗しました: %v", err)
	}

	claimed, err := l.ClaimSession(ctx, sess.ID)
	if err != nil || !claimed {
		t.Fatalf("クレームに失敗しました: claimed=%v err=%v", claimed, err)
	}
	if err := l.MarkSessionComplete(ctx, sess.ID); err != nil {
		t.Fatalf("クレーム済みセッションの完了に失敗しました: %v", err)
	}

	got, err := l.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("セッションの再取得に失敗しました: %v", err)
	}
	if got.Status != StatusComplete {
		t.Errorf("ステータスが一致しません: got %s, want %s", got.Status, StatusComplete)
	}
}

// TestWasActiveFlag は稼働フラグの更新と取得をテストする
func TestWasActiveFlag(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	// 未知のキーはfalse
	active, err := l.GetWasActive(ctx, "a", "2025-10-03", "sunrise")
	if err != nil {
		t.Fatalf("稼働フラグの取得に失敗しました: %v", err)
	}
	if active {
		t.Error("未知のキーの稼働フラグがtrueです")
	}

	// セッションなしでの更新はErrNotFound
	err = l.UpdateWasActive(ctx, "a", "2025-10-03", "sunrise", true)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ErrNotFoundが期待されましたが: %v", err)
	}

	// セッション作成後は更新できる
	if _, err := l.GetOrCreateSession(ctx, "a", "2025-10-03", "sunrise"); err != nil {
		t.Fatalf("セッションの作成に失敗しました: %v", err)
	}
	if err := l.UpdateWasActive(ctx, "a", "2025-10-03", "sunrise", true); err != nil {
		t.Fatalf("稼働フラグの更新に失敗しました: %v", err)
	}

	active, err = l.GetWasActive(ctx, "a", "2025-10-03", "sunrise")
	if err != nil {
		t.Fatalf("稼働フラグの取得に失敗しました: %v", err)
	}
	if !active {
		t.Error("更新した稼働フラグがtrueになっていません")
	}

	// falseへの更新も反映される
	if err := l.UpdateWasActive(ctx, "a", "2025-10-03", "sunrise", false); err != nil {
		t.Fatalf("稼働フラグの更新に失敗しました: %v", err)
	}
	active, err = l.GetWasActive(ctx, "a", "2025-10-03", "sunrise")
	if err != nil {
		t.Fatalf("稼働フラグの取得に失敗しました: %v", err)
	}
	if active {
		t.Error("falseへ更新した稼働フラグがtrueのままです")
	}
}

// TestWasActiveValidation は稼働フラグの自然キー検証をテストする
func TestWasActiveValidation(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.UpdateWasActive(ctx, "", "2025-10-03", "sunrise", true); !errors.Is(err, ErrValidation) {
		t.Errorf("ErrValidationが期待されましたが: %v", err)
	}
	if _, err := l.GetWasActive(ctx, "a", "", "sunrise"); !errors.Is(err, ErrValidation) {
		t.Errorf("ErrValidationが期待されましたが: %v", err)
	}
}
