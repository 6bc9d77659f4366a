package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// TestRecordCaptureAggregation は照度集計値の逐次更新をテストする
func TestRecordCaptureAggregation(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	sess, err := l.GetOrCreateSession(ctx, "a", "2025-10-03", "sunrise")
	if err != nil {
		t.Fatalf("セッションの作成に失敗しました: %v", err)
	}

	for i, lux := range []float64{100, 200, 300} {
		_, err := l.RecordCapture(ctx, sess.ID,
			"capture_"+time.Now().Format("150405")+".jpg",
			time.Now(), CaptureSettings{Lux: floatPtr(lux)}, BracketInfo{})
		if err != nil {
			t.Fatalf("%d枚目の記録に失敗しました: %v", i+1, err)
		}
	}

	got, err := l.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("セッションの再取得に失敗しました: %v", err)
	}

	if got.ImageCount != 3 {
		t.Errorf("撮影枚数が一致しません: got %d, want 3", got.ImageCount)
	}
	if got.LuxMin == nil || *got.LuxMin != 100 {
		t.Errorf("lux_minが一致しません: got %v, want 100", got.LuxMin)
	}
	if got.LuxMax == nil || *got.LuxMax != 300 {
		t.Errorf("lux_maxが一致しません: got %v, want 300", got.LuxMax)
	}
	if got.LuxAvg == nil || *got.LuxAvg != 200.0 {
		t.Errorf("lux_avgが一致しません: got %v, want 200.0", got.LuxAvg)
	}
	if got.LuxCount != 3 {
		t.Errorf("luxサンプル数が一致しません: got %d, want 3", got.LuxCount)
	}
}

// TestRecordCaptureSparseSettings は指標なしの撮影でも枚数だけ増えることをテストする
func TestRecordCaptureSparseSettings(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	sess, err := l.GetOrCreateSession(ctx, "b", "2025-10-03", "sunset")
	if err != nil {
		t.Fatalf("セッションの作成に失敗しました: %v", err)
	}

	// lux・ISO・WBを一切含まない撮影イベント
	_, err = l.RecordCapture(ctx, sess.ID, "dark.jpg", time.Now(), CaptureSettings{}, BracketInfo{})
	if err != nil {
		t.Fatalf("撮影の記録に失敗しました: %v", err)
	}

	got, err := l.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("セッションの再取得に失敗しました: %v", err)
	}

	if got.ImageCount != 1 {
		t.Errorf("撮影枚数が一致しません: got %d, want 1", got.ImageCount)
	}
	if got.LuxMin != nil || got.LuxMax != nil || got.LuxAvg != nil {
		t.Error("照度集計値がnilのまま維持されていません")
	}
	if got.LuxCount != 0 {
		t.Errorf("luxサンプル数が一致しません: got %d, want 0", got.LuxCount)
	}
	if got.ISOMin != nil || got.WBMin != nil {
		t.Error("ISO/WB集計値がnilのまま維持されていません")
	}
}

// TestRecordCaptureMetricsIndependent は指標毎に独立して集計されることをテストする
func TestRecordCaptureMetricsIndependent(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	sess, err := l.GetOrCreateSession(ctx, "c", "2025-10-03", "sunrise")
	if err != nil {
		t.Fatalf("セッションの作成に失敗しました: %v", err)
	}

	// 1枚目はISOのみ、2枚目はWBのみ
	_, err = l.RecordCapture(ctx, sess.ID, "one.jpg", time.Now(),
		CaptureSettings{ISO: intPtr(800)}, BracketInfo{})
	if err != nil {
		t.Fatalf("1枚目の記録に失敗しました: %v", err)
	}
	_, err = l.RecordCapture(ctx, sess.ID, "two.jpg", time.Now(),
		CaptureSettings{WBTemp: intPtr(5600)}, BracketInfo{})
	if err != nil {
		t.Fatalf("2枚目の記録に失敗しました: %v", err)
	}

	got, err := l.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("セッションの再取得に失敗しました: %v", err)
	}

	if got.ImageCount != 2 {
		t.Errorf("撮影枚数が一致しません: got %d, want 2", got.ImageCount)
	}
	if got.ISOMin == nil || *got.ISOMin != 800 || got.ISOMax == nil || *got.ISOMax != 800 {
		t.Errorf("ISO集計値が一致しません: min=%v max=%v", got.ISOMin, got.ISOMax)
	}
	if got.WBMin == nil || *got.WBMin != 5600 || got.WBMax == nil || *got.WBMax != 5600 {
		t.Errorf("WB集計値が一致しません: min=%v max=%v", got.WBMin, got.WBMax)
	}
	if got.LuxAvg != nil {
		t.Error("照度平均がnilのまま維持されていません")
	}
}

// TestRecordCaptureUnknownSession は存在しないセッションへの記録をテストする
func TestRecordCaptureUnknownSession(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.RecordCapture(ctx, "ghost_20250101_noon", "ghost.jpg", time.Now(),
		CaptureSettings{Lux: floatPtr(50)}, BracketInfo{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ErrNotFoundが期待されましたが: %v", err)
	}

	// トランザクション全体がロールバックされ、撮影行も残らない
	var count int
	if err := l.db.QueryRow("SELECT COUNT(*) FROM captures").Scan(&count); err != nil {
		t.Fatalf("撮影数の取得に失敗しました: %v", err)
	}
	if count != 0 {
		t.Errorf("撮影行が残っています: got %d, want 0", count)
	}
}

// TestRecordCaptureBracketLinkage はブラケット・HDR紐付けの保存と復元をテストする
func TestRecordCaptureBracketLinkage(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	sess, err := l.GetOrCreateSession(ctx, "d", "2025-10-03", "sunset")
	if err != nil {
		t.Fatalf("セッションの作成に失敗しました: %v", err)
	}

	// ブラケット3枚を記録する
	var bracketIDs []int64
	for i := 0; i < 3; i++ {
		ev := float64(i-1) * 2.0
		c, err := l.RecordCapture(ctx, sess.ID, "bracket.jpg", time.Now(),
			CaptureSettings{},
			BracketInfo{IsBracket: true, BracketIndex: intPtr(i), BracketEVOffset: &ev})
		if err != nil {
			t.Fatalf("ブラケット%dの記録に失敗しました: %v", i, err)
		}
		bracketIDs = append(bracketIDs, c.ID)
	}

	// HDR合成結果を記録する
	hdr, err := l.RecordCapture(ctx, sess.ID, "hdr.jpg", time.Now(),
		CaptureSettings{},
		BracketInfo{IsHDRResult: true, SourceBracketID: bracketIDs})
	if err != nil {
		t.Fatalf("HDR結果の記録に失敗しました: %v", err)
	}

	captures, err := l.GetCaptures(ctx, sess.ID)
	if err != nil {
		t.Fatalf("撮影イベントの取得に失敗しました: %v", err)
	}
	if len(captures) != 4 {
		t.Fatalf("撮影イベント数が一致しません: got %d, want 4", len(captures))
	}

	var found *Capture
	for i := range captures {
		if captures[i].ID == hdr.ID {
			found = &captures[i]
		}
	}
	if found == nil {
		t.Fatal("HDR結果の撮影イベントが見つかりません")
	}
	if !found.Bracket.IsHDRResult {
		t.Error("is_hdr_resultが保存されていません")
	}
	if len(found.Bracket.SourceBracketID) != 3 {
		t.Errorf("合成元IDの数が一致しません: got %d, want 3", len(found.Bracket.SourceBracketID))
	}
	for i, id := range found.Bracket.SourceBracketID {
		if id != bracketIDs[i] {
			t.Errorf("合成元ID[%d]が一致しません: got %d, want %d", i, id, bracketIDs[i])
		}
	}
}
