package assembler

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"asayake/internal/config"
	"asayake/internal/ledger"
)

// Encoder はタイムラプス動画のエンコードを行うインターフェース
type Encoder interface {
	Encode(ctx context.Context, job EncodeJob) (*EncodeResult, error)
}

// EncodeJob は1本分のエンコード指示
type EncodeJob struct {
	SessionID  string   // 対象セッション
	FramePaths []string // 時系列順のフレーム画像パス
	OutputPath string   // 出力先
	FPS        int      // フレームレート
	Quality    int      // 動画品質 (1-5)
}

// EncodeResult はエンコードの結果
type EncodeResult struct {
	FilePath        string  // 出力ファイルパス
	FileSizeMB      float64 // ファイルサイズ (MB)
	DurationSeconds float64 // 動画長（秒）
	FrameCount      int     // フレーム数
}

// Assembler はアイドルセッションを確定してタイムラプスを組み立てる
type Assembler struct {
	ledger  *ledger.Ledger
	config  config.AssemblerConfig
	encoder Encoder

	// 制御用
	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New は新しいAssemblerを作成する
// 台帳とエンコーダは呼び出し側で生成して渡す
func New(led *ledger.Ledger, cfg config.AssemblerConfig, encoder Encoder) *Assembler {
	return &Assembler{
		ledger:  led,
		config:  cfg,
		encoder: encoder,
		stopCh:  make(chan struct{}),
	}
}

// Start はアセンブラを開始する
func (a *Assembler) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.config.Enabled {
		log.Println("アセンブラは無効です")
		return nil
	}

	// 出力ディレクトリを作成
	if err := os.MkdirAll(a.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}

	a.wg.Add(1)
	go a.pollLoop(ctx)

	log.Printf("アセンブラを開始しました (走査間隔: %v, アイドル閾値: %d分)",
		a.config.PollInterval, a.config.IdleMinutes)
	return nil
}

// Stop はアセンブラを停止する
func (a *Assembler) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	close(a.stopCh)

	// ワーカーゴルーチンの終了を待機
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました。停止処理を中断します。")
	}

	log.Println("アセンブラを停止しました")
	return nil
}

// pollLoop はアイドルセッションを定期的に走査する
func (a *Assembler) pollLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		case <-ticker.C:
			if err := a.runCycle(ctx); err != nil {
				log.Printf("走査サイクルでエラーが発生しました: %v", err)
			}
		}
	}
}

// runCycle は1回分の走査サイクルを実行する
func (a *Assembler) runCycle(ctx context.Context) error {
	stale, err := a.ledger.GetStaleSessions(ctx, a.config.IdleMinutes)
	if err != nil {
		return fmt.Errorf("アイドルセッションの検索に失敗: %w", err)
	}

	for _, sess := range stale {
		if err := a.processSession(ctx, sess); err != nil {
			log.Printf("セッション %s の処理に失敗しました: %v", sess.ID, err)
		}
	}
	return nil
}

// processSession は1つのアイドルセッションを確定する
//
// クレームに勝った場合のみ処理を進める。エンコードに失敗した場合は
// セッションをcomplete状態のまま残し、timelapse_generatedには遷移させない。
func (a *Assembler) processSession(ctx context.Context, sess ledger.Session) error {
	claimed, err := a.ledger.ClaimSession(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("クレームに失敗: %w", err)
	}
	if !claimed {
		// 別のアセンブラが処理中
		return nil
	}

	if err := a.ledger.MarkSessionComplete(ctx, sess.ID); err != nil {
		return fmt.Errorf("完了への遷移に失敗: %w", err)
	}

	captures, err := a.ledger.GetCaptures(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("撮影イベントの取得に失敗: %w", err)
	}

	frames := selectFrames(captures)
	if len(frames) == 0 {
		log.Printf("セッション %s にはエンコード対象のフレームがありません", sess.ID)
		return nil
	}

	framePaths := make([]string, 0, len(frames))
	for _, c := range frames {
		framePaths = append(framePaths, filepath.Join(a.config.CapturesDir, sess.ID, c.Filename))
	}

	encoded := 0
	for _, tier := range a.config.QualityTiers {
		filename := fmt.Sprintf("%s_%s.mp4", sess.ID, tier.Name)
		result, err := a.encoder.Encode(ctx, EncodeJob{
			SessionID:  sess.ID,
			FramePaths: framePaths,
			OutputPath: filepath.Join(a.config.OutputDir, filename),
			FPS:        a.config.FPS,
			Quality:    tier.Quality,
		})
		if err != nil {
			log.Printf("セッション %s のエンコードに失敗しました (ティア: %s): %v",
				sess.ID, tier.Name, err)
			continue
		}

		_, err = a.ledger.RecordTimelapse(ctx, ledger.TimelapseRecord{
			SessionID:       sess.ID,
			Filename:        filename,
			FilePath:        result.FilePath,
			FileSizeMB:      result.FileSizeMB,
			Profile:         sess.Profile,
			Schedule:        sess.Schedule,
			Date:            sess.Date,
			DurationSeconds: result.DurationSeconds,
			FrameCount:      result.FrameCount,
			FPS:             a.config.FPS,
			Quality:         tier.Quality,
			QualityTier:     tier.Name,
		})
		if err != nil {
			return fmt.Errorf("タイムラプスの記録に失敗: %w", err)
		}
		encoded++
	}

	if encoded == 0 {
		return fmt.Errorf("全ての品質ティアのエンコードに失敗しました")
	}

	if err := a.ledger.MarkTimelapseGenerated(ctx, sess.ID); err != nil {
		return fmt.Errorf("生成済みへの遷移に失敗: %w", err)
	}

	log.Printf("セッション %s のタイムラプスを生成しました (%d本, %dフレーム)",
		sess.ID, encoded, len(frames))
	return nil
}

// selectFrames はエンコード対象のフレームを選別する
//
// HDR合成の元になったブラケット画像は除外し、合成結果と通常撮影のみを
// 時系列順に採用する。入力は台帳が時系列順で返す前提
func selectFrames(captures []ledger.Capture) []ledger.Capture {
	frames := make([]ledger.Capture, 0, len(captures))
	for _, c := range captures {
		if c.Bracket.IsBracket && !c.Bracket.IsHDRResult {
			continue
		}
		frames = append(frames, c)
	}
	return frames
}
