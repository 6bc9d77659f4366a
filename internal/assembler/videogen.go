package assembler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FFmpegEncoder はFFmpegを使ったEncoderの実装
type FFmpegEncoder struct {
	tempDir string // 一時ファイル用ディレクトリ
}

// NewFFmpegEncoder は新しいFFmpegEncoderを作成する
func NewFFmpegEncoder() *FFmpegEncoder {
	return &FFmpegEncoder{
		tempDir: filepath.Join(os.TempDir(), "asayake-assembler"),
	}
}

// Validate はFFmpegが利用可能かチェックする
func (e *FFmpegEncoder) Validate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg", "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("FFmpegが見つかりません。インストールしてください: %w", err)
	}

	return nil
}

// Encode はフレーム画像列からタイムラプス動画を生成する
func (e *FFmpegEncoder) Encode(ctx context.Context, job EncodeJob) (*EncodeResult, error) {
	if len(job.FramePaths) == 0 {
		return nil, fmt.Errorf("フレーム画像がありません")
	}
	if job.FPS <= 0 {
		return nil, fmt.Errorf("無効なフレームレート: %d", job.FPS)
	}

	// セッション毎の一時ディレクトリを作成
	workDir := filepath.Join(e.tempDir, uuid.NewString())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("一時ディレクトリの作成に失敗: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(workDir) // cleanup中のエラーは無視
	}()

	// 画像ファイルリストを作成
	listFile := filepath.Join(workDir, "frames.txt")
	if err := e.createFrameList(listFile, job.FramePaths, job.FPS); err != nil {
		return nil, fmt.Errorf("フレームリストの作成に失敗: %w", err)
	}

	// FFmpegで動画を作成
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-r", strconv.Itoa(job.FPS),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", qualityToCRF(job.Quality),
		"-pix_fmt", "yuv420p",
		"-y", // 上書き許可
		job.OutputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("動画の生成に失敗: %w (output: %s)", err, string(output))
	}

	info, err := os.Stat(job.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("出力ファイルの確認に失敗: %w", err)
	}

	return &EncodeResult{
		FilePath:        job.OutputPath,
		FileSizeMB:      float64(info.Size()) / (1024 * 1024),
		DurationSeconds: float64(len(job.FramePaths)) / float64(job.FPS),
		FrameCount:      len(job.FramePaths),
	}, nil
}

// createFrameList はconcat用のフレームリストを作成する
func (e *FFmpegEncoder) createFrameList(listFile string, framePaths []string, fps int) error {
	frameDuration := 1.0 / float64(fps)

	var b strings.Builder
	for _, path := range framePaths {
		fmt.Fprintf(&b, "file '%s'\nduration %.6f\n", path, frameDuration)
	}

	// 最後のフレームは追加の表示時間なし
	fmt.Fprintf(&b, "file '%s'\n", framePaths[len(framePaths)-1])

	return os.WriteFile(listFile, []byte(b.String()), 0644)
}

// qualityToCRF は品質設定をFFmpegのCRF値に変換する
func qualityToCRF(quality int) string {
	// 品質1(低) -> CRF28, 品質5(高) -> CRF18
	crf := 28.0 - float64(quality-1)*2.5
	if crf < 18 {
		crf = 18
	}
	if crf > 28 {
		crf = 28
	}
	return strconv.FormatFloat(crf, 'f', 1, 64)
}
