package ledger

import (
	"time"
)

// Status はセッションのライフサイクル状態
type Status string

// Status の定数定義（遷移は単方向のみ）
const (
	StatusActive             Status = "active"              // 撮影中
	StatusClaimed            Status = "claimed"             // アセンブラが確保済み
	StatusComplete           Status = "complete"            // 撮影完了
	StatusTimelapseGenerated Status = "timelapse_generated" // 動画生成済み
)

// statusRank はステータスの遷移順序を返す
// 数値が大きいほど後段の状態であり、逆方向への遷移は許可されない
func statusRank(s Status) int {
	switch s {
	case StatusActive:
		return 0
	case StatusClaimed:
		return 1
	case StatusComplete:
		return 2
	case StatusTimelapseGenerated:
		return 3
	default:
		return -1
	}
}

// Session は1つの撮影キャンペーン
// profile × 日付 × スケジュールの自然キーで一意に識別される
type Session struct {
	ID        string    `json:"id"`         // セッションID（例: a_20251003_sunrise）
	Profile   string    `json:"profile"`    // カメラプロファイル名
	Date      string    `json:"date"`       // 撮影日（YYYY-MM-DD）
	Schedule  string    `json:"schedule"`   // スケジュール名（例: sunrise）
	Status    Status    `json:"status"`     // ライフサイクル状態
	StartTime time.Time `json:"start_time"` // 撮影開始時刻
	CreatedAt time.Time `json:"created_at"` // レコード作成時刻
	UpdatedAt time.Time `json:"updated_at"` // 最終更新時刻

	ImageCount int `json:"image_count"` // 撮影枚数（逐次更新される正規の値）

	// 照度の集計値（サンプルが1件も無い間はnil）
	LuxMin   *float64 `json:"lux_min"`
	LuxMax   *float64 `json:"lux_max"`
	LuxAvg   *float64 `json:"lux_avg"`
	LuxCount int      `json:"lux_count"` // 移動平均のためのサンプル数

	// ISO感度の集計値
	ISOMin *int `json:"iso_min"`
	ISOMax *int `json:"iso_max"`

	// ホワイトバランス色温度の集計値
	WBMin *int `json:"wb_min"`
	WBMax *int `json:"wb_max"`

	WasActive bool `json:"was_active"` // スケジュール窓の出入り検出用フラグ
}

// CaptureSettings は撮影時のカメラ設定スナップショット
// 全フィールドが省略可能で、省略されたフィールドは集計の対象外となる
type CaptureSettings struct {
	ISO                  *int     `json:"iso"`
	ShutterSpeed         *float64 `json:"shutter_speed"`         // 秒
	ExposureCompensation *float64 `json:"exposure_compensation"` // EV
	Lux                  *float64 `json:"lux"`
	WBTemp               *int     `json:"wb_temp"` // ケルビン
	AWBMode              *string  `json:"awb_mode"`
	AnalogGain           *float64 `json:"analog_gain"`
	DigitalGain          *float64 `json:"digital_gain"`
}

// BracketInfo はブラケット撮影とHDR合成の紐付け情報
type BracketInfo struct {
	IsBracket       bool     `json:"is_bracket"`        // ブラケット撮影の1枚か
	BracketIndex    *int     `json:"bracket_index"`     // ブラケット内の順番
	BracketEVOffset *float64 `json:"bracket_ev_offset"` // EVオフセット
	IsHDRResult     bool     `json:"is_hdr_result"`     // HDR合成の結果画像か
	HDRResultID     *int64   `json:"hdr_result_id"`     // 合成結果のCapture ID
	SourceBracketID []int64  `json:"source_bracket_ids"` // 合成元のCapture ID群
}

// Capture は1回の撮影イベント
// 挿入後は不変であり、更新・削除は行われない
type Capture struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Filename  string          `json:"filename"`
	Timestamp time.Time       `json:"timestamp"`
	Settings  CaptureSettings `json:"settings"`
	Bracket   BracketInfo     `json:"bracket"`
	CreatedAt time.Time       `json:"created_at"`
}

// Timelapse は生成されたタイムラプス動画の記録
// 同一セッションから品質違いで複数生成されることがある（重複排除はしない）
type Timelapse struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"session_id"`
	Filename        string    `json:"filename"`
	FilePath        string    `json:"file_path"`
	FileSizeMB      float64   `json:"file_size_mb"`
	Profile         string    `json:"profile"`
	Schedule        string    `json:"schedule"`
	Date            string    `json:"date"`
	DurationSeconds float64   `json:"duration_seconds"`
	FrameCount      int       `json:"frame_count"`
	FPS             int       `json:"fps"`
	Quality         int       `json:"quality"`
	QualityTier     string    `json:"quality_tier"`
	CreatedAt       time.Time `json:"created_at"`
}

// TimelapseRecord はタイムラプス記録の入力
type TimelapseRecord struct {
	SessionID       string  `json:"session_id"`
	Filename        string  `json:"filename"`
	FilePath        string  `json:"file_path"`
	FileSizeMB      float64 `json:"file_size_mb"`
	Profile         string  `json:"profile"`
	Schedule        string  `json:"schedule"`
	Date            string  `json:"date"`
	DurationSeconds float64 `json:"duration_seconds"`
	FrameCount      int     `json:"frame_count"`
	FPS             int     `json:"fps"`
	Quality         int     `json:"quality"`
	QualityTier     string  `json:"quality_tier"`
}

// TimelapseFilter はタイムラプス検索の絞り込み条件
// 空文字のフィールドは条件として適用されない（AND結合）
type TimelapseFilter struct {
	Profile  string
	Schedule string
	Date     string
	Limit    int // 0以下なら無制限
}
