package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Assembler AssemblerConfig `yaml:"assembler"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト
}

// LedgerConfig は撮影台帳の設定
type LedgerConfig struct {
	DBPath string `yaml:"db_path"` // SQLiteファイルのパス

	// ロック競合時のリトライ設定
	BusyRetryAttempts int           `yaml:"busy_retry_attempts"` // リトライ回数
	BusyRetryBackoff  time.Duration `yaml:"busy_retry_backoff"`  // 初回バックオフ
}

// AssemblerConfig はタイムラプスアセンブラの設定
type AssemblerConfig struct {
	Enabled      bool          `yaml:"enabled"`       // 有効/無効
	PollInterval time.Duration `yaml:"poll_interval"` // アイドルセッションの走査間隔
	IdleMinutes  int           `yaml:"idle_minutes"`  // 確定対象とするアイドル時間（分）
	CapturesDir  string        `yaml:"captures_dir"`  // 撮影画像の格納ディレクトリ
	OutputDir    string        `yaml:"output_dir"`    // 動画出力先ディレクトリ
	FPS          int           `yaml:"fps"`           // 出力フレームレート

	// 品質ティア（同一セッションからティア毎に1本生成される）
	QualityTiers []QualityTier `yaml:"quality_tiers"`
}

// QualityTier は出力動画の品質設定
type QualityTier struct {
	Name    string `yaml:"name"`    // ティア名（例: standard, high）
	Quality int    `yaml:"quality"` // 動画品質 (1-5)
}

// Load は設定を読み込む
// デフォルト値 → CONFIG_PATHのYAMLファイル → 環境変数 の順に上書きされる
func Load() (*Config, error) {
	// デフォルト設定を作成
	cfg := &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Ledger: LedgerConfig{
			DBPath:            "data/ledger.db",
			BusyRetryAttempts: 5,
			BusyRetryBackoff:  20 * time.Millisecond,
		},
		Assembler: AssemblerConfig{
			Enabled:      true,
			PollInterval: time.Minute,
			IdleMinutes:  10,
			CapturesDir:  "data/captures",
			OutputDir:    "data/timelapses",
			FPS:          30,
			QualityTiers: []QualityTier{
				{Name: "standard", Quality: 3},
			},
		},
	}

	// YAMLファイルがあれば読み込む
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	// 環境変数で上書き
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsIntOrDefault("PORT", cfg.Server.Port)
	cfg.Ledger.DBPath = getEnvOrDefault("LEDGER_DB_PATH", cfg.Ledger.DBPath)
	cfg.Assembler.CapturesDir = getEnvOrDefault("CAPTURES_DIR", cfg.Assembler.CapturesDir)
	cfg.Assembler.OutputDir = getEnvOrDefault("TIMELAPSE_OUTPUT_DIR", cfg.Assembler.OutputDir)

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	// 台帳設定の検証
	if c.Ledger.DBPath == "" {
		return fmt.Errorf("台帳のDBパスが設定されていません")
	}
	if c.Ledger.BusyRetryAttempts < 1 {
		return fmt.Errorf("無効なリトライ回数: %d", c.Ledger.BusyRetryAttempts)
	}

	// アセンブラ設定の検証
	if c.Assembler.Enabled {
		if c.Assembler.PollInterval <= 0 {
			return fmt.Errorf("無効な走査間隔: %v", c.Assembler.PollInterval)
		}
		if c.Assembler.IdleMinutes < 0 {
			return fmt.Errorf("無効なアイドル時間: %d", c.Assembler.IdleMinutes)
		}
		if c.Assembler.FPS <= 0 {
			return fmt.Errorf("無効なフレームレート: %d", c.Assembler.FPS)
		}
		if len(c.Assembler.QualityTiers) == 0 {
			return fmt.Errorf("品質ティアが設定されていません")
		}
		for _, tier := range c.Assembler.QualityTiers {
			if tier.Name == "" {
				return fmt.Errorf("品質ティア名が空です")
			}
			if tier.Quality < 1 || tier.Quality > 5 {
				return fmt.Errorf("無効な動画品質: %d (1-5)", tier.Quality)
			}
		}
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
