package main

import (
	"context"
	"log"
	"time"

	"asayake/internal/assembler"
	"asayake/internal/config"
	"asayake/internal/ledger"
	"asayake/internal/server"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// 台帳を開く
	led, err := ledger.Open(cfg.Ledger.DBPath, ledger.Options{
		BusyRetryAttempts: cfg.Ledger.BusyRetryAttempts,
		BusyRetryBackoff:  cfg.Ledger.BusyRetryBackoff,
	})
	if err != nil {
		log.Fatalf("台帳のオープンに失敗しました: %v", err)
	}
	defer func() {
		if err := led.Close(); err != nil {
			log.Printf("台帳のクローズに失敗しました: %v", err)
		}
	}()

	ctx := context.Background()

	// アセンブラを起動
	encoder := assembler.NewFFmpegEncoder()
	if cfg.Assembler.Enabled {
		if err := encoder.Validate(); err != nil {
			log.Fatalf("エンコーダの検証に失敗しました: %v", err)
		}
	}
	asm := assembler.New(led, cfg.Assembler, encoder)
	if err := asm.Start(ctx); err != nil {
		log.Fatalf("アセンブラの起動に失敗しました: %v", err)
	}

	// サーバーを起動（シグナル受信まで処理を継続する）
	srv := server.New(cfg, led)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}

	// サーバー停止後にアセンブラを停止
	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := asm.Stop(stopCtx); err != nil {
		log.Printf("アセンブラの停止に失敗しました: %v", err)
	}
}
