// Package main はAsayakeサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"asayake/internal/assembler"
	"asayake/internal/config"
	"asayake/internal/ledger"
	"asayake/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		host   = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port   = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		dbPath = flag.String("db", "", "台帳データベースのパス (デフォルト: ./asayake.db)")
		noAsm  = flag.Bool("no-assembler", false, "アセンブラを起動しない")
		help   = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("Asayake")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Ledger.DBPath = *dbPath
	}
	if *noAsm {
		cfg.Assembler.Enabled = false
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

	// サーバーを起動
	srv := server.New(cfg, led)
	log.Printf("Asayake サーバーを起動します: %s", cfg.ServerAddress())
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
