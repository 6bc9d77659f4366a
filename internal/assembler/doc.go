// Package assembler アイドルセッションの確定とタイムラプス動画の組み立てを担う
//
// # 責務
// - 台帳のアイドルセッションの定期走査
// - セッションのクレームによる二重処理の防止
// - FFmpegによるタイムラプス動画のエンコード
// - 生成結果の台帳への記録とステータスの確定
//
// # 仕様
// - 走査はティッカー駆動で、1サイクル毎に全アイドルセッションを処理する
// - クレームに敗れたセッションはスキップする（別のアセンブラが処理中）
// - エンコードは品質ティア毎に1本ずつ行い、同一セッションから複数本を記録する
// - エンコード失敗時はセッションをcomplete状態のまま残し、次回以降の手動対応に委ねる
//
// # 前提要件
//   - ffmpeg: 動画エンコードに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//     Red Hat/Fedora: sudo dnf install ffmpeg
package assembler
