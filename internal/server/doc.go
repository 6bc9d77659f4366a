// Package server は、撮影台帳へのHTTP APIを提供します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// 台帳操作のエンドポイント公開を担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - 撮影パイプラインからの撮影イベント受付
//   - アセンブラ・ダッシュボード向けの照会エンドポイント
//   - 台帳エラーのHTTPステータスへの変換
//
// 仕様:
//   - gin-gonic/ginを使用
//   - グレースフルシャットダウンに対応
//   - 台帳のErrValidation/ErrNotFound/ErrBusyを400/404/503に対応付ける
package server
