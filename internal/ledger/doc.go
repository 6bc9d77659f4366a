// Package ledger 撮影キャンペーンの台帳を管理する
//
// # 責務
// - セッション（profile × 日付 × スケジュールの撮影キャンペーン）の冪等な作成
// - 撮影イベントの追記と集計値の原子的な更新
// - アイドルセッションの検出とクレーム（二重処理の防止）
// - セッションステータスの単方向遷移の管理
// - 生成されたタイムラプス動画の記録と検索
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - 撮影パイプラインから撮影イベントを記録したい
// - アセンブラからアイドルセッションを確定したい
// - ダッシュボードからタイムラプス一覧や稼働フラグを参照したい
//
// # 仕様
// - ストレージはSQLite（modernc.org/sqlite、CGo不要のためエッジデバイスでも動作）
// - 書き込みは即時排他トランザクション（BEGIN IMMEDIATE相当）で直列化
// - ロック競合時は指数バックオフ付きで内部リトライし、上限超過でErrBusyを返す
// - 集計値は逐次更新（Welford法の移動平均）で、撮影数に依存しないO(1)の書き込み
// - ステータスは active → claimed → complete → timelapse_generated の単方向遷移
// - 複数プロセス・複数ゴルーチンからの同時呼び出しをサポート
package ledger
