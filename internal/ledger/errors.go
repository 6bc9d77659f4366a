package ledger

import "errors"

// 台帳操作のエラー分類
// 呼び出し側はerrors.Isで判別してリトライやエラー応答を選択する
var (
	// ErrNotFound は参照先のセッションが存在しない
	ErrNotFound = errors.New("セッションが見つかりません")

	// ErrBusy はロック競合のリトライ上限を超過した
	// 一時的な状態であり、呼び出し側で再試行できる
	ErrBusy = errors.New("台帳がロックされています")

	// ErrValidation は自然キーの構成要素が不正
	ErrValidation = errors.New("不正なセッションキーです")
)
