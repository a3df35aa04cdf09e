package hid

import "io"

// Device はHIDフィーチャーレポートの送受信能力を表すインターフェース。
// プラットフォームごとに1つの実装を持ち、呼び出し側からは区別できない。
type Device interface {
	// SetFeature はフィーチャーレポートを送信する。buf[0]はレポートID。
	SetFeature(buf []byte) error
	// GetFeature はフィーチャーレポートを受信する。呼び出し前にbuf[0]へ
	// 目的のレポートIDを設定すること。戻り値はレポートIDを含む受信バイト数。
	GetFeature(buf []byte) (int, error)
	io.Closer
}

// ReportReader は入力レポートを丸ごと読み出す能力。
// 代替タッチデコーダ（レポート単位の抽出）が使用する。
type ReportReader interface {
	// ReadReport は1件の入力レポートをbufへ読み込み、バイト数を返す。
	// データが無い場合は(0, nil)を返す。
	ReadReport(buf []byte) (int, error)
}
