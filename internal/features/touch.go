package features

import (
	"io"

	"github.com/JohnAZoidberg/tapview/internal/types"
)

// タッチパッドのイベントストリームを読み出すインターフェース
type TouchPad interface {
	// NextEvent は次の入力イベントを読み出す。
	// 未到着の場合はok=falseを返し、エラーにはしない
	NextEvent() (ev types.Event, ok bool, err error)
	// タッチパッドを専有する
	Grab() error
	// 専有を解除する
	Release() error
	io.Closer
}
