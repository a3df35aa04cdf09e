package features

import (
	"github.com/JohnAZoidberg/tapview/internal/consts"
	"github.com/JohnAZoidberg/tapview/internal/hid"
)

// ReportDecoder はHID入力レポート1件から接触テーブル全体を取り出す
// ステートレスなデコーダ。イベント駆動のMTStateMachineとは異なり、
// 各レポートが全接触を一括で含む形式を前提とする。
type ReportDecoder struct {
	caps *hid.ReportCaps
}

// NewReportDecoder は解析済みディスクリプタからデコーダを作る。
// capsはデバイスごとに1つ生成して使い回すこと
func NewReportDecoder(caps *hid.ReportCaps) *ReportDecoder {
	return &ReportDecoder{caps: caps}
}

// Decode はレポート1件をデコードする。report[0]はレポートID。
// タッチレポートとして解釈できない場合はok=falseを返す
func (d *ReportDecoder) Decode(report []byte) (*TouchState, bool) {
	if len(report) < 2 {
		return nil, false
	}

	contactCount, ok := d.caps.UsageValue(report, hid.UsagePageDigitizer, 0, hid.UsageContactCount)
	if !ok {
		return nil, false
	}

	state := &TouchState{}
	d.decodeButtons(report, &state.Buttons)

	// 各接触は個別のリンクコレクション（通常1, 2, 3, ...）に入っている
	slot := 0
	for collection := 1; collection <= d.caps.MaxContacts; collection++ {
		if slot >= MaxTouchPoints || slot >= contactCount {
			break
		}

		tip := d.caps.UsageActive(report, hid.UsagePageDigitizer, collection, hid.UsageTipSwitch)
		touch := &state.Touches[slot]

		if x, ok := d.caps.UsageValue(report, hid.UsagePageGenericDesktop, collection, hid.UsageX); ok {
			touch.PositionX = int32(x)
		}
		if y, ok := d.caps.UsageValue(report, hid.UsagePageGenericDesktop, collection, hid.UsageY); ok {
			touch.PositionY = int32(y)
		}
		if id, ok := d.caps.UsageValue(report, hid.UsagePageDigitizer, collection, hid.UsageContactID); ok {
			touch.TrackingID = int32(id)
		}
		if p, ok := d.caps.UsageValue(report, hid.UsagePageDigitizer, collection, hid.UsageTipPressure); ok {
			touch.Pressure = int32(p)
		}
		if w, ok := d.caps.UsageValue(report, hid.UsagePageDigitizer, collection, hid.UsageWidth); ok {
			touch.TouchMajor = int32(w)
		}
		if h, ok := d.caps.UsageValue(report, hid.UsagePageDigitizer, collection, hid.UsageHeight); ok {
			touch.TouchMinor = int32(h)
		}

		// Confidenceが落ちている接触は手のひらとみなす
		if !d.confidence(report, collection) {
			touch.ToolType = consts.ToolPalm
		}

		touch.Used = tip
		touch.Pressed = tip

		slot++
	}

	return state, true
}

// confidence はConfidence Usageを調べる。ビットとして立っていれば信頼あり、
// ビット照合で見つからなければ値としての読み出しにフォールバックする
func (d *ReportDecoder) confidence(report []byte, collection int) bool {
	if d.caps.UsageActive(report, hid.UsagePageDigitizer, collection, hid.UsageConfidence) {
		return true
	}
	if v, ok := d.caps.UsageValue(report, hid.UsagePageDigitizer, collection, hid.UsageConfidence); ok {
		return v != 0
	}
	// Confidence未宣言のデバイスでは常に指として扱う
	return true
}

// decodeButtons は物理ボタン（クリックパッド）の状態を取り出す
func (d *ReportDecoder) decodeButtons(report []byte, buttons *ButtonState) {
	collections := d.caps.ButtonCollections(report[0])

	hasTop := false
	for _, c := range collections {
		if c == 0 {
			hasTop = true
		}
	}
	if !hasTop {
		// 明示的なボタン宣言がなくてもトップレベルは常に調べる
		collections = append([]int{0}, collections...)
	}

	for _, collection := range collections {
		if d.caps.UsageActive(report, hid.UsagePageButton, collection, 1) {
			buttons.Left = true
		}
		if d.caps.UsageActive(report, hid.UsagePageButton, collection, 2) {
			buttons.Right = true
		}
		if d.caps.UsageActive(report, hid.UsagePageButton, collection, 3) {
			buttons.Middle = true
		}
	}

	// ボタンUsageではなく値として報告するデバイスへのフォールバック
	if !buttons.Left {
		if v, ok := d.caps.UsageValue(report, hid.UsagePageButton, 0, 1); ok && v != 0 {
			buttons.Left = true
		}
	}
}
