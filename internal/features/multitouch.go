package features

import (
	"fmt"

	"github.com/JohnAZoidberg/tapview/internal/consts"
	"github.com/JohnAZoidberg/tapview/internal/types"
)

// MaxTouchPoints は同時に追跡できる接触点の最大数
const MaxTouchPoints = 10

// ButtonState は物理ボタンの押下状態
type ButtonState struct {
	Left   bool `json:"left"`
	Right  bool `json:"right"`
	Middle bool `json:"middle"`
}

// TouchData は1スロット分の接触情報。Usedがfalseの間、
// 他のフィールドは過去の値が残っているだけで意味を持たない。
type TouchData struct {
	Used          bool  `json:"used"`
	Pressed       bool  `json:"pressed"`
	PressedDouble bool  `json:"pressed_double"`
	TrackingID    int32 `json:"tracking_id"`
	PositionX     int32 `json:"position_x"`
	PositionY     int32 `json:"position_y"`
	Pressure      int32 `json:"pressure"`
	Distance      int32 `json:"distance"`
	TouchMajor    int32 `json:"touch_major"`
	TouchMinor    int32 `json:"touch_minor"`
	WidthMajor    int32 `json:"width_major"`
	WidthMinor    int32 `json:"width_minor"`
	Orientation   int32 `json:"orientation"`
	ToolX         int32 `json:"tool_x"`
	ToolY         int32 `json:"tool_y"`
	ToolType      int32 `json:"tool_type"`
}

// TouchState は1フレーム分のスナップショット
type TouchState struct {
	Touches [MaxTouchPoints]TouchData `json:"touches"`
	Buttons ButtonState               `json:"buttons"`
}

// mtState はスロットテーブルの同期状態
type mtState int

const (
	mtLoading mtState = iota // 同期イベント未受信
	mtReadReady
	mtNeedsReset // 遷移表からは到達しない（Reset用に保持）
)

// MTStateMachine はスロット／軸／同期イベントの線形ストリームから
// 固定長の接触テーブルを組み立てる。イベントは到着順に処理すること。
type MTStateMachine struct {
	state   mtState
	slot    int
	hasSlot bool

	Touches [MaxTouchPoints]TouchData
	Buttons ButtonState
}

// NewMTStateMachine は初期状態のステートマシンを返す
func NewMTStateMachine() *MTStateMachine {
	return &MTStateMachine{state: mtLoading}
}

// Reset は全スロットのUsedフラグを落として初期状態に戻す。
// 自動では呼ばれない。ストリームの不連続を検知した呼び出し側が使う。
func (m *MTStateMachine) Reset() {
	m.state = mtLoading
	m.hasSlot = false
	for i := range m.Touches {
		m.Touches[i].Used = false
	}
}

// ReadReady は同期イベントを受信済みでテーブルが一貫しているかを返す
func (m *MTStateMachine) ReadReady() bool {
	return m.state == mtReadReady
}

// Snapshot は現在のテーブルのコピーを返す
func (m *MTStateMachine) Snapshot() *TouchState {
	return &TouchState{Touches: m.Touches, Buttons: m.Buttons}
}

// Process はイベントを1件処理してテーブルを更新する
func (m *MTStateMachine) Process(ev types.Event) {
	switch ev.Type {
	case consts.Key:
		m.processKey(ev.Code, ev.Value)
	case consts.Abs:
		m.processAbs(ev.Code, ev.Value)
	case consts.Syn:
		m.state = mtReadReady
	}
}

// processKey はボタン系イベントを即時反映する（同期を待たない）
func (m *MTStateMachine) processKey(code uint16, value int32) {
	switch code {
	case consts.BtnTouch:
		m.Touches[0].Pressed = value == 1
	case consts.BtnToolDoubleTap:
		m.Touches[0].PressedDouble = value == 1
	case consts.BtnLeft:
		m.Buttons.Left = value == 1
	case consts.BtnRight:
		m.Buttons.Right = value == 1
	case consts.BtnMiddle:
		m.Buttons.Middle = value == 1
	}
}

func (m *MTStateMachine) processAbs(code uint16, value int32) {
	if m.state == mtNeedsReset {
		m.Reset()
	}

	slot := 0
	if m.hasSlot {
		slot = m.slot
	}

	switch code {
	case consts.AbsMtSlot:
		if value >= 0 && int(value) < MaxTouchPoints {
			m.slot = int(value)
			m.hasSlot = true
			m.Touches[value].Used = true
		}
	case consts.AbsMtTrackingId:
		if value < 0 {
			m.Touches[slot].Used = false
		} else {
			m.Touches[slot].TrackingID = value
		}
	case consts.AbsMtPositionX:
		m.Touches[slot].Used = true
		m.Touches[slot].PositionX = value
	case consts.AbsMtPositionY:
		m.Touches[slot].Used = true
		m.Touches[slot].PositionY = value
	case consts.AbsMtPressure:
		m.Touches[slot].Used = true
		m.Touches[slot].Pressure = value
	case consts.AbsMtDistance:
		m.Touches[slot].Used = true
		m.Touches[slot].Distance = value
	case consts.AbsMtTouchMajor:
		m.Touches[slot].Used = true
		m.Touches[slot].TouchMajor = value
	case consts.AbsMtTouchMinor:
		m.Touches[slot].Used = true
		m.Touches[slot].TouchMinor = value
	case consts.AbsMtWidthMajor:
		m.Touches[slot].Used = true
		m.Touches[slot].WidthMajor = value
	case consts.AbsMtWidthMinor:
		m.Touches[slot].Used = true
		m.Touches[slot].WidthMinor = value
	case consts.AbsMtOrientation:
		m.Touches[slot].Used = true
		m.Touches[slot].Orientation = value
	case consts.AbsMtToolX:
		m.Touches[slot].Used = true
		m.Touches[slot].ToolX = value
	case consts.AbsMtToolY:
		m.Touches[slot].Used = true
		m.Touches[slot].ToolY = value
	case consts.AbsMtToolType:
		m.Touches[slot].Used = true
		m.Touches[slot].ToolType = value
	}
}

// EventString はイベントをデバッグ表示用の文字列にする
func EventString(ev types.Event) string {
	typeName := "EV_???"
	switch ev.Type {
	case consts.Key:
		typeName = "EV_KEY"
	case consts.Abs:
		typeName = "EV_ABS"
	case consts.Msc:
		typeName = "EV_MSC"
	case consts.Syn:
		typeName = "EV_SYN"
	}
	if name, ok := codeNames[ev.Code]; ok {
		return fmt.Sprintf("%s(%s, %d)", typeName, name, ev.Value)
	}
	return fmt.Sprintf("%s(0x%X, %d)", typeName, ev.Code, ev.Value)
}

var codeNames = map[uint16]string{
	0x00:                    "X",
	0x01:                    "Y",
	consts.AbsMtSlot:        "SLOT",
	consts.AbsMtTouchMajor:  "TOUCH_MAJOR",
	consts.AbsMtTouchMinor:  "TOUCH_MINOR",
	consts.AbsMtWidthMajor:  "WIDTH_MAJOR",
	consts.AbsMtWidthMinor:  "WIDTH_MINOR",
	consts.AbsMtOrientation: "ORIENTATION",
	consts.AbsMtPositionX:   "POSITION_X",
	consts.AbsMtPositionY:   "POSITION_Y",
	consts.AbsMtToolType:    "TOOL_TYPE",
	consts.AbsMtBlobId:      "BLOB_ID",
	consts.AbsMtTrackingId:  "TRACKING_ID",
	consts.AbsMtPressure:    "PRESSURE",
	consts.AbsMtDistance:    "DISTANCE",
	consts.AbsMtToolX:       "TOOL_X",
	consts.AbsMtToolY:       "TOOL_Y",
	consts.BtnLeft:          "BTN_LEFT",
	consts.BtnRight:         "BTN_RIGHT",
	consts.BtnMiddle:        "BTN_MIDDLE",
	consts.BtnToolFinger:    "BTN_TOOL_FINGER",
	consts.BtnTouch:         "BTN_TOUCH",
	consts.BtnToolDoubleTap: "BTN_TOOL_DOUBLETAP",
}
