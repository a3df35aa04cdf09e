package consts

// イベントタイプの定数（input-event-codes.hから）
const (
	Syn = 0x00 // 同期イベント
	Key = 0x01 // キーイベント
	Rel = 0x02 // 相対座標イベント
	Abs = 0x03 // 絶対座標イベント
	Msc = 0x04 // その他イベント
)

// マルチタッチ用の絶対座標コード
const (
	AbsMtSlot        = 0x2f // スロット（指の識別子）
	AbsMtTouchMajor  = 0x30 // タッチ領域の長径
	AbsMtTouchMinor  = 0x31 // タッチ領域の短径
	AbsMtWidthMajor  = 0x32 // 接近領域の長径
	AbsMtWidthMinor  = 0x33 // 接近領域の短径
	AbsMtOrientation = 0x34 // タッチ楕円の向き
	AbsMtPositionX   = 0x35 // マルチタッチのX座標
	AbsMtPositionY   = 0x36 // マルチタッチのY座標
	AbsMtToolType    = 0x37 // ツール種別（指/手のひら）
	AbsMtBlobId      = 0x38 // ブロブID
	AbsMtTrackingId  = 0x39 // タッチ追跡用ID
	AbsMtPressure    = 0x3a // タッチ圧力
	AbsMtDistance    = 0x3b // ホバー距離
	AbsMtToolX       = 0x3c // ツール中心のX座標
	AbsMtToolY       = 0x3d // ツール中心のY座標
)

// キーコード
const (
	SynReport        = 0     // イベント報告の同期
	BtnLeft          = 0x110 // マウス左ボタン
	BtnRight         = 0x111 // マウス右ボタン
	BtnMiddle        = 0x112 // マウス中ボタン
	BtnToolFinger    = 0x145 // 指によるタッチ
	BtnTouch         = 0x14a // タッチイベント
	BtnToolDoubleTap = 0x14d // 2本指タップ
)

// ツール種別の値（input.hのMT_TOOL_*）
const (
	ToolFinger = 0 // 指
	ToolPen    = 1 // ペン
	ToolPalm   = 2 // 手のひら
)

// デバイス制御用定数
const (
	EVIOCGRAB = 0x40044590 // デバイスの排他制御用のIOCTL
)
