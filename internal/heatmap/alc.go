package heatmap

import "github.com/JohnAZoidberg/tapview/internal/hid"

// ALC（Automatic Level Control）の制御レジスタはチップ/ファームウェア固有で、
// 公開された資料からは確定できない。系列ごとの既定値を持ちつつ、
// AlcAccessorとして差し替え可能にしておく。
type AlcAccessor struct {
	Reset     func(dev hid.Device) error
	Enable    func(dev hid.Device) error
	Disable   func(dev hid.Device) error
	IsEnabled func(dev hid.Device) (bool, error)
}

// 系列ごとのALC制御レジスタ（bank, addr）
var alcCtrlReg = map[ChipVariant][2]byte{
	ChipPJP274: {0, 0x6A},
	ChipPJP343: {0, 0x6A},
	ChipPJP255: {1, 0x0B},
	ChipPJP215: {1, 0x0B},
	ChipPLP239: {6, 0x2E},
}

const (
	alcCtrlDisable = 0x00 // ALC停止
	alcCtrlEnable  = 0x01 // ALC動作
	alcCtrlReset   = 0x02 // ベースライン再取得（自己クリア）
)

// DefaultAlcAccessor はチップ系列に応じた既定のALCアクセサを返す
func DefaultAlcAccessor(chip ChipVariant) AlcAccessor {
	reg, ok := alcCtrlReg[chip]
	if !ok {
		reg = alcCtrlReg[ChipPJP274]
	}
	bank, addr := reg[0], reg[1]

	return AlcAccessor{
		Reset: func(dev hid.Device) error {
			return writeReg(dev, bank, addr, alcCtrlReset)
		},
		Enable: func(dev hid.Device) error {
			return writeReg(dev, bank, addr, alcCtrlEnable)
		},
		Disable: func(dev hid.Device) error {
			return writeReg(dev, bank, addr, alcCtrlDisable)
		},
		IsEnabled: func(dev hid.Device) (bool, error) {
			v, err := readReg(dev, bank, addr)
			if err != nil {
				return false, err
			}
			return v&0x01 != 0, nil
		},
	}
}
