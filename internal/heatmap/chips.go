package heatmap

import (
	"fmt"
	"log"

	"github.com/JohnAZoidberg/tapview/internal/hid"
)

// ChipVariant は対応するタッチコントローラチップの閉じた列挙。
// 新しいチップは新しいレジスタシーケンスを意味するため、プラグイン化はしない。
type ChipVariant int

const (
	ChipPJP274 ChipVariant = iota
	ChipPJP343
	ChipPJP255
	ChipPJP215
	ChipPLP239
)

func (c ChipVariant) String() string {
	switch c {
	case ChipPJP274:
		return "PJP274"
	case ChipPJP343:
		return "PJP343"
	case ChipPJP255:
		return "PJP255"
	case ChipPJP215:
		return "PJP215"
	case ChipPLP239:
		return "PLP239"
	}
	return fmt.Sprintf("ChipVariant(%d)", int(c))
}

// UnsupportedChipError は未知のPart IDを表すエラー
type UnsupportedChipError struct {
	PartID uint16
}

func (e *UnsupportedChipError) Error() string {
	return fmt.Sprintf("未対応のチップです: Part ID 0x%04X", e.PartID)
}

// IdentifyChip はバンク0の0x78（下位）と0x79（上位）からPart IDを読み、
// チップ種別を判定する
func IdentifyChip(dev hid.Device) (ChipVariant, error) {
	lo, err := readReg(dev, 0, 0x78)
	if err != nil {
		return 0, fmt.Errorf("Part ID下位バイトの読み出しに失敗しました: %w", err)
	}
	hi, err := readReg(dev, 0, 0x79)
	if err != nil {
		return 0, fmt.Errorf("Part ID上位バイトの読み出しに失敗しました: %w", err)
	}
	partID := uint16(lo) | uint16(hi)<<8

	switch partID {
	case 0x0274:
		return ChipPJP274, nil
	case 0x0343:
		return ChipPJP343, nil
	case 0x0255:
		return ChipPJP255, nil
	case 0x0215:
		return ChipPJP215, nil
	case 0x0239:
		return ChipPLP239, nil
	}
	return 0, &UnsupportedChipError{PartID: partID}
}

// ReadMatrixDims はチップ系列ごとのレジスタからセンサーマトリクスの
// 行数・列数を読み出す
func ReadMatrixDims(dev hid.Device, chip ChipVariant) (rows, cols int, err error) {
	switch chip {
	case ChipPJP274, ChipPJP343:
		r, err := readUserReg(dev, 0, 0x6E)
		if err != nil {
			return 0, 0, err
		}
		c, err := readUserReg(dev, 0, 0x6F)
		if err != nil {
			return 0, 0, err
		}
		return int(r), int(c), nil
	case ChipPJP255, ChipPJP215:
		drives, err := readUserReg(dev, 0, 0x5A)
		if err != nil {
			return 0, 0, err
		}
		senses, err := readUserReg(dev, 0, 0x59)
		if err != nil {
			return 0, 0, err
		}
		return int(drives), int(senses), nil
	case ChipPLP239:
		// バンク9（AFE）側はcount-1で格納されている
		drives, err := readReg(dev, 9, 0x01)
		if err != nil {
			return 0, 0, err
		}
		senses, err := readReg(dev, 9, 0x02)
		if err != nil {
			return 0, 0, err
		}
		return int(drives) + 1, int(senses) + 1, nil
	}
	return 0, 0, fmt.Errorf("未知のチップ種別です: %v", chip)
}

// ReadFrame は1フレーム分の生データを取得し、行優先の符号付き16bit値として返す
func ReadFrame(dev hid.Device, chip ChipVariant, rows, cols, burstLen int) ([]int16, error) {
	totalBytes := rows * cols * 2

	var raw []byte
	var err error
	switch chip {
	case ChipPJP274, ChipPJP343:
		raw, err = readFramePJP274(dev, rows, cols, totalBytes, burstLen)
	case ChipPJP255, ChipPJP215:
		raw, err = readFramePJP255(dev, totalBytes, burstLen)
	case ChipPLP239:
		raw, err = readFramePLP239(dev, totalBytes, burstLen)
	default:
		return nil, fmt.Errorf("未知のチップ種別です: %v", chip)
	}
	if err != nil {
		return nil, err
	}

	return samplesFromBytes(raw), nil
}

func readFramePJP274(dev hid.Device, rows, cols, totalBytes, burstLen int) ([]byte, error) {
	// マトリクス寸法をIOバンク（バンク6）へ設定する
	// 0x0E = 列数-1, 0x0F = 行数-1
	if err := writeReg(dev, 6, 0x0E, byte(cols-1)); err != nil {
		return nil, err
	}
	if err := writeReg(dev, 6, 0x0F, byte(rows-1)); err != nil {
		return nil, err
	}

	// SRAMのFrame0を選択
	if err := writeReg(dev, 6, 0x09, 0x05); err != nil {
		return nil, err
	}

	// チップセレクトをアサート
	if err := writeReg(dev, 6, 0x0A, 0x00); err != nil {
		return nil, err
	}

	data, err := burstRead(dev, totalBytes, burstLen)
	if err != nil {
		return nil, err
	}

	// チップセレクトをデアサート
	if err := writeReg(dev, 6, 0x0A, 0x01); err != nil {
		return nil, err
	}

	return data, nil
}

func readFramePJP255(dev hid.Device, totalBytes, burstLen int) ([]byte, error) {
	// フレームバッファ読み出しモードを有効にする
	if err := writeReg(dev, 1, 0x0D, 0x40); err != nil {
		return nil, err
	}
	if err := writeReg(dev, 1, 0x0E, 0x06); err != nil {
		return nil, err
	}

	// バンク2でSRAM（Frame0）選択とチップセレクトのアサート
	if err := writeReg(dev, 2, 0x09, 0x05); err != nil {
		return nil, err
	}
	if err := writeReg(dev, 2, 0x0A, 0x00); err != nil {
		return nil, err
	}

	data, err := burstRead(dev, totalBytes, burstLen)
	if err != nil {
		return nil, err
	}

	if err := writeReg(dev, 2, 0x0A, 0x01); err != nil {
		return nil, err
	}

	return data, nil
}

// plp239PollLimit はフラッシュ読み出し完了ビットのポーリング上限回数
const plp239PollLimit = 1000

func readFramePLP239(dev hid.Device, totalBytes, burstLen int) ([]byte, error) {
	// レベル0プロテクションを解除
	if err := writeReg(dev, 6, 0x20, 0xCC); err != nil {
		return nil, err
	}

	// フラッシュ読み出しコマンド
	if err := writeReg(dev, 6, 0x25, 0x77); err != nil {
		return nil, err
	}

	// 完了ビット（バンク6 0x27のbit0）を待機なしでポーリングする。
	// 上限に達してもエラーにはせず先へ進む（ファームウェアの挙動に合わせる）
	done := false
	for i := 0; i < plp239PollLimit; i++ {
		status, err := readReg(dev, 6, 0x27)
		if err != nil {
			return nil, err
		}
		if status&0x01 != 0 {
			done = true
			break
		}
	}
	if !done {
		log.Printf("heatmap: フラッシュ読み出し完了ビットがポーリング上限(%d回)内に立ちませんでした。処理を継続します", plp239PollLimit)
	}

	// 読み出しコマンドを終了
	if err := writeReg(dev, 6, 0x25, 0xDD); err != nil {
		return nil, err
	}

	// SRAM読み出しオフセットをリセット（バンク4）
	if err := writeReg(dev, 4, 0x1C, 0x00); err != nil {
		return nil, err
	}
	if err := writeReg(dev, 4, 0x1D, 0x00); err != nil {
		return nil, err
	}

	// SRAM読み出しモードへ
	if err := writeReg(dev, 6, 0x25, 0x11); err != nil {
		return nil, err
	}

	data, err := burstRead(dev, totalBytes, burstLen)
	if err != nil {
		return nil, err
	}

	if err := writeReg(dev, 6, 0x25, 0xDD); err != nil {
		return nil, err
	}

	return data, nil
}
