package heatmap

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/JohnAZoidberg/tapview/internal/hid"
)

// レジスタプロトコルのレポートID
const (
	reportSingle = 0x42 // 単一レジスタの読み書き
	reportUser   = 0x43 // ユーザーレジスタの読み出し
	reportBurst  = 0x41 // バースト転送

	readFlag = 0x10 // バンク指定に重畳する読み出しフラグ
)

// BurstReportID はバースト転送のレポートID。ディスクリプタから
// バースト長を引くときに使う
const BurstReportID = reportBurst

// ErrShortBurst はバーストレポートがペイロードを返さなかったことを表す。
// 短いフレームを黙って組み立てるのではなく、ここで打ち切る。
var ErrShortBurst = errors.New("バーストレポートの応答にペイロードがありません")

// writeReg は単一レジスタへ1バイト書き込む
func writeReg(dev hid.Device, bank, addr, value byte) error {
	return dev.SetFeature([]byte{reportSingle, addr, bank, value})
}

// readReg は単一レジスタから1バイト読み出す。
// 手順1: 読み出しフラグ付きでSetFeature。手順2: GetFeatureの結果のオフセット3。
func readReg(dev hid.Device, bank, addr byte) (byte, error) {
	if err := dev.SetFeature([]byte{reportSingle, addr, bank | readFlag, 0x00}); err != nil {
		return 0, err
	}
	buf := []byte{reportSingle, 0, 0, 0}
	if _, err := dev.GetFeature(buf); err != nil {
		return 0, err
	}
	return buf[3], nil
}

// readUserReg はユーザーレジスタから1バイト読み出す（レポートIDのみ異なる）
func readUserReg(dev hid.Device, bank, addr byte) (byte, error) {
	if err := dev.SetFeature([]byte{reportUser, addr, bank | readFlag, 0x00}); err != nil {
		return 0, err
	}
	buf := []byte{reportUser, 0, 0, 0}
	if _, err := dev.GetFeature(buf); err != nil {
		return 0, err
	}
	return buf[3], nil
}

// burstRead はバーストレポートのGetFeatureを繰り返し、totalBytesの
// ペイロードを蓄積する。ペイロードはバッファのオフセット1から始まる。
// 応答がレポートIDのみ（あるいは空）の場合は前進できないため打ち切る。
func burstRead(dev hid.Device, totalBytes, reportLen int) ([]byte, error) {
	result := make([]byte, 0, totalBytes)
	buf := make([]byte, 1+reportLen)

	for len(result) < totalBytes {
		buf[0] = reportBurst
		n, err := dev.GetFeature(buf)
		if err != nil {
			return nil, err
		}
		if n < 2 {
			return nil, fmt.Errorf("%w: 受信長=%d", ErrShortBurst, n)
		}
		if n > len(buf) {
			n = len(buf)
		}
		take := n - 1
		if remaining := totalBytes - len(result); take > remaining {
			take = remaining
		}
		result = append(result, buf[1:1+take]...)
	}

	return result, nil
}

// samplesFromBytes は受信順のバイト列をリトルエンディアンの符号付き16bit値へ変換する
func samplesFromBytes(raw []byte) []int16 {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples
}
