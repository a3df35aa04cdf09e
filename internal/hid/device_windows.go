//go:build windows

package hid

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modhid          = windows.NewLazySystemDLL("hid.dll")
	procSetFeature  = modhid.NewProc("HidD_SetFeature")
	procGetFeature  = modhid.NewProc("HidD_GetFeature")
)

type winHidDevice struct {
	handle windows.Handle
}

// Open はHIDデバイスハンドルを読み書き共有モードで開く
func Open(path string) (Device, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFile(
		p,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("HIDデバイスを開くのに失敗しました: %w", err)
	}
	return &winHidDevice{handle: h}, nil
}

func (d *winHidDevice) SetFeature(buf []byte) error {
	r, _, _ := procSetFeature.Call(
		uintptr(d.handle),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
	)
	if r == 0 {
		return fmt.Errorf("HidD_SetFeatureに失敗しました")
	}
	return nil
}

// GetFeature はWindowsでは実受信長を返さないため、成功時はバッファ長を返す
func (d *winHidDevice) GetFeature(buf []byte) (int, error) {
	r, _, _ := procGetFeature.Call(
		uintptr(d.handle),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
	)
	if r == 0 {
		return 0, fmt.Errorf("HidD_GetFeatureに失敗しました")
	}
	return len(buf), nil
}

func (d *winHidDevice) ReadReport(buf []byte) (int, error) {
	var read uint32
	err := windows.ReadFile(d.handle, buf, &read, nil)
	if err != nil {
		return 0, err
	}
	return int(read), nil
}

func (d *winHidDevice) Close() error {
	return windows.CloseHandle(d.handle)
}

// ReadDescriptor はWindowsではsysfs相当が無いため未対応
func ReadDescriptor(devPath string) ([]byte, error) {
	return nil, fmt.Errorf("このプラットフォームではレポートディスクリプタを取得できません")
}
