//go:build linux

package hid

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// hidrawのioctl番号（linux/hidraw.hの_IOCマクロ相当）。
// _IOC(dir, type, nr, size) = (dir << 30) | (size << 16) | (type << 8) | nr
const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | typ<<8 | nr
}

func hidiocSFeature(length int) uintptr {
	return ioc(iocWrite|iocRead, 'H', 0x06, uintptr(length))
}

func hidiocGFeature(length int) uintptr {
	return ioc(iocWrite|iocRead, 'H', 0x07, uintptr(length))
}

type hidrawDevice struct {
	file *os.File
}

// Open はhidrawデバイスを読み書き・非ブロッキングモードで開く
func Open(path string) (Device, error) {
	f, err := os.OpenFile(path, syscall.O_RDWR|syscall.O_NONBLOCK, 0660)
	if err != nil {
		return nil, fmt.Errorf("hidrawデバイスを開くのに失敗しました: %w", err)
	}
	return &hidrawDevice{file: f}, nil
}

func (d *hidrawDevice) SetFeature(buf []byte) error {
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		d.file.Fd(),
		hidiocSFeature(len(buf)),
		uintptr(unsafe.Pointer(&buf[0])),
	)
	if errno != 0 {
		return fmt.Errorf("HIDIOCSFEATUREに失敗しました: %w", errno)
	}
	return nil
}

func (d *hidrawDevice) GetFeature(buf []byte) (int, error) {
	n, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		d.file.Fd(),
		hidiocGFeature(len(buf)),
		uintptr(unsafe.Pointer(&buf[0])),
	)
	if errno != 0 {
		return 0, fmt.Errorf("HIDIOCGFEATUREに失敗しました: %w", errno)
	}
	return int(n), nil
}

// ReadReport は1件の入力レポートを読み込む。データが無ければ(0, nil)を返す
func (d *hidrawDevice) ReadReport(buf []byte) (int, error) {
	n, err := d.file.Read(buf)
	if err != nil {
		if errors.Is(err, syscall.EAGAIN) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (d *hidrawDevice) Close() error {
	return d.file.Close()
}

// ReadDescriptor はhidrawデバイスのレポートディスクリプタをsysfsから読み出す
func ReadDescriptor(devPath string) ([]byte, error) {
	name := filepath.Base(devPath)
	descPath := fmt.Sprintf("/sys/class/hidraw/%s/device/report_descriptor", name)
	desc, err := os.ReadFile(descPath)
	if err != nil {
		return nil, fmt.Errorf("レポートディスクリプタの読み出しに失敗しました: %w", err)
	}
	return desc, nil
}
