//go:build linux

package features

import (
	"encoding/binary"
	"fmt"
	"os"
	"syscall"

	"github.com/JohnAZoidberg/tapview/internal/consts"
	"github.com/JohnAZoidberg/tapview/internal/types"
	"github.com/JohnAZoidberg/tapview/internal/utils"
)

type evdevTouchPad struct {
	file    *os.File
	grabbed bool
}

// 指定されたパスのタッチパッドを開く
func OpenTouchPad(path string) (TouchPad, error) {
	f, err := os.OpenFile(path, syscall.O_RDONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open device file: %w", err)
	}
	return &evdevTouchPad{file: f}, nil
}

func (t *evdevTouchPad) NextEvent() (types.Event, bool, error) {
	var e types.Event
	size := binary.Size(e)
	buf := make([]byte, size)

	n, err := t.file.Read(buf)
	if err != nil {
		if err == syscall.EAGAIN {
			return e, false, nil
		}
		if pathErr, isPath := err.(*os.PathError); isPath && pathErr.Err == syscall.EAGAIN {
			return e, false, nil
		}
		return e, false, fmt.Errorf("failed to read input event: %w", err)
	}
	if n < size {
		return e, false, nil
	}

	e.Time.Sec = int64(binary.LittleEndian.Uint64(buf[0:8]))
	e.Time.Usec = int64(binary.LittleEndian.Uint64(buf[8:16]))
	e.Type = binary.LittleEndian.Uint16(buf[16:18])
	e.Code = binary.LittleEndian.Uint16(buf[18:20])
	e.Value = int32(binary.LittleEndian.Uint32(buf[20:24]))

	return e, true, nil
}

func (t *evdevTouchPad) Grab() error {
	if t.grabbed {
		return nil
	}
	if err := utils.IOCtl(t.file, consts.EVIOCGRAB, 1); err != nil {
		return fmt.Errorf("failed to grab device: %w", err)
	}
	t.grabbed = true
	return nil
}

func (t *evdevTouchPad) Release() error {
	if !t.grabbed {
		return nil
	}
	if err := utils.IOCtl(t.file, consts.EVIOCGRAB, 0); err != nil {
		return fmt.Errorf("failed to release device: %w", err)
	}
	t.grabbed = false
	return nil
}

func (t *evdevTouchPad) Close() error {
	_ = t.Release()
	return t.file.Close()
}
