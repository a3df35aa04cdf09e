//go:build !linux

package features

import "fmt"

// evdevはLinux専用。他のプラットフォームではレポートデコーダを使う
func OpenTouchPad(path string) (TouchPad, error) {
	return nil, fmt.Errorf("evdev touchpad is not supported on this platform")
}
