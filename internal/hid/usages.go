package hid

// HID Usageページ
const (
	UsagePageGenericDesktop = 0x01
	UsagePageButton         = 0x09
	UsagePageDigitizer      = 0x0D
)

// Generic DesktopページのUsage
const (
	UsageX = 0x30
	UsageY = 0x31
)

// DigitizerページのUsage
const (
	UsageTipPressure     = 0x30
	UsageTipSwitch       = 0x42
	UsageConfidence      = 0x47
	UsageWidth           = 0x48
	UsageHeight          = 0x49
	UsageContactID       = 0x51
	UsageContactCount    = 0x54
	UsageContactCountMax = 0x55
)
