//go:build windows

package capture

import "golang.org/x/sys/windows"

var (
	modUser32           = windows.NewLazySystemDLL("user32.dll")
	procGetDpiForSystem = modUser32.NewProc("GetDpiForSystem")
)

// DisplayScale reports pixels-per-point from the system DPI (96 DPI = 1.0).
// Falls back to 1.0 when the API is unavailable (pre-1607 Windows).
func DisplayScale() float64 {
	if err := procGetDpiForSystem.Find(); err != nil {
		return 1.0
	}
	dpi, _, _ := procGetDpiForSystem.Call()
	if dpi == 0 {
		return 1.0
	}
	return float64(dpi) / 96.0
}
