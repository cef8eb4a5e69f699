//go:build !windows

package capture

// DisplayScale reports pixels-per-point. The capture backends on these
// platforms hand back pixel buffers matching the requested rect, so points
// map 1:1.
func DisplayScale() float64 { return 1.0 }
