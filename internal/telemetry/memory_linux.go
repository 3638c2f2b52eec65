package telemetry

import (
	"golang.org/x/sys/unix"
)

// FreeMemory returns the amount of free system memory in bytes.
func FreeMemory() uint64 {
	info := unix.Sysinfo_t{}

	err := unix.Sysinfo(&info)
	if err != nil {
		return 0
	}

	return uint64(info.Freeram) * uint64(info.Unit)
}
