//go:build !linux

package telemetry

import (
	"runtime"
)

// FreeMemory returns the amount of heap memory held by the runtime but not in use.
func FreeMemory() uint64 {
	stats := runtime.MemStats{}
	runtime.ReadMemStats(&stats)

	return stats.HeapIdle - stats.HeapReleased
}
