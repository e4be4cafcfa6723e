//go:build !darwin && !linux

package tuner

import (
	"runtime"
)

// defaultTotalRAM is the assumed total RAM where it cannot be detected.
const defaultTotalRAM = 8 * 1024 * 1024 * 1024

// Detect detects available system resources (CPU and RAM).
// Memory falls back to a fixed estimate on this platform.
func Detect() (SystemResources, error) {
	totalRAM := int64(defaultTotalRAM)

	return SystemResources{
		CPUCores:     runtime.NumCPU(),
		TotalRAM:     totalRAM,
		AvailableRAM: totalRAM / 2,
	}, nil
}
