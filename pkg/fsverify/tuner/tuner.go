// Package tuner sizes the worker pools of a validation run from the
// detected CPU and memory. Images are validated in parallel, each one
// holding its parsed listings in memory, and every image hashes its
// recovered tree with a pool of its own.
package tuner

// SystemResources contains detected system resources.
type SystemResources struct {
	// CPUCores is the number of logical CPU cores available.
	CPUCores int

	// TotalRAM is the total physical RAM in bytes.
	TotalRAM int64

	// AvailableRAM is the available (free) RAM in bytes.
	// This may be an estimate based on system heuristics.
	AvailableRAM int64
}
